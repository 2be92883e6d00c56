package slip

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"marketstall/internal/pkg/response"
)

type Handler struct {
	store *Store
}

func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

// Serve streams a slip to the user who uploaded it or to an admin.
// GET <static prefix>/*filepath
func (h *Handler) Serve(c *gin.Context) {
	upload, file, err := h.store.Lookup(c.Request.Context(), c.Param("filepath"))
	if errors.Is(err, ErrUploadNotFound) {
		response.Error(c, http.StatusNotFound, response.CodeNotFound, "Slip not found")
		return
	}
	if err != nil {
		log.WithError(err).Error("failed to load slip")
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, "Failed to load slip")
		return
	}

	role, _ := c.Get("role")
	if r, _ := role.(string); upload.UserID != c.GetInt64("user_id") && r != "admin" {
		response.Error(c, http.StatusForbidden, response.CodeForbidden, "Access denied")
		return
	}

	c.Header("Cache-Control", "private, no-store")
	c.File(file)
}
