package announcement

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"marketstall/internal/pkg/response"
	"marketstall/internal/pkg/validator"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) GetLatest(c *gin.Context) {
	a, err := h.service.Latest(c.Request.Context())
	if err != nil {
		log.WithError(err).Error("load announcement failed")
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, "Failed to load announcement")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"announcement": a})
}

func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, response.CodeValidation, "Invalid request body", validator.Fields(err))
		return
	}

	a, err := h.service.Create(c.Request.Context(), c.GetInt64("user_id"), req)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			response.Error(c, http.StatusBadRequest, response.CodeValidation, "Title and content are required")
			return
		}
		log.WithError(err).Error("publish announcement failed")
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, "Failed to publish announcement")
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"announcement": a})
}
