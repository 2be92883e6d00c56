package announcement

import "github.com/gin-gonic/gin"

func (h *Handler) RegisterPublicRoutes(v1 *gin.RouterGroup) {
	v1.GET("/announcements/latest", h.GetLatest)
}

// RegisterAdminRoutes expects rg to be guarded by AdminOnly already.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.POST("/announcements", h.Create)
}
