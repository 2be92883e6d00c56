package booking

import (
	"github.com/gin-gonic/gin"
)

// RegisterPublicRoutes mounts the read-only catalog and occupancy endpoints.
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.GET("/stalls", h.GetStalls)
	rg.GET("/bookings", h.GetOccupancy)
}

// RegisterRoutes mounts the customer endpoints. holdGuards run before POST /hold
// (rate limiting).
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, holdGuards ...gin.HandlerFunc) {
	rg.POST("/hold", append(holdGuards, h.RequestHold)...)
	rg.DELETE("/hold", h.ReleaseHold)

	rg.GET("/queue", h.GetQueueStatus)
	rg.POST("/queue/leave", h.LeaveQueue)

	rg.POST("/bookings", h.SubmitPayment)
	rg.GET("/users/me/bookings", h.GetMyBookings)
}

// RegisterAdminRoutes expects rg to be guarded by AdminOnly already.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.GET("/bookings", h.ListForReview)
	rg.PUT("/bookings", h.ReviewBooking)
}
