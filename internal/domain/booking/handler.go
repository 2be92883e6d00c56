package booking

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"marketstall/internal/domain/reservation"
	"marketstall/internal/pkg/response"
	"marketstall/internal/pkg/validator"
)

type Handler struct {
	holds     *HoldService
	payments  *PaymentService
	reviews   *ReviewService
	occupancy *OccupancyService
}

func NewHandler(holds *HoldService, payments *PaymentService, reviews *ReviewService, occupancy *OccupancyService) *Handler {
	if err := validator.RegisterGinValidations(); err != nil {
		log.WithError(err).Warn("failed to register binding validations")
	}
	return &Handler{
		holds:     holds,
		payments:  payments,
		reviews:   reviews,
		occupancy: occupancy,
	}
}

// GetStalls godoc: GET /stalls?date=YYYY-MM-DD
func (h *Handler) GetStalls(c *gin.Context) {
	date := c.Query("date")
	dt, stalls, err := h.occupancy.Catalog(date)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"date": date, "day_type": dt, "stalls": stalls})
}

// GetOccupancy godoc: GET /bookings?date=YYYY-MM-DD
func (h *Handler) GetOccupancy(c *gin.Context) {
	occ, err := h.occupancy.Occupancy(c.Request.Context(), c.Query("date"), c.GetInt64("user_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, occ)
}

// RequestHold answers 200 when granted, 202 when queued and 409 on conflict.
func (h *Handler) RequestHold(c *gin.Context) {
	var req HoldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	res, err := h.holds.RequestHold(c.Request.Context(), c.GetInt64("user_id"), req.Date, req.LockIDs)
	if err != nil {
		writeError(c, err)
		return
	}

	switch res.Outcome {
	case OutcomeGranted:
		response.Success(c, http.StatusOK, res)
	case OutcomeQueued:
		response.Success(c, http.StatusAccepted, res)
	default:
		msg := "Some stalls are already booked"
		if res.Storage {
			msg = "Some stalls were taken by another customer at the same moment"
		}
		response.ErrorWithDetails(c, http.StatusConflict, response.CodeBookingConflict, msg, res)
	}
}

// ReleaseHold accepts the ids either as a JSON body or as query parameters.
func (h *Handler) ReleaseHold(c *gin.Context) {
	var req HoldRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}
	} else {
		req.Date = c.Query("date")
		req.LockIDs = splitIDs(c.QueryArray("lock_ids"))
	}

	n, err := h.holds.ReleaseHold(c.Request.Context(), c.GetInt64("user_id"), req.Date, req.LockIDs)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"released": n})
}

func (h *Handler) GetQueueStatus(c *gin.Context) {
	positions, err := h.holds.QueueStatus(c.Request.Context(), c.GetInt64("user_id"), c.Query("date"), splitIDs(c.QueryArray("lock_ids")))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"queue": positions})
}

func (h *Handler) LeaveQueue(c *gin.Context) {
	var req LeaveQueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	if err := h.holds.LeaveQueue(c.Request.Context(), c.GetInt64("user_id"), req.Date, req.LockID); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"left": true})
}

func (h *Handler) SubmitPayment(c *gin.Context) {
	var req SubmitPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	res, err := h.payments.SubmitPayment(c.Request.Context(), SubmitPaymentInput{
		UserID:         c.GetInt64("user_id"),
		PaymentGroupID: req.PaymentGroupID,
		LockIDs:        req.LockIDs,
		Date:           req.Date,
		Amount:         req.Amount,
		SlipImage:      req.SlipImage,
		Metadata:       req.Metadata,
		ProductType:    req.ProductType,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"payment_group_id": res.PaymentGroupID,
		"slip_url":         res.SlipURL,
		"updated":          res.Updated,
		"created":          res.Created,
		"bookings":         toViews(res.Bookings),
	})
}

func (h *Handler) GetMyBookings(c *gin.Context) {
	list, err := h.occupancy.MyBookings(c.Request.Context(), c.GetInt64("user_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"bookings": toViews(list)})
}

func (h *Handler) ListForReview(c *gin.Context) {
	list, err := h.reviews.ListForReview(c.Request.Context(), reservation.Status(c.Query("status")))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"bookings": toViews(list)})
}

func (h *Handler) ReviewBooking(c *gin.Context) {
	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	b, err := h.reviews.Review(c.Request.Context(), req.ID, reservation.Status(req.Status))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"booking": toView(*b)})
}

func bindError(c *gin.Context, err error) {
	if fields := validator.Fields(err); fields != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, response.CodeValidation, "Invalid request body", fields)
		return
	}
	response.Error(c, http.StatusBadRequest, response.CodeValidation, "Invalid request body")
}

func writeError(c *gin.Context, err error) {
	var conflict *ConflictError
	switch {
	case errors.Is(err, ErrUnauthenticated):
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "Please sign in first")
	case errors.Is(err, ErrInvalidRequest):
		response.Error(c, http.StatusBadRequest, response.CodeValidation, err.Error())
	case errors.As(err, &conflict):
		response.ErrorWithDetails(c, http.StatusConflict, response.CodeBookingConflict, conflict.Error(),
			gin.H{"unavailable": conflict.LockIDs, "storage_conflict": conflict.Storage})
	case errors.Is(err, ErrPaymentUnverified):
		response.Error(c, http.StatusUnprocessableEntity, response.CodePaymentUnverified, err.Error())
	case errors.Is(err, ErrNotFound):
		response.Error(c, http.StatusNotFound, response.CodeNotFound, "Booking not found")
	default:
		log.WithError(err).WithFields(log.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		}).Error("booking request failed")
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, "Something went wrong")
	}
}
