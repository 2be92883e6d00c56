package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"marketstall/internal/pkg/response"
	"marketstall/internal/pkg/validator"
)

// Handler manages all HTTP interactions for authentication
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Register creates a customer account.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, response.CodeValidation, "Invalid request body", validator.Fields(err))
		return
	}

	user, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, ErrEmailAlreadyExists) {
			response.Error(c, http.StatusConflict, "EMAIL_EXISTS", "This email is already registered")
			return
		}
		log.WithError(err).Error("registration failed")
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, "Failed to register")
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"user": toPublic(user)})
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, response.CodeValidation, "Invalid request body", validator.Fields(err))
		return
	}

	result, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			response.Error(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password")
		case errors.Is(err, ErrAccountLocked):
			response.Error(c, http.StatusTooManyRequests, "ACCOUNT_LOCKED", "Too many failed attempts, try again later")
		default:
			log.WithError(err).Error("login failed")
			response.Error(c, http.StatusInternalServerError, response.CodeInternal, "Failed to login")
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"user": toPublic(result.User),
		"tokens": gin.H{
			"access_token": result.AccessToken,
		},
	})
}

func (h *Handler) GetMe(c *gin.Context) {
	user, err := h.service.Me(c.Request.Context(), c.GetInt64("user_id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrUserNotFound):
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "Please sign in first")
		default:
			log.WithError(err).Error("load profile failed")
			response.Error(c, http.StatusInternalServerError, response.CodeInternal, "Failed to load profile")
		}
		return
	}
	response.Success(c, http.StatusOK, gin.H{"user": toPublic(user)})
}
