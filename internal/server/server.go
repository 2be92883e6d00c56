package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"marketstall/internal/config"
	"marketstall/internal/database"
	"marketstall/internal/domain/announcement"
	"marketstall/internal/domain/auth"
	"marketstall/internal/domain/booking"
	"marketstall/internal/domain/reservation"
	"marketstall/internal/domain/slip"
	"marketstall/internal/metrics"
	"marketstall/internal/middleware"
	jwtsvc "marketstall/internal/pkg/jwt"
)

// Migrations lists every table owner in dependency order.
var Migrations = []database.Migrator{reservation.Migrate, slip.Migrate, auth.Migrate, announcement.Migrate}

// Server is the wired HTTP application.
type Server struct {
	Engine  *gin.Engine
	Cleanup *reservation.CleanupService
	Metrics *metrics.Recorder
	JWT     *jwtsvc.Service
}

// New wires repositories, services and routes. rdb may be nil, which disables
// hold rate limiting.
func New(cfg *config.Config, db *gorm.DB, rdb redis.Cmdable) *Server {
	recorder := metrics.New()
	j := jwtsvc.New(cfg.JWTSecret, cfg.JWTTTL)

	// Repositories
	reservations := reservation.NewRepository(db)
	slips := slip.NewStore(slip.NewRepository(db), cfg.UploadDir, cfg.UploadURLBase, cfg.MaxSlipBytes)

	// Services
	authService := auth.NewService(auth.NewUserRepository(db), j)
	holdService := booking.NewHoldService(reservations, booking.HoldConfig{HoldTTL: cfg.HoldTTL, QueueTTL: cfg.QueueTTL}, recorder)
	paymentService := booking.NewPaymentService(reservations, slip.NewMetadataReader(), slips, cfg.Tolerance(), recorder)
	reviewService := booking.NewReviewService(reservations, recorder)
	occupancyService := booking.NewOccupancyService(reservations)
	announcementService := announcement.NewService(announcement.NewRepository(db))

	// Handlers
	authHandler := auth.NewHandler(authService)
	bookingHandler := booking.NewHandler(holdService, paymentService, reviewService, occupancyService)
	announcementHandler := announcement.NewHandler(announcementService)
	slipHandler := slip.NewHandler(slips)

	cleanup := reservation.NewCleanupService(reservations)
	cleanup.OnReap(recorder.Reaped)

	var holdGuards []gin.HandlerFunc
	if rdb != nil {
		holdGuards = append(holdGuards, middleware.NewRateLimiter(rdb, "hold", cfg.HoldRateLimit, cfg.HoldRateWindow).Middleware())
	}

	r := gin.New()
	r.Use(middleware.RequestLogger(), middleware.CORS(cfg.CORSAllowedOrigins), recorder.Middleware())

	r.GET("/health", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(recorder.Handler()))
	// slips are bank documents: owner or admin only
	r.GET(strings.TrimRight(cfg.UploadURLBase, "/")+"/*filepath", middleware.JWTAuth(j), slipHandler.Serve)

	v1 := r.Group("/api/v1")
	{
		// public; a token is still read so occupancy can flag the caller's stalls
		public := v1.Group("")
		public.Use(middleware.OptionalAuth(j))
		authHandler.RegisterPublicRoutes(public)
		bookingHandler.RegisterPublicRoutes(public)
		announcementHandler.RegisterPublicRoutes(public)

		protected := v1.Group("")
		protected.Use(middleware.JWTAuth(j))
		{
			authHandler.RegisterProtectedRoutes(protected)
			bookingHandler.RegisterRoutes(protected, holdGuards...)
		}

		admin := v1.Group("/admin")
		admin.Use(middleware.JWTAuth(j), middleware.AdminOnly())
		{
			bookingHandler.RegisterAdminRoutes(admin)
			announcementHandler.RegisterAdminRoutes(admin)
		}
	}

	return &Server{Engine: r, Cleanup: cleanup, Metrics: recorder, JWT: j}
}
