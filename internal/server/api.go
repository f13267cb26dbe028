package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/wanderhq/wanderlust/internal/admin"
	"github.com/wanderhq/wanderlust/internal/auth"
	"github.com/wanderhq/wanderlust/internal/cache"
	"github.com/wanderhq/wanderlust/internal/config"
	apierrors "github.com/wanderhq/wanderlust/internal/errors"
	"github.com/wanderhq/wanderlust/internal/listing"
	"github.com/wanderhq/wanderlust/internal/logging"
	"github.com/wanderhq/wanderlust/internal/middleware"
	"github.com/wanderhq/wanderlust/internal/moderation"
	"github.com/wanderhq/wanderlust/internal/monitoring"
	"github.com/wanderhq/wanderlust/internal/policy"
	"github.com/wanderhq/wanderlust/internal/review"
	"github.com/wanderhq/wanderlust/internal/store"
)

// APIServer represents the main API server
type APIServer struct {
	config           *config.Config
	router           *gin.Engine
	authService      *auth.Service
	listingService   *listing.Service
	reviewService    *review.Service
	adminService     *admin.Service
	jwtAuthenticator *middleware.JWTAuthenticator
}

// NewAPIServer creates a new API server instance
func NewAPIServer(cfg *config.Config, db *pgxpool.Pool, rdb *redis.Client) *APIServer {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Add middleware in order
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	router.Use(monitoring.MetricsMiddleware())
	router.Use(logging.RequestLogger())

	st := store.NewPostgres(db)
	listingCache := cache.New(rdb, cfg.Redis.ListingCacheTTL)

	srv := &APIServer{
		config:           cfg,
		router:           router,
		authService:      auth.NewService(db, &cfg.JWT),
		listingService:   listing.NewService(st, listingCache),
		reviewService:    review.NewService(st),
		adminService:     admin.NewService(st, listingCache),
		jwtAuthenticator: middleware.NewJWTAuthenticator(&cfg.JWT),
	}

	srv.setupRoutes()
	return srv
}

// Router returns the gin router
func (s *APIServer) Router() http.Handler {
	return s.router
}

// setupRoutes configures all API routes
func (s *APIServer) setupRoutes() {
	// Health check
	s.router.GET("/health", s.healthCheck)

	// API v1 routes
	v1 := s.router.Group("/api/v1")
	{
		// Auth routes (public)
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", s.handleRegister)
			authGroup.POST("/login", s.handleLogin)
			authGroup.POST("/logout", s.handleLogout)
			authGroup.POST("/refresh", s.handleRefresh)
		}

		// Listing routes. Reads are public with optional identity so
		// owners see their own unapproved listings; writes require auth.
		listings := v1.Group("/listings")
		{
			listings.GET("", s.jwtAuthenticator.OptionalAuth(), s.handleListListings)
			listings.GET("/:id", s.jwtAuthenticator.OptionalAuth(), s.handleGetListing)
			listings.POST("", s.jwtAuthenticator.JWTAuth(), s.handleCreateListing)
			listings.PUT("/:id", s.jwtAuthenticator.JWTAuth(), s.handleUpdateListing)
			listings.DELETE("/:id", s.jwtAuthenticator.JWTAuth(), s.handleDeleteListing)
			listings.POST("/:id/like", s.jwtAuthenticator.JWTAuth(), s.handleToggleLike)

			listings.GET("/:id/reviews", s.jwtAuthenticator.OptionalAuth(), s.handleListReviews)
			listings.POST("/:id/reviews", s.jwtAuthenticator.JWTAuth(), s.handleCreateReview)
		}

		// Review routes
		reviews := v1.Group("/reviews")
		reviews.Use(s.jwtAuthenticator.JWTAuth())
		{
			reviews.DELETE("/:id", s.handleDeleteReview)
		}

		// Admin routes (protected - requires admin role)
		adminGroup := v1.Group("/admin")
		adminGroup.Use(s.jwtAuthenticator.JWTAuth())
		adminGroup.Use(middleware.RequireAdmin())
		{
			adminGroup.GET("/dashboard/stats", s.handleAdminStats)
			adminGroup.GET("/moderation/queue", s.handleAdminQueue)
			adminGroup.POST("/moderation/bulk", s.handleAdminBulk)
			adminGroup.POST("/listings/:id/approve", s.handleApproveListing)
			adminGroup.POST("/listings/:id/reject", s.handleRejectListing)
			adminGroup.POST("/reviews/:id/approve", s.handleApproveReview)
			adminGroup.POST("/reviews/:id/reject", s.handleRejectReview)
		}
	}
}

// Health check handler
func (s *APIServer) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "api",
	})
}

// handleRegister handles user registration
func (s *APIServer) handleRegister(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierrors.NewValidationError(err.Error()))
		return
	}

	resp, err := s.authService.Register(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, auth.ErrUserAlreadyExists) {
			respondError(c, apierrors.NewInvalidRequestError("Username or email already registered"))
		} else {
			respondError(c, apierrors.ErrInternalServerError)
		}
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// handleLogin handles user login
func (s *APIServer) handleLogin(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierrors.NewValidationError(err.Error()))
		return
	}

	resp, err := s.authService.Login(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			respondError(c, apierrors.ErrInvalidCredentialsError)
		} else {
			respondError(c, apierrors.ErrInternalServerError)
		}
		return
	}

	c.JSON(http.StatusOK, resp)
}

// handleLogout handles user logout
func (s *APIServer) handleLogout(c *gin.Context) {
	// Stateless JWT: logout is handled client-side by discarding the tokens
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

// handleRefresh handles token refresh
func (s *APIServer) handleRefresh(c *gin.Context) {
	var req auth.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierrors.NewValidationError(err.Error()))
		return
	}

	tokens, err := s.authService.RefreshTokens(c.Request.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrTokenExpired):
			respondError(c, apierrors.ErrTokenExpiredError)
		case errors.Is(err, auth.ErrUserNotFound):
			respondError(c, apierrors.ErrUserNotFoundError)
		case errors.Is(err, auth.ErrInvalidToken):
			respondError(c, apierrors.ErrInvalidCredentialsError)
		default:
			respondError(c, apierrors.ErrInternalServerError)
		}
		return
	}

	c.JSON(http.StatusOK, tokens)
}

// respondError sends a standardized error response
func respondError(c *gin.Context, err *apierrors.APIError) {
	c.JSON(err.HTTPStatus, apierrors.NewErrorResponse(err, c.GetString("request_id")))
}

// respondServiceError maps service-layer sentinel errors onto the API
// error envelope. Unknown errors are logged and surface as a 500.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, policy.ErrUnauthenticated):
		respondError(c, apierrors.ErrUnauthenticatedError)
	case errors.Is(err, policy.ErrNotOwner):
		respondError(c, apierrors.ErrNotOwnerError)
	case errors.Is(err, policy.ErrForbidden):
		respondError(c, apierrors.ErrForbiddenError)
	case errors.Is(err, store.ErrNotFound):
		respondError(c, apierrors.ErrNotFoundError)
	case errors.Is(err, moderation.ErrInvalidTransition):
		respondError(c, apierrors.ErrInvalidTransitionError)
	case errors.Is(err, listing.ErrInvalidInput),
		errors.Is(err, review.ErrInvalidRating),
		errors.Is(err, review.ErrCommentRequired):
		respondError(c, apierrors.NewValidationError(err.Error()))
	default:
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Unhandled service error")
		respondError(c, apierrors.ErrInternalServerError)
	}
}
