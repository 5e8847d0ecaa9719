// Package server contains the HTTP handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	_ "indiverse/docs" // swagger docs
	"indiverse/internal/cache"
	"indiverse/internal/config"
	"indiverse/internal/featureflags"
	"indiverse/internal/middleware"
	"indiverse/internal/models"
	"indiverse/internal/notifications"
	"indiverse/internal/repository"
	"indiverse/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const serviceName = "indiverse-api"

// Deps are the connections a Server is built on. Posts defaults to the SQL
// feed store on DB; Redis may be nil.
type Deps struct {
	DB     *gorm.DB
	Redis  *redis.Client
	Posts  repository.PostRepository
	Logger *slog.Logger
}

// Server holds all dependencies and provides handlers
type Server struct {
	config       *config.Config
	db           *gorm.DB
	redis        *redis.Client
	app          *fiber.App
	logger       *slog.Logger
	limiter      *middleware.RateLimiter
	featureFlags *featureflags.Manager

	userRepo repository.UserRepository
	postRepo repository.PostRepository

	authService    *service.AuthService
	feedService    *service.FeedService
	catalogService *service.CatalogService
	messageService *service.MessageService
}

// NewServer wires repositories and services on deps and builds the Fiber app.
func NewServer(cfg *config.Config, deps Deps) (*Server, error) {
	if deps.DB == nil {
		return nil, errors.New("server: database is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = middleware.Logger
	}

	c := cache.New(deps.Redis)
	userRepo := repository.NewUserRepository(deps.DB, c)
	postRepo := deps.Posts
	if postRepo == nil {
		postRepo = repository.NewPostRepository(deps.DB, logger, repository.WithMaxRetries(cfg.FeedMaxRetries))
	}
	flags := featureflags.NewManager(cfg.FeatureFlags)

	s := &Server{
		config:       cfg,
		db:           deps.DB,
		redis:        deps.Redis,
		logger:       logger,
		limiter:      middleware.NewRateLimiter(deps.Redis, cfg.Env),
		featureFlags: flags,
		userRepo:     userRepo,
		postRepo:     postRepo,
	}
	s.authService = service.NewAuthService(userRepo, c, service.AuthConfig{
		Secret:   cfg.JWTSecret,
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL(),
	})
	s.feedService = service.NewFeedService(postRepo, userRepo, c, service.FeedServiceConfig{
		PostTTL: cfg.CachePostTTL(),
		Events:  notifications.NewNotifier(deps.Redis, flags, logger),
		Logger:  logger,
	})
	s.catalogService = service.NewCatalogService(repository.NewCatalogRepository(deps.DB))
	s.messageService = service.NewMessageService(repository.NewMessageRepository(deps.DB))

	s.app = fiber.New(fiber.Config{
		AppName:      "IndiVerse API",
		ErrorHandler: s.errorHandler,
	})
	s.SetupMiddleware(s.app)
	s.SetupRoutes(s.app)
	return s, nil
}

// App exposes the configured Fiber app, mainly for app.Test in tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// SetupMiddleware installs the global middleware chain.
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())

	// Propagates request id into the context used by the logger.
	app.Use(middleware.ContextMiddleware())
	app.Use(middleware.StructuredLogger())
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.MetricsMiddleware(app, serviceName, "/metrics"))
	app.Use(helmet.New())

	// Error responses from handlers also carry CORS headers.
	app.Use(cors.New(cors.Config{
		AllowOrigins:     s.config.AllowedOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET,POST,PATCH,DELETE,OPTIONS",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	app.Use(middleware.RequestTimeout(s.config.RequestTimeout()))
}

// SetupRoutes mounts every route.
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	api := app.Group("/api")
	if !s.config.IsProduction() {
		api.Get("/swagger/*", swagger.HandlerDefault)
		api.Get("/admin/monitor", monitor.New(monitor.Config{Title: "IndiVerse Backend Monitor"}))
	}

	authRequired := middleware.AuthRequired(s.authService)
	optionalAuth := middleware.OptionalAuth(s.authService)

	api.Get("/feature-flags", optionalAuth, s.GetFeatureFlags)

	auth := api.Group("/auth")
	auth.Post("/register", s.limiter.Limit("register", 5, 10*time.Minute), s.Register)
	auth.Post("/login", s.limiter.LimitWithPolicy("login", 10, 5*time.Minute, middleware.FailClosed), s.Login)
	auth.Post("/logout", authRequired, s.Logout)
	auth.Get("/me", authRequired, s.Me)

	posts := api.Group("/posts")
	posts.Get("/", s.GetPosts)
	posts.Get("/:id", s.GetPost)
	posts.Post("/", authRequired, s.limiter.Limit("create_post", 20, time.Minute), s.CreatePost)
	posts.Delete("/:id", authRequired, s.DeletePost)
	posts.Patch("/:id/like", authRequired, s.ToggleLike)

	commentLimit := s.limiter.Limit("comment", 30, time.Minute)
	posts.Post("/:id/comments", authRequired, commentLimit, s.AddComment)
	posts.Delete("/:id/comments/:cid", authRequired, s.DeleteComment)
	posts.Post("/:id/comments/:cid/replies", authRequired, commentLimit, s.AddReply)

	api.Get("/heritage", s.GetHeritageSites)
	api.Get("/heritage/:id", s.GetHeritageSite)
	api.Get("/blogs", s.GetBlogs)
	api.Get("/blogs/:id", s.GetBlog)
	api.Get("/states/:id", s.GetState)
	api.Get("/tours", s.GetTours)
	api.Get("/tours/:id", s.GetTour)
	api.Get("/quizzes/:monumentId", s.GetQuiz)

	messages := api.Group("/messages")
	messages.Post("/", s.limiter.Limit("message", 5, 10*time.Minute), s.CreateMessage)
	messages.Get("/recent", s.GetRecentMessages)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck pings every store the API depends on. Redis is optional, so
// a server running without it reports "disabled" and stays ready.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	checks := fiber.Map{}
	healthy := true

	checks["database"] = "healthy"
	if sqlDB, err := s.db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		checks["database"] = "unhealthy"
		healthy = false
	}

	checks["feed_store"] = "healthy"
	if err := s.postRepo.Ping(ctx); err != nil {
		checks["feed_store"] = "unhealthy"
		healthy = false
	}

	switch {
	case s.redis == nil:
		checks["redis"] = "disabled"
	case s.redis.Ping(ctx).Err() != nil:
		checks["redis"] = "unhealthy"
		healthy = false
	default:
		checks["redis"] = "healthy"
	}

	status, overall := fiber.StatusOK, "healthy"
	if !healthy {
		status, overall = fiber.StatusServiceUnavailable, "unhealthy"
	}
	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": checks,
		"time":   time.Now(),
	})
}

// Start listens on the configured port until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("server starting", slog.String("port", s.config.Port), slog.String("env", s.config.Env))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown stops accepting requests and waits for in-flight ones. Store
// connections are owned by the caller.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.app.ShutdownWithContext(ctx); err != nil {
		s.logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		return err
	}
	return nil
}

// errorHandler renders errors that escape a handler, including Fiber's own
// routing errors, in the standard error body.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		appErr := &models.AppError{Code: codeForStatus(fe.Code), Message: fe.Message}
		return models.RespondWithError(c, fe.Code, appErr)
	}
	s.logger.ErrorContext(c.UserContext(), "unhandled error",
		slog.String("path", c.Path()),
		slog.String("error", err.Error()),
	)
	return models.RespondWithAppError(c, err)
}

func codeForStatus(status int) string {
	switch status {
	case fiber.StatusBadRequest, fiber.StatusUnprocessableEntity, fiber.StatusRequestEntityTooLarge:
		return models.CodeValidation
	case fiber.StatusNotFound, fiber.StatusMethodNotAllowed:
		return models.CodeNotFound
	case fiber.StatusTooManyRequests:
		return models.CodeRateLimited
	case fiber.StatusServiceUnavailable:
		return models.CodeStoreUnavailable
	default:
		return models.CodeInternal
	}
}
