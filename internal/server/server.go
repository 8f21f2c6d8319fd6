// Package server contains the HTTP handlers and routing for the API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "snapgram/docs" // swagger docs
	"snapgram/internal/auth"
	"snapgram/internal/cache"
	"snapgram/internal/config"
	"snapgram/internal/events"
	"snapgram/internal/featureflags"
	"snapgram/internal/media"
	"snapgram/internal/middleware"
	"snapgram/internal/models"
	"snapgram/internal/observability"
	"snapgram/internal/repository"
	"snapgram/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// minBodyLimit is the request body ceiling for the default 5MB media limit.
const minBodyLimit = 10 << 20

// bodyLimitFor keeps the body ceiling at twice the media ceiling so oversized
// images reach intake and get its error instead of a bare 413.
func bodyLimitFor(maxUpload int64) int {
	return int(max(2*maxUpload, minBodyLimit))
}

// prometheus collectors register globally, so every Server shares one instance.
var promMiddleware = sync.OnceValue(func() *fiberprometheus.FiberPrometheus {
	return fiberprometheus.New(observability.ServiceName)
})

// Deps are the long-lived resources a Server runs on. Redis and Events may be nil.
type Deps struct {
	DB      *gorm.DB
	Redis   *redis.Client
	Storage media.Storage
	Events  events.Publisher
}

// Server holds all dependencies and provides handlers
type Server struct {
	config       *config.Config
	db           *gorm.DB
	redis        *redis.Client
	app          *fiber.App
	storage      media.Storage
	events       events.Publisher
	tokens       *auth.TokenService
	featureFlags *featureflags.Set
	userRepo     repository.UserRepository
	postRepo     repository.PostRepository
	followRepo   repository.FollowRepository
	authService  *service.AuthService
	postService  *service.PostService
	userService  *service.UserService
}

// NewServer wires repositories and services over deps.
func NewServer(cfg *config.Config, deps Deps) (*Server, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("database is required")
	}
	if deps.Storage == nil {
		return nil, fmt.Errorf("media storage is required")
	}
	publisher := deps.Events
	if publisher == nil {
		publisher = events.Noop{}
	}

	tokens, err := auth.NewTokenService(cfg.JWTSecret, time.Duration(cfg.TokenTTLHours)*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("token service: %w", err)
	}

	flags := featureflags.Parse(cfg.FeatureFlags)
	intake := media.NewIntake(deps.Storage, cfg.MediaMaxUploadBytes, flags)

	s := &Server{
		config:       cfg,
		db:           deps.DB,
		redis:        deps.Redis,
		storage:      deps.Storage,
		events:       publisher,
		tokens:       tokens,
		featureFlags: flags,
		userRepo:     repository.NewUserRepository(deps.DB, cache.New(deps.Redis)),
		postRepo:     repository.NewPostRepository(deps.DB),
		followRepo:   repository.NewFollowRepository(deps.DB),
	}
	s.authService = service.NewAuthService(s.userRepo, s.followRepo, tokens)
	s.postService = service.NewPostService(s.postRepo, s.userRepo, s.followRepo, intake, publisher)
	s.userService = service.NewUserService(s.userRepo, s.followRepo, publisher)

	return s, nil
}

// App returns the configured Fiber application, building it on first use.
func (s *Server) App() *fiber.App {
	if s.app == nil {
		s.app = s.newApp()
	}
	return s.app
}

func (s *Server) newApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "Snapgram API",
		BodyLimit: bodyLimitFor(s.config.MediaMaxUploadBytes),
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return models.RespondWithError(c, fe.Code, fe)
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})

	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())
	app.Use(promMiddleware().Middleware)

	// Uploaded images are embedded cross-origin by the mobile client.
	app.Use(helmet.New(helmet.Config{
		CrossOriginResourcePolicy: "cross-origin",
	}))

	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so rejected requests still carry CORS headers.
	app.Use(cors.New(cors.Config{
		AllowOrigins: s.config.AllowedOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		MaxAge:       86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || s.config.Env == "test"
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	promMiddleware().RegisterAt(app, "/metrics")
	app.Get("/swagger/*", swagger.HandlerDefault)

	if local, ok := s.storage.(*media.LocalStorage); ok {
		app.Static(media.PublicPrefix, local.Dir(), fiber.Static{
			ByteRange: true,
			MaxAge:    86400,
		})
	}

	api := app.Group("/api")
	authWindow := time.Duration(s.config.AuthRateWindowSeconds) * time.Second

	authGroup := api.Group("/auth")
	authGroup.Post("/register", s.rateLimit(s.config.AuthRateLimit, authWindow, "register"), s.Register)
	authGroup.Post("/login", s.rateLimit(s.config.AuthRateLimit, authWindow, "login"), s.Login)
	authGroup.Get("/me", s.AuthRequired(), s.Me)

	posts := api.Group("/posts", s.AuthRequired())
	posts.Post("/", s.rateLimit(30, time.Minute, "create_post"), s.CreatePost)
	// Static segments before /:postId.
	posts.Get("/feed", s.GetFeed)
	posts.Get("/user/:userId", s.GetUserPosts)
	posts.Post("/:postId/like", s.ToggleLike)
	posts.Post("/:postId/comment", s.rateLimit(60, time.Minute, "create_comment"), s.AddComment)
	posts.Get("/:postId", s.GetPost)
	posts.Delete("/:postId", s.DeletePost)

	users := api.Group("/users", s.AuthRequired())
	users.Put("/me", s.UpdateMyProfile)
	users.Post("/:userId/follow", s.FollowUser)
	users.Delete("/:userId/follow", s.UnfollowUser)
	users.Get("/:userId", s.GetUserProfile)

	api.Get("/feature-flags", s.AuthRequired(), s.GetFeatureFlags)
}

// rateLimit applies the Redis limiter outside development and test.
func (s *Server) rateLimit(limit int, window time.Duration, name string) fiber.Handler {
	if middleware.RateLimitBypassed(s.config.Env) {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return middleware.RateLimit(s.redis, limit, window, name)
}

// AuthRequired returns the authentication middleware
func (s *Server) AuthRequired() fiber.Handler {
	return middleware.BearerAuth(s.tokens)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests. Redis is optional; its
// absence is reported but does not fail readiness.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus != "healthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// GetFeatureFlags returns configured feature flags and their state for the caller.
// @Summary Feature flags
// @Tags meta
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{raw=map[string]string,evaluated=map[string]bool}
// @Router /feature-flags [get]
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"raw":       s.featureFlags.Raw(),
		"evaluated": s.featureFlags.Snapshot(currentUserID(c)),
	})
}

// Start listens on the configured port until Shutdown.
func (s *Server) Start() error {
	middleware.Logger.Info("Server starting", slog.String("port", s.config.Port))
	return s.App().Listen(":" + s.config.Port)
}

// Shutdown gracefully stops the HTTP server and releases its resources.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if err := s.events.Close(); err != nil {
		middleware.Logger.Error("error closing event publisher", slog.String("error", err.Error()))
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("Server shutdown complete")
	return nil
}
