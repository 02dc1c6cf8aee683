package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"
	"golang.org/x/time/rate"

	"github.com/mentalcompass/platform/internal/api/handler"
	"github.com/mentalcompass/platform/internal/api/middleware"
	"github.com/mentalcompass/platform/internal/core/domain"
	"github.com/mentalcompass/platform/internal/core/ports"
	"github.com/mentalcompass/platform/internal/infrastructure/http/handlers"
)

const (
	metricsSubsystem = "mentalcompass"
	aiRateBurst      = 5
	aiRateExpiry     = 3 * time.Minute
)

// Services are the use cases the HTTP layer exposes.
type Services struct {
	Auth         ports.AuthService
	Matching     ports.MatchingService
	Broker       ports.SessionBroker
	Messages     ports.MessageService
	Experiences  ports.ExperienceService
	Assistant    ports.AssistantService
	Specialists  ports.SpecialistService
	Appointments ports.AppointmentService
	Blog         ports.BlogService
}

// Options carries transport-level settings and probes.
type Options struct {
	JWTSecret string
	// AIRateLimit is the per-IP request rate on /ai/chat. Zero disables the limit.
	AIRateLimit  float64
	Subscriber   handler.SessionSubscriber
	HealthChecks []handlers.Check
	Logger       zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(svc Services, opts Options) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(opts.Logger)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(opts.Logger))
	e.Use(echoprometheus.NewMiddleware(metricsSubsystem))

	authMW := middleware.Auth(opts.JWTSecret)
	adminOnly := middleware.RBAC(domain.RoleAdmin)

	// --- Handlers ---
	authHandler := handler.NewAuthHandler(svc.Auth)
	chatHandler := handler.NewChatHandler(svc.Broker, svc.Messages)
	streamHandler := handler.NewStreamHandler(svc.Messages, opts.Subscriber, opts.Logger)
	experienceHandler := handler.NewExperienceHandler(svc.Experiences, svc.Broker)
	matchingHandler := handler.NewMatchingHandler(svc.Matching)
	assistantHandler := handler.NewAssistantHandler(svc.Assistant)
	specialistHandler := handler.NewSpecialistHandler(svc.Specialists)
	adminHandler := handler.NewAdminHandler(svc.Specialists)
	appointmentHandler := handler.NewAppointmentHandler(svc.Appointments)
	blogHandler := handler.NewBlogHandler(svc.Blog)

	// --- Auth routes ---
	e.POST("/auth/register", authHandler.Register)
	e.POST("/auth/login", authHandler.Login)

	// --- Own profile ---
	e.GET("/profile", authHandler.GetProfile, authMW)
	e.PUT("/profile", authHandler.UpdateProfile, authMW)

	// --- Matching ---
	e.GET("/matching", matchingHandler.Match, authMW)

	// --- Chat ---
	chat := e.Group("/chat", authMW)
	chat.POST("/sessions", chatHandler.CreateSession)
	chat.GET("/sessions", chatHandler.ListSessions)
	chat.POST("/sessions/:id/close", chatHandler.CloseSession)
	chat.GET("/messages", chatHandler.ListMessages)
	chat.POST("/messages", chatHandler.AppendMessage)
	e.GET("/chat/stream", streamHandler.Stream, middleware.StreamAuth(opts.JWTSecret))

	// --- Experiences ---
	exp := e.Group("/experiences")
	exp.GET("", experienceHandler.ListPosts, middleware.OptionalAuth(opts.JWTSecret))
	exp.POST("", experienceHandler.CreatePost, authMW)
	exp.GET("/:postId/responses", experienceHandler.ListResponses)
	exp.POST("/:postId/responses", experienceHandler.CreateResponse, authMW)
	exp.GET("/:postId/chat", experienceHandler.ChatStatus, authMW)
	exp.POST("/:postId/chat", experienceHandler.InitiateChat, authMW)
	exp.POST("/:postId/reply", experienceHandler.Reply, authMW)

	// --- Assistant ---
	aiMW := []echo.MiddlewareFunc{middleware.OptionalAuth(opts.JWTSecret)}
	if opts.AIRateLimit > 0 {
		aiMW = append([]echo.MiddlewareFunc{aiRateLimiter(opts.AIRateLimit)}, aiMW...)
	}
	e.POST("/ai/chat", assistantHandler.Chat, aiMW...)

	// --- Specialists ---
	sp := e.Group("/specialists")
	sp.GET("", specialistHandler.Browse)
	sp.GET("/profile", specialistHandler.GetProfile, authMW)
	sp.POST("/profile", specialistHandler.UpsertProfile, authMW)
	sp.GET("/:id", specialistHandler.Get)
	sp.POST("/:id/reviews", specialistHandler.AddReview, authMW)

	// --- Admin ---
	admin := e.Group("/admin", authMW, adminOnly)
	admin.GET("/certifications", adminHandler.ListCertifications)
	admin.POST("/verify", adminHandler.Verify)

	// --- Appointments ---
	e.POST("/appointments", appointmentHandler.Book, authMW)
	e.GET("/appointments", appointmentHandler.List, authMW)

	// --- Blog ---
	e.GET("/blog", blogHandler.List)
	e.GET("/blog/:slug", blogHandler.Get)
	e.POST("/blog", blogHandler.Publish, authMW)

	// --- Health probes (no auth required) ---
	healthHandler := handlers.NewHealthHandler()
	healthDepsHandler := handlers.NewHealthDependenciesHandler(opts.HealthChecks...)

	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?

	// --- Ops ---
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}

func aiRateLimiter(perSecond float64) echo.MiddlewareFunc {
	store := echomiddleware.NewRateLimiterMemoryStoreWithConfig(echomiddleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(perSecond),
		Burst:     aiRateBurst,
		ExpiresIn: aiRateExpiry,
	})
	return echomiddleware.RateLimiterWithConfig(echomiddleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, _ string, _ error) error {
			return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests")
		},
	})
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURIPath:   true,
		LogMethod:    true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics" || c.Path() == "/health"
		},
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				ev = log.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("path", v.URIPath).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
