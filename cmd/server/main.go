// @title           MentalCompass API
// @version         1.0
// @description     Specialist matching, anonymous peer-support chat and an AI support assistant.
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in              header
// @name            Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	_ "github.com/mentalcompass/platform/docs"
	"github.com/mentalcompass/platform/internal/api"
	"github.com/mentalcompass/platform/internal/core/ports"
	"github.com/mentalcompass/platform/internal/core/service"
	"github.com/mentalcompass/platform/internal/infrastructure/config"
	mongodb "github.com/mentalcompass/platform/internal/infrastructure/db/mongo"
	redisdb "github.com/mentalcompass/platform/internal/infrastructure/db/redis"
	"github.com/mentalcompass/platform/internal/infrastructure/http/handlers"
	"github.com/mentalcompass/platform/internal/infrastructure/openrouter"
	"github.com/mentalcompass/platform/internal/infrastructure/queue"
	"github.com/mentalcompass/platform/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx := context.Background()

	// 1. Configuration
	cfg, err := config.Load(ctx)
	if err != nil {
		boot := logger.Init(logger.Options{})
		boot.Fatal().Err(err).Msg("configuration")
	}

	// 2. Logger
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: "mentalcompass-api",
	})

	// 3. MongoDB
	mongoClient, db, err := mongodb.Connect(ctx, mongodb.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		log.Fatal().Err(err).Msg("mongodb")
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoClient.Disconnect(dctx)
	}()
	log.Info().Str("database", cfg.Mongo.Database).Msg("mongodb connected")

	// 4. Redis
	rdb, err := redisdb.Connect(ctx, redisdb.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err != nil {
		log.Fatal().Err(err).Msg("redis")
	}
	defer rdb.Close()
	log.Info().Str("addr", cfg.Redis.Addr).Msg("redis connected")

	// 5. Repositories
	users := mongodb.NewUserRepository(db)
	specialists := mongodb.NewSpecialistRepository(db)
	certs := mongodb.NewCertificationRepository(db)
	reviews := mongodb.NewReviewRepository(db)
	chats := mongodb.NewChatRepository(db)
	experiences := mongodb.NewExperienceRepository(db)
	assessments := mongodb.NewAssessmentRepository(db)
	appointments := mongodb.NewAppointmentRepository(db)
	blog := mongodb.NewBlogRepository(db)

	if err := mongodb.EnsureIndexes(ctx, users, specialists, certs, reviews, chats, experiences, appointments, blog, assessments); err != nil {
		log.Fatal().Err(err).Msg("mongodb indexes")
	}

	matchCache := redisdb.NewMatchCache(rdb)
	notifier := redisdb.NewSessionNotifier(rdb)
	idempotency := redisdb.NewIdempotencyStore(rdb)

	// 6. Assessment writer
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	dispatcher := queue.NewDispatcher(cfg.AssessmentWorkers, assessments, logger.Component("assessment"))
	dispatcher.Start(workerCtx)

	// 7. Completion provider
	var provider ports.CompletionProvider
	if c := openrouter.New(openrouter.Config{
		APIKey:  cfg.OpenRouter.APIKey,
		BaseURL: cfg.OpenRouter.BaseURL,
		Referer: cfg.OpenRouter.Referer,
	}); c != nil {
		provider = c
	} else {
		log.Warn().Msg("OPENROUTER_API_KEY not set, /ai/chat will answer 503")
	}

	// 8. Services
	svc := api.Services{
		Auth:         service.NewAuthService(users, specialists, cfg.JWTSecret, cfg.TokenTTL, logger.Component("auth")),
		Matching:     service.NewMatchingService(specialists, certs, reviews, users, matchCache, cfg.MatchingCacheTTL, logger.Component("matching")),
		Broker:       service.NewSessionBroker(chats, experiences, specialists, certs, users, notifier, logger.Component("sessions")),
		Messages:     service.NewMessageService(chats, specialists, notifier, idempotency, logger.Component("messages")),
		Experiences:  service.NewExperienceService(experiences, specialists, certs, users, logger.Component("experiences")),
		Assistant:    service.NewAssistantService(provider, dispatcher, cfg.OpenRouter.Model, cfg.OpenRouter.CallTimeout, logger.Component("assistant")),
		Specialists:  service.NewSpecialistService(specialists, certs, reviews, users, matchCache, logger.Component("specialists")),
		Appointments: service.NewAppointmentService(appointments, specialists, logger.Component("appointments")),
		Blog:         service.NewBlogService(blog, specialists, certs, logger.Component("blog")),
	}

	// 9. Router & HTTP server
	router := api.NewRouter(svc, api.Options{
		JWTSecret:    cfg.JWTSecret,
		AIRateLimit:  cfg.OpenRouter.RateLimit,
		Subscriber:   notifier,
		HealthChecks: []handlers.Check{handlers.MongoCheck(db), handlers.RedisCheck(rdb)},
		Logger:       logger.Component("http"),
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// The assistant route may walk several models before answering.
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	// 10. Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info().Str("port", cfg.Port).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	<-stop
	shutdown(server, workerCancel, dispatcher, log)
}

func shutdown(server *http.Server, stopWorkers context.CancelFunc, dispatcher *queue.Dispatcher, log zerolog.Logger) {
	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	stopWorkers()
	dispatcher.Wait()

	log.Info().Msg("server and workers stopped")
}
