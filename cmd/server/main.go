package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/omnidesk/ingest-server-go/internal/capability"
	"github.com/omnidesk/ingest-server-go/internal/config"
	"github.com/omnidesk/ingest-server-go/internal/database"
	"github.com/omnidesk/ingest-server-go/internal/handler"
	"github.com/omnidesk/ingest-server-go/internal/ingest"
	"github.com/omnidesk/ingest-server-go/internal/jobs"
	"github.com/omnidesk/ingest-server-go/internal/middleware"
	"github.com/omnidesk/ingest-server-go/internal/queue"
	"github.com/omnidesk/ingest-server-go/internal/redis"
	"github.com/omnidesk/ingest-server-go/internal/repository"
	"github.com/omnidesk/ingest-server-go/internal/sse"
	"github.com/omnidesk/ingest-server-go/internal/supervisor"
	"github.com/omnidesk/ingest-server-go/internal/worker"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("FLY_APP_NAME") != ""
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(pingCtx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	pingCancel()
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	queueClient, err := queue.NewClient(cfg.AMQPURL, cfg.EnrichQueuePrefix)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to rabbitmq")
	}
	defer queueClient.Close()
	log.Info().Msg("rabbitmq connected")

	contactRepo := repository.NewContactRepository(db.DB)
	inboxRepo := repository.NewInboxRepository(db.DB)
	convRepo := repository.NewConversationRepository(db.DB)
	messageRepo := repository.NewMessageRepository(db.DB)
	csatRequestRepo := repository.NewCSATRequestRepository(db.DB)
	csatFeedbackRepo := repository.NewCSATFeedbackRepository(db.DB)

	broker := sse.NewBroker(redisClient)
	defer broker.Close()
	notifier := sse.NewNotifier(broker)

	downloader := capability.NewHTTPMediaDownloader(cfg.MediaServiceURL)
	transcriber := capability.NewHTTPTranscriber(cfg.MediaServiceURL)
	generator := capability.NewHTTPGenerator(cfg.GenerationServiceURL)
	analyzer := capability.NewHTTPAnalyzer(cfg.AnalysisServiceURL)
	classifier := capability.NewHTTPSentimentClassifier(cfg.AnalysisServiceURL)
	sender := capability.NewHTTPSender(cfg.SenderServiceURL)

	flow := ingest.NewConversationFlow(db, convRepo, inboxRepo, csatRequestRepo, cfg.CSATDelay())
	csatInterceptor := ingest.NewCSATInterceptor(csatRequestRepo, csatFeedbackRepo, classifier, sender)
	pipeline := ingest.NewPipeline(
		ingest.NewNormalizer(),
		ingest.NewIdentityResolver(contactRepo),
		ingest.NewDedupGuard(messageRepo, cfg.DedupWindow()),
		ingest.NewReactionResolver(messageRepo),
		flow,
		csatInterceptor,
		messageRepo,
		convRepo,
		queueClient,
	)

	orchestrator := ingest.NewMediaOrchestrator(
		downloader, transcriber, analyzer,
		cfg.MediaDir, cfg.FFmpegPath,
		ingest.TranscriptionSettings{
			Language: cfg.TranscriptionLanguage,
			Quality:  cfg.TranscriptionQuality,
			Delay:    cfg.TranscriptionDelay(),
		},
	)
	arbiter := ingest.NewArbiter(generator, sender, messageRepo)
	enrichWorker := worker.New(messageRepo, convRepo, inboxRepo, contactRepo, orchestrator, arbiter, notifier)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	go func() {
		if err := queueClient.Consume(workerCtx, cfg.EnrichMaxAttempts, func(ctx context.Context, job queue.EnrichJob) bool {
			return enrichWorker.Handle(ctx, job)
		}); err != nil {
			log.Error().Err(err).Msg("enrichment consumer stopped")
		}
	}()

	sup := supervisor.New()

	authMiddleware := middleware.NewAuthMiddleware(inboxRepo)
	rateLimitMiddleware := middleware.NewRedisRateLimitMiddleware(redisClient.Client)
	signatureMiddleware := middleware.NewSignatureMiddleware(cfg.WebhookSignatureSecret)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)

	webhookHandler := handler.NewWebhookHandler(pipeline, inboxRepo, sup, notifier)
	eventsHandler := handler.NewEventsHandler(broker)
	conversationHandler := handler.NewConversationHandler(flow, convRepo, messageRepo, notifier)
	inboxHandler := handler.NewInboxHandler(inboxRepo, sup)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(bodyLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Route("/webhooks", func(r chi.Router) {
		r.Use(signatureMiddleware.Handler)
		r.Post("/{channel}/{inboxID}", webhookHandler.Receive)
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(authMiddleware.Handler)
		r.Use(rateLimitMiddleware.Handler)

		r.Get("/events", eventsHandler.ServeHTTP)

		r.Route("/conversations/{conversationID}", func(r chi.Router) {
			r.Get("/messages", conversationHandler.Messages)
			r.Post("/assign", conversationHandler.Assign)
			r.Post("/transfer", conversationHandler.Transfer)
			r.Post("/close", conversationHandler.Close)
		})

		r.Route("/inboxes/{inboxID}/connection", func(r chi.Router) {
			r.Get("/", inboxHandler.ConnectionStatus)
			r.Post("/start", inboxHandler.StartConnection)
			r.Post("/stop", inboxHandler.StopConnection)
		})
	})

	csatDispatchJob := jobs.NewCSATDispatchJob(
		csatRequestRepo, convRepo, contactRepo, sender, config.CSATDispatchInterval,
	)
	csatDispatchJob.Start()
	defer csatDispatchJob.Stop()

	cleanupJob := jobs.NewCleanupJob(csatRequestRepo, cfg.CSATExpiry(), config.CleanupJobInterval)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
