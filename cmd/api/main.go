package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/sashabaranov/go-openai"

	"github.com/gatehouse-io/gatehouse/internal/cache"
	"github.com/gatehouse-io/gatehouse/internal/domain"
	"github.com/gatehouse-io/gatehouse/internal/extract"
	"github.com/gatehouse-io/gatehouse/internal/handlers"
	"github.com/gatehouse-io/gatehouse/internal/mailer"
	"github.com/gatehouse-io/gatehouse/internal/probe"
	"github.com/gatehouse-io/gatehouse/internal/repo/postgres"
	"github.com/gatehouse-io/gatehouse/internal/service"
	"github.com/gatehouse-io/gatehouse/internal/workers"
	"github.com/gatehouse-io/gatehouse/pkg/config"
	"github.com/gatehouse-io/gatehouse/pkg/database"
	"github.com/gatehouse-io/gatehouse/pkg/events"
	"github.com/gatehouse-io/gatehouse/pkg/logger"
	mw "github.com/gatehouse-io/gatehouse/pkg/middleware"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to database
	pool, err := database.Connect(ctx, cfg.Database.URL,
		cfg.Database.MaxConns, cfg.Database.MinConns, cfg.Database.MaxLifetime)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Connect to Redis
	redisClient, err := cache.Connect(ctx, cfg.Redis.URL, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// Connect to event bus
	eventBus, err := events.NewNATSEventBus(cfg.NATS.URL)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer eventBus.Close()

	// Repositories
	signupRepo := postgres.NewSignupRepo(pool)
	claimRepo := postgres.NewClaimRepo(pool)
	accountRepo := postgres.NewAccountRepo(pool)
	profileRepo := postgres.NewProfileRepo(pool)
	costRepo := postgres.NewCostRepo(pool)

	// Deliverability prober
	lists := domain.NewDenyLists(cfg.Probe.ExtraPersonal, cfg.Probe.ExtraDisposable)
	prober := probe.New(lists, net.DefaultResolver, probe.Config{
		MXTimeout:   cfg.Probe.MXTimeout,
		SMTPTimeout: cfg.Probe.SMTPTimeout,
		HeloDomain:  cfg.Probe.SMTPHeloDomain,
		ProbeSender: cfg.Probe.SMTPProbeSender,
	})

	// Extraction cascade
	httpClient := &http.Client{Timeout: cfg.Extract.CrawlTimeout}
	crawler := extract.NewCrawlExtractor(httpClient, cfg.Extract.CrawlMaxPages)
	cascade := extract.NewCascade(cfg.Extract.AnalyzeTimeout,
		extract.NewSearchExtractor(&http.Client{Timeout: cfg.Extract.SearchTimeout}, cfg.Extract.SearchAPIKey, cfg.Extract.SearchEngineID),
		crawler,
		extract.NewAnalyzeExtractor(openai.NewClient(cfg.Extract.OpenAIKey), crawler, cfg.Extract.OpenAIModel),
	)

	// Mailer
	var mail mailer.Service
	switch {
	case cfg.Email.DevMode:
		mail = mailer.NewDevMailer()
	case cfg.Email.MailerSendKey != "":
		mail = mailer.NewMailerSend(cfg.Email.MailerSendKey, cfg.Email.FromName, cfg.Email.SMTPFrom)
	default:
		mail = mailer.NewSMTPMailer(cfg.Email.SMTPHost, cfg.Email.SMTPPort,
			cfg.Email.SMTPFrom, cfg.Email.SMTPUser, cfg.Email.SMTPPass, cfg.Email.SMTPUseTLS)
	}

	// Services
	limiter := cache.NewRateLimiter(redisClient, 10, time.Minute)
	guard := cache.NewIdempotencyStore(redisClient, 10*time.Minute)
	signupService := service.NewSignupService(
		signupRepo, claimRepo, accountRepo, profileRepo, costRepo,
		prober, mail, eventBus, limiter, guard, cfg)
	extractService := service.NewExtractService(signupRepo, profileRepo, costRepo, cascade, eventBus)

	// Background workers
	extractionWorker := workers.NewExtractionWorker(eventBus, extractService, cfg.Extract.Workers)
	if err := extractionWorker.Start(ctx); err != nil {
		logger.Error("Failed to start extraction worker", "error", err)
		os.Exit(1)
	}
	sweeper := workers.NewSweeper(claimRepo, signupRepo, cfg.Signup.SweepInterval)
	sweeper.Start(ctx)

	// Handlers
	h := handlers.New(signupService, cfg)

	// Setup router
	r := chi.NewRouter()

	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("gatehouse"))
	r.Use(mw.Logging)
	r.Use(mw.Health)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Routes
	r.Get("/verify", h.Verify)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/signup", h.Signup)
		r.Post("/signup/resend", h.Resend)
		r.Post("/signup/check-domain", h.CheckDomain)
		r.Get("/signup/{pendingID}/status", h.Status)
		r.Post("/login", h.Login)

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.RequireJWT("admin"))
			r.Get("/costs/{operation}", h.CostStats)
		})
	})

	// Start server
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	go func() {
		<-ctx.Done()

		logger.Info("Shutting down gatehouse...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		extractionWorker.Stop()
	}()

	logger.Info("Starting gatehouse", "port", cfg.Server.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
}
