// Package main is the entry point for the API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/campuslearn/escalation-platform/internal/assistant"
	"github.com/campuslearn/escalation-platform/internal/bridge"
	"github.com/campuslearn/escalation-platform/internal/config"
	"github.com/campuslearn/escalation-platform/internal/directory"
	"github.com/campuslearn/escalation-platform/internal/handler"
	"github.com/campuslearn/escalation-platform/internal/middleware"
	natsclient "github.com/campuslearn/escalation-platform/internal/nats"
	"github.com/campuslearn/escalation-platform/internal/service"
	"github.com/campuslearn/escalation-platform/internal/store"
	"github.com/campuslearn/escalation-platform/pkg/logger"
	"github.com/campuslearn/escalation-platform/pkg/tracing"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting API server")

	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "escalation-platform", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Connect to NATS
	natsClient, err := natsclient.Connect(ctx, natsclient.Config{
		URL:      cfg.NATSURL,
		CAFile:   cfg.NATSCAFile,
		CertFile: cfg.NATSCertFile,
		KeyFile:  cfg.NATSKeyFile,
		Token:    cfg.NATSToken,
	}, log)
	if err != nil {
		log.Error("failed to connect to NATS", zap.Error(err))
		os.Exit(1)
	}
	defer natsClient.Close()

	streamManager := natsclient.NewStreamManager(natsClient)
	if err := streamManager.EnsureStream(ctx); err != nil {
		log.Error("failed to ensure stream", zap.Error(err))
		os.Exit(1)
	}

	// Connect to Postgres
	db, err := store.NewPostgresStore(store.PostgresConfig{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		DBName:   cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	})
	if err != nil {
		log.Error("failed to connect to database", zap.Error(err))
		os.Exit(1)
	}
	defer db.Close()

	// Assistant provider
	assistantClient, err := assistant.NewClient(assistant.Config{
		Provider:        assistant.Provider(cfg.AssistantProvider),
		EndpointURL:     cfg.AssistantEndpoint,
		OpenAIAPIKey:    cfg.OpenAIAPIKey,
		AnthropicAPIKey: cfg.AnthropicAPIKey,
	})
	if err != nil {
		log.Error("failed to create assistant client", zap.Error(err))
		os.Exit(1)
	}

	// Collaborators
	dir, err := directory.NewHTTPDirectory(cfg.DirectoryURL)
	if err != nil {
		log.Error("failed to create directory client", zap.Error(err))
		os.Exit(1)
	}
	messaging := bridge.NewNATSMessaging(streamManager)
	notifier := bridge.NewNATSNotifier(streamManager)

	// Services
	conversationSvc := service.NewConversationService(db, log)
	gateway := service.NewAssistantGateway(assistantClient, log)
	escalationSvc := service.NewEscalationService(db, dir, messaging, notifier, log)

	// Handlers
	healthHandler := handler.NewHealthHandler(natsClient, db)
	chatHandler := handler.NewChatHandler(conversationSvc, gateway, escalationSvc, dir, log)
	conversationHandler := handler.NewConversationHandler(conversationSvc, log)
	escalationHandler := handler.NewEscalationHandler(escalationSvc, log)

	// Background sweep over pending escalations and stream gauge refresh
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go func() {
		ticker := time.NewTicker(cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				escalationSvc.ProcessPendingEscalations(sweepCtx)
				if err := streamManager.UpdateMetrics(sweepCtx); err != nil {
					log.Warn("failed to refresh stream metrics", zap.Error(err))
				}
			}
		}
	}()

	// Router
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"Link", "X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// API routes with authentication
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		// Assistant chat
		r.Route("/chat", func(r chi.Router) {
			r.Post("/", chatHandler.Send)
			r.Post("/escalate", chatHandler.ConfirmEscalation)
		})

		// Conversations
		r.Route("/conversations", func(r chi.Router) {
			r.Post("/", conversationHandler.Create)
			r.Get("/", conversationHandler.List)
			r.Get("/active", conversationHandler.Active)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", conversationHandler.Get)
				r.Delete("/", conversationHandler.Deactivate)
				r.Get("/messages", conversationHandler.Messages)
				r.Delete("/messages", conversationHandler.Clear)
			})
		})

		// Escalations
		r.Route("/escalations", func(r chi.Router) {
			r.Post("/", escalationHandler.Create)
			r.Get("/pending", escalationHandler.Pending)
			r.Get("/stats", escalationHandler.Stats)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole("tutor", "admin"))
				r.Get("/mine", escalationHandler.Mine)
				r.Get("/{id}/notifications", escalationHandler.Notifications)
				r.Post("/process", escalationHandler.Process)
				r.Post("/{id}/assign", escalationHandler.Assign)
				r.Post("/{id}/auto-assign", escalationHandler.AutoAssign)
				r.Post("/{id}/resolve", escalationHandler.Resolve)
			})

			r.Get("/{id}", escalationHandler.Get)
			r.Post("/{id}/cancel", escalationHandler.Cancel)
		})

		// Tutor availability
		r.Get("/tutors/availability", escalationHandler.Availability)
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	stopSweep()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
