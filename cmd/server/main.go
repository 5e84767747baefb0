package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vedran77/pulse/internal/config"
	"github.com/vedran77/pulse/internal/database"
	"github.com/vedran77/pulse/internal/encryption"
	"github.com/vedran77/pulse/internal/logging"
	"github.com/vedran77/pulse/internal/metrics"
	"github.com/vedran77/pulse/internal/repository"
	"github.com/vedran77/pulse/internal/repository/memory"
	postgresrepo "github.com/vedran77/pulse/internal/repository/postgres"
	"github.com/vedran77/pulse/internal/service"
	"github.com/vedran77/pulse/internal/transport/http/handlers"
	"github.com/vedran77/pulse/internal/transport/http/middleware"
)

type repos struct {
	users         repository.UserRepository
	channels      repository.ChannelRepository
	messages      repository.MessageRepository
	conversations repository.ConversationRepository
	settings      repository.SettingsRepository
	ping          func(context.Context) error
	close         func()
}

func openStorage(ctx context.Context, cfg *config.Config, log *slog.Logger) (*repos, error) {
	if cfg.StorageDriver == "memory" {
		log.Warn("using in-memory storage, data is lost on exit")
		store := memory.NewStore()
		return &repos{
			users:         store.Users(),
			channels:      store.Channels(),
			messages:      store.Messages(),
			conversations: store.Conversations(),
			settings:      store.Settings(),
			ping:          func(context.Context) error { return nil },
			close:         func() {},
		}, nil
	}

	pool, err := database.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	log.Info("connected to database")

	return &repos{
		users:         postgresrepo.NewUserRepo(pool),
		channels:      postgresrepo.NewChannelRepo(pool),
		messages:      postgresrepo.NewMessageRepo(pool),
		conversations: postgresrepo.NewConversationRepo(pool),
		settings:      postgresrepo.NewSettingsRepo(pool),
		ping:          pool.Ping,
		close:         pool.Close,
	}, nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "pulse:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Getenv("PULSE_CONFIG"))
	if err != nil {
		return err
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	// The secret is checked before anything touches storage.
	if err := cfg.Validate(); err != nil {
		return err
	}
	cipher, err := encryption.New(cfg.EncryptionSecret)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.close()

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Services
	settingsService := service.NewSettingsService(store.settings, cfg.EncryptionRequired, log)
	messageService := service.NewMessageService(store.messages, store.channels, store.conversations, cipher, settingsService, m, log)
	conversationService := service.NewConversationService(store.conversations, store.users, m, log)

	// Handlers
	messageHandler := handlers.NewMessageHandler(messageService, log)
	conversationHandler := handlers.NewConversationHandler(conversationService, log)
	settingsHandler := handlers.NewSettingsHandler(settingsService, cfg.AdminIDs(), log)

	auth := middleware.Auth(cfg.JWTSecret)
	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go limiter.Run(ctx)
	timeout := middleware.Timeout(cfg.RequestTimeout)
	protect := func(h http.Handler) http.Handler {
		return auth(limiter.Middleware(timeout(h)))
	}

	// Routes
	mux := http.NewServeMux()

	// Public
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		pingCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		w.Header().Set("Content-Type", "application/json")
		if err := store.ping(pingCtx); err != nil {
			log.WarnContext(r.Context(), "health check failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status": "unavailable"}`))
			return
		}
		w.Write([]byte(`{"status": "ok"}`))
	})
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	// Protected
	handlers.Register(mux, protect, messageHandler, conversationHandler, settingsHandler)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           middleware.Observe(log, m)(middleware.CORS(cfg.CORSAllowedOrigins)(mux)),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", "addr", srv.Addr, "storage", cfg.StorageDriver, "encryption_required", cfg.EncryptionRequired)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
