package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/chxlky/crm-backend/api"
	"github.com/chxlky/crm-backend/database"
	"github.com/chxlky/crm-backend/integrations"
	"github.com/chxlky/crm-backend/internal/config"
	"github.com/chxlky/crm-backend/internal/kanban"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	levelStr := strings.ToLower(os.Getenv("LOG_LEVEL"))
	if levelStr == "" {
		levelStr = "debug"
	}
	level, err := zapcore.ParseLevel(levelStr)
	if err != nil {
		level = zapcore.InfoLevel
	}

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      true,
		Encoding:         "console",
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, _ := logConfig.Build()
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	cfg, err := config.Load(".")
	if err != nil {
		zap.L().Fatal("Error reading config", zap.Error(err))
	}

	db := database.Init(cfg.Database.Path)
	sqlDB, _ := db.DB()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := kanban.NewMetrics(registry)

	hub := kanban.NewRegistry(
		kanban.WithWriteTimeout(cfg.Kanban.WriteTimeout),
		kanban.WithRegistryMetrics(metrics),
	)

	var broadcaster kanban.Broadcaster = hub
	var fanout *integrations.RedisFanout
	if cfg.Redis.URL != "" {
		fanout, err = integrations.NewRedisFanout(ctx, cfg.Redis.URL, cfg.Redis.Channel, hub)
		if err != nil {
			zap.L().Fatal("Failed to initialise Redis broadcast", zap.Error(err))
		}
		broadcaster = fanout
		go fanout.Run(ctx)
	}

	store := database.NewBoardStore(db)
	var mirror kanban.CalendarMirror
	if cfg.CalendarMirrorEnabled() {
		calClient, err := integrations.NewCalendarClient(ctx, cfg.Google.ServiceAccount, cfg.Google.Calendar.CalendarID)
		if err != nil {
			zap.L().Fatal("Failed to initialise Google Calendar client", zap.Error(err))
		}
		zap.L().Info("Successfully authenticated with Google Calendar API.")
		mirror = calClient
	}
	events := kanban.NewEventSync(store, mirror)

	dispatcher := kanban.NewDispatcher(store, broadcaster,
		kanban.WithEventSync(events),
		kanban.WithEventLinkOnCreate(cfg.Kanban.LinkEventsOnCreate),
		kanban.WithMetrics(metrics),
	)

	if cfg.Auth.JWTSecret == "" {
		zap.L().Warn("auth.jwt_secret is not set; authenticated routes will reject every request")
	}

	apiHandler := &api.Handler{
		DB: db,
		Auth: &api.Authenticator{
			DB:       db,
			Secret:   []byte(cfg.Auth.JWTSecret),
			Lifetime: cfg.Auth.TokenLifetime,
		},
		Hub:               hub,
		Dispatcher:        dispatcher,
		Events:            events,
		FilesDir:          cfg.Storage.FilesDir,
		RequireSocketAuth: cfg.Kanban.RequireAuth,
		IdleTimeout:       cfg.Kanban.IdleTimeout,
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	if cfg.GoogleOAuthEnabled() {
		apiHandler.OAuth = integrations.NewGoogleOAuth(
			cfg.Google.OAuth.ClientID,
			cfg.Google.OAuth.ClientSecret,
			cfg.Google.OAuth.RedirectURL,
		)
	}

	router := gin.New()
	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger, true))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	apiHandler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: api.CORS(router),
	}

	zap.L().Info("Starting server", zap.String("port", cfg.Server.Port))
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Fatal("Server error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	var once sync.Once

	cleanup := func(reason string) {
		zap.L().Info("Shutdown initiated", zap.String("reason", reason))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		zap.L().Info("Shutting down HTTP server...")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zap.L().Error("Error shutting down server", zap.Error(err))
		} else {
			zap.L().Info("HTTP server shut down gracefully.")
		}

		// hijacked websocket connections are not tracked by srv.Shutdown
		hub.CloseAll()
		stop()

		if fanout != nil {
			if err := fanout.Close(); err != nil {
				zap.L().Error("Error closing Redis client", zap.Error(err))
			}
		}

		if sqlDB != nil {
			if err := sqlDB.Close(); err != nil {
				zap.L().Error("Error closing database", zap.Error(err))
			} else {
				zap.L().Info("Database connection closed.")
			}
		}
		close(done)
	}

	go func() {
		sig := <-sigCh
		once.Do(func() {
			cleanup(sig.String())
		})

		// if a second signal is caught, exit immediately
		go func() {
			<-sigCh
			zap.L().Info("Second interrupt signal received. Exiting immediately.")
			os.Exit(1)
		}()
	}()

	<-done
	zap.L().Info("Exiting...")
}
