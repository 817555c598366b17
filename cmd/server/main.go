package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	ecM "github.com/labstack/echo/v4/middleware"

	"github.com/Mohammed-Elkharadly/backend-technote/internal/config"
	"github.com/Mohammed-Elkharadly/backend-technote/internal/es"
	"github.com/Mohammed-Elkharadly/backend-technote/internal/handlers"
	"github.com/Mohammed-Elkharadly/backend-technote/internal/logging"
	"github.com/Mohammed-Elkharadly/backend-technote/internal/middleware"
	"github.com/Mohammed-Elkharadly/backend-technote/internal/mykafka"
	"github.com/Mohammed-Elkharadly/backend-technote/internal/tokens"
	httpserver "github.com/Mohammed-Elkharadly/backend-technote/internal/transport/http"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(configuration.LOG_LEVEL)
	slog.SetDefault(logger)

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := config.InitDB(initCtx, configuration)
	cancel()
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}

	tokenSvc := tokens.NewService(
		[]byte(configuration.ACCESS_SECRET),
		[]byte(configuration.REFRESH_SECRET),
	)

	var producer *mykafka.Producer
	if configuration.KAFKA_ADDRESS != "" {
		producer, err = mykafka.NewProducer([]string{configuration.KAFKA_ADDRESS})
		if err != nil {
			log.Fatalf("kafka init error: %v", err)
		}
	} else {
		logger.Warn("KAFKA_ADDRESS not set, domain events disabled")
	}

	var searchClient *elasticsearch.Client
	if configuration.ES_URL != "" {
		searchClient, err = es.NewClient(configuration)
		if err != nil {
			log.Fatalf("elasticsearch init error: %v", err)
		}
	} else {
		logger.Warn("ES_URL not set, note search disabled")
	}

	e := echo.New()
	e.HideBanner = true
	e.Pre(ecM.RemoveTrailingSlash())
	e.Use(
		ecM.Recover(),
		ecM.RequestID(),
		ecM.BodyLimit("1M"),
		ecM.CORSWithConfig(ecM.CORSConfig{
			AllowOrigins:     configuration.ALLOWED_ORIGINS,
			AllowCredentials: true,
			AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAuthorization},
		}),
		middleware.RequestLogger(logger),
	)
	e.HTTPErrorHandler = httpserver.NewErrorHandler()

	deps := httpserver.Deps{
		DB:          db,
		AuthHandler: &handlers.AuthHandler{DB: db, Tokens: tokenSvc, Producer: producer},
		UserHandler: &handlers.UserHandler{DB: db, Producer: producer},
		NoteHandler: &handlers.NoteHandler{
			DB:       db,
			Producer: producer,
			ES:       searchClient,
			Index:    es.NotesIndex,
		},
		SearchHandler: handlers.NewSearchHandler(searchClient, es.NotesIndex),
		Guard:         middleware.NewAccessGuard(tokenSvc),
	}

	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         ":" + configuration.PORT,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", configuration.PORT)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logger.Error("db close error", "error", err)
		}
	}

	if err := producer.Close(); err != nil {
		logger.Error("kafka close error", "error", err)
	}

	logger.Info("shutdown complete")
}
