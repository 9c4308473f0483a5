package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/danielhkuo/deliberation/auth"
	"github.com/danielhkuo/deliberation/cliparse"
	"github.com/danielhkuo/deliberation/db"
	"github.com/danielhkuo/deliberation/logging"
	"github.com/danielhkuo/deliberation/middleware"
	"github.com/danielhkuo/deliberation/notify"
	"github.com/danielhkuo/deliberation/router"
	"github.com/danielhkuo/deliberation/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		logging.Logger.Fatal().Err(err).Msg("Error parsing flags")
	}

	logging.Init(logging.Config{Level: logging.Level(cfg.LogLevel), JSONOutput: cfg.LogJSON})
	logger := logging.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbConn, err := sql.Open(cfg.DatabaseType, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("database connection failed")
	}
	defer dbConn.Close()

	if cfg.DatabaseType == string(store.SQLite) {
		// One writer keeps quota checks serialized.
		dbConn.SetMaxOpenConns(1)
	}

	if err := dbConn.PingContext(ctx); err != nil {
		logger.Fatal().Err(err).Msg("database ping failed")
	}

	if err := db.CreateSchema(dbConn); err != nil {
		logger.Fatal().Err(err).Msg("schema creation failed")
	}
	logger.Info().Str("dialect", cfg.DatabaseType).Msg("Database schema ready")

	broker := notify.NewBroker(auth.Verifier(cfg.TokenSecret))
	defer broker.Close()

	// Postgres fans changes out through NOTIFY so every instance sees them.
	var pub notify.Publisher = broker
	if cfg.DatabaseType == string(store.Postgres) {
		bridge := notify.NewPGBridge(dbConn, cfg.DatabaseURL, cfg.NotifyChannel, broker)
		pub = bridge
		go func() {
			if err := bridge.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("notification bridge stopped")
			}
		}()
	}

	st := store.New(dbConn, store.Dialect(cfg.DatabaseType), pub)
	mux := router.NewRouter(st, broker, cfg)

	server := http.Server{
		Handler:           middleware.CORS(mux),
		Addr:              ":" + strconv.Itoa(cfg.Port),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("graceful shutdown failed")
			server.Close()
		}
	}()

	logger.Info().Int("port", cfg.Port).Msg("Listening")
	err = server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("Server closed")
	} else {
		logger.Info().Msg("Server closed")
	}
}
