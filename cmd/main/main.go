package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"svs-mapping/internal/config"
	mapHnd "svs-mapping/internal/mapping/handler"
	"svs-mapping/internal/mapping/service"
	"svs-mapping/internal/storage/memory"
	"svs-mapping/internal/storage/sqlstore"
	serverhttp "svs-mapping/server/http"
)

type appStore interface {
	service.Store
	Ping(ctx context.Context) error
	Close() error
}

func openStore(cfg config.Config) (appStore, error) {
	if cfg.DBDriver == "memory" {
		return memory.New(), nil
	}
	return sqlstore.Open(cfg.DBDriver, cfg.DBDSN)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger := config.SetupLogger(cfg)

	store, err := openStore(cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("open store")
	}
	defer store.Close()

	svc := service.New(store, service.MatchConfig{
		CandidateThreshold:  cfg.CandidateThreshold,
		AutoAssignThreshold: cfg.AutoAssignThreshold,
	}, logger)
	r := serverhttp.NewRouter(cfg, logger, mapHnd.New(svc, cfg, logger), store)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Info().Str("addr", cfg.Addr()).Str("driver", cfg.DBDriver).Msg("server starting")

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("listen")
		}
	}()

	// graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("server shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	logger.Info().Msg("bye")
}
