// invisible-city serves the shared city grid and its JSON API.
//
// Usage examples:
//
//	go run ./cmd/invisible-city
//	go run ./cmd/invisible-city -addr :8080 -store badger -db ./data/city
//	go run ./cmd/invisible-city -store postgres -dsn "postgres://city@localhost/city?sslmode=disable"
//	go run ./cmd/invisible-city -config city.yaml -log-format console
//
// Settings are layered: defaults, then the YAML file (-config or
// CITY_CONFIG), then the environment (a .env file is read if present),
// then flags given on the command line.
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

	"go.uber.org/zap"

	"github.com/poku-e/invisible-city/internal/config"
	"github.com/poku-e/invisible-city/internal/httpapi"
	"github.com/poku-e/invisible-city/internal/logger"
	"github.com/poku-e/invisible-city/internal/notify"
	"github.com/poku-e/invisible-city/internal/store"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: config: %v\n", err)
		os.Exit(2)
	}

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "invisible-city")
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	st, err := store.Open(store.Options{
		Driver: cfg.Store.Driver,
		Path:   cfg.Store.Path,
		DSN:    cfg.Store.DSN,
	})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Warn("close store", zap.Error(err))
		}
	}()

	var events notify.Publisher = notify.Nop{}
	if cfg.MQTT.Enabled {
		m, err := notify.NewMQTT(notify.MQTTOptions{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
			Topic:    cfg.MQTT.Topic,
			QoS:      cfg.MQTT.QoS,
		}, log)
		if err != nil {
			return fmt.Errorf("connect mqtt: %w", err)
		}
		events = m
		log.Info("publishing building events",
			zap.String("broker", cfg.MQTT.Broker),
			zap.String("topic", cfg.MQTT.Topic),
		)
	}
	defer events.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	existing, err := st.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("read buildings: %w", err)
	}
	log.Info("store ready",
		zap.String("driver", cfg.Store.Driver),
		zap.String("path", cfg.Store.Path),
		zap.Int("buildings", len(existing)),
	)

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      httpapi.New(st, events, log),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
