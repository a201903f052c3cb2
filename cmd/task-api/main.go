package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"

	"github.com/taskboard/realtime/internal/app/channels"
	"github.com/taskboard/realtime/internal/app/emitter"
	"github.com/taskboard/realtime/internal/app/identity"
	"github.com/taskboard/realtime/internal/app/taskapi"
	"github.com/taskboard/realtime/internal/app/tasks"
	"github.com/taskboard/realtime/internal/platform/auth"
	"github.com/taskboard/realtime/internal/platform/dbpool"
	"github.com/taskboard/realtime/internal/platform/env"
	"github.com/taskboard/realtime/internal/platform/metrics"
	"github.com/taskboard/realtime/internal/platform/natsutil"
)

func main() {
	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	apiAddr := env.String("API_ADDR", env.DefaultAPIAddr)
	uiOrigin := env.String("UI_ORIGIN", "http://localhost:5173")
	pgURL := env.String("DATABASE_URL", env.DefaultDatabaseURL)
	jwtSecret := env.String("JWT_SECRET", "dev-insecure-change-me")
	shutdownTimeout := env.Duration("SHUTDOWN_TIMEOUT", 10*time.Second)

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	pool, err := dbpool.New(runCtx, pgURL)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	identityRepo := identity.NewPostgresRepository(pool)
	taskRepo := tasks.NewPostgresRepository(pool)
	if err := waitForSchemas(runCtx, identityRepo, taskRepo, 30*time.Second); err != nil {
		log.Fatal(err)
	}

	conn, err := natsutil.ConnectWithRetry(env.String("NATS_URL", env.DefaultNATSURL), 20*time.Second)
	if err != nil {
		log.Fatal(err)
	}
	defer natsutil.Close(conn)

	identitySvc := identity.NewService(identityRepo, auth.NewManager(jwtSecret))
	events := emitter.New(natsutil.ConnPublisher{Conn: conn}.Publish, logger)
	taskSvc := tasks.NewService(taskRepo, events)
	authorizer := channels.NewAuthorizer(identitySvc, logger)
	handler := taskapi.NewHandler(identitySvc, taskSvc, authorizer, uiOrigin)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := checkReadiness(r.Context(), pool, conn); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", metrics.DefaultHandler())
	mux.Handle("/", handler.Router())

	server := &http.Server{
		Addr:              apiAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	fmt.Printf("Task API listening on %s\n", apiAddr)
	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		log.Fatal(err)
	case <-runCtx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("task-api graceful shutdown failed: %v", err)
	}
}

func waitForSchemas(ctx context.Context, identityRepo *identity.PostgresRepository, taskRepo *tasks.PostgresRepository, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		attemptCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		lastErr = identityRepo.EnsureSchema(attemptCtx)
		if lastErr == nil {
			lastErr = taskRepo.EnsureSchema(attemptCtx)
		}
		cancel()
		if lastErr == nil {
			return nil
		}
		log.Printf("waiting for schema readiness: %v", lastErr)
		time.Sleep(500 * time.Millisecond)
	}
	return lastErr
}

func checkReadiness(ctx context.Context, pool *pgxpool.Pool, conn *nats.Conn) error {
	if conn == nil {
		return errors.New("nats connection is nil")
	}
	if conn.Status() != nats.CONNECTED {
		return fmt.Errorf("nats is not connected: %s", conn.Status().String())
	}

	checkCtx, cancel := context.WithTimeout(ctx, 1500*time.Millisecond)
	defer cancel()
	if err := pool.Ping(checkCtx); err != nil {
		return fmt.Errorf("postgres ping failed: %w", err)
	}
	return nil
}
