package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/taskboard/realtime/internal/app/localstore"
	"github.com/taskboard/realtime/internal/app/subscriber"
	"github.com/taskboard/realtime/internal/contracts"
	"github.com/taskboard/realtime/internal/platform/env"
)

// notify-client signs in, subscribes to the user's private channel and keeps a
// local task view reconciled from two sources: pushed events and a periodic
// full fetch. New notifications are printed as they arrive.
func main() {
	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	apiURL := env.String("API_URL", "http://localhost:8080")
	natsURL := env.String("NATS_URL", env.DefaultNATSURL)
	email := env.String("CLIENT_EMAIL", "")
	password := env.String("CLIENT_PASSWORD", "")
	fetchInterval := env.Duration("FETCH_INTERVAL", 30*time.Second)
	if email == "" || password == "" {
		log.Fatal("CLIENT_EMAIL and CLIENT_PASSWORD are required")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	httpClient := &http.Client{Timeout: 10 * time.Second}

	session, err := login(runCtx, httpClient, apiURL, email, password)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("signed in as %s\n", email)

	store := localstore.New()
	transport := subscriber.NewNATSTransport(natsURL, apiURL+"/api/v1/broadcasting/auth")
	manager := subscriber.NewManager(transport, store, logger)
	defer manager.Close()

	if err := manager.SetSession(subscriber.Session{Token: session.Token, UserID: session.UserID}); err != nil {
		log.Fatal(err)
	}

	if err := refresh(runCtx, httpClient, apiURL, session.Token, store); err != nil {
		logger.Error("initial fetch failed", "error", err)
	}
	printBoard(store)

	ticker := time.NewTicker(fetchInterval)
	defer ticker.Stop()
	seen := map[string]bool{}

	for {
		select {
		case <-runCtx.Done():
			return
		case <-ticker.C:
			if err := refresh(runCtx, httpClient, apiURL, session.Token, store); err != nil {
				logger.Error("fetch failed", "error", err)
			}
		case <-time.After(time.Second):
			for _, n := range store.Notifications() {
				if seen[n.ID] {
					continue
				}
				seen[n.ID] = true
				fmt.Printf("[%s] %s: %s\n", n.Tone, n.Title, n.Message)
			}
		}
	}
}

type authResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
}

func login(ctx context.Context, client *http.Client, apiURL, email, password string) (authResponse, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return authResponse{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+"/api/v1/auth/login", bytes.NewReader(body))
	if err != nil {
		return authResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return authResponse{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return authResponse{}, fmt.Errorf("login failed with status %d", resp.StatusCode)
	}

	var out authResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return authResponse{}, err
	}
	return out, nil
}

// refresh fetches the full task list and swaps it into the store. Events that
// land while the fetch is in flight are resolved by arrival order.
func refresh(ctx context.Context, client *http.Client, apiURL, token string, store *localstore.Store) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL+"/api/v1/tasks?limit=100", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch failed with status %d", resp.StatusCode)
	}

	var payload struct {
		Tasks []contracts.Task `json:"tasks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return err
	}
	store.Replace(payload.Tasks)
	return nil
}

func printBoard(store *localstore.Store) {
	grouped := localstore.GroupByStatus(store.Tasks())
	for _, status := range []string{contracts.StatusPending, contracts.StatusInProgress, contracts.StatusDone} {
		fmt.Printf("%s (%d)\n", contracts.StatusLabel(status), len(grouped[status]))
		for _, task := range grouped[status] {
			fmt.Printf("  - %s\n", task.Title)
		}
	}
}
