//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/votehall/apiserver/config"
	"github.com/votehall/apiserver/internal/server"
)

const (
	serverPort = 18080
)

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	root, err := repoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to locate repo root: %v\n", err)
		os.Exit(1)
	}

	if err := dockerCompose(ctx, root, "up", "-d"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start docker compose: %v\n", err)
		os.Exit(1)
	}

	if err := waitForPostgres(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "postgres not ready: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := runMigrations(root); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	srv, err := startServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	if err := waitForHealth(ctx, baseURL+"/healthz"); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		_ = srv.Shutdown()
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	code := m.Run()

	_ = srv.Shutdown()
	_ = dockerCompose(context.Background(), root, "down")
	os.Exit(code)
}

func TestVotingLifecycle(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	suffix := time.Now().UnixNano()

	ownerToken, err := registerUser(t, baseURL, fmt.Sprintf("owner_%d@example.com", suffix))
	if err != nil {
		t.Fatalf("register owner: %v", err)
	}
	voterToken, err := registerUser(t, baseURL, fmt.Sprintf("voter_%d@example.com", suffix))
	if err != nil {
		t.Fatalf("register voter: %v", err)
	}

	room, err := createRoom(t, baseURL, ownerToken, "Lunch Poll", []string{"Pizza", "Sushi"})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if len(room.Candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(room.Candidates))
	}

	pizza := room.Candidates[0].ID
	if err := castVote(t, baseURL, voterToken, room.Room.ID, pizza, http.StatusCreated); err != nil {
		t.Fatalf("cast vote: %v", err)
	}

	// Voting again is a terminal conflict, even for the other candidate.
	sushi := room.Candidates[1].ID
	if err := castVote(t, baseURL, voterToken, room.Room.ID, sushi, http.StatusConflict); err != nil {
		t.Fatalf("expected conflict on second vote: %v", err)
	}

	results, err := getResults(t, baseURL, room.Room.ID)
	if err != nil {
		t.Fatalf("get results: %v", err)
	}
	if results.TotalVotes != 1 {
		t.Fatalf("expected 1 total vote, got %d", results.TotalVotes)
	}
	if results.LeadingCandidateID != pizza {
		t.Fatalf("expected %q to lead, got %q", pizza, results.LeadingCandidateID)
	}

	if err := closeRoom(t, baseURL, ownerToken, room.Room.ID); err != nil {
		t.Fatalf("close room: %v", err)
	}

	// Closed rooms reject new votes.
	lateToken, err := registerUser(t, baseURL, fmt.Sprintf("late_%d@example.com", suffix))
	if err != nil {
		t.Fatalf("register late voter: %v", err)
	}
	if err := castVote(t, baseURL, lateToken, room.Room.ID, pizza, http.StatusConflict); err != nil {
		t.Fatalf("expected conflict on closed room: %v", err)
	}
}

type authResponse struct {
	Token string `json:"token"`
}

type roomResponse struct {
	Room struct {
		ID     string `json:"id"`
		Title  string `json:"title"`
		Status string `json:"status"`
	} `json:"room"`
	Candidates []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"candidates"`
}

type resultsResponse struct {
	TotalVotes         int    `json:"total_votes"`
	LeadingCandidateID string `json:"leading_candidate_id"`
}

func registerUser(t *testing.T, baseURL, email string) (string, error) {
	t.Helper()

	payload := map[string]string{
		"email":     email,
		"full_name": "Test User",
		"password":  "testpass123!",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequest(http.MethodPost, baseURL+"/auth/register", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("register status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed authResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if parsed.Token == "" {
		return "", fmt.Errorf("missing token in register response")
	}
	return parsed.Token, nil
}

func createRoom(t *testing.T, baseURL, token, title string, candidateNames []string) (roomResponse, error) {
	t.Helper()

	candidates := make([]map[string]string, 0, len(candidateNames))
	for _, name := range candidateNames {
		candidates = append(candidates, map[string]string{"name": name})
	}
	body, err := json.Marshal(map[string]any{
		"title":      title,
		"candidates": candidates,
	})
	if err != nil {
		return roomResponse{}, err
	}

	req, err := http.NewRequest(http.MethodPost, baseURL+"/rooms", bytes.NewReader(body))
	if err != nil {
		return roomResponse{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return roomResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(resp.Body)
		return roomResponse{}, fmt.Errorf("create room status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed roomResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return roomResponse{}, err
	}
	return parsed, nil
}

func castVote(t *testing.T, baseURL, token, roomID, candidateID string, wantStatus int) error {
	t.Helper()

	body, err := json.Marshal(map[string]string{"candidate_id": candidateID})
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, fmt.Sprintf("%s/rooms/%s/votes", baseURL, roomID), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("cast vote status %d, want %d: %s", resp.StatusCode, wantStatus, strings.TrimSpace(string(msg)))
	}
	return nil
}

func getResults(t *testing.T, baseURL, roomID string) (resultsResponse, error) {
	t.Helper()

	resp, err := http.Get(fmt.Sprintf("%s/rooms/%s/results", baseURL, roomID))
	if err != nil {
		return resultsResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return resultsResponse{}, fmt.Errorf("results status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed resultsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return resultsResponse{}, err
	}
	return parsed, nil
}

func closeRoom(t *testing.T, baseURL, token, roomID string) error {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, fmt.Sprintf("%s/rooms/%s/close", baseURL, roomID), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("close room status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

func waitForPostgres(ctx context.Context) error {
	cfg := config.LoadConfig()
	dsn := buildPostgresURL(cfg)
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := db.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres ping timeout: %w", err)
		case <-ticker.C:
		}
	}
}

func waitForHealth(ctx context.Context, url string) error {
	client := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			return fmt.Errorf("health check failed with status")
		case <-ticker.C:
		}
	}
}

func runMigrations(root string) error {
	cfg := config.LoadConfig()
	dsn := buildPostgresURL(cfg)
	migrationsPath := filepath.Join(root, "internal", "db", "migrations")
	migrationsURL := "file://" + migrationsPath

	migrator, err := migrate.New(migrationsURL, dsn)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := migrator.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func buildPostgresURL(cfg config.Config) string {
	sslmode := "disable"
	if cfg.Database.UseSSL {
		sslmode = "require"
	}
	host := fmt.Sprintf("%s:%d", cfg.Database.Host, cfg.Database.Port)
	return fmt.Sprintf(
		"postgres://%s:%s@%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		host,
		cfg.Database.DBName,
		sslmode,
	)
}

func startServer() (*server.Server, error) {
	_ = os.Setenv("JWT_SECRET", "test-secret")
	_ = os.Setenv("SERVER_PORT", fmt.Sprintf("%d", serverPort))
	_ = os.Setenv("DB_HOST", "localhost")
	_ = os.Setenv("DB_PORT", "5432")
	_ = os.Setenv("DB_USER", "votehall")
	_ = os.Setenv("DB_PASSWORD", "votehall")
	_ = os.Setenv("DB_NAME", "votehall")
	_ = os.Setenv("DB_USE_SSL", "false")
	_ = os.Setenv("STORAGE_BACKEND", "none")
	_ = os.Setenv("BROKER_BACKEND", "none")

	cfg := config.LoadConfig()
	srv, err := server.New(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	go func() {
		_ = srv.Start()
	}()

	return srv, nil
}

func dockerCompose(ctx context.Context, root string, args ...string) error {
	composeFile := filepath.Join(root, "development", "docker-compose.yml")
	baseArgs := append([]string{"compose", "-f", composeFile}, args...)
	cmd := exec.CommandContext(ctx, "docker", baseArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}
