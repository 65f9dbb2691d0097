package auth

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/oauth2"
	_ "modernc.org/sqlite"

	"github.com/joshdurbin/strava-dashboard/internal/db"
)

// setupTestDB creates a migrated SQLite database in a temp dir
func setupTestDB(t *testing.T) *db.Queries {
	t.Helper()

	sqlDB, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	if _, err := db.Migrate(context.Background(), sqlDB); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db.New(sqlDB)
}

func TestSaveAndLoadClientConfig(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	storage := NewStorage(setupTestDB(t))

	if _, err := storage.LoadClientConfig(ctx); !errors.Is(err, ErrNoClientConfig) {
		t.Fatalf("expected ErrNoClientConfig, got %v", err)
	}

	if err := storage.SaveClientConfig(ctx, "client123", "secret456"); err != nil {
		t.Fatalf("failed to save client config: %v", err)
	}

	config, err := storage.LoadClientConfig(ctx)
	if err != nil {
		t.Fatalf("failed to load client config: %v", err)
	}
	if config.ClientID != "client123" || config.ClientSecret != "secret456" {
		t.Errorf("unexpected client config: %+v", config)
	}

	// credentials alone are not enough to be authenticated
	if _, err := storage.LoadTokens(ctx); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestSaveFullConfigWithAthlete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	storage := NewStorage(setupTestDB(t))

	expiresAt := time.Now().Add(time.Hour).Unix()
	tokens := &TokenResponse{
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    expiresAt,
		Athlete:      &Athlete{ID: 77, Name: "Ana Souza", Profile: "https://example.com/p.jpg"},
	}
	if err := storage.SaveFullConfig(ctx, "cid", "secret", tokens); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	stored, err := storage.LoadTokens(ctx)
	if err != nil {
		t.Fatalf("load tokens failed: %v", err)
	}
	if stored.AccessToken != "access" || stored.RefreshToken != "refresh" || stored.ExpiresAt != expiresAt {
		t.Errorf("unexpected tokens: %+v", stored)
	}

	athlete, err := storage.LoadAthlete(ctx)
	if err != nil {
		t.Fatalf("load athlete failed: %v", err)
	}
	if athlete != *tokens.Athlete {
		t.Errorf("athlete: got %+v, want %+v", athlete, *tokens.Athlete)
	}
}

func TestLoadAthleteUnknown(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	storage := NewStorage(setupTestDB(t))

	athlete, err := storage.LoadAthlete(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if athlete.UserID() != "" {
		t.Errorf("expected unknown athlete, got %+v", athlete)
	}
}

func TestSaveTokensRequiresClientConfig(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	storage := NewStorage(setupTestDB(t))

	err := storage.SaveTokens(ctx, &TokenResponse{AccessToken: "a"})
	if !errors.Is(err, ErrNoClientConfig) {
		t.Errorf("expected ErrNoClientConfig, got %v", err)
	}
}

func TestDeleteTokens(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	storage := NewStorage(setupTestDB(t))

	if err := storage.SaveFullConfig(ctx, "cid", "secret", &TokenResponse{AccessToken: "a", ExpiresAt: 1}); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := storage.DeleteTokens(ctx); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := storage.LoadTokens(ctx); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("expected ErrNotAuthenticated after delete, got %v", err)
	}
}

func TestGetValidAccessToken(t *testing.T) {
	t.Parallel()

	var refreshes atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refreshes.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"fresh","refresh_token":"fresh_refresh","token_type":"Bearer","expires_in":21600}`))
	}))
	defer server.Close()

	tests := []struct {
		name          string
		expiresAt     int64
		wantToken     string
		wantRefreshes int32
	}{
		{name: "valid token is returned as is", expiresAt: time.Now().Add(time.Hour).Unix(), wantToken: "stale", wantRefreshes: 0},
		{name: "expiring token is refreshed", expiresAt: time.Now().Add(time.Minute).Unix(), wantToken: "fresh", wantRefreshes: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			storage := NewStorage(setupTestDB(t)).WithEndpoint(oauth2.Endpoint{
				TokenURL:  server.URL,
				AuthStyle: oauth2.AuthStyleInParams,
			})

			err := storage.SaveFullConfig(ctx, "cid", "secret", &TokenResponse{
				AccessToken:  "stale",
				RefreshToken: "old_refresh",
				ExpiresAt:    tt.expiresAt,
			})
			if err != nil {
				t.Fatalf("save failed: %v", err)
			}

			before := refreshes.Load()
			token, err := storage.GetValidAccessToken(ctx)
			if err != nil {
				t.Fatalf("GetValidAccessToken failed: %v", err)
			}
			if token != tt.wantToken {
				t.Errorf("token: got %q, want %q", token, tt.wantToken)
			}
			if got := refreshes.Load() - before; got != tt.wantRefreshes {
				t.Errorf("refreshes: got %d, want %d", got, tt.wantRefreshes)
			}

			// refreshed tokens are persisted
			stored, err := storage.LoadTokens(ctx)
			if err != nil {
				t.Fatalf("load failed: %v", err)
			}
			if stored.AccessToken != tt.wantToken {
				t.Errorf("stored token: got %q, want %q", stored.AccessToken, tt.wantToken)
			}
		})
	}
}

func TestGetValidAccessTokenNotAuthenticated(t *testing.T) {
	t.Parallel()
	storage := NewStorage(setupTestDB(t))

	if _, err := storage.GetValidAccessToken(context.Background()); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("expected ErrNotAuthenticated, got %v", err)
	}
}
