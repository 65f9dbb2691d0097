package cmd

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/joshdurbin/strava-dashboard/internal/auth"
	"github.com/joshdurbin/strava-dashboard/internal/cache"
	"github.com/joshdurbin/strava-dashboard/internal/config"
	"github.com/joshdurbin/strava-dashboard/internal/db"
	"github.com/joshdurbin/strava-dashboard/internal/logging"
	"github.com/joshdurbin/strava-dashboard/internal/metrics"
	"github.com/joshdurbin/strava-dashboard/internal/server"
	"github.com/joshdurbin/strava-dashboard/internal/sync"
	"github.com/joshdurbin/strava-dashboard/internal/workers"

	_ "modernc.org/sqlite"
)

const shutdownTimeout = 10 * time.Second

// RuntimeConfig holds all runtime configuration from CLI flags
type RuntimeConfig struct {
	ConfigPath           string
	DBPath               string
	Port                 int
	RefreshInterval      time.Duration
	TokenRefreshInterval time.Duration
	ForceReauth          bool
}

// Run is the main entry point: it authenticates, starts the background
// workers and serves the dashboard until a shutdown signal arrives
func Run(rtCfg *RuntimeConfig) error {
	cfg, err := config.Load(rtCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	format, err := logging.ParseFormat(cfg.LogFormat)
	if err != nil {
		return err
	}
	logging.Setup(logging.GetLevel(), format)
	log := logging.Logger

	cutoff, err := cfg.Cutoff()
	if err != nil {
		return err
	}
	location, err := cfg.Location()
	if err != nil {
		return err
	}
	addr := listenAddress(cfg, rtCfg.Port)

	log.Info().
		Str("config", rtCfg.ConfigPath).
		Str("db_path", rtCfg.DBPath).
		Str("listen_addr", addr).
		Str("cache_backend", cfg.CacheBackend).
		Time("cutoff", cutoff).
		Str("timezone", location.String()).
		Dur("refresh_interval", rtCfg.RefreshInterval).
		Dur("token_refresh_interval", rtCfg.TokenRefreshInterval).
		Msg("starting strava-dashboard")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	log.Info().Str("path", rtCfg.DBPath).Msg("opening database")
	sqlDB, err := sql.Open("sqlite", rtCfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer sqlDB.Close()

	if err := configureSQLite(sqlDB); err != nil {
		return fmt.Errorf("configuring SQLite: %w", err)
	}
	if err := checkDatabaseLock(sqlDB); err != nil {
		return err
	}

	results, err := db.Migrate(ctx, sqlDB)
	if err != nil {
		return err
	}
	for _, r := range results {
		log.Debug().Int64("version", r.Source.Version).Str("path", r.Source.Path).Msg("migration applied")
	}
	log.Debug().Int("applied", len(results)).Msg("database migrations completed")

	queries := db.New(sqlDB)
	storage := auth.NewStorage(queries)

	if _, err := ensureAuthenticated(ctx, storage, rtCfg); err != nil {
		return fmt.Errorf("authentication: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewManager("strava", "dashboard", reg)

	backend := newCacheBackend(cfg)
	if rb, ok := backend.(*cache.RedisBackend); ok {
		defer rb.Close()
	}
	gateway := cache.NewGateway(backend, cfg.CacheTTLs(), m)

	syncSvc := sync.NewService(storage, sync.StravaSource(), sync.Options{
		Cutoff:   cutoff,
		Location: location,
		Locale:   cfg.StatsLocale(),
		Gateway:  gateway,
		Queries:  queries,
		Metrics:  m,
	})

	log.Info().Msg("starting background workers")
	g, gCtx := errgroup.WithContext(ctx)

	tokenRefresher := workers.NewTokenRefresher(storage, rtCfg.TokenRefreshInterval)
	g.Go(func() error {
		tokenRefresher.Run(gCtx)
		return nil
	})

	activityRefresher := workers.NewActivityRefresher(syncSvc, queries, rtCfg.RefreshInterval)
	g.Go(func() error {
		activityRefresher.Run(gCtx)
		return nil
	})

	srv := server.New(syncSvc, server.Options{
		PageSize: cfg.PageSize,
		Metrics:  m,
		Gatherer: reg,
	})
	serverErr := runHTTPServer(ctx, srv.Handler(), addr)

	// workers only stop on cancellation; a server failure must stop them too
	cancel()

	log.Info().Msg("waiting for workers to shut down")
	if err := g.Wait(); err != nil {
		log.Warn().Err(err).Msg("worker error during shutdown")
	} else {
		log.Info().Msg("all workers shut down gracefully")
	}

	return serverErr
}

// listenAddress picks the --port flag over the configured address
func listenAddress(cfg config.Config, port int) string {
	if port > 0 {
		return fmt.Sprintf(":%d", port)
	}
	return cfg.ListenAddr
}

// newCacheBackend builds the backend selected by cache_backend
func newCacheBackend(cfg config.Config) cache.Backend {
	if cfg.CacheBackend == config.BackendRedis {
		logging.Logger.Info().Str("addr", cfg.RedisAddr).Int("db", cfg.RedisDB).Msg("using redis cache")
		return cache.NewRedisBackend(redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}))
	}
	logging.Logger.Info().Int("size_mb", cfg.MemoryCacheMB).Msg("using in-memory cache")
	return cache.NewMemoryBackend(cfg.MemoryCacheMB)
}

// ensureAuthenticated checks if we have valid auth tokens, and if not, runs the OAuth flow
func ensureAuthenticated(ctx context.Context, storage *auth.Storage, cfg *RuntimeConfig) (string, error) {
	log := logging.Logger

	if cfg.ForceReauth {
		log.Info().Msg("force re-authentication requested, clearing existing credentials and tokens")
		if err := storage.DeleteTokens(ctx); err != nil {
			log.Debug().Err(err).Msg("failed to delete existing auth config (may not exist)")
		}
	}

	clientConfig, err := storage.LoadClientConfig(ctx)
	if err != nil || cfg.ForceReauth {
		clientConfig, err = promptForCredentials()
		if err != nil {
			return "", fmt.Errorf("getting credentials: %w", err)
		}
	}

	if !cfg.ForceReauth {
		accessToken, err := storage.GetValidAccessToken(ctx)
		if err == nil {
			log.Info().Msg("using existing authentication")
			return accessToken, nil
		}

		if errors.Is(err, auth.ErrNotAuthenticated) {
			log.Info().Msg("no valid authentication found, starting OAuth flow")
		} else {
			log.Warn().Err(err).Msg("token refresh failed, re-authentication required")
			fmt.Println("\n=== Token Refresh Failed ===")
			fmt.Println("Your Strava authentication has expired or been revoked.")
			fmt.Println("Re-authentication is required.")
		}
	}

	return runOAuthFlow(ctx, storage, clientConfig)
}

// promptForCredentials prompts the user to enter their Strava API credentials
func promptForCredentials() (*auth.ClientConfig, error) {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("\n=== Strava API Credentials Required ===")
	fmt.Println("Get your API credentials from: https://www.strava.com/settings/api")
	fmt.Println()

	fmt.Print("Enter your Client ID: ")
	clientID, err := reader.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("reading client ID: %w", err)
	}
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return nil, fmt.Errorf("client ID is required")
	}

	fmt.Print("Enter your Client Secret: ")
	clientSecret, err := reader.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("reading client secret: %w", err)
	}
	clientSecret = strings.TrimSpace(clientSecret)
	if clientSecret == "" {
		return nil, fmt.Errorf("client secret is required")
	}

	return &auth.ClientConfig{
		ClientID:     clientID,
		ClientSecret: clientSecret,
	}, nil
}

// runOAuthFlow performs the OAuth authentication flow with Strava
func runOAuthFlow(ctx context.Context, storage *auth.Storage, clientConfig *auth.ClientConfig) (string, error) {
	log := logging.Logger

	fmt.Println("\n=== Strava Authentication Required ===")
	fmt.Println("A browser window will open for you to authorize this application.")
	fmt.Println("Press Enter to continue...")

	reader := bufio.NewReader(os.Stdin)
	reader.ReadString('\n')

	tokens, err := auth.Authenticate(ctx, clientConfig.ClientID, clientConfig.ClientSecret)
	if err != nil {
		return "", fmt.Errorf("OAuth flow failed: %w", err)
	}

	event := log.Info().Str("expires_at", time.Unix(tokens.ExpiresAt, 0).Format(time.RFC3339))
	if tokens.Athlete != nil {
		event = event.Int64("athlete_id", tokens.Athlete.ID).Str("athlete", tokens.Athlete.Name)
	}
	event.Msg("OAuth authentication successful")

	if err := storage.SaveFullConfig(ctx, clientConfig.ClientID, clientConfig.ClientSecret, tokens); err != nil {
		return "", fmt.Errorf("saving tokens: %w", err)
	}

	fmt.Printf("\nAuthentication successful! Token expires: %s\n\n",
		time.Unix(tokens.ExpiresAt, 0).Format(time.RFC1123))

	return tokens.AccessToken, nil
}

// runHTTPServer serves handler on addr until ctx is cancelled
func runHTTPServer(ctx context.Context, handler http.Handler, addr string) error {
	log := logging.Logger

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info().
			Str("address", addr).
			Str("api", "/api/dashboard").
			Str("mcp", "/mcp").
			Msg("HTTP server running")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}

// configureSQLite sets up SQLite for concurrent access
func configureSQLite(sqlDB *sql.DB) error {
	pragmas := []struct{ stmt, what string }{
		{"PRAGMA journal_mode=WAL", "setting WAL mode"},
		{"PRAGMA busy_timeout=5000", "setting busy timeout"},
		// NORMAL is safe with WAL
		{"PRAGMA synchronous=NORMAL", "setting synchronous mode"},
	}
	for _, p := range pragmas {
		if _, err := sqlDB.Exec(p.stmt); err != nil {
			return fmt.Errorf("%s: %w", p.what, err)
		}
	}

	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	logging.Logger.Debug().
		Str("journal_mode", "WAL").
		Str("busy_timeout", "5000ms").
		Msg("SQLite configured")
	return nil
}

// checkDatabaseLock verifies no other process has the database locked
func checkDatabaseLock(sqlDB *sql.DB) error {
	if _, err := sqlDB.Exec("PRAGMA locking_mode=EXCLUSIVE"); err != nil {
		return fmt.Errorf("another instance may be running (database locked): %w", err)
	}

	if _, err := sqlDB.Exec("BEGIN EXCLUSIVE"); err != nil {
		if strings.Contains(err.Error(), "locked") || strings.Contains(err.Error(), "busy") {
			return fmt.Errorf("another instance is already running (database is locked)")
		}
		return fmt.Errorf("checking database lock: %w", err)
	}

	if _, err := sqlDB.Exec("COMMIT"); err != nil {
		return fmt.Errorf("releasing lock check: %w", err)
	}

	logging.Logger.Debug().Msg("database lock check passed")
	return nil
}
