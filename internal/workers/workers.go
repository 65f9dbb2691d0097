package workers

import (
	"context"
	"time"

	"github.com/joshdurbin/strava-dashboard/internal/auth"
	"github.com/joshdurbin/strava-dashboard/internal/logging"
	"github.com/joshdurbin/strava-dashboard/internal/stats"
)

// refreshAhead is how long before expiry the token refresher acts
const refreshAhead = 10 * time.Minute

// refreshLogRetention bounds how long refresh history is kept
const refreshLogRetention = 30 * 24 * time.Hour

// TokenStore is the part of auth.Storage the token refresher needs
type TokenStore interface {
	LoadTokens(ctx context.Context) (*auth.StoredTokens, error)
	RefreshTokens(ctx context.Context) (*auth.TokenResponse, error)
}

// TokenRefresher keeps auth tokens up to date
type TokenRefresher struct {
	store    TokenStore
	interval time.Duration
	clock    func() time.Time
}

// NewTokenRefresher creates a new token refresher worker
func NewTokenRefresher(store TokenStore, interval time.Duration) *TokenRefresher {
	return &TokenRefresher{
		store:    store,
		interval: interval,
		clock:    time.Now,
	}
}

// Run starts the token refresh worker
func (t *TokenRefresher) Run(ctx context.Context) {
	log := logging.Logger
	log.Info().Dur("interval", t.interval).Msg("token refresher started")

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.checkAndRefresh(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("token refresher stopped")
			return
		case <-ticker.C:
			t.checkAndRefresh(ctx)
		}
	}
}

func (t *TokenRefresher) checkAndRefresh(ctx context.Context) {
	log := logging.Logger

	tokens, err := t.store.LoadTokens(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to load tokens for refresh check")
		return
	}

	timeUntilExpiry := time.Unix(tokens.ExpiresAt, 0).Sub(t.clock())
	if timeUntilExpiry >= refreshAhead {
		log.Debug().Dur("expires_in", timeUntilExpiry.Round(time.Second)).Msg("token still valid")
		return
	}

	log.Info().Dur("expires_in", timeUntilExpiry).Msg("token expiring soon, refreshing")
	newTokens, err := t.store.RefreshTokens(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to refresh token")
		return
	}

	log.Info().
		Str("new_expires_at", time.Unix(newTokens.ExpiresAt, 0).Format(time.RFC3339)).
		Msg("token refreshed successfully")
}

// ActivityCache is the part of the sync service the activity refresher needs
type ActivityCache interface {
	Activities(ctx context.Context) ([]stats.Record, error)
	Refresh(ctx context.Context) (int, error)
}

// RefreshLogPruner drops refresh history older than before (unix seconds)
type RefreshLogPruner interface {
	PruneRefreshLog(ctx context.Context, before int64) error
}

// ActivityRefresher keeps the athlete's cached activities warm: it fills the
// cache on start and refetches on every tick
type ActivityRefresher struct {
	activities ActivityCache
	pruner     RefreshLogPruner
	interval   time.Duration
	clock      func() time.Time
}

// NewActivityRefresher creates a new activity refresh worker. pruner may be nil.
func NewActivityRefresher(activities ActivityCache, pruner RefreshLogPruner, interval time.Duration) *ActivityRefresher {
	return &ActivityRefresher{
		activities: activities,
		pruner:     pruner,
		interval:   interval,
		clock:      time.Now,
	}
}

// Run starts the activity refresh worker
func (a *ActivityRefresher) Run(ctx context.Context) {
	log := logging.Logger
	log.Info().Dur("interval", a.interval).Msg("activity refresher started")

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	a.warm(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("activity refresher stopped")
			return
		case <-ticker.C:
			a.refresh(ctx)
		}
	}
}

func (a *ActivityRefresher) warm(ctx context.Context) {
	records, err := a.activities.Activities(ctx)
	if err != nil {
		logging.Error("failed to warm activity cache", "error", err)
		return
	}
	logging.Info("activity cache warm", "activities", len(records))
}

func (a *ActivityRefresher) refresh(ctx context.Context) {
	n, err := a.activities.Refresh(ctx)
	if err != nil {
		logging.Error("failed to refresh activities", "error", err)
		return
	}
	logging.Info("activities refreshed", "activities", n)

	if a.pruner == nil {
		return
	}
	before := a.clock().Add(-refreshLogRetention).Unix()
	if err := a.pruner.PruneRefreshLog(ctx, before); err != nil {
		logging.Warn("failed to prune refresh log", "error", err)
	}
}
