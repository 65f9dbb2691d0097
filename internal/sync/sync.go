package sync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/joshdurbin/strava-dashboard/internal/auth"
	"github.com/joshdurbin/strava-dashboard/internal/cache"
	"github.com/joshdurbin/strava-dashboard/internal/db"
	"github.com/joshdurbin/strava-dashboard/internal/logging"
	"github.com/joshdurbin/strava-dashboard/internal/metrics"
	"github.com/joshdurbin/strava-dashboard/internal/stats"
	"github.com/joshdurbin/strava-dashboard/internal/strava"
)

// tokenPrefixLen is how much of the access token partitions cached activities
const tokenPrefixLen = 10

// fetchSlack widens the upstream "after" bound: Strava filters on start_date
// while the cutoff applies to start_date_local
const fetchSlack = 24 * time.Hour

// fetchTimeout bounds one shared upstream fetch of the full history
const fetchTimeout = 5 * time.Minute

// Credentials supplies the access token and the athlete it belongs to
type Credentials interface {
	GetValidAccessToken(ctx context.Context) (string, error)
	LoadAthlete(ctx context.Context) (auth.Athlete, error)
}

// ActivitySource fetches raw activity records
type ActivitySource interface {
	FetchActivities(ctx context.Context, after time.Time, progress strava.ProgressCallback) ([]map[string]any, error)
}

// SourceFunc builds an ActivitySource for an access token
type SourceFunc func(accessToken string) ActivitySource

// StravaSource returns a SourceFunc building Strava API clients
func StravaSource(opts ...strava.Option) SourceFunc {
	return func(accessToken string) ActivitySource {
		return strava.NewClient(accessToken, opts...)
	}
}

// Options configures a Service
type Options struct {
	Cutoff   time.Time
	Location *time.Location
	Locale   stats.Locale
	Gateway  *cache.Gateway   // optional
	Queries  *db.Queries      // optional, records refreshes
	Metrics  *metrics.Manager // optional
	Clock    func() time.Time
}

// Service turns the athlete's Strava history into statistics services
type Service struct {
	creds  Credentials
	source SourceFunc
	opts   Options
	group  singleflight.Group
}

// NewService creates a new sync service
func NewService(creds Credentials, source SourceFunc, opts Options) *Service {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Service{
		creds:  creds,
		source: source,
		opts:   opts,
	}
}

// UserID returns the cache partition of the authenticated athlete
func (s *Service) UserID(ctx context.Context) string {
	athlete, err := s.creds.LoadAthlete(ctx)
	if err != nil {
		logging.Warn("could not load athlete, using default user", "error", err)
		return stats.DefaultUserID
	}
	if id := athlete.UserID(); id != "" {
		return id
	}
	return stats.DefaultUserID
}

// Athlete returns the stored athlete
func (s *Service) Athlete(ctx context.Context) (auth.Athlete, error) {
	return s.creds.LoadAthlete(ctx)
}

func activitiesKey(userID, accessToken string) cache.Key {
	prefix := accessToken
	if len(prefix) > tokenPrefixLen {
		prefix = prefix[:tokenPrefixLen]
	}
	return cache.NewKey(cache.KindActivities, userID, prefix)
}

// Activities returns the athlete's raw records, served from the cache while
// the activities TTL lasts. Concurrent misses share one upstream fetch.
func (s *Service) Activities(ctx context.Context) ([]stats.Record, error) {
	token, err := s.creds.GetValidAccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting access token: %w", err)
	}
	userID := s.UserID(ctx)
	key := activitiesKey(userID, token)

	var records []stats.Record
	if s.opts.Gateway.Get(ctx, key, &records) {
		return records, nil
	}

	// the fetch is shared, so it must outlive the caller that started it
	v, err, shared := s.group.Do(key.String(), func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()
		return s.fetch(fetchCtx, userID, token, key)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		logging.Debug("joined in-flight activity fetch", "user", userID)
	}
	return v.([]stats.Record), nil
}

func (s *Service) fetch(ctx context.Context, userID, token string, key cache.Key) ([]stats.Record, error) {
	start := s.opts.Clock()
	logging.Info("fetching activities from Strava", "user", userID)

	raw, err := s.source(token).FetchActivities(ctx, s.opts.Cutoff.Add(-fetchSlack), func(r strava.PageResult) {
		logging.Debug("activity page", "page", r.Page, "count", r.Count, "total", r.TotalFetched)
	})
	elapsed := s.opts.Clock().Sub(start)

	if err != nil {
		s.opts.Metrics.ObserveFetch("error", elapsed.Seconds())
		s.logRefresh(ctx, userID, start, 0, elapsed, err)
		return nil, fmt.Errorf("fetching activities: %w", err)
	}

	records := make([]stats.Record, len(raw))
	for i, r := range raw {
		records[i] = stats.Record(r)
	}

	s.opts.Metrics.ObserveFetch("ok", elapsed.Seconds())
	s.logRefresh(ctx, userID, start, len(records), elapsed, nil)
	s.opts.Gateway.Set(ctx, key, records)

	logging.Info("fetched activities", "user", userID, "count", len(records), "duration", elapsed.String())
	return records, nil
}

func (s *Service) logRefresh(ctx context.Context, userID string, at time.Time, count int, elapsed time.Duration, fetchErr error) {
	if s.opts.Queries == nil {
		return
	}

	params := db.InsertRefreshLogParams{
		AthleteID:     userID,
		FetchedAt:     at.Unix(),
		ActivityCount: int64(count),
		DurationMs:    elapsed.Milliseconds(),
	}
	if fetchErr != nil {
		params.Error = sql.NullString{String: fetchErr.Error(), Valid: true}
	}

	if err := s.opts.Queries.InsertRefreshLog(ctx, params); err != nil {
		logging.Warn("failed to record refresh", "error", err)
	}
}

// LastRefresh returns when the athlete's activities were last fetched
// successfully; ok is false when they never were
func (s *Service) LastRefresh(ctx context.Context) (at time.Time, ok bool) {
	if s.opts.Queries == nil {
		return time.Time{}, false
	}
	entry, err := s.opts.Queries.GetLastRefresh(ctx, s.UserID(ctx))
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logging.Warn("failed to read last refresh", "error", err)
		}
		return time.Time{}, false
	}
	return time.Unix(entry.FetchedAt, 0), true
}

// Stats builds a statistics service over the athlete's current activities
func (s *Service) Stats(ctx context.Context) (*stats.Service, error) {
	records, err := s.Activities(ctx)
	if err != nil {
		return nil, err
	}

	return stats.NewService(records, stats.Options{
		UserID:   s.UserID(ctx),
		Cutoff:   s.opts.Cutoff,
		Location: s.opts.Location,
		Locale:   s.opts.Locale,
		Cache:    s.opts.Gateway,
		Clock:    s.opts.Clock,
		Metrics:  s.opts.Metrics,
	})
}

// Refresh drops every cached entry of the athlete and fetches the activity
// history again. It returns the number of records fetched.
func (s *Service) Refresh(ctx context.Context) (int, error) {
	userID := s.UserID(ctx)
	removed := s.opts.Gateway.InvalidateUser(ctx, userID)
	logging.Debug("refreshing activities", "user", userID, "invalidated", removed)

	records, err := s.Activities(ctx)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// Invalidate drops every cached entry of the athlete without refetching
func (s *Service) Invalidate(ctx context.Context) int {
	return s.opts.Gateway.InvalidateUser(ctx, s.UserID(ctx))
}
