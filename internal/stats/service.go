package stats

import (
	"context"
	"time"

	"github.com/joshdurbin/strava-dashboard/internal/cache"
	"github.com/joshdurbin/strava-dashboard/internal/logging"
	"github.com/joshdurbin/strava-dashboard/internal/metrics"
)

// DefaultUserID partitions the cache when no user is known
const DefaultUserID = "default"

// ResultCache is the slice of the cache gateway the service needs
type ResultCache interface {
	Get(ctx context.Context, key cache.Key, dest any) bool
	Set(ctx context.Context, key cache.Key, value any)
}

// Options configures a Service
type Options struct {
	UserID   string
	Cutoff   time.Time      // activities at or before this instant are dropped
	Location *time.Location // reference zone for "today" and the current year
	Locale   Locale
	Cache    ResultCache // optional
	Clock    func() time.Time
	Metrics  *metrics.Manager // optional
}

// Service owns the normalized table of one user's activities for one
// report cycle and serves every report from it. Reports never modify the
// table, so methods may be called in any order and any number of times.
type Service struct {
	table    Table
	userID   string
	location *time.Location
	locale   Locale
	cache    ResultCache
	clock    func() time.Time
	metrics  *metrics.Manager
}

// NewService normalizes records and returns a service over them. It fails
// with a *DataProcessingError when a record cannot be normalized.
func NewService(records []Record, opts Options) (*Service, error) {
	table, err := Normalize(records, opts.Cutoff)
	if err != nil {
		return nil, err
	}
	return newService(table, opts), nil
}

// NewServiceFromTable wraps an already-normalized table
func NewServiceFromTable(table Table, opts Options) *Service {
	return newService(table, opts)
}

func newService(table Table, opts Options) *Service {
	s := &Service{
		table:    table,
		userID:   opts.UserID,
		location: opts.Location,
		locale:   opts.Locale,
		cache:    opts.Cache,
		clock:    opts.Clock,
		metrics:  opts.Metrics,
	}
	if s.userID == "" {
		s.userID = DefaultUserID
	}
	if s.location == nil {
		s.location = time.UTC
	}
	if s.clock == nil {
		s.clock = time.Now
	}

	logging.Debug("statistics service ready", "user", s.userID, "activities", table.Len())
	return s
}

// Table returns the normalized table
func (s *Service) Table() Table {
	return s.table
}

// UserID returns the cache partition of the service
func (s *Service) UserID() string {
	return s.userID
}

func (s *Service) now() time.Time {
	return s.clock()
}

// cached serves kind from the cache or computes and stores it. The key
// carries today's date in the reference zone because several reports
// depend on it.
func cached[T any](ctx context.Context, s *Service, kind cache.Kind, compute func(now time.Time) T) T {
	now := s.now()
	key := cache.NewKey(kind, s.userID, now.In(s.location).Format(isoDateLayout))

	var out T
	if s.cache != nil && s.cache.Get(ctx, key, &out) {
		return out
	}

	start := time.Now()
	out = compute(now)
	s.metrics.ObserveReport(string(kind), time.Since(start).Seconds())

	if s.cache != nil {
		s.cache.Set(ctx, key, out)
	}
	return out
}

// GeneralStatistics returns the totals block, cached per user and day
func (s *Service) GeneralStatistics(ctx context.Context) GeneralStatistics {
	return cached(ctx, s, cache.KindGeneralStats, func(now time.Time) GeneralStatistics {
		return CalculateGeneral(s.table, s.locale, now, s.location)
	})
}

// MonthlyStatistics returns the per-month rollup
func (s *Service) MonthlyStatistics(ctx context.Context) []MonthlyStatistic {
	return cached(ctx, s, cache.KindMonthlyStats, func(time.Time) []MonthlyStatistic {
		return CalculateMonthly(s.table)
	})
}

// SportTypeStatistics returns the per-sport rollup
func (s *Service) SportTypeStatistics(ctx context.Context) []SportTypeStatistic {
	return cached(ctx, s, cache.KindSportTypeStats, func(time.Time) []SportTypeStatistic {
		return CalculateSportTypes(s.table, s.locale)
	})
}

// WeeklyStatistics returns the non-empty weeks of the current year
func (s *Service) WeeklyStatistics(ctx context.Context) []WeeklyStatistic {
	return cached(ctx, s, cache.KindWeeklyStats, func(now time.Time) []WeeklyStatistic {
		return CalculateWeekly(s.table, s.locale, now, s.location)
	})
}

// SportTypes returns the distinct sport types with their labels
func (s *Service) SportTypes(ctx context.Context) []SportTypeOption {
	return cached(ctx, s, cache.KindSportTypes, func(time.Time) []SportTypeOption {
		return SportTypes(s.table, s.locale)
	})
}

// ActivitiesBySportType lists the activities of one sport type
func (s *Service) ActivitiesBySportType(sportType string) []SportActivity {
	return ListBySportType(s.table, sportType)
}

// FilteredActivities applies f to the table
func (s *Service) FilteredActivities(f Filter) ([]Activity, error) {
	return FilterActivities(s.table, f)
}

// FilteredActivityViews applies f and formats the result for display
func (s *Service) FilteredActivityViews(f Filter) ([]ActivityView, error) {
	rows, err := FilterActivities(s.table, f)
	if err != nil {
		return nil, err
	}
	return Views(rows, s.locale), nil
}

// PaginatedActivities returns one page of the newest-first listing
func (s *Service) PaginatedActivities(page, perPage int) (ActivityPage, error) {
	return Paginate(s.table, s.locale, page, perPage)
}

// AllActivities returns the full newest-first listing
func (s *Service) AllActivities() []ActivityView {
	return ListAll(s.table, s.locale)
}

// Dashboard bundles every report rendered on the dashboard page
type Dashboard struct {
	General      GeneralStatistics    `json:"general_stats"`
	Monthly      []MonthlyStatistic   `json:"monthly_stats"`
	SportTypes   []SportTypeStatistic `json:"activity_type_stats"`
	Weekly       []WeeklyStatistic    `json:"weekly_stats"`
	SportOptions []SportTypeOption    `json:"sport_types"`
	Activities   []ActivityView       `json:"all_activities"`
}

// Dashboard computes every dashboard report
func (s *Service) Dashboard(ctx context.Context) Dashboard {
	return Dashboard{
		General:      s.GeneralStatistics(ctx),
		Monthly:      s.MonthlyStatistics(ctx),
		SportTypes:   s.SportTypeStatistics(ctx),
		Weekly:       s.WeeklyStatistics(ctx),
		SportOptions: s.SportTypes(ctx),
		Activities:   s.AllActivities(),
	}
}
