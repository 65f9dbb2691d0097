package stats

import (
	"sort"
	"strings"

	"github.com/joshdurbin/strava-dashboard/internal/logging"
)

// Filter selects activities; zero-valued fields are not applied
type Filter struct {
	SportType string // exact match on sport_type
	Week      int    // ISO week number of start_date_local, 1..53
	Month     int    // month of start_date_local, 1..12
	Search    string // case-insensitive substring of name
}

// Validate rejects out-of-range week and month values
func (f Filter) Validate() error {
	if f.Week < 0 || f.Week > 53 {
		return &ParameterError{Param: "week", Value: f.Week, Reason: "must be between 1 and 53"}
	}
	if f.Month < 0 || f.Month > 12 {
		return &ParameterError{Param: "month", Value: f.Month, Reason: "must be between 1 and 12"}
	}
	return nil
}

// IsZero reports whether no filter is set
func (f Filter) IsZero() bool {
	return f == Filter{}
}

type predicate struct {
	name  string
	match func(Activity) bool
}

func (f Filter) predicates() []predicate {
	var preds []predicate
	if f.SportType != "" {
		preds = append(preds, predicate{"sport", func(a Activity) bool {
			return a.SportType == f.SportType
		}})
	}
	if f.Week != 0 {
		preds = append(preds, predicate{"week", func(a Activity) bool {
			_, week := a.StartDateLocal.ISOWeek()
			return week == f.Week
		}})
	}
	if f.Month != 0 {
		preds = append(preds, predicate{"month", func(a Activity) bool {
			return int(a.StartDateLocal.Month()) == f.Month
		}})
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		preds = append(preds, predicate{"search", func(a Activity) bool {
			return strings.Contains(strings.ToLower(a.Name), needle)
		}})
	}
	return preds
}

// FilterActivities applies every set filter in turn and returns the
// surviving activities in table order
func FilterActivities(t Table, f Filter) ([]Activity, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if t.Empty() {
		return []Activity{}, nil
	}

	rows := t.Rows()
	logging.Debug("filtering activities",
		"total", len(rows), "sport", f.SportType, "week", f.Week, "month", f.Month, "search", f.Search)

	for _, p := range f.predicates() {
		kept := rows[:0]
		for _, a := range rows {
			if p.match(a) {
				kept = append(kept, a)
			}
		}
		rows = kept
		logging.Debug("filter applied", "filter", p.name, "remaining", len(rows))
	}

	return rows, nil
}

// sortedByDateDesc returns the rows newest first; equal timestamps keep
// their input order
func sortedByDateDesc(t Table) []Activity {
	rows := t.Rows()
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].StartDateLocal.After(rows[j].StartDateLocal)
	})
	return rows
}

// ActivityView is one activity formatted for display, with raw values kept
// alongside for client-side computation
type ActivityView struct {
	ID                 int64   `json:"id,omitempty"`
	Name               string  `json:"name"`
	SportType          string  `json:"sport_type"`
	SportTypeKey       string  `json:"sport_type_key"`
	Date               string  `json:"date"`
	Time               string  `json:"time"`
	Week               int     `json:"week"`
	Month              int     `json:"month"`
	Distance           string  `json:"distance"`
	DistanceRaw        float64 `json:"distance_raw"`
	ElapsedTime        string  `json:"elapsed_time"`
	ElapsedTimeSeconds int64   `json:"elapsed_time_seconds"`
	Elevation          string  `json:"elevation"`
	ElevationRaw       float64 `json:"elevation_raw"`
}

func newActivityView(a Activity, locale Locale) ActivityView {
	_, week := a.StartDateLocal.ISOWeek()
	return ActivityView{
		Name:               a.Name,
		SportType:          locale.SportLabel(a.SportType),
		SportTypeKey:       a.SportType,
		Date:               a.StartDateLocal.Format(dateLayout),
		Time:               a.StartDateLocal.Format(timeLayout),
		Week:               week,
		Month:              int(a.StartDateLocal.Month()),
		ElapsedTime:        FormatTime(float64(a.ElapsedTime)),
		ElapsedTimeSeconds: a.ElapsedTime,
		ElevationRaw:       round(a.TotalElevationGain, 1),
	}
}

// ActivityPage is one page of the activity listing
type ActivityPage struct {
	Activities  []ActivityView `json:"activities"`
	CurrentPage int            `json:"current_page"`
	TotalPages  int            `json:"total_pages"`
	TotalItems  int            `json:"total_items"`
	PerPage     int            `json:"per_page"`
	HasNext     bool           `json:"has_next"`
	HasPrevious bool           `json:"has_previous"`
}

// Paginate returns page (1-based) of the newest-first listing. Pages past
// the end are empty; page and perPage below 1 are parameter errors.
func Paginate(t Table, locale Locale, page, perPage int) (ActivityPage, error) {
	if page < 1 {
		return ActivityPage{}, &ParameterError{Param: "page", Value: page, Reason: "must be at least 1"}
	}
	if perPage < 1 {
		return ActivityPage{}, &ParameterError{Param: "per_page", Value: perPage, Reason: "must be at least 1"}
	}

	if t.Empty() {
		return ActivityPage{
			Activities:  []ActivityView{},
			CurrentPage: 1,
			PerPage:     perPage,
		}, nil
	}

	rows := sortedByDateDesc(t)
	total := len(rows)
	totalPages := (total-1)/perPage + 1

	out := ActivityPage{
		Activities:  []ActivityView{},
		CurrentPage: page,
		TotalPages:  totalPages,
		TotalItems:  total,
		PerPage:     perPage,
		HasNext:     page < totalPages,
		HasPrevious: page > 1,
	}
	if page > totalPages {
		return out, nil
	}

	// page <= totalPages keeps start below total, so nothing here overflows
	start := (page - 1) * perPage
	end := total
	if total-start > perPage {
		end = start + perPage
	}

	views := make([]ActivityView, 0, end-start)
	for _, a := range rows[start:end] {
		v := newActivityView(a, locale)
		km := metersToKm(a.Distance)
		v.Distance = formatFixed(km, 1)
		v.DistanceRaw = round(km, 1)
		v.Elevation = formatFixed(a.TotalElevationGain, 0)
		views = append(views, v)
	}

	out.Activities = views
	return out, nil
}

// ListAll formats every activity, newest first
func ListAll(t Table, locale Locale) []ActivityView {
	if t.Empty() {
		return []ActivityView{}
	}
	return Views(sortedByDateDesc(t), locale)
}

// Views formats rows in the given order with the full listing precision
func Views(rows []Activity, locale Locale) []ActivityView {
	views := make([]ActivityView, 0, len(rows))
	for _, a := range rows {
		v := newActivityView(a, locale)
		km := metersToKm(a.Distance)
		v.ID = a.ID
		v.Distance = formatFixed(km, 2)
		v.DistanceRaw = round(km, 2)
		v.Elevation = formatFixed(a.TotalElevationGain, 1)
		views = append(views, v)
	}
	return views
}

// SportActivity is the compact row served by the per-sport listing
type SportActivity struct {
	Name        string `json:"name"`
	Date        string `json:"date"`
	Distance    string `json:"distance"`
	ElapsedTime string `json:"elapsed_time"`
	Elevation   string `json:"elevation"`
}

// ListBySportType returns the activities of one sport type in table order
func ListBySportType(t Table, sportType string) []SportActivity {
	result := []SportActivity{}
	for _, a := range t.rows {
		if a.SportType != sportType {
			continue
		}
		result = append(result, SportActivity{
			Name:        a.Name,
			Date:        a.StartDateLocal.Format(dateTimeLayout),
			Distance:    formatFixed(metersToKm(a.Distance), 2),
			ElapsedTime: FormatTime(float64(a.ElapsedTime)),
			Elevation:   formatFixed(a.TotalElevationGain, 1),
		})
	}
	return result
}

// SportTypeOption pairs a sport_type key with its label
type SportTypeOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// SportTypes lists the distinct sport types in first-seen order
func SportTypes(t Table, locale Locale) []SportTypeOption {
	seen := make(map[string]struct{})
	result := []SportTypeOption{}
	for _, a := range t.rows {
		if _, ok := seen[a.SportType]; ok {
			continue
		}
		seen[a.SportType] = struct{}{}
		result = append(result, SportTypeOption{Value: a.SportType, Label: locale.SportLabel(a.SportType)})
	}
	return result
}
