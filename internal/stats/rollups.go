package stats

import (
	"sort"
	"time"
)

// MonthlyStatistic is one (year, month) bucket
type MonthlyStatistic struct {
	Month         string `json:"month"` // YYYY-MM
	MonthNumber   int    `json:"month_number"`
	Activities    int    `json:"activities"`
	TotalTime     string `json:"total_time"`
	TotalDistance string `json:"total_distance"`
}

// SportTypeStatistic is one sport_type bucket
type SportTypeStatistic struct {
	SportType    string `json:"sport_type"` // translated label
	SportTypeKey string `json:"sport_type_key"`
	Count        int    `json:"count"`
	ElapsedTime  string `json:"elapsed_time"`
	Distance     string `json:"distance"`
	Elevation    string `json:"elevation"`
}

// WeeklyStatistic is one non-empty week of the current year
type WeeklyStatistic struct {
	Week          string `json:"week"`
	WeekNumber    int    `json:"week_number"`
	StartDate     string `json:"start_date"` // YYYY-MM-DD
	EndDate       string `json:"end_date"`
	Activities    int    `json:"activities"`
	TotalTime     string `json:"total_time"`
	TotalDistance string `json:"total_distance"`
}

type bucket struct {
	count     int
	seconds   int64
	distance  float64
	elevation float64
}

func (b *bucket) add(a Activity) {
	b.count++
	b.seconds += a.ElapsedTime
	b.distance += a.Distance
	b.elevation += a.TotalElevationGain
}

// groupBy builds the bucket for every distinct key in a single pass
func groupBy(rows []Activity, key func(Activity) string) map[string]*bucket {
	groups := make(map[string]*bucket)
	for _, a := range rows {
		k := key(a)
		b, ok := groups[k]
		if !ok {
			b = &bucket{}
			groups[k] = b
		}
		b.add(a)
	}
	return groups
}

func sortedKeys(groups map[string]*bucket) []string {
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CalculateMonthly groups activities by the year and month of
// start_date_local, in ascending order. Months without activities are absent.
func CalculateMonthly(t Table) []MonthlyStatistic {
	if t.Empty() {
		return []MonthlyStatistic{}
	}

	monthNumbers := make(map[string]int)
	groups := groupBy(t.rows, func(a Activity) string {
		key := a.StartDateLocal.Format(monthLayout)
		monthNumbers[key] = int(a.StartDateLocal.Month())
		return key
	})

	result := make([]MonthlyStatistic, 0, len(groups))
	for _, month := range sortedKeys(groups) {
		b := groups[month]
		result = append(result, MonthlyStatistic{
			Month:         month,
			MonthNumber:   monthNumbers[month],
			Activities:    b.count,
			TotalTime:     FormatTime(float64(b.seconds)),
			TotalDistance: formatFixed(round(metersToKm(b.distance), 1), 1),
		})
	}
	return result
}

// CalculateSportTypes groups activities by sport_type, ordered by key
func CalculateSportTypes(t Table, locale Locale) []SportTypeStatistic {
	if t.Empty() {
		return []SportTypeStatistic{}
	}

	groups := groupBy(t.rows, func(a Activity) string {
		return a.SportType
	})

	result := make([]SportTypeStatistic, 0, len(groups))
	for _, key := range sortedKeys(groups) {
		b := groups[key]
		result = append(result, SportTypeStatistic{
			SportType:    locale.SportLabel(key),
			SportTypeKey: key,
			Count:        b.count,
			ElapsedTime:  FormatTime(float64(b.seconds)),
			Distance:     formatFixed(round(metersToKm(b.distance), 1), 1),
			Elevation:    formatFixed(round(b.elevation, 1), 1),
		})
	}
	return result
}

// WeekRange is one numbered week of a year
type WeekRange struct {
	Number int
	Start  time.Time // 00:00:00 UTC on the Monday
	End    time.Time // 23:59:59 UTC on the Sunday
}

// WeeksOfYear lists the weeks of year. Week 1 starts on the first Monday on
// or after January 1st; weeks keep coming while their Monday is in year.
func WeeksOfYear(year int) []WeekRange {
	d := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(time.Monday) - int(d.Weekday()) + 7) % 7
	d = d.AddDate(0, 0, offset)

	var weeks []WeekRange
	for n := 1; d.Year() == year; n++ {
		end := d.AddDate(0, 0, 6)
		weeks = append(weeks, WeekRange{
			Number: n,
			Start:  d,
			End:    time.Date(end.Year(), end.Month(), end.Day(), 23, 59, 59, 0, time.UTC),
		})
		d = d.AddDate(0, 0, 7)
	}
	return weeks
}

// Contains reports whether ts falls inside the week, bounds inclusive
func (w WeekRange) Contains(ts time.Time) bool {
	return !ts.Before(w.Start) && !ts.After(w.End)
}

// CalculateWeekly buckets activities into the weeks of the year that now
// falls in (read in loc). Weeks without activities are omitted.
func CalculateWeekly(t Table, locale Locale, now time.Time, loc *time.Location) []WeeklyStatistic {
	if t.Empty() {
		return []WeeklyStatistic{}
	}
	if loc == nil {
		loc = time.UTC
	}

	weeks := WeeksOfYear(now.In(loc).Year())
	if len(weeks) == 0 {
		return []WeeklyStatistic{}
	}

	// weeks are contiguous, so each activity maps to at most one index
	first := weeks[0].Start
	buckets := make([]bucket, len(weeks))
	for _, a := range t.rows {
		ts := a.StartDateLocal
		if ts.Before(first) {
			continue
		}
		idx := int(ts.Sub(first) / (7 * 24 * time.Hour))
		if idx >= len(weeks) || !weeks[idx].Contains(ts) {
			continue
		}
		buckets[idx].add(a)
	}

	result := []WeeklyStatistic{}
	for i, w := range weeks {
		b := buckets[i]
		if b.count == 0 {
			continue
		}
		result = append(result, WeeklyStatistic{
			Week:          locale.WeekName(w.Number),
			WeekNumber:    w.Number,
			StartDate:     w.Start.Format(isoDateLayout),
			EndDate:       w.End.Format(isoDateLayout),
			Activities:    b.count,
			TotalTime:     FormatTime(float64(b.seconds)),
			TotalDistance: formatFixed(metersToKm(b.distance), 1),
		})
	}
	return result
}
