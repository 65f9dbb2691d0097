package stats

import (
	"fmt"
	"time"
)

// GeneralStatistics summarizes every activity in the table
type GeneralStatistics struct {
	TotalActivities   int     `json:"total_activities"`
	TotalTime         string  `json:"total_time"`
	TotalTimeSeconds  int64   `json:"total_time_seconds"`
	TotalDistance     string  `json:"total_distance"`
	TotalDistanceRaw  float64 `json:"total_distance_raw"`
	TotalElevation    string  `json:"total_elevation"`
	TotalElevationRaw float64 `json:"total_elevation_raw"`
	ActivityDays      string  `json:"activity_days"`
	ActivityDaysCount int     `json:"activity_days_count"`
	DaysInYear        int     `json:"days_in_year"`
	BestWeekDay       string  `json:"best_week_day"`
	BestActiveHour    string  `json:"best_active_hour"`
	AvgActivityTime   string  `json:"avg_activity_time"`
}

// IsEmpty reports whether the statistics were computed from an empty table
func (g GeneralStatistics) IsEmpty() bool {
	return g.TotalActivities == 0
}

// DaysElapsedInYear counts the days from January 1st through today,
// inclusive, with "today" taken in loc
func DaysElapsedInYear(now time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.UTC
	}
	return now.In(loc).YearDay()
}

// CalculateGeneral computes the totals block of the dashboard. An empty
// table yields the zero GeneralStatistics.
func CalculateGeneral(t Table, locale Locale, now time.Time, loc *time.Location) GeneralStatistics {
	if t.Empty() {
		return GeneralStatistics{}
	}

	var (
		totalSeconds   int64
		totalDistance  float64
		totalElevation float64
		days           = make(map[string]struct{})
		weekdayCounts  [7]int
		hourCounts     [24]int
	)

	for _, a := range t.rows {
		totalSeconds += a.ElapsedTime
		totalDistance += a.Distance
		totalElevation += a.TotalElevationGain

		local := a.StartDateLocal
		days[local.Format(isoDateLayout)] = struct{}{}
		weekdayCounts[local.Weekday()]++
		hourCounts[local.Hour()]++
	}

	distanceKm := round(metersToKm(totalDistance), 1)
	elevation := round(totalElevation, 1)
	daysInYear := DaysElapsedInYear(now, loc)
	avgSeconds := float64(totalSeconds) / float64(t.Len())

	return GeneralStatistics{
		TotalActivities:   t.Len(),
		TotalTime:         FormatTime(float64(totalSeconds)),
		TotalTimeSeconds:  totalSeconds,
		TotalDistance:     formatFixed(distanceKm, 1),
		TotalDistanceRaw:  distanceKm,
		TotalElevation:    formatFixed(elevation, 1),
		TotalElevationRaw: elevation,
		ActivityDays:      fmt.Sprintf("%d/%d", len(days), daysInYear),
		ActivityDaysCount: len(days),
		DaysInYear:        daysInYear,
		BestWeekDay:       locale.WeekdayLabel(modeWeekday(weekdayCounts)),
		BestActiveHour:    fmt.Sprintf("%d:00", modeHour(hourCounts)),
		AvgActivityTime:   FormatTime(avgSeconds),
	}
}

// weekdayOrder is the canonical tie-break order, Monday first
var weekdayOrder = [7]time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
	time.Friday, time.Saturday, time.Sunday,
}

// modeWeekday returns the most frequent weekday; ties go to the earliest
// day of the week, Monday first
func modeWeekday(counts [7]int) time.Weekday {
	best := weekdayOrder[0]
	for _, d := range weekdayOrder[1:] {
		if counts[d] > counts[best] {
			best = d
		}
	}
	return best
}

// modeHour returns the most frequent hour; ties go to the smallest hour
func modeHour(counts [24]int) int {
	best := 0
	for h := 1; h < len(counts); h++ {
		if counts[h] > counts[best] {
			best = h
		}
	}
	return best
}
