package stats

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// FormatTime renders a duration in seconds as HH:MM:SS. Hours keep growing
// past 24 and fractional seconds are truncated.
func FormatTime(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int64(seconds)
	hours := total / 3600
	minutes := (total % 3600) / 60
	secs := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, secs)
}

// round rounds to the given number of decimals, ties to even
func round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.RoundToEven(v*p) / p
}

func formatFixed(v float64, decimals int) string {
	return strconv.FormatFloat(v, 'f', decimals, 64)
}

func metersToKm(m float64) float64 {
	return m / 1000
}

// Display layouts used by the listings
const (
	dateLayout     = "02/01/2006"
	timeLayout     = "15:04"
	dateTimeLayout = "02/01/2006 15:04"
	isoDateLayout  = "2006-01-02"
	monthLayout    = "2006-01"
)

// Locale holds the translation tables consumed by the calculators
type Locale struct {
	// Weekdays maps English weekday names (time.Weekday.String) to labels
	Weekdays map[string]string
	// SportTypes maps Strava sport_type keys to labels
	SportTypes map[string]string
	// WeekLabel is a fmt pattern receiving the 1-based week number
	WeekLabel string
}

// SportLabel translates a sport type, falling back to the raw key
func (l Locale) SportLabel(key string) string {
	if label, ok := l.SportTypes[key]; ok && label != "" {
		return label
	}
	return key
}

// WeekdayLabel translates a weekday, falling back to its English name
func (l Locale) WeekdayLabel(d time.Weekday) string {
	name := d.String()
	if label, ok := l.Weekdays[name]; ok && label != "" {
		return label
	}
	return name
}

// WeekName renders the label of a numbered week
func (l Locale) WeekName(n int) string {
	if l.WeekLabel == "" {
		return fmt.Sprintf("Week %d", n)
	}
	return fmt.Sprintf(l.WeekLabel, n)
}
