package stats

import (
	"testing"
	"time"
)

var testLocale = Locale{
	Weekdays: map[string]string{
		"Monday":    "Segunda-feira",
		"Tuesday":   "Terça-feira",
		"Wednesday": "Quarta-feira",
		"Thursday":  "Quinta-feira",
		"Friday":    "Sexta-feira",
		"Saturday":  "Sábado",
		"Sunday":    "Domingo",
	},
	SportTypes: map[string]string{
		"Run":  "Corrida",
		"Ride": "Ciclismo",
		"Swim": "Natação",
	},
	WeekLabel: "Semana %d",
}

var testNow = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

func TestCalculateGeneral_SingleRun(t *testing.T) {
	table := mustNormalize(t, activityRecord(1, "Run", "Run", "2025-03-10T07:00:00Z", 5000, 1800, 50))

	got := CalculateGeneral(table, testLocale, testNow, time.UTC)

	if got.TotalActivities != 1 {
		t.Errorf("expected 1 activity, got %d", got.TotalActivities)
	}
	if got.TotalDistance != "5.0" {
		t.Errorf("expected total distance '5.0', got %q", got.TotalDistance)
	}
	if got.TotalTime != "00:30:00" {
		t.Errorf("expected total time '00:30:00', got %q", got.TotalTime)
	}
	if got.TotalElevation != "50.0" {
		t.Errorf("expected total elevation '50.0', got %q", got.TotalElevation)
	}
	// 31 + 28 + 15
	if got.ActivityDays != "1/74" {
		t.Errorf("expected activity days '1/74', got %q", got.ActivityDays)
	}
	if got.BestWeekDay != "Segunda-feira" {
		t.Errorf("expected best week day 'Segunda-feira', got %q", got.BestWeekDay)
	}
	if got.BestActiveHour != "7:00" {
		t.Errorf("expected best active hour '7:00', got %q", got.BestActiveHour)
	}
	if got.AvgActivityTime != "00:30:00" {
		t.Errorf("expected avg time '00:30:00', got %q", got.AvgActivityTime)
	}
}

func TestCalculateGeneral_Totals(t *testing.T) {
	table := mustNormalize(t,
		activityRecord(1, "a", "Run", "2025-03-10T07:00:00Z", 5000, 1800, 50),
		activityRecord(2, "b", "Ride", "2025-03-10T18:00:00Z", 20000, 3600, 120.4),
		activityRecord(3, "c", "Swim", "2025-03-11T06:00:00Z", 1500, 2700, 0),
	)

	got := CalculateGeneral(table, testLocale, testNow, time.UTC)

	if got.TotalActivities != 3 {
		t.Errorf("expected 3 activities, got %d", got.TotalActivities)
	}
	if got.TotalTimeSeconds != 8100 {
		t.Errorf("expected 8100 seconds, got %d", got.TotalTimeSeconds)
	}
	if got.TotalTime != "02:15:00" {
		t.Errorf("expected '02:15:00', got %q", got.TotalTime)
	}
	if got.TotalDistance != "26.5" {
		t.Errorf("expected '26.5', got %q", got.TotalDistance)
	}
	if got.TotalElevation != "170.4" {
		t.Errorf("expected '170.4', got %q", got.TotalElevation)
	}
	if got.ActivityDaysCount != 2 {
		t.Errorf("expected 2 distinct days, got %d", got.ActivityDaysCount)
	}
	if got.AvgActivityTime != "00:45:00" {
		t.Errorf("expected avg '00:45:00', got %q", got.AvgActivityTime)
	}
	if got.ActivityDaysCount > got.DaysInYear {
		t.Errorf("activity days %d exceed days in year %d", got.ActivityDaysCount, got.DaysInYear)
	}
}

func TestCalculateGeneral_TieBreaks(t *testing.T) {
	tests := []struct {
		name     string
		records  []Record
		wantDay  string
		wantHour string
	}{
		{
			name: "monday beats wednesday",
			records: []Record{
				activityRecord(1, "w", "Run", "2025-03-12T18:00:00Z", 1000, 60, 0),
				activityRecord(2, "m", "Run", "2025-03-10T09:00:00Z", 1000, 60, 0),
			},
			wantDay:  "Segunda-feira",
			wantHour: "9:00",
		},
		{
			name: "saturday beats sunday",
			records: []Record{
				activityRecord(1, "sun", "Run", "2025-03-09T07:00:00Z", 1000, 60, 0),
				activityRecord(2, "sat", "Run", "2025-03-08T18:00:00Z", 1000, 60, 0),
			},
			wantDay:  "Sábado",
			wantHour: "7:00",
		},
		{
			name: "majority wins over order",
			records: []Record{
				activityRecord(1, "m", "Run", "2025-03-10T05:00:00Z", 1000, 60, 0),
				activityRecord(2, "f1", "Run", "2025-03-14T17:00:00Z", 1000, 60, 0),
				activityRecord(3, "f2", "Run", "2025-03-07T17:00:00Z", 1000, 60, 0),
			},
			wantDay:  "Sexta-feira",
			wantHour: "17:00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateGeneral(mustNormalize(t, tt.records...), testLocale, testNow, time.UTC)
			if got.BestWeekDay != tt.wantDay {
				t.Errorf("expected best day %q, got %q", tt.wantDay, got.BestWeekDay)
			}
			if got.BestActiveHour != tt.wantHour {
				t.Errorf("expected best hour %q, got %q", tt.wantHour, got.BestActiveHour)
			}
		})
	}
}

func TestCalculateGeneral_Empty(t *testing.T) {
	got := CalculateGeneral(Table{}, testLocale, testNow, time.UTC)
	if !got.IsEmpty() {
		t.Errorf("expected empty statistics, got %+v", got)
	}
	if got != (GeneralStatistics{}) {
		t.Errorf("expected zero value, got %+v", got)
	}
}

func TestDaysElapsedInYear(t *testing.T) {
	brt := time.FixedZone("BRT", -3*3600)

	tests := []struct {
		name string
		now  time.Time
		loc  *time.Location
		want int
	}{
		{"first day", time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC), time.UTC, 1},
		{"mid march", testNow, time.UTC, 74},
		{"leap year end", time.Date(2024, 12, 31, 12, 0, 0, 0, time.UTC), time.UTC, 366},
		{"reference zone still in last year", time.Date(2025, 1, 1, 2, 0, 0, 0, time.UTC), brt, 366},
		{"nil location", testNow, nil, 74},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DaysElapsedInYear(tt.now, tt.loc); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}
