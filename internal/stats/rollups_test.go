package stats

import (
	"testing"
	"time"
)

func TestCalculateMonthly(t *testing.T) {
	table := mustNormalize(t,
		activityRecord(1, "c", "Run", "2025-03-10T07:00:00Z", 5000, 1800, 0),
		activityRecord(2, "a", "Run", "2025-01-05T07:00:00Z", 10000, 3600, 0),
		activityRecord(3, "b", "Ride", "2025-01-20T07:00:00Z", 20000, 3600, 0),
	)

	got := CalculateMonthly(table)
	if len(got) != 2 {
		t.Fatalf("expected 2 months, got %d", len(got))
	}

	if got[0].Month != "2025-01" || got[1].Month != "2025-03" {
		t.Errorf("expected ascending months, got %q, %q", got[0].Month, got[1].Month)
	}
	if got[0].MonthNumber != 1 || got[1].MonthNumber != 3 {
		t.Errorf("unexpected month numbers %d, %d", got[0].MonthNumber, got[1].MonthNumber)
	}
	if got[0].Activities != 2 {
		t.Errorf("expected 2 activities in January, got %d", got[0].Activities)
	}
	if got[0].TotalTime != "02:00:00" {
		t.Errorf("expected '02:00:00', got %q", got[0].TotalTime)
	}
	if got[0].TotalDistance != "30.0" {
		t.Errorf("expected '30.0', got %q", got[0].TotalDistance)
	}

	total := 0
	for _, m := range got {
		total += m.Activities
	}
	if total != table.Len() {
		t.Errorf("monthly counts sum to %d, want %d", total, table.Len())
	}
}

func TestCalculateSportTypes(t *testing.T) {
	table := mustNormalize(t,
		activityRecord(1, "r1", "Run", "2025-03-10T07:00:00Z", 5000, 1800, 50),
		activityRecord(2, "w", "Walk", "2025-03-11T07:00:00Z", 3000, 2400, 10),
		activityRecord(3, "r2", "Run", "2025-03-12T07:00:00Z", 7000, 2400, 30.25),
	)

	got := CalculateSportTypes(table, testLocale)
	if len(got) != 2 {
		t.Fatalf("expected 2 sport types, got %d", len(got))
	}

	run := got[0]
	if run.SportTypeKey != "Run" || run.SportType != "Corrida" {
		t.Errorf("unexpected first bucket %+v", run)
	}
	if run.Count != 2 {
		t.Errorf("expected 2 runs, got %d", run.Count)
	}
	if run.ElapsedTime != "01:10:00" {
		t.Errorf("expected '01:10:00', got %q", run.ElapsedTime)
	}
	if run.Distance != "12.0" {
		t.Errorf("expected '12.0', got %q", run.Distance)
	}
	// 80.25 ties to even
	if run.Elevation != "80.2" {
		t.Errorf("expected elevation '80.2', got %q", run.Elevation)
	}

	// no translation configured
	if got[1].SportType != "Walk" {
		t.Errorf("expected raw key label 'Walk', got %q", got[1].SportType)
	}

	total := 0
	for _, st := range got {
		total += st.Count
	}
	general := CalculateGeneral(table, testLocale, testNow, time.UTC)
	if total != general.TotalActivities {
		t.Errorf("sport type counts sum to %d, want %d", total, general.TotalActivities)
	}
}

func TestWeeksOfYear(t *testing.T) {
	tests := []struct {
		year      int
		wantCount int
		wantFirst time.Time
		wantLast  time.Time
	}{
		{2025, 52, time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC), time.Date(2025, 12, 29, 0, 0, 0, 0, time.UTC)},
		// January 1st 2024 is a Monday
		{2024, 53, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		weeks := WeeksOfYear(tt.year)
		if len(weeks) != tt.wantCount {
			t.Errorf("%d: expected %d weeks, got %d", tt.year, tt.wantCount, len(weeks))
			continue
		}
		if !weeks[0].Start.Equal(tt.wantFirst) {
			t.Errorf("%d: expected first week to start %v, got %v", tt.year, tt.wantFirst, weeks[0].Start)
		}
		last := weeks[len(weeks)-1]
		if !last.Start.Equal(tt.wantLast) {
			t.Errorf("%d: expected last week to start %v, got %v", tt.year, tt.wantLast, last.Start)
		}

		for i, w := range weeks {
			if w.Number != i+1 {
				t.Errorf("%d: week %d has number %d", tt.year, i, w.Number)
			}
			if w.Start.Weekday() != time.Monday || w.End.Weekday() != time.Sunday {
				t.Errorf("%d: week %d spans %v..%v", tt.year, w.Number, w.Start.Weekday(), w.End.Weekday())
			}
			if i > 0 && !w.Start.Equal(weeks[i-1].Start.AddDate(0, 0, 7)) {
				t.Errorf("%d: week %d is not contiguous", tt.year, w.Number)
			}
		}
	}
}

func TestWeekRange_Contains(t *testing.T) {
	w := WeeksOfYear(2025)[9]

	if !w.Contains(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)) {
		t.Error("expected Monday midnight to be inside")
	}
	if !w.Contains(time.Date(2025, 3, 16, 23, 59, 59, 0, time.UTC)) {
		t.Error("expected Sunday 23:59:59 to be inside")
	}
	if w.Contains(time.Date(2025, 3, 17, 0, 0, 0, 0, time.UTC)) {
		t.Error("expected next Monday to be outside")
	}
}

func TestCalculateWeekly(t *testing.T) {
	table := mustNormalize(t,
		// before the first Monday of 2025
		activityRecord(1, "early", "Run", "2025-01-02T07:00:00Z", 1000, 600, 0),
		activityRecord(2, "w10a", "Run", "2025-03-10T07:00:00Z", 5000, 1800, 0),
		activityRecord(3, "w10b", "Run", "2025-03-16T20:00:00Z", 5000, 1800, 0),
		activityRecord(4, "w1", "Ride", "2025-01-06T07:00:00Z", 20000, 3600, 0),
	)

	got := CalculateWeekly(table, testLocale, testNow, time.UTC)
	if len(got) != 2 {
		t.Fatalf("expected 2 non-empty weeks, got %d: %+v", len(got), got)
	}

	if got[0].WeekNumber != 1 || got[0].Week != "Semana 1" {
		t.Errorf("unexpected first week %+v", got[0])
	}
	if got[0].StartDate != "2025-01-06" || got[0].EndDate != "2025-01-12" {
		t.Errorf("unexpected first week range %s..%s", got[0].StartDate, got[0].EndDate)
	}

	w := got[1]
	if w.WeekNumber != 10 {
		t.Errorf("expected week 10, got %d", w.WeekNumber)
	}
	if w.Activities != 2 {
		t.Errorf("expected 2 activities, got %d", w.Activities)
	}
	if w.TotalTime != "01:00:00" || w.TotalDistance != "10.0" {
		t.Errorf("unexpected totals %q / %q", w.TotalTime, w.TotalDistance)
	}
}

func TestCalculateWeekly_OtherYearIgnored(t *testing.T) {
	table := mustNormalize(t, activityRecord(1, "a", "Run", "2025-03-10T07:00:00Z", 5000, 1800, 0))

	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	if got := CalculateWeekly(table, testLocale, now, time.UTC); len(got) != 0 {
		t.Errorf("expected no weeks for a different year, got %+v", got)
	}
}

func TestRollups_Empty(t *testing.T) {
	if got := CalculateMonthly(Table{}); got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil monthly, got %#v", got)
	}
	if got := CalculateSportTypes(Table{}, testLocale); got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil sport types, got %#v", got)
	}
	if got := CalculateWeekly(Table{}, testLocale, testNow, time.UTC); got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil weekly, got %#v", got)
	}
}
