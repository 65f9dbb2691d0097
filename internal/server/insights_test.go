package server

import (
	"testing"

	"github.com/joshdurbin/strava-dashboard/internal/stats"
)

func TestGenerateGeneralInsights(t *testing.T) {
	t.Parallel()
	g := NewInsightGenerator()

	empty := g.GenerateGeneralInsights(stats.GeneralStatistics{})
	if len(empty) != 1 || empty[0].Type != "suggestion" {
		t.Errorf("expected a single suggestion for no activities, got %+v", empty)
	}

	consistent := g.GenerateGeneralInsights(stats.GeneralStatistics{
		TotalActivities:   60,
		ActivityDaysCount: 50,
		DaysInYear:        74,
		BestWeekDay:       "Segunda",
		BestActiveHour:    "6:00",
	})
	if len(consistent) != 2 || consistent[0].Type != "achievement" {
		t.Errorf("expected achievement plus habit, got %+v", consistent)
	}
	if consistent[1].Message != "Most activities happen on Segunda around 6:00" {
		t.Errorf("unexpected habit message %q", consistent[1].Message)
	}
}

func TestGenerateMonthlyInsights(t *testing.T) {
	t.Parallel()
	g := NewInsightGenerator()

	if got := g.GenerateMonthlyInsights([]stats.MonthlyStatistic{{Month: "2025-01"}}); got != nil {
		t.Errorf("expected no insights for a single month, got %+v", got)
	}

	got := g.GenerateMonthlyInsights([]stats.MonthlyStatistic{
		{Month: "2025-01", Activities: 10, TotalDistance: "100.0"},
		{Month: "2025-02", Activities: 5, TotalDistance: "130.0"},
	})
	if len(got) != 2 {
		t.Fatalf("expected 2 insights, got %+v", got)
	}
	if got[0].Type != "warning" || got[1].Type != "achievement" {
		t.Errorf("unexpected insight types %+v", got)
	}
}

func TestGenerateWeeklyInsights(t *testing.T) {
	t.Parallel()
	g := NewInsightGenerator()

	weeks := func(numbers ...int) []stats.WeeklyStatistic {
		out := make([]stats.WeeklyStatistic, len(numbers))
		for i, n := range numbers {
			out[i] = stats.WeeklyStatistic{WeekNumber: n}
		}
		return out
	}

	if got := g.GenerateWeeklyInsights(weeks(1, 2)); got != nil {
		t.Errorf("short streak should not be reported, got %+v", got)
	}
	got := g.GenerateWeeklyInsights(weeks(1, 3, 4, 5, 6))
	if len(got) != 1 || got[0].Message != "4 consecutive active weeks" {
		t.Errorf("unexpected streak insight %+v", got)
	}
}

func TestSuggestNextActions(t *testing.T) {
	t.Parallel()

	for _, ctx := range []string{"general", "monthly", "sport_types", "weekly", "activities"} {
		if len(SuggestNextActions(ctx)) == 0 {
			t.Errorf("expected suggestions for %s", ctx)
		}
	}
	if got := SuggestNextActions("unknown"); len(got) != 0 {
		t.Errorf("expected no suggestions, got %+v", got)
	}
}
