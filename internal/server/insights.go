package server

import (
	"fmt"
	"math"
	"strconv"

	"github.com/joshdurbin/strava-dashboard/internal/stats"
)

// Insight represents a single human-readable observation about the data
type Insight struct {
	Type    string `json:"type"`    // e.g., "trend", "achievement", "warning", "suggestion"
	Message string `json:"message"` // Human-readable insight
}

// SuggestedAction represents a suggested next tool call
type SuggestedAction struct {
	Tool        string `json:"tool"`        // Tool name to call
	Description string `json:"description"` // Why this action is suggested
	Priority    string `json:"priority"`    // "high", "medium", "low"
}

// InsightGenerator provides methods for generating insights from reports
type InsightGenerator struct{}

// NewInsightGenerator creates a new insight generator
func NewInsightGenerator() *InsightGenerator {
	return &InsightGenerator{}
}

// GenerateGeneralInsights looks at consistency and habits for the year
func (g *InsightGenerator) GenerateGeneralInsights(general stats.GeneralStatistics) []Insight {
	if general.IsEmpty() {
		return []Insight{{
			Type:    "suggestion",
			Message: "No activities recorded yet this season",
		}}
	}

	var insights []Insight

	if general.DaysInYear > 0 {
		ratio := float64(general.ActivityDaysCount) / float64(general.DaysInYear) * 100
		switch {
		case ratio >= 50:
			insights = append(insights, Insight{
				Type:    "achievement",
				Message: fmt.Sprintf("Active on %.0f%% of the days so far this year", ratio),
			})
		case ratio < 20:
			insights = append(insights, Insight{
				Type:    "suggestion",
				Message: fmt.Sprintf("Active on only %.0f%% of the days so far this year", ratio),
			})
		}
	}

	insights = append(insights, Insight{
		Type:    "trend",
		Message: fmt.Sprintf("Most activities happen on %s around %s", general.BestWeekDay, general.BestActiveHour),
	})

	return insights
}

// GenerateMonthlyInsights compares the two most recent months
func (g *InsightGenerator) GenerateMonthlyInsights(monthly []stats.MonthlyStatistic) []Insight {
	if len(monthly) < 2 {
		return nil
	}
	prev, last := monthly[len(monthly)-2], monthly[len(monthly)-1]

	prevKm, _ := strconv.ParseFloat(prev.TotalDistance, 64)
	lastKm, _ := strconv.ParseFloat(last.TotalDistance, 64)

	return g.GenerateComparisonInsights(prev.Activities, last.Activities, prevKm, lastKm)
}

// GenerateWeeklyInsights reports the run of consecutive active weeks ending
// with the most recent one
func (g *InsightGenerator) GenerateWeeklyInsights(weekly []stats.WeeklyStatistic) []Insight {
	if len(weekly) == 0 {
		return nil
	}

	streak := 1
	for i := len(weekly) - 1; i > 0; i-- {
		if weekly[i].WeekNumber-weekly[i-1].WeekNumber != 1 {
			break
		}
		streak++
	}

	if streak < 3 {
		return nil
	}
	return []Insight{{
		Type:    "achievement",
		Message: fmt.Sprintf("%d consecutive active weeks", streak),
	}}
}

// GenerateComparisonInsights generates insights from period comparisons
func (g *InsightGenerator) GenerateComparisonInsights(
	p1Activities, p2Activities int,
	p1Distance, p2Distance float64,
) []Insight {
	var insights []Insight

	if p1Activities > 0 {
		activityChange := float64(p2Activities-p1Activities) / float64(p1Activities) * 100
		if activityChange > 20 {
			insights = append(insights, Insight{
				Type:    "achievement",
				Message: fmt.Sprintf("Activity frequency increased by %.0f%%", activityChange),
			})
		} else if activityChange < -20 {
			insights = append(insights, Insight{
				Type:    "warning",
				Message: fmt.Sprintf("Activity frequency decreased by %.0f%%", math.Abs(activityChange)),
			})
		}
	}

	if p1Distance > 0 {
		distanceChange := (p2Distance - p1Distance) / p1Distance * 100
		if distanceChange > 15 {
			insights = append(insights, Insight{
				Type:    "achievement",
				Message: fmt.Sprintf("Total distance increased by %.0f%%", distanceChange),
			})
		} else if distanceChange < -15 {
			insights = append(insights, Insight{
				Type:    "trend",
				Message: fmt.Sprintf("Total distance decreased by %.0f%%", math.Abs(distanceChange)),
			})
		}
	}

	return insights
}

// SuggestNextActions suggests logical next tool calls based on context
func SuggestNextActions(context string) []SuggestedAction {
	suggestions := make([]SuggestedAction, 0)

	switch context {
	case "general":
		suggestions = append(suggestions,
			SuggestedAction{
				Tool:        "get_monthly_statistics",
				Description: "See how the totals split across months",
				Priority:    "high",
			},
			SuggestedAction{
				Tool:        "get_sport_type_statistics",
				Description: "Break the totals down by sport",
				Priority:    "medium",
			},
		)
	case "monthly":
		suggestions = append(suggestions,
			SuggestedAction{
				Tool:        "get_weekly_statistics",
				Description: "Drill into the weeks of the current year",
				Priority:    "medium",
			},
			SuggestedAction{
				Tool:        "filter_activities",
				Description: "List the activities of a specific month",
				Priority:    "low",
			},
		)
	case "sport_types":
		suggestions = append(suggestions,
			SuggestedAction{
				Tool:        "filter_activities",
				Description: "List the activities of one sport",
				Priority:    "medium",
			},
		)
	case "weekly":
		suggestions = append(suggestions,
			SuggestedAction{
				Tool:        "filter_activities",
				Description: "List the activities of a specific week",
				Priority:    "medium",
			},
			SuggestedAction{
				Tool:        "get_general_statistics",
				Description: "Review the totals for the year",
				Priority:    "low",
			},
		)
	case "activities":
		suggestions = append(suggestions,
			SuggestedAction{
				Tool:        "get_general_statistics",
				Description: "Get aggregate stats for these activities",
				Priority:    "medium",
			},
			SuggestedAction{
				Tool:        "list_sport_types",
				Description: "See which sports can be filtered on",
				Priority:    "low",
			},
		)
	}

	return suggestions
}
