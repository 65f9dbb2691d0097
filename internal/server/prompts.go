package server

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/joshdurbin/strava-dashboard/internal/logging"
)

// registerPrompts registers all MCP prompts for the server
func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(&mcp.Prompt{
		Name:        "weekly_review",
		Description: "Review one week of training against the rest of the year",
		Arguments: []*mcp.PromptArgument{
			{
				Name:        "week",
				Description: "ISO week number to review (1-53). Leave empty for the most recent active week.",
				Required:    false,
			},
		},
	}, s.weeklyReviewPrompt)

	s.mcp.AddPrompt(&mcp.Prompt{
		Name:        "season_overview",
		Description: "Summarize the season so far with monthly trends and sport breakdown",
		Arguments: []*mcp.PromptArgument{
			{
				Name:        "sport_type",
				Description: "Sport type key to focus on (e.g., 'Run', 'Ride'). Leave empty for all sports.",
				Required:    false,
			},
		},
	}, s.seasonOverviewPrompt)

	logging.Debug("MCP prompts registered", "count", 2)
}

func promptArg(req *mcp.GetPromptRequest, name string) string {
	if req.Params == nil || req.Params.Arguments == nil {
		return ""
	}
	return req.Params.Arguments[name]
}

func userPrompt(description, text string) *mcp.GetPromptResult {
	return &mcp.GetPromptResult{
		Description: description,
		Messages: []*mcp.PromptMessage{
			{
				Role:    "user",
				Content: &mcp.TextContent{Text: text},
			},
		},
	}
}

// weeklyReviewPrompt generates a prompt reviewing a single week
func (s *Server) weeklyReviewPrompt(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	week := promptArg(req, "week")
	logging.Info("MCP prompt requested", "prompt", "weekly_review", "week", week)

	target := "the most recent week with activity"
	filter := "the week number of that entry"
	if week != "" {
		target = "week " + week
		filter = "week=" + week
	}

	promptText := fmt.Sprintf(`Please review my training for %s.

Use the following tools to gather data:
1. **get_weekly_statistics** to see every active week of the year
2. **filter_activities** with %s to list the week's activities

Then provide:
- **Summary**: Activities, total time and total distance for the week
- **Context**: How the week compares with the other weeks of the year
- **Recommendations**: Suggestions for the coming week

Please be specific with numbers and use the actual data from the tools.`, target, filter)

	return userPrompt("Weekly training review prompt", promptText), nil
}

// seasonOverviewPrompt generates a prompt summarizing the season
func (s *Server) seasonOverviewPrompt(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	sport := promptArg(req, "sport_type")
	logging.Info("MCP prompt requested", "prompt", "season_overview", "sport_type", sport)

	focus := "all my sports"
	step := "3. **get_sport_type_statistics** to break the season down by sport"
	if sport != "" {
		focus = sport
		step = fmt.Sprintf("3. **filter_activities** with sport_type=%q to list those activities", sport)
	}

	promptText := fmt.Sprintf(`Please give me an overview of my season so far, focusing on %s.

Use the following tools to gather data:
1. **get_general_statistics** for the season totals and habits
2. **get_monthly_statistics** for the month by month evolution
%s

Then provide:
- **Totals**: Activities, time, distance and elevation
- **Consistency**: Active days against days elapsed this year
- **Trend**: Whether volume is growing or dropping month to month

Please be specific with numbers and use the actual data from the tools.`, focus, step)

	return userPrompt("Season overview prompt", promptText), nil
}
