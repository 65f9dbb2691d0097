package server

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/joshdurbin/strava-dashboard/internal/auth"
	"github.com/joshdurbin/strava-dashboard/internal/logging"
	"github.com/joshdurbin/strava-dashboard/internal/metrics"
	"github.com/joshdurbin/strava-dashboard/internal/stats"
)

const (
	serverName    = "strava-dashboard"
	serverVersion = "1.0.0"

	defaultPageSize = 50
)

// ptr returns a pointer to the given value - useful for optional fields in structs
func ptr[T any](v T) *T {
	return &v
}

// Provider builds the statistics of the authenticated athlete
type Provider interface {
	Stats(ctx context.Context) (*stats.Service, error)
	Athlete(ctx context.Context) (auth.Athlete, error)
	Invalidate(ctx context.Context) int
	LastRefresh(ctx context.Context) (time.Time, bool)
}

// Options configures a Server
type Options struct {
	PageSize int
	Metrics  *metrics.Manager
	// Gatherer is served on /metrics when set
	Gatherer prometheus.Gatherer
}

// Server exposes the dashboard reports as MCP tools and JSON endpoints
type Server struct {
	mcp      *mcp.Server
	provider Provider
	opts     Options
	insights *InsightGenerator
}

// MCPServer returns the underlying MCP server (for use with HTTP/SSE transport)
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// New creates a new server over provider
func New(provider Provider, opts Options) *Server {
	logging.Info("MCP server initializing", "name", serverName, "version", serverVersion)

	if opts.PageSize < 1 {
		opts.PageSize = defaultPageSize
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: serverVersion,
	}, nil)

	s := &Server{
		mcp:      mcpServer,
		provider: provider,
		opts:     opts,
		insights: NewInsightGenerator(),
	}

	logging.Debug("Registering MCP tools")
	s.registerTools()

	logging.Debug("Registering MCP resources")
	s.registerResources()

	logging.Debug("Registering MCP prompts")
	s.registerPrompts()

	logging.Info("MCP server initialized", "tools_registered", 7, "resources_registered", 3, "prompts_registered", 2)
	return s
}

func readOnlyAnnotations(title string) *mcp.ToolAnnotations {
	return &mcp.ToolAnnotations{
		Title:           title,
		ReadOnlyHint:    true,
		IdempotentHint:  true,
		OpenWorldHint:   ptr(true),
		DestructiveHint: ptr(false),
	}
}

func (s *Server) registerTools() {
	logging.Debug("Registering tool", "name", "get_general_statistics")
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: "get_general_statistics",
		Description: `Get the season totals: activity count, time, distance, elevation, active days, favourite weekday and hour.

Use when:
- User asks "How much have I trained this year?" or "How many days was I active?"
- User wants an overview before drilling into months, weeks or sports

Returns: Totals formatted for display plus raw values, active days over days elapsed this year, the most common weekday and hour, average activity time, and insights.`,
		Annotations: readOnlyAnnotations("Get General Statistics"),
	}, s.getGeneralStatistics)

	logging.Debug("Registering tool", "name", "get_monthly_statistics")
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: "get_monthly_statistics",
		Description: `Get activity count, time and distance per calendar month, oldest month first.

Use when:
- User asks "How did my training evolve month by month?"
- User wants to compare the latest month with the previous one

Returns: One entry per month (YYYY-MM) with activities, total time and total distance in km, plus insights.`,
		Annotations: readOnlyAnnotations("Get Monthly Statistics"),
	}, s.getMonthlyStatistics)

	logging.Debug("Registering tool", "name", "get_sport_type_statistics")
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: "get_sport_type_statistics",
		Description: `Get count, elapsed time, distance and elevation per sport type.

Use when:
- User asks "Which sport do I do most?" or "How far did I ride?"

Returns: One entry per sport type with its label and key, ordered by key.`,
		Annotations: readOnlyAnnotations("Get Sport Type Statistics"),
	}, s.getSportTypeStatistics)

	logging.Debug("Registering tool", "name", "get_weekly_statistics")
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: "get_weekly_statistics",
		Description: `Get activity count, time and distance for each week of the current year that had activity.

Weeks start on Monday. Week 1 starts on the Monday on or before January 1st.

Returns: Week label, week number, date range, activities, total time and total distance, plus insights.`,
		Annotations: readOnlyAnnotations("Get Weekly Statistics"),
	}, s.getWeeklyStatistics)

	logging.Debug("Registering tool", "name", "list_activities")
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: "list_activities",
		Description: `List activities newest first, one page at a time.

Parameters:
- page (integer): 1-based page number. Default: 1.
- per_page (integer): Activities per page. Default: the configured page size.

Returns: The page of activities plus current_page, total_pages, total_items, has_next and has_previous.

Example: {"page": 2, "per_page": 20}`,
		Annotations: readOnlyAnnotations("List Activities"),
	}, s.listActivities)

	logging.Debug("Registering tool", "name", "filter_activities")
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: "filter_activities",
		Description: `Filter activities by sport type, ISO week, month and name. Filters combine; omitted filters are not applied.

Parameters:
- sport_type (string): Exact sport type key (Run, Ride, WeightTraining, ...). Use list_sport_types for valid values.
- week (integer): ISO week number, 1-53.
- month (integer): Month number, 1-12.
- search (string): Case-insensitive substring of the activity name.

Returns: Matching activities in the order Strava delivered them.

Example: {"sport_type": "Run", "month": 3}`,
		Annotations: readOnlyAnnotations("Filter Activities"),
	}, s.filterActivities)

	logging.Debug("Registering tool", "name", "list_sport_types")
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_sport_types",
		Description: `List the sport types present in the activities, with their display labels, in first-seen order.`,
		Annotations: readOnlyAnnotations("List Sport Types"),
	}, s.listSportTypes)
}

// Tool input/output types

// NoInput is the input of tools without parameters
type NoInput struct{}

// GeneralStatisticsOutput - output for general statistics
type GeneralStatisticsOutput struct {
	Statistics       stats.GeneralStatistics `json:"statistics"`
	Insights         []Insight               `json:"insights,omitempty"`
	SuggestedActions []SuggestedAction       `json:"suggested_actions,omitempty"`
}

// MonthlyStatisticsOutput - output for monthly statistics
type MonthlyStatisticsOutput struct {
	Months           []stats.MonthlyStatistic `json:"months"`
	Insights         []Insight                `json:"insights,omitempty"`
	SuggestedActions []SuggestedAction        `json:"suggested_actions,omitempty"`
}

// SportTypeStatisticsOutput - output for per-sport statistics
type SportTypeStatisticsOutput struct {
	SportTypes       []stats.SportTypeStatistic `json:"sport_types"`
	SuggestedActions []SuggestedAction          `json:"suggested_actions,omitempty"`
}

// WeeklyStatisticsOutput - output for weekly statistics
type WeeklyStatisticsOutput struct {
	Weeks            []stats.WeeklyStatistic `json:"weeks"`
	Insights         []Insight               `json:"insights,omitempty"`
	SuggestedActions []SuggestedAction       `json:"suggested_actions,omitempty"`
}

// ListActivitiesInput - input for paginated listing
type ListActivitiesInput struct {
	Page    int `json:"page,omitempty" jsonschema:"1-based page number. Default: 1."`
	PerPage int `json:"per_page,omitempty" jsonschema:"Activities per page. Default: the configured page size."`
}

// FilterActivitiesInput - input for filtering
type FilterActivitiesInput struct {
	SportType string `json:"sport_type,omitempty" jsonschema:"Exact sport type key, e.g. Run, Ride, WeightTraining."`
	Week      int    `json:"week,omitempty" jsonschema:"ISO week number, 1-53."`
	Month     int    `json:"month,omitempty" jsonschema:"Month number, 1-12."`
	Search    string `json:"search,omitempty" jsonschema:"Case-insensitive substring of the activity name."`
}

// FilterActivitiesOutput - output for filtering
type FilterActivitiesOutput struct {
	Activities       []stats.ActivityView `json:"activities"`
	Count            int                  `json:"count"`
	SuggestedActions []SuggestedAction    `json:"suggested_actions,omitempty"`
}

// SportTypesOutput - output for the sport type list
type SportTypesOutput struct {
	SportTypes []stats.SportTypeOption `json:"sport_types"`
}

func (s *Server) getGeneralStatistics(ctx context.Context, req *mcp.CallToolRequest, input NoInput) (*mcp.CallToolResult, GeneralStatisticsOutput, error) {
	logging.Info("MCP tool call", "tool", "get_general_statistics")

	svc, err := s.provider.Stats(ctx)
	if err != nil {
		return nil, GeneralStatisticsOutput{}, classify(err)
	}

	general := svc.GeneralStatistics(ctx)
	return nil, GeneralStatisticsOutput{
		Statistics:       general,
		Insights:         s.insights.GenerateGeneralInsights(general),
		SuggestedActions: SuggestNextActions("general"),
	}, nil
}

func (s *Server) getMonthlyStatistics(ctx context.Context, req *mcp.CallToolRequest, input NoInput) (*mcp.CallToolResult, MonthlyStatisticsOutput, error) {
	logging.Info("MCP tool call", "tool", "get_monthly_statistics")

	svc, err := s.provider.Stats(ctx)
	if err != nil {
		return nil, MonthlyStatisticsOutput{}, classify(err)
	}

	monthly := svc.MonthlyStatistics(ctx)
	return nil, MonthlyStatisticsOutput{
		Months:           monthly,
		Insights:         s.insights.GenerateMonthlyInsights(monthly),
		SuggestedActions: SuggestNextActions("monthly"),
	}, nil
}

func (s *Server) getSportTypeStatistics(ctx context.Context, req *mcp.CallToolRequest, input NoInput) (*mcp.CallToolResult, SportTypeStatisticsOutput, error) {
	logging.Info("MCP tool call", "tool", "get_sport_type_statistics")

	svc, err := s.provider.Stats(ctx)
	if err != nil {
		return nil, SportTypeStatisticsOutput{}, classify(err)
	}

	return nil, SportTypeStatisticsOutput{
		SportTypes:       svc.SportTypeStatistics(ctx),
		SuggestedActions: SuggestNextActions("sport_types"),
	}, nil
}

func (s *Server) getWeeklyStatistics(ctx context.Context, req *mcp.CallToolRequest, input NoInput) (*mcp.CallToolResult, WeeklyStatisticsOutput, error) {
	logging.Info("MCP tool call", "tool", "get_weekly_statistics")

	svc, err := s.provider.Stats(ctx)
	if err != nil {
		return nil, WeeklyStatisticsOutput{}, classify(err)
	}

	weekly := svc.WeeklyStatistics(ctx)
	return nil, WeeklyStatisticsOutput{
		Weeks:            weekly,
		Insights:         s.insights.GenerateWeeklyInsights(weekly),
		SuggestedActions: SuggestNextActions("weekly"),
	}, nil
}

func (s *Server) listActivities(ctx context.Context, req *mcp.CallToolRequest, input ListActivitiesInput) (*mcp.CallToolResult, stats.ActivityPage, error) {
	logging.Info("MCP tool call", "tool", "list_activities", "page", input.Page, "per_page", input.PerPage)

	page, perPage := input.Page, input.PerPage
	if page == 0 {
		page = 1
	}
	if perPage == 0 {
		perPage = s.opts.PageSize
	}

	svc, err := s.provider.Stats(ctx)
	if err != nil {
		return nil, stats.ActivityPage{}, classify(err)
	}

	result, err := svc.PaginatedActivities(page, perPage)
	if err != nil {
		return nil, stats.ActivityPage{}, classify(err)
	}
	return nil, result, nil
}

func (s *Server) filterActivities(ctx context.Context, req *mcp.CallToolRequest, input FilterActivitiesInput) (*mcp.CallToolResult, FilterActivitiesOutput, error) {
	logging.Info("MCP tool call", "tool", "filter_activities", "sport_type", input.SportType, "week", input.Week, "month", input.Month)
	if logging.IsVerbose() {
		logging.Debug("MCP request params", "tool", "filter_activities", "input", logging.ToJSON(input))
	}

	svc, err := s.provider.Stats(ctx)
	if err != nil {
		return nil, FilterActivitiesOutput{}, classify(err)
	}

	activities, err := svc.FilteredActivityViews(stats.Filter{
		SportType: input.SportType,
		Week:      input.Week,
		Month:     input.Month,
		Search:    input.Search,
	})
	if err != nil {
		return nil, FilterActivitiesOutput{}, classify(err)
	}

	return nil, FilterActivitiesOutput{
		Activities:       activities,
		Count:            len(activities),
		SuggestedActions: SuggestNextActions("activities"),
	}, nil
}

func (s *Server) listSportTypes(ctx context.Context, req *mcp.CallToolRequest, input NoInput) (*mcp.CallToolResult, SportTypesOutput, error) {
	logging.Info("MCP tool call", "tool", "list_sport_types")

	svc, err := s.provider.Stats(ctx)
	if err != nil {
		return nil, SportTypesOutput{}, classify(err)
	}
	return nil, SportTypesOutput{SportTypes: svc.SportTypes(ctx)}, nil
}
