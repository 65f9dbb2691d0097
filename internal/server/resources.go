package server

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/joshdurbin/strava-dashboard/internal/logging"
)

const (
	generalStatsURI = "strava://stats/general"
	weeklyStatsURI  = "strava://stats/weekly"
	athleteURI      = "strava://athlete"
)

// registerResources registers all MCP resources for the server
func (s *Server) registerResources() {
	s.mcp.AddResource(&mcp.Resource{
		URI:         generalStatsURI,
		Name:        "general_statistics",
		Description: "Season totals: activities, time, distance, elevation, active days and habits",
		MIMEType:    "application/json",
	}, s.readGeneralStatistics)

	s.mcp.AddResource(&mcp.Resource{
		URI:         weeklyStatsURI,
		Name:        "weekly_statistics",
		Description: "Per-week totals for the current year",
		MIMEType:    "application/json",
	}, s.readWeeklyStatistics)

	s.mcp.AddResource(&mcp.Resource{
		URI:         athleteURI,
		Name:        "athlete",
		Description: "The authenticated athlete and when activities were last fetched",
		MIMEType:    "application/json",
	}, s.readAthlete)

	logging.Debug("MCP resources registered", "count", 3)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, NewInternalErrorWithCause("failed to marshal resource", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      uri,
				MIMEType: "application/json",
				Text:     string(jsonData),
			},
		},
	}, nil
}

func (s *Server) readGeneralStatistics(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	logging.Info("MCP resource read", "resource", "general_statistics")

	svc, err := s.provider.Stats(ctx)
	if err != nil {
		logging.Error("readGeneralStatistics failed", "error", err)
		return nil, classify(err)
	}
	return jsonResource(generalStatsURI, svc.GeneralStatistics(ctx))
}

func (s *Server) readWeeklyStatistics(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	logging.Info("MCP resource read", "resource", "weekly_statistics")

	svc, err := s.provider.Stats(ctx)
	if err != nil {
		logging.Error("readWeeklyStatistics failed", "error", err)
		return nil, classify(err)
	}
	return jsonResource(weeklyStatsURI, svc.WeeklyStatistics(ctx))
}

type athleteResource struct {
	ID          int64  `json:"id,omitempty"`
	Name        string `json:"name,omitempty"`
	Profile     string `json:"profile,omitempty"`
	LastRefresh string `json:"last_refresh,omitempty"`
}

func (s *Server) readAthlete(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	logging.Info("MCP resource read", "resource", "athlete")

	athlete, err := s.provider.Athlete(ctx)
	if err != nil {
		return nil, NewInternalErrorWithCause("failed to load athlete", err)
	}

	out := athleteResource{ID: athlete.ID, Name: athlete.Name, Profile: athlete.Profile}
	if at, ok := s.provider.LastRefresh(ctx); ok {
		out.LastRefresh = at.UTC().Format("2006-01-02T15:04:05Z")
	}
	return jsonResource(athleteURI, out)
}
