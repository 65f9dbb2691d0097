package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joshdurbin/strava-dashboard/internal/logging"
	"github.com/joshdurbin/strava-dashboard/internal/stats"
)

var errPanic = errors.New("handler panicked")

// Handler returns the router serving the JSON API, /metrics and MCP over SSE
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(panicRecovery)
	r.Use(requestMetrics(s.opts.Metrics))

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/dashboard", s.withStats(s.handleDashboard)).Methods("GET").Name("dashboard")
	api.HandleFunc("/stats/general", s.withStats(s.handleGeneral)).Methods("GET").Name("general-stats")
	api.HandleFunc("/stats/monthly", s.withStats(s.handleMonthly)).Methods("GET").Name("monthly-stats")
	api.HandleFunc("/stats/sport-types", s.withStats(s.handleSportTypeStats)).Methods("GET").Name("sport-type-stats")
	api.HandleFunc("/stats/weekly", s.withStats(s.handleWeekly)).Methods("GET").Name("weekly-stats")
	api.HandleFunc("/sport-types", s.withStats(s.handleSportTypes)).Methods("GET").Name("sport-types")
	api.HandleFunc("/activities", s.withStats(s.handleActivities)).Methods("GET").Name("activities")
	api.HandleFunc("/activities/all", s.withStats(s.handleAllActivities)).Methods("GET").Name("all-activities")
	api.HandleFunc("/activities/filter", s.withStats(s.handleFilter)).Methods("GET").Name("filter-activities")
	api.HandleFunc("/activities/sport/{sport_type}", s.withStats(s.handleBySport)).Methods("GET").Name("sport-activities")
	api.HandleFunc("/cache/invalidate", s.handleInvalidate).Methods("POST").Name("invalidate-cache")

	if s.opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{})).Methods("GET").Name("metrics")
	}

	sse := mcp.NewSSEHandler(func(*http.Request) *mcp.Server {
		return s.mcp
	}, nil)
	r.PathPrefix("/mcp").Handler(sse).Name("mcp")

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	te := classify(err)
	if te.Code == ErrInternalError || te.Code == ErrUpstream {
		logging.Error("request failed", "code", string(te.Code), "error", err)
	} else {
		logging.Debug("request rejected", "code", string(te.Code), "error", err)
	}
	writeJSON(w, te.Code.Status(), map[string]*ToolError{"error": te})
}

// withStats resolves the statistics service or answers with the error
func (s *Server) withStats(fn func(w http.ResponseWriter, r *http.Request, svc *stats.Service)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc, err := s.provider.Stats(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		fn(w, r, svc)
	}
}

// DashboardResponse is the full dashboard with the athlete and insights
type DashboardResponse struct {
	stats.Dashboard
	AthleteName    string    `json:"athlete_name,omitempty"`
	AthleteProfile string    `json:"athlete_profile,omitempty"`
	LastRefresh    string    `json:"last_refresh,omitempty"`
	Insights       []Insight `json:"insights,omitempty"`
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, svc *stats.Service) {
	ctx := r.Context()
	resp := DashboardResponse{Dashboard: svc.Dashboard(ctx)}

	if athlete, err := s.provider.Athlete(ctx); err == nil {
		resp.AthleteName = athlete.Name
		resp.AthleteProfile = athlete.Profile
	}
	if at, ok := s.provider.LastRefresh(ctx); ok {
		resp.LastRefresh = at.UTC().Format(time.RFC3339)
	}

	resp.Insights = append(resp.Insights, s.insights.GenerateGeneralInsights(resp.General)...)
	resp.Insights = append(resp.Insights, s.insights.GenerateMonthlyInsights(resp.Monthly)...)
	resp.Insights = append(resp.Insights, s.insights.GenerateWeeklyInsights(resp.Weekly)...)

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGeneral(w http.ResponseWriter, r *http.Request, svc *stats.Service) {
	writeJSON(w, http.StatusOK, svc.GeneralStatistics(r.Context()))
}

func (s *Server) handleMonthly(w http.ResponseWriter, r *http.Request, svc *stats.Service) {
	writeJSON(w, http.StatusOK, svc.MonthlyStatistics(r.Context()))
}

func (s *Server) handleSportTypeStats(w http.ResponseWriter, r *http.Request, svc *stats.Service) {
	writeJSON(w, http.StatusOK, svc.SportTypeStatistics(r.Context()))
}

func (s *Server) handleWeekly(w http.ResponseWriter, r *http.Request, svc *stats.Service) {
	writeJSON(w, http.StatusOK, svc.WeeklyStatistics(r.Context()))
}

func (s *Server) handleSportTypes(w http.ResponseWriter, r *http.Request, svc *stats.Service) {
	writeJSON(w, http.StatusOK, svc.SportTypes(r.Context()))
}

func (s *Server) handleActivities(w http.ResponseWriter, r *http.Request, svc *stats.Service) {
	q := r.URL.Query()
	page, err := intParam(q.Get("page"), "page", 1)
	if err != nil {
		writeError(w, err)
		return
	}
	perPage, err := intParam(q.Get("per_page"), "per_page", s.opts.PageSize)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := svc.PaginatedActivities(page, perPage)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleAllActivities(w http.ResponseWriter, r *http.Request, svc *stats.Service) {
	writeJSON(w, http.StatusOK, svc.AllActivities())
}

func (s *Server) handleFilter(w http.ResponseWriter, r *http.Request, svc *stats.Service) {
	q := r.URL.Query()
	week, err := intParam(q.Get("week"), "week", 0)
	if err != nil {
		writeError(w, err)
		return
	}
	month, err := intParam(q.Get("month"), "month", 0)
	if err != nil {
		writeError(w, err)
		return
	}

	views, err := svc.FilteredActivityViews(stats.Filter{
		SportType: q.Get("sport"),
		Week:      week,
		Month:     month,
		Search:    q.Get("search"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleBySport(w http.ResponseWriter, r *http.Request, svc *stats.Service) {
	writeJSON(w, http.StatusOK, svc.ActivitiesBySportType(mux.Vars(r)["sport_type"]))
}

func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	removed := s.provider.Invalidate(r.Context())
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

// intParam parses an optional integer query parameter; absent yields def
func intParam(raw, name string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &stats.ParameterError{Param: name, Value: raw, Reason: "must be an integer"}
	}
	return v, nil
}
