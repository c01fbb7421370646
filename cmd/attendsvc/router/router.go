// Package router configures HTTP routes for the attendance query service.
//
// Routes configured:
//   - GET /attendance?user=<id>&start=<date>&end=<date> - Range query, answered from cache or store
//   - GET /plan?user=<id>&start=<date>&end=<date> - Execution plan of the range query
//   - GET /health - Configuration and store reachability
//   - GET /metrics - Prometheus metrics endpoint
//
// /api/attendance and /api/plan are aliases. Dates are ISO-8601 (YYYY-MM-DD);
// omitted dates default to the 30 days ending today. Errors are returned as
// {"error": "..."} with 400 for bad parameters, 503 when the store is
// unavailable and 500 otherwise.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"cloud.google.com/go/civil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/HatiCode/attendbench/pkg/httpx"
	"github.com/HatiCode/attendbench/pkg/query"
	"github.com/HatiCode/attendbench/pkg/records"
)

// Service is the subset of *query.Service the routes need.
type Service interface {
	HandleAttendanceQuery(ctx context.Context, p query.Params) (query.Result, error)
	HandlePlanQuery(ctx context.Context, p query.Params) (query.PlanResult, error)
	Health(ctx context.Context) query.Health
}

// SetupRoutes configures HTTP endpoints for the query service. Metrics are
// served from gatherer; pass prometheus.DefaultGatherer in production.
func SetupRoutes(svc Service, gatherer prometheus.Gatherer, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	attendance := handleAttendance(svc, logger)
	mux.HandleFunc("GET /attendance", attendance)
	mux.HandleFunc("GET /api/attendance", attendance)

	plan := handlePlan(svc, logger)
	mux.HandleFunc("GET /plan", plan)
	mux.HandleFunc("GET /api/plan", plan)

	mux.HandleFunc("GET /health", handleHealth(svc, logger))

	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return mux
}

func handleAttendance(svc Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := parseParams(r.URL.Query())
		if err != nil {
			httpx.WriteErrorMessage(w, http.StatusBadRequest, err.Error())
			return
		}

		res, err := svc.HandleAttendanceQuery(r.Context(), p)
		if err != nil {
			writeQueryError(w, r, logger, err)
			return
		}
		if res.Rows == nil {
			res.Rows = []records.Record{}
		}

		if err := httpx.WriteJSON(w, http.StatusOK, res); err != nil {
			logger.Error("failed to write JSON response", "error", err)
		}
	}
}

func handlePlan(svc Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := parseParams(r.URL.Query())
		if err != nil {
			httpx.WriteErrorMessage(w, http.StatusBadRequest, err.Error())
			return
		}

		res, err := svc.HandlePlanQuery(r.Context(), p)
		if err != nil {
			writeQueryError(w, r, logger, err)
			return
		}

		if err := httpx.WriteJSON(w, http.StatusOK, res); err != nil {
			logger.Error("failed to write JSON response", "error", err)
		}
	}
}

func handleHealth(svc Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := httpx.WriteJSON(w, http.StatusOK, svc.Health(r.Context())); err != nil {
			logger.Error("failed to write JSON response", "error", err)
		}
	}
}

// parseParams reads user, start and end. Missing dates stay zero so the
// service applies its default window.
func parseParams(q url.Values) (query.Params, error) {
	var p query.Params

	user := q.Get("user")
	if user == "" {
		return p, errors.New("user parameter required")
	}
	id, err := strconv.ParseInt(user, 10, 64)
	if err != nil || id <= 0 {
		return p, fmt.Errorf("invalid user %q: must be a positive integer", user)
	}
	p.UserID = id

	if p.Start, err = parseDate(q, "start"); err != nil {
		return p, err
	}
	if p.End, err = parseDate(q, "end"); err != nil {
		return p, err
	}
	return p, nil
}

func parseDate(q url.Values, name string) (civil.Date, error) {
	s := q.Get(name)
	if s == "" {
		return civil.Date{}, nil
	}
	d, err := civil.ParseDate(s)
	if err != nil {
		return civil.Date{}, fmt.Errorf("invalid %s date %q: want YYYY-MM-DD", name, s)
	}
	return d, nil
}

func writeQueryError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, query.ErrInvalidQuery):
		httpx.WriteError(w, http.StatusBadRequest, err)
	case errors.Is(err, records.ErrStoreUnavailable):
		logger.Warn("store unavailable", "path", r.URL.Path, "request_id", httpx.GetRequestID(r.Context()), "error", err)
		httpx.WriteErrorMessage(w, http.StatusServiceUnavailable, "store unavailable")
	default:
		logger.Error("query failed", "path", r.URL.Path, "request_id", httpx.GetRequestID(r.Context()), "error", err)
		httpx.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
	}
}
