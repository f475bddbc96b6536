package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"mbsheets/internal/model"
	"mbsheets/internal/query"
)

// Service is the function surface the spreadsheet calls.
type Service interface {
	CustomQuery(ctx context.Context, rows [][]interface{}, opts query.Options) (model.Grid, error)
	SavedQuery(ctx context.Context, name string, limit, offset interface{}) (model.Grid, error)
	Events(ctx context.Context, address string, limit, offset interface{}) (model.Grid, error)
	Template(selects, filters int) (model.Grid, error)
}

// Config holds what NewHandler needs.
type Config struct {
	Service Service
	// Gatherer backs /metrics; nil disables the route.
	Gatherer prometheus.Gatherer
	// APIKey, when set, is required as a bearer token on /v1 routes.
	APIKey string
	Logger *zap.Logger
}

type customQueryRequest struct {
	Rows    [][]interface{} `json:"rows"`
	Limit   interface{}     `json:"limit"`
	Offset  interface{}     `json:"offset"`
	GroupBy string          `json:"groupBy"`
	OrderBy string          `json:"orderBy"`
}

// NewHandler builds the HTTP API. Successful calls answer with the bare grid
// so the add-on can write it into cells unchanged.
func NewHandler(cfg Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &handler{svc: cfg.Service, logger: logger}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(accessLog(logger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
	})
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		if cfg.APIKey != "" {
			r.Use(bearerAuth(cfg.APIKey))
		}
		r.Post("/customquery", h.customQuery)
		r.Get("/customquery/template", h.template)
		r.Get("/queries/{name}", h.savedQuery)
		r.Get("/events/{address}", h.events)
	})
	return r
}

type handler struct {
	svc    Service
	logger *zap.Logger
}

func (h *handler) customQuery(w http.ResponseWriter, r *http.Request) {
	var req customQueryRequest
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": "invalid request body",
			"code":  "PARSE_ERROR",
		})
		return
	}

	grid, err := h.svc.CustomQuery(r.Context(), req.Rows, query.Options{
		Limit:   req.Limit,
		Offset:  req.Offset,
		GroupBy: req.GroupBy,
		OrderBy: req.OrderBy,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, grid)
}

func (h *handler) template(w http.ResponseWriter, r *http.Request) {
	selects, err := intParam(r, "selects", 1)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	filters, err := intParam(r, "filters", 0)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	grid, err := h.svc.Template(selects, filters)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, grid)
}

func (h *handler) savedQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	grid, err := h.svc.SavedQuery(r.Context(), chi.URLParam(r, "name"), q.Get("limit"), q.Get("offset"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, grid)
}

func (h *handler) events(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	grid, err := h.svc.Events(r.Context(), chi.URLParam(r, "address"), q.Get("limit"), q.Get("offset"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, grid)
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, model.ErrMalformed(-1, "%s must be an integer, got %q", name, raw)
	}
	return n, nil
}

func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", chimw.GetReqID(r.Context())),
			zap.Error(err),
		)
	}
	writeJSON(w, status, map[string]interface{}{
		"error": err.Error(),
		"code":  code,
	})
}

func classify(err error) (int, string) {
	var (
		malformed *model.MalformedSpecError
		conflict  *model.ConflictingRuleError
		rejected  *model.QueryRejectedError
		transport *model.TransportError
	)
	switch {
	case errors.As(err, &malformed):
		return http.StatusBadRequest, "MALFORMED_SPEC"
	case errors.As(err, &conflict):
		return http.StatusBadRequest, "CONFLICTING_RULE"
	case errors.Is(err, model.ErrResultCapExceeded):
		return http.StatusUnprocessableEntity, "RESULT_CAP_EXCEEDED"
	case errors.As(err, &rejected):
		return http.StatusUnprocessableEntity, "QUERY_REJECTED"
	case errors.As(err, &transport):
		return http.StatusBadGateway, "TRANSPORT_ERROR"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "TIMEOUT"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

func bearerAuth(key string) func(http.Handler) http.Handler {
	want := []byte("Bearer " + key)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(r.Header.Get("Authorization"))
			if subtle.ConstantTimeCompare(got, want) != 1 {
				writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
					"error": "unauthorized",
					"code":  "AUTH_ERROR",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func accessLog(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", chimw.GetReqID(r.Context())),
			)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
