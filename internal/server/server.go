package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/iwvelando/equity-snapshot/internal/flow"
	"github.com/iwvelando/equity-snapshot/internal/form"
	"github.com/iwvelando/equity-snapshot/internal/metrics"
	"github.com/iwvelando/equity-snapshot/internal/sink"
	"github.com/iwvelando/equity-snapshot/internal/telemetry"
	"github.com/iwvelando/equity-snapshot/pkg/constants"
	"go.uber.org/zap"
)

// Dependencies are the collaborators the HTTP handler delegates to. Any
// nil field is replaced with a working default; a nil Recorder disables
// persistence and a nil Collectors disables /metrics.
type Dependencies struct {
	Normalizer *form.Normalizer
	Engine     *metrics.Engine
	Recorder   *sink.Recorder
	Collectors *telemetry.Collectors
}

type handler struct {
	logger      *zap.Logger
	maxBodySize int64
	version     string
	normalizer  *form.Normalizer
	engine      *metrics.Engine
	recorder    *sink.Recorder
	collectors  *telemetry.Collectors
}

// NewHandler constructs the HTTP handler that serves the analysis API.
func NewHandler(logger *zap.Logger, deps Dependencies, maxBodySize int64, version string) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	if maxBodySize <= 0 {
		maxBodySize = constants.DefaultMaxBodySizeBytes
	}

	trimmedVersion := strings.TrimSpace(version)
	if trimmedVersion == "" {
		trimmedVersion = "dev"
	}

	if deps.Normalizer == nil {
		deps.Normalizer = form.NewNormalizer()
	}
	if deps.Engine == nil {
		deps.Engine = metrics.NewEngine(nil)
	}

	h := &handler{
		logger:      logger,
		maxBodySize: maxBodySize,
		version:     trimmedVersion,
		normalizer:  deps.Normalizer,
		engine:      deps.Engine,
		recorder:    deps.Recorder,
		collectors:  deps.Collectors,
	}

	mux := http.NewServeMux()

	// Normalize a form and return its dashboard
	mux.HandleFunc("/api/analyze", h.handleAnalyze)

	// Screen transitions for stateless clients
	mux.HandleFunc("/api/flow", h.handleFlow)

	// Metrics for bare income and rent figures
	mux.HandleFunc("/api/metrics", h.handleMetrics)

	// Accepted race and gender tags
	mux.HandleFunc("/api/options", h.handleOptions)

	mux.HandleFunc("/api/version", h.handleVersion)
	mux.HandleFunc("/healthz", h.handleHealth)

	if h.collectors != nil {
		mux.Handle("/metrics", h.collectors.Handler())
	}

	return mux
}

// Serve runs an HTTP server on address until ctx is cancelled, then shuts
// it down gracefully.
func Serve(ctx context.Context, address string, handler http.Handler, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	srv := &http.Server{
		Addr:              address,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server",
			zap.String("op", "server.Serve"),
			zap.String("address", address),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Debug("shutdown requested", zap.String("op", "server.Serve"))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info("server shutdown completed", zap.String("op", "server.Serve"))
	return nil
}

type analyzeResponse struct {
	Submission form.Submission `json:"submission"`
	Metrics    metrics.Metrics `json:"metrics"`
	Suggestion string          `json:"suggestion"`
}

type errorResponse struct {
	Error         string   `json:"error"`
	Field         string   `json:"field,omitempty"`
	MissingFields []string `json:"missingFields,omitempty"`
}

type flowRequest struct {
	State  flow.State    `json:"state"`
	Action flow.Action   `json:"action"`
	Input  form.RawInput `json:"input"`
}

type flowResponse struct {
	State         flow.State       `json:"state"`
	Metrics       *metrics.Metrics `json:"metrics,omitempty"`
	Suggestion    string           `json:"suggestion,omitempty"`
	Error         string           `json:"error,omitempty"`
	Field         string           `json:"field,omitempty"`
	MissingFields []string         `json:"missingFields,omitempty"`
}

func (h *handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleAnalyze"
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	var raw form.RawInput
	if status, err := h.decodeBody(w, r, &raw); err != nil {
		h.respondErrorWithOp(w, status, err.Error(), op)
		return
	}

	sub, err := h.normalizer.Normalize(raw)
	if err != nil {
		h.respondInputError(w, err, op)
		return
	}

	resp := h.analyze(sub)
	h.writeJSON(w, http.StatusOK, resp)

	h.logger.Info("submission analyzed",
		zap.String("op", op),
		zap.Int("rentBurdenPercent", resp.Metrics.RentBurdenPercent),
		zap.String("financialPressure", string(resp.Metrics.FinancialPressure)),
		zap.String("groupComparison", string(resp.Metrics.GroupComparison)),
	)
	h.persist(sub)
}

func (h *handler) handleFlow(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleFlow"
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	req := flowRequest{State: flow.Initial()}
	if status, err := h.decodeBody(w, r, &req); err != nil {
		h.respondErrorWithOp(w, status, err.Error(), op)
		return
	}
	if req.State.Screen == "" {
		req.State.Screen = flow.ScreenLanding
	}

	next, err := flow.Apply(req.State, req.Action, req.Input, h.normalizer)
	if err != nil {
		if errors.Is(err, flow.ErrInvalidTransition) {
			h.respondErrorWithOp(w, http.StatusConflict, err.Error(), op)
			return
		}
		resp := flowResponse{State: next}
		status, body := inputError(err)
		resp.Error, resp.Field, resp.MissingFields = body.Error, body.Field, body.MissingFields
		h.logger.Debug("transition blocked",
			zap.String("op", op),
			zap.String("action", string(req.Action)),
			zap.Error(err),
		)
		h.writeJSON(w, status, resp)
		return
	}

	resp := flowResponse{State: next}
	if next.Screen != flow.ScreenResults || next.Submission == nil {
		h.writeJSON(w, http.StatusOK, resp)
		return
	}

	result := h.analyze(*next.Submission)
	resp.Metrics = &result.Metrics
	resp.Suggestion = result.Suggestion
	h.writeJSON(w, http.StatusOK, resp)
	h.persist(*next.Submission)
}

func (h *handler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleMetrics"
	if r.Method != http.MethodGet {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()
	income, err := form.ParseAmount(form.FieldMonthlyIncome, query.Get("income"))
	if err != nil {
		h.respondInputError(w, err, op)
		return
	}
	if income <= 0 {
		h.respondInputError(w, &form.NumericParseError{
			Field: form.FieldMonthlyIncome, Value: query.Get("income"), Reason: "must be greater than zero",
		}, op)
		return
	}
	rent, err := form.ParseAmount(form.FieldMonthlyRent, query.Get("rent"))
	if err != nil {
		h.respondInputError(w, err, op)
		return
	}
	if rent < 0 {
		h.respondInputError(w, &form.NumericParseError{
			Field: form.FieldMonthlyRent, Value: query.Get("rent"), Reason: "must not be negative",
		}, op)
		return
	}

	m := h.engine.Compute(income, rent)
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"metrics":    m,
		"suggestion": metrics.Suggestion(m),
	})
}

func (h *handler) handleOptions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"races":   form.Races,
		"genders": form.Genders,
	})
}

func (h *handler) handleVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"version": h.version,
	})
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// analyze computes the dashboard for sub and records it in telemetry.
func (h *handler) analyze(sub form.Submission) analyzeResponse {
	m := h.engine.Evaluate(sub)
	h.collectors.ObserveAnalysis(string(m.FinancialPressure))
	return analyzeResponse{
		Submission: sub,
		Metrics:    m,
		Suggestion: metrics.Suggestion(m),
	}
}

// persist hands sub to the recorder. The response has already been written.
func (h *handler) persist(sub form.Submission) {
	if h.recorder == nil {
		return
	}
	h.recorder.Submit(sub)
}

func (h *handler) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) (int, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return http.StatusRequestEntityTooLarge, fmt.Errorf("request body exceeds limit of %d bytes", h.maxBodySize)
		}
		return http.StatusBadRequest, fmt.Errorf("failed to decode request: %v", err)
	}
	return http.StatusOK, nil
}

// inputError maps a normalization error to its status and response body.
func inputError(err error) (int, errorResponse) {
	var blocked *form.ValidationBlockedError
	var numeric *form.NumericParseError
	var tag *form.InvalidTagError

	switch {
	case errors.As(err, &blocked):
		return http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), MissingFields: blocked.Fields}
	case errors.As(err, &numeric):
		return http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Field: numeric.Field}
	case errors.As(err, &tag):
		return http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Field: tag.Field}
	default:
		return http.StatusBadRequest, errorResponse{Error: err.Error()}
	}
}

func (h *handler) respondInputError(w http.ResponseWriter, err error, op string) {
	status, body := inputError(err)
	h.logger.Debug("input rejected",
		zap.String("op", op),
		zap.Int("status", status),
		zap.Error(err),
	)
	h.writeJSON(w, status, body)
}

func (h *handler) respondErrorWithOp(w http.ResponseWriter, status int, msg string, op string) {
	h.logger.Error("request failed",
		zap.String("op", op),
		zap.Int("status", status),
		zap.String("error", msg),
	)

	h.writeJSON(w, status, errorResponse{Error: msg})
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", zap.Error(err))
	}
}
