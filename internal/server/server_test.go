package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/iwvelando/equity-snapshot/internal/flow"
	"github.com/iwvelando/equity-snapshot/internal/form"
	"github.com/iwvelando/equity-snapshot/internal/metrics"
	"github.com/iwvelando/equity-snapshot/internal/sink"
	"github.com/iwvelando/equity-snapshot/internal/telemetry"
	"github.com/iwvelando/equity-snapshot/pkg/constants"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
)

type memorySink struct {
	mu    sync.Mutex
	saved []form.Submission
	err   error
}

func (s *memorySink) Name() string { return "memory" }

func (s *memorySink) Save(_ context.Context, sub form.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, sub)
	return nil
}

func (s *memorySink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

func fixedNormalizer() *form.Normalizer {
	return form.NewNormalizer(form.WithClock(func() time.Time {
		return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	}))
}

func sampleInput() form.RawInput {
	return form.RawInput{
		JobTitle:      "Software Engineer",
		MonthlyIncome: "5000",
		MonthlyRent:   "1500",
		Location:      "94110",
		Race:          "latinx",
		Gender:        "woman",
	}
}

func newTestHandler(t *testing.T, s sink.Sink) (http.Handler, *sink.Recorder, *telemetry.Collectors) {
	t.Helper()
	collectors := telemetry.New()
	recorder := sink.NewRecorder(s, zap.NewNop(), collectors, time.Second)
	handler := NewHandler(zap.NewNop(), Dependencies{
		Normalizer: fixedNormalizer(),
		Recorder:   recorder,
		Collectors: collectors,
	}, constants.DefaultMaxBodySizeBytes, "1.2.3")
	return handler, recorder, collectors
}

func postJSON(t *testing.T, handler http.Handler, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestHandleAnalyzeSuccess(t *testing.T) {
	store := &memorySink{}
	handler, recorder, collectors := newTestHandler(t, store)

	rr := postJSON(t, handler, "/api/analyze", sampleInput())
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp analyzeResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.Submission.RentBurden != 0.3 {
		t.Errorf("expected rentBurden 0.3, got %v", resp.Submission.RentBurden)
	}
	m := resp.Metrics
	if m.RentBurdenPercent != 30 || m.RentBurdenStatus != metrics.StatusModerate {
		t.Errorf("unexpected rent burden %d %s", m.RentBurdenPercent, m.RentBurdenStatus)
	}
	if m.WageGap != 750 {
		t.Errorf("expected wage gap 750, got %d", m.WageGap)
	}
	if m.LivingWageRatioPercent != 111 || m.LivingWageComparison != metrics.Above {
		t.Errorf("unexpected living wage %d %s", m.LivingWageRatioPercent, m.LivingWageComparison)
	}
	if m.PressureScore != 1 || m.FinancialPressure != metrics.PressureLow {
		t.Errorf("unexpected pressure %d %s", m.PressureScore, m.FinancialPressure)
	}
	if !strings.Contains(resp.Suggestion, "+$750") {
		t.Errorf("expected suggestion to mention +$750, got %q", resp.Suggestion)
	}

	recorder.Wait()
	if store.count() != 1 {
		t.Fatalf("expected one persisted submission, got %d", store.count())
	}
	if got := testutil.ToFloat64(collectors.Analyses.WithLabelValues("Low")); got != 1 {
		t.Errorf("expected one Low analysis counted, got %v", got)
	}
	if got := testutil.ToFloat64(collectors.SubmissionsPersisted.WithLabelValues("memory")); got != 1 {
		t.Errorf("expected one persisted counted, got %v", got)
	}
	if m.GroupComparison != metrics.GroupUnknown {
		t.Errorf("expected unknown group comparison without group figures, got %s", m.GroupComparison)
	}
}

func TestHandleAnalyzeGroupWageGap(t *testing.T) {
	table := metrics.NewTableBenchmark(nil, nil, nil, []metrics.GroupIncome{
		{Location: "94110", Race: "latinx", Gender: "woman", AverageIncome: 4600},
	})
	handler := NewHandler(zap.NewNop(), Dependencies{
		Normalizer: fixedNormalizer(),
		Engine:     metrics.NewEngine(table),
	}, constants.DefaultMaxBodySizeBytes, "")

	rr := postJSON(t, handler, "/api/analyze", sampleInput())
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp analyzeResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	m := resp.Metrics
	if m.GroupAverageIncome != 4600 || m.GroupWageGap != -400 || m.GroupComparison != metrics.AboveGroupAverage {
		t.Errorf("unexpected group figures %+v", m)
	}
	if !strings.Contains(rr.Body.String(), `"groupComparison":"Above Group Avg"`) {
		t.Errorf("expected group comparison label in body, got %s", rr.Body.String())
	}
}

func TestHandleAnalyzeFailingSinkDoesNotAffectResponse(t *testing.T) {
	healthy, healthyRecorder, _ := newTestHandler(t, &memorySink{})
	failing, failingRecorder, collectors := newTestHandler(t, &memorySink{err: errors.New("store unavailable")})

	okResp := postJSON(t, healthy, "/api/analyze", sampleInput())
	failResp := postJSON(t, failing, "/api/analyze", sampleInput())
	healthyRecorder.Wait()
	failingRecorder.Wait()

	if failResp.Code != http.StatusOK {
		t.Fatalf("expected status 200 with failing sink, got %d", failResp.Code)
	}
	if okResp.Body.String() != failResp.Body.String() {
		t.Fatalf("expected identical responses, got\n%s\n%s", okResp.Body.String(), failResp.Body.String())
	}
	if got := testutil.ToFloat64(collectors.SubmissionsFailed.WithLabelValues("memory", telemetry.ReasonWrite)); got != 1 {
		t.Errorf("expected one failed write counted, got %v", got)
	}
}

func TestHandleAnalyzeMissingFields(t *testing.T) {
	store := &memorySink{}
	handler, recorder, _ := newTestHandler(t, store)

	input := sampleInput()
	input.Location = ""
	input.Race = "   "

	rr := postJSON(t, handler, "/api/analyze", input)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", rr.Code)
	}

	var resp errorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if len(resp.MissingFields) != 2 || resp.MissingFields[0] != form.FieldLocation || resp.MissingFields[1] != form.FieldRace {
		t.Fatalf("expected missing location and race, got %v", resp.MissingFields)
	}

	recorder.Wait()
	if store.count() != 0 {
		t.Fatal("expected nothing persisted for a blocked submission")
	}
}

func TestHandleAnalyzeInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*form.RawInput)
		field  string
	}{
		{"non numeric income", func(in *form.RawInput) { in.MonthlyIncome = "lots" }, form.FieldMonthlyIncome},
		{"zero income", func(in *form.RawInput) { in.MonthlyIncome = "0" }, form.FieldMonthlyIncome},
		{"negative rent", func(in *form.RawInput) { in.MonthlyRent = "-5" }, form.FieldMonthlyRent},
		{"unknown gender", func(in *form.RawInput) { in.Gender = "robot" }, form.FieldGender},
	}

	handler, _, _ := newTestHandler(t, &memorySink{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := sampleInput()
			tt.mutate(&input)

			rr := postJSON(t, handler, "/api/analyze", input)
			if rr.Code != http.StatusUnprocessableEntity {
				t.Fatalf("expected status 422, got %d", rr.Code)
			}
			var resp errorResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to decode error response: %v", err)
			}
			if resp.Field != tt.field {
				t.Fatalf("expected field %s, got %q", tt.field, resp.Field)
			}
		})
	}
}

func TestHandleAnalyzeMalformedJSON(t *testing.T) {
	handler, _, _ := newTestHandler(t, &memorySink{})

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader("{"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestHandleAnalyzeBodyTooLarge(t *testing.T) {
	handler := NewHandler(zap.NewNop(), Dependencies{}, 32, "")

	input := sampleInput()
	input.JobTitle = strings.Repeat("a", 128)
	rr := postJSON(t, handler, "/api/analyze", input)

	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status 413, got %d", rr.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if !strings.Contains(resp.Error, "exceeds limit") {
		t.Fatalf("expected body limit error message, got %q", resp.Error)
	}
}

func TestHandleAnalyzeMethodNotAllowed(t *testing.T) {
	handler, _, _ := newTestHandler(t, &memorySink{})

	req := httptest.NewRequest(http.MethodGet, "/api/analyze", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", rr.Code)
	}
}

func TestHandleFlowWalkthrough(t *testing.T) {
	store := &memorySink{}
	handler, recorder, _ := newTestHandler(t, store)

	rr := postJSON(t, handler, "/api/flow", map[string]interface{}{"action": "start"})
	if rr.Code != http.StatusOK {
		t.Fatalf("start: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp flowResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.State.Screen != flow.ScreenForm {
		t.Fatalf("expected form screen, got %s", resp.State.Screen)
	}

	rr = postJSON(t, handler, "/api/flow", flowRequest{State: resp.State, Action: flow.ActionAnalyze, Input: sampleInput()})
	if rr.Code != http.StatusOK {
		t.Fatalf("analyze: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	resp = flowResponse{}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.State.Screen != flow.ScreenResults || resp.State.Submission == nil {
		t.Fatalf("expected results with submission, got %+v", resp.State)
	}
	if resp.Metrics == nil || resp.Metrics.RentBurdenPercent != 30 {
		t.Fatalf("expected metrics on results, got %+v", resp.Metrics)
	}

	rr = postJSON(t, handler, "/api/flow", flowRequest{State: resp.State, Action: flow.ActionBack})
	resp = flowResponse{}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.State.Screen != flow.ScreenForm || resp.State.Input != sampleInput() {
		t.Fatalf("expected form with input kept, got %+v", resp.State)
	}
	if resp.Metrics != nil {
		t.Fatal("expected no metrics off the results screen")
	}

	recorder.Wait()
	if store.count() != 1 {
		t.Fatalf("expected one persisted submission, got %d", store.count())
	}
}

func TestHandleFlowBlockedAnalyze(t *testing.T) {
	handler, _, _ := newTestHandler(t, &memorySink{})

	input := sampleInput()
	input.MonthlyRent = ""
	rr := postJSON(t, handler, "/api/flow", flowRequest{
		State:  flow.State{Screen: flow.ScreenForm},
		Action: flow.ActionAnalyze,
		Input:  input,
	})

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", rr.Code)
	}
	var resp flowResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.State.Screen != flow.ScreenForm {
		t.Fatalf("expected to stay on form, got %s", resp.State.Screen)
	}
	if len(resp.MissingFields) != 1 || resp.MissingFields[0] != form.FieldMonthlyRent {
		t.Fatalf("expected monthlyRent missing, got %v", resp.MissingFields)
	}
}

func TestHandleFlowInvalidTransition(t *testing.T) {
	handler, _, _ := newTestHandler(t, &memorySink{})

	rr := postJSON(t, handler, "/api/flow", flowRequest{
		State:  flow.State{Screen: flow.ScreenLanding},
		Action: flow.ActionBack,
	})
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
}

func TestHandleMetrics(t *testing.T) {
	handler, _, _ := newTestHandler(t, &memorySink{})

	req := httptest.NewRequest(http.MethodGet, "/api/metrics?income=3000&rent=2000", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Metrics    metrics.Metrics `json:"metrics"`
		Suggestion string          `json:"suggestion"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Metrics.RentBurdenPercent != 67 || resp.Metrics.RentBurdenStatus != metrics.StatusHighRisk {
		t.Errorf("unexpected rent burden %+v", resp.Metrics)
	}
	if resp.Metrics.PressureScore != 4 || resp.Metrics.FinancialPressure != metrics.PressureHigh {
		t.Errorf("unexpected pressure %+v", resp.Metrics)
	}
}

func TestHandleMetricsInvalidQuery(t *testing.T) {
	handler, _, _ := newTestHandler(t, &memorySink{})

	tests := []struct {
		query string
		field string
	}{
		{"income=abc&rent=10", form.FieldMonthlyIncome},
		{"income=0&rent=10", form.FieldMonthlyIncome},
		{"income=100", form.FieldMonthlyRent},
		{"income=5000&rent=-1500", form.FieldMonthlyRent},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/api/metrics?"+tt.query, nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusUnprocessableEntity {
			t.Errorf("%s: expected status 422, got %d", tt.query, rr.Code)
			continue
		}
		var resp errorResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("%s: failed to decode response: %v", tt.query, err)
		}
		if resp.Field != tt.field {
			t.Errorf("%s: expected field %q, got %q", tt.query, tt.field, resp.Field)
		}
	}
}

func TestHandleOptionsAndVersion(t *testing.T) {
	handler, _, _ := newTestHandler(t, &memorySink{})

	req := httptest.NewRequest(http.MethodGet, "/api/options", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	var options map[string][]string
	if err := json.Unmarshal(rr.Body.Bytes(), &options); err != nil {
		t.Fatalf("failed to decode options: %v", err)
	}
	if len(options["races"]) != len(form.Races) || len(options["genders"]) != len(form.Genders) {
		t.Fatalf("unexpected options %v", options)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/version", nil)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	var version map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &version); err != nil {
		t.Fatalf("failed to decode version: %v", err)
	}
	if version["version"] != "1.2.3" {
		t.Fatalf("expected version 1.2.3, got %q", version["version"])
	}
}

func TestVersionDefaultsToDev(t *testing.T) {
	handler := NewHandler(nil, Dependencies{}, 0, "  ")

	req := httptest.NewRequest(http.MethodGet, "/api/version", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if !strings.Contains(rr.Body.String(), `"dev"`) {
		t.Fatalf("expected dev version, got %s", rr.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	handler, _, _ := newTestHandler(t, &memorySink{})
	postJSON(t, handler, "/api/analyze", sampleInput())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "equity_analyses_total") {
		t.Fatal("expected analyses counter in exposition")
	}
}

func TestMetricsEndpointDisabledWithoutCollectors(t *testing.T) {
	handler := NewHandler(zap.NewNop(), Dependencies{}, 0, "")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestServeShutsDownOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, "127.0.0.1:0", http.NotFoundHandler(), zap.NewNop())
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
