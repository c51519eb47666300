package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/synaptica-ai/readmission/pkg/common/models"
	"github.com/synaptica-ai/readmission/pkg/runs"
	"github.com/synaptica-ai/readmission/pkg/storage"
)

type fakeRuns struct {
	triggered []runs.TriggerInput
	stored    map[uuid.UUID]models.PipelineRun
}

func (f *fakeRuns) Trigger(_ context.Context, input runs.TriggerInput) (models.PipelineRun, error) {
	if err := runs.ValidateLocation(input.Source); err != nil {
		return models.PipelineRun{}, err
	}
	f.triggered = append(f.triggered, input)
	return models.PipelineRun{ID: uuid.New().String(), Status: runs.StatusQueued, Trigger: input.Trigger}, nil
}

func (f *fakeRuns) Get(_ context.Context, id uuid.UUID) (models.PipelineRun, error) {
	run, ok := f.stored[id]
	if !ok {
		return models.PipelineRun{}, runs.ErrRunNotFound
	}
	return run, nil
}

func (f *fakeRuns) List(_ context.Context, _ int) ([]models.PipelineRun, error) {
	out := make([]models.PipelineRun, 0, len(f.stored))
	for _, r := range f.stored {
		out = append(out, r)
	}
	return out, nil
}

type fakeCache struct {
	rows map[int64]models.PatientFeatureVector
	err  error
}

func (f *fakeCache) Get(_ context.Context, id int64) (models.PatientFeatureVector, error) {
	if f.err != nil {
		return models.PatientFeatureVector{}, f.err
	}
	fv, ok := f.rows[id]
	if !ok {
		return models.PatientFeatureVector{}, storage.ErrFeaturesNotFound
	}
	return fv, nil
}

type fakeGold struct {
	rows    map[int64]models.PatientFeatureVector
	metrics []models.QualityMetric
}

func (f *fakeGold) FeaturesByPatient(_ context.Context, id int64) (models.PatientFeatureVector, error) {
	fv, ok := f.rows[id]
	if !ok {
		return models.PatientFeatureVector{}, storage.ErrFeaturesNotFound
	}
	return fv, nil
}

func (f *fakeGold) QualityMetrics(_ context.Context) ([]models.QualityMetric, error) {
	return f.metrics, nil
}

func newTestRouter(cache FeatureCache) (http.Handler, *fakeRuns) {
	runSvc := &fakeRuns{stored: map[uuid.UUID]models.PipelineRun{}}
	gold := &fakeGold{
		rows:    map[int64]models.PatientFeatureVector{7: {OriginalPatientID: 7, NumDiagnoses: 3}},
		metrics: []models.QualityMetric{{MetricName: "patients_total", Value: 10}},
	}
	return NewRouter(NewHandler(runSvc, cache, gold), nil), runSvc
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h, _ := newTestRouter(nil)
	rec := do(t, h, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected a request id header")
	}
}

func TestTriggerRun(t *testing.T) {
	h, runSvc := newTestRouter(nil)

	rec := do(t, h, http.MethodPost, "/api/v1/runs", `{"source":"2024-01-01"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(runSvc.triggered) != 1 || runSvc.triggered[0].Source != "2024-01-01" || runSvc.triggered[0].Trigger != runs.TriggerHTTP {
		t.Fatalf("unexpected trigger input %+v", runSvc.triggered)
	}

	if rec := do(t, h, http.MethodPost, "/api/v1/runs", ""); rec.Code != http.StatusAccepted {
		t.Fatalf("empty body should be accepted, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/v1/runs", "{"); rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed body should be rejected, got %d", rec.Code)
	}
}

func TestTriggerRunRejectsForeignSource(t *testing.T) {
	h, runSvc := newTestRouter(nil)

	for _, source := range []string{"https://evil.example.com", "/etc", "../outside"} {
		rec := do(t, h, http.MethodPost, "/api/v1/runs", `{"source":"`+source+`"}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%q: expected 400, got %d", source, rec.Code)
		}
	}
	if len(runSvc.triggered) != 0 {
		t.Fatalf("rejected sources must not trigger runs, got %+v", runSvc.triggered)
	}
}

func TestGetRun(t *testing.T) {
	h, runSvc := newTestRouter(nil)
	id := uuid.New()
	runSvc.stored[id] = models.PipelineRun{ID: id.String(), Status: runs.StatusCompleted}

	rec := do(t, h, http.MethodGet, "/api/v1/runs/"+id.String(), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Run models.PipelineRun `json:"run"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Run.Status != runs.StatusCompleted {
		t.Fatalf("unexpected run %+v", body.Run)
	}

	if rec := do(t, h, http.MethodGet, "/api/v1/runs/"+uuid.New().String(), ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown run, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/v1/runs/not-a-uuid", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", rec.Code)
	}
}

func TestGetFeaturesPrefersCache(t *testing.T) {
	cache := &fakeCache{rows: map[int64]models.PatientFeatureVector{7: {OriginalPatientID: 7, NumDiagnoses: 9}}}
	h, _ := newTestRouter(cache)

	rec := do(t, h, http.MethodGet, "/api/v1/features/7", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Features models.PatientFeatureVector `json:"features"`
		Source   string                      `json:"source"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Source != "cache" || body.Features.NumDiagnoses != 9 {
		t.Fatalf("expected cached row, got %+v", body)
	}
}

func TestGetFeaturesFallsBackToGold(t *testing.T) {
	h, _ := newTestRouter(&fakeCache{err: errors.New("connection refused")})

	rec := do(t, h, http.MethodGet, "/api/v1/features/7", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"source":"gold"`) {
		t.Fatalf("expected gold fallback, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, h, http.MethodGet, "/api/v1/features/8", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown patient, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/v1/features/abc", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad patient id, got %d", rec.Code)
	}
}

func TestQualityMetrics(t *testing.T) {
	h, _ := newTestRouter(nil)
	rec := do(t, h, http.MethodGet, "/api/v1/metrics/quality", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "patients_total") {
		t.Fatalf("unexpected response %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRecoveryHandlesPanics(t *testing.T) {
	h := Recovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))
	if rec := do(t, h, http.MethodGet, "/", ""); rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}
