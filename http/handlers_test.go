package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"heartpredict/heart"
	"heartpredict/ml"
	"heartpredict/monitoring"
)

type fakeModel struct {
	mu      sync.Mutex
	label   int
	err     error
	panics  bool
	names   []string
	vectors [][]float64
}

func (f *fakeModel) Predict(features []float64) (int, float64, error) {
	if f.panics {
		panic("model exploded")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vectors = append(f.vectors, append([]float64(nil), features...))
	return f.label, 0.75, f.err
}

func (f *fakeModel) calls() [][]float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.vectors
}

func (f *fakeModel) FeatureNames() []string {
	if f.names != nil {
		return f.names
	}
	return heart.FeatureNames()
}

func newTestHandler(t *testing.T, model ml.Classifier) (http.Handler, *monitoring.MetricsCollector) {
	t.Helper()
	predictor, err := heart.NewPredictor(model, heart.WithModelType("fake"))
	require.NoError(t, err)
	metrics := monitoring.NewMetricsCollector()
	handlers := NewHandlers(heart.NewStore(predictor), metrics, zap.NewNop())
	return NewHandler(DefaultServerConfig(), handlers, zap.NewNop()), metrics
}

func TestHealthHandler(t *testing.T) {
	handler, _ := newTestHandler(t, &fakeModel{})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var payload map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))
	assert.Equal(t, "ok", payload["status"])
	assert.Equal(t, "fake", payload["model_type"])
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestFormRendersWithoutPredicting(t *testing.T) {
	model := &fakeModel{}
	handler, _ := newTestHandler(t, model)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "<title>Heart Failure Prediction App</title>")
	assert.Contains(t, body, `<button type="submit">Predict</button>`)
	for _, field := range heart.Schema {
		assert.Contains(t, body, `name="`+field.Name+`"`)
	}
	assert.Contains(t, body, `name="age" type="number" min="0" max="100" step="1" value="52"`)
	assert.Contains(t, body, `name="oldpeak" type="number" min="0" max="10" step="0.01" value="1"`)
	assert.Contains(t, body, `<option value="3" selected>3</option>`)
	assert.NotContains(t, body, "The model predicts")
	assert.Empty(t, model.calls())
}

func TestFormPredictShowsResult(t *testing.T) {
	for label, want := range map[int]string{
		1: "The model predicts: <strong>Heart Failure Detected</strong>.",
		0: "The model predicts: <strong>No Heart Failure Detected</strong>.",
	} {
		model := &fakeModel{label: label}
		handler, _ := newTestHandler(t, model)

		form := url.Values{"age": {"60"}}
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), want)
		assert.Contains(t, rr.Body.String(), `name="age" type="number" min="0" max="100" step="1" value="60"`)
		require.Len(t, model.calls(), 1)
		assert.Equal(t, []float64{60, 1, 0, 125, 212, 0, 1, 168, 0, 1.0, 2, 2, 3}, model.calls()[0])
	}
}

func TestFormPredictRejectsOutOfRange(t *testing.T) {
	model := &fakeModel{}
	handler, _ := newTestHandler(t, model)

	form := url.Values{"chol": {"700"}}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "must be between 100 and 600")
	assert.Contains(t, rr.Body.String(), `value="700"`)
	assert.Empty(t, model.calls())
}

func TestFormPredictInferenceErrorKeepsServing(t *testing.T) {
	model := &fakeModel{err: ml.ErrFeatureCount}
	handler, metrics := newTestHandler(t, model)

	post := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr
	}

	rr := post()
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "feature schema mismatch")

	model.err = nil
	rr = post()
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1.0, metrics.Value(metricErrors, map[string]string{"kind": "schema"}))
}

func TestPanicAbortsOnlyThatRequest(t *testing.T) {
	handler, _ := newTestHandler(t, &fakeModel{panics: true})

	req := httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestHandlePredictJSON(t *testing.T) {
	model := &fakeModel{label: 1}
	handler, metrics := newTestHandler(t, model)

	req := httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader(`{"age": 70, "oldpeak": 2.5}`))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var payload predictResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))
	assert.Equal(t, 1, payload.Label)
	assert.Equal(t, heart.MessageFailure, payload.Message)
	assert.Equal(t, []float64{70, 1, 0, 125, 212, 0, 1, 168, 0, 2.5, 2, 2, 3}, payload.Features)
	assert.Equal(t, 1.0, metrics.Value(metricPredictions, map[string]string{"label": "1"}))
}

func TestHandlePredictJSONErrors(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		status int
		field  string
	}{
		{"malformed", `{"age":`, http.StatusBadRequest, ""},
		{"unknown field", `{"bmi": 20}`, http.StatusBadRequest, ""},
		{"trailing data", `{"age": 60} {"age": "nonsense"`, http.StatusBadRequest, ""},
		{"second object", `{"age": 60}{"age": 61}`, http.StatusBadRequest, ""},
		{"out of range", `{"thalach": 300}`, http.StatusBadRequest, "thalach"},
		{"bad choice", `{"thal": 0}`, http.StatusBadRequest, "thal"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler, _ := newTestHandler(t, &fakeModel{})
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader(tc.body)))

			assert.Equal(t, tc.status, rr.Code)
			var payload errorResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))
			assert.NotEmpty(t, payload.Error)
			if tc.field != "" {
				require.Len(t, payload.Fields, 1)
				assert.Equal(t, tc.field, payload.Fields[0].Field)
			}
		})
	}
}

func TestHandleSchema(t *testing.T) {
	handler, _ := newTestHandler(t, &fakeModel{})
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/schema", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var payload struct {
		Fields   []heart.Field `json:"fields"`
		Defaults heart.Input   `json:"defaults"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))
	assert.Equal(t, heart.Schema, payload.Fields)
	assert.Equal(t, heart.DefaultInput(), payload.Defaults)
}

func TestHandleMetrics(t *testing.T) {
	handler, _ := newTestHandler(t, &fakeModel{})
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader(`{}`)))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `heart_predictions_total{label="0"} 1`)
	assert.Contains(t, rr.Body.String(), "heart_model_loaded 1")
}

func TestDefaultsWithShippedModel(t *testing.T) {
	predictor, err := heart.LoadPredictor(ml.DecisionTreeType, filepath.Join("..", "models", "heart.json"))
	require.NoError(t, err)
	handler := NewHandler(DefaultServerConfig(), NewHandlers(heart.NewStore(predictor), nil, nil), zap.NewNop())

	var messages []string
	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader(`{}`)))
		require.Equal(t, http.StatusOK, rr.Code)
		var payload predictResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))
		messages = append(messages, payload.Message)
	}
	assert.Contains(t, []string{heart.MessageFailure, heart.MessageNoFailure}, messages[0])
	assert.Equal(t, messages[0], messages[1])
}

func TestCORSPreflight(t *testing.T) {
	handler, _ := newTestHandler(t, &fakeModel{})
	req := httptest.NewRequest(http.MethodOptions, "/api/predict", nil)
	req.Header.Set("Origin", "http://example.com")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "http://example.com", rr.Header().Get("Access-Control-Allow-Origin"))
}
