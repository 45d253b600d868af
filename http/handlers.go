package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"heartpredict/heart"
	"heartpredict/monitoring"
)

const (
	metricPredictions = "heart_predictions_total"
	metricErrors      = "heart_prediction_errors_total"
	metricCacheHits   = "heart_prediction_cache_hits_total"
	metricDuration    = "heart_prediction_duration_seconds"
	metricModelLoaded = "heart_model_loaded"
)

// Handlers 持有处理请求所需的依赖, 不使用包级全局变量
type Handlers struct {
	store   *heart.Store
	metrics *monitoring.MetricsCollector
	logger  *zap.Logger
}

// NewHandlers 创建处理器
func NewHandlers(store *heart.Store, metrics *monitoring.MetricsCollector, logger *zap.Logger) *Handlers {
	if metrics == nil {
		metrics = monitoring.NewMetricsCollector()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Describe(metricPredictions, "Predictions served, by label")
	metrics.Describe(metricErrors, "Failed predictions, by kind")
	metrics.Describe(metricCacheHits, "Predictions answered from the result cache")
	metrics.Describe(metricDuration, "Time spent in prediction")
	metrics.Describe(metricModelLoaded, "Whether a model is loaded")
	metrics.SetGauge(metricModelLoaded, 1, nil)
	return &Handlers{store: store, metrics: metrics, logger: logger}
}

// RegisterHandlers 注册所有路由
func (h *Handlers) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.handleForm)
	mux.HandleFunc("POST /{$}", h.handleFormPredict)
	mux.HandleFunc("POST /api/predict", h.handlePredict)
	mux.HandleFunc("GET /api/schema", h.handleSchema)
	mux.HandleFunc("GET /api/health", h.handleHealth)
	mux.HandleFunc("GET /api/metrics", h.handleMetrics)
	mux.HandleFunc("GET /api/ws", h.handleWebSocket)
}

// predict 对当前模型做一次推理并记录指标
func (h *Handlers) predict(ctx context.Context, in heart.Input) (heart.Result, error) {
	start := time.Now()
	result, err := h.store.Current().Predict(ctx, in)
	if err != nil {
		h.metrics.IncrCounter(metricErrors, 1, map[string]string{"kind": errorKind(err)})
		if kind := errorKind(err); kind == "schema" || kind == "inference" {
			h.logger.Error("prediction failed", zap.String("request_id", GetRequestID(ctx)), zap.Error(err))
		}
		return result, err
	}
	h.metrics.ObserveSummary(metricDuration, time.Since(start).Seconds(), nil)
	h.metrics.IncrCounter(metricPredictions, 1, map[string]string{"label": strconv.Itoa(result.Label)})
	if result.Cached {
		h.metrics.IncrCounter(metricCacheHits, 1, nil)
	}
	return result, nil
}

type predictResponse struct {
	Label    int       `json:"label"`
	Message  string    `json:"message"`
	Features []float64 `json:"features"`
}

type errorResponse struct {
	Error  string             `json:"error"`
	Fields []heart.FieldError `json:"fields,omitempty"`
}

func (h *Handlers) handlePredict(w http.ResponseWriter, r *http.Request) {
	in, err := decodeInput(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	result, err := h.predict(r.Context(), in)
	if err != nil {
		respondError(w, statusFor(err), err)
		return
	}

	respondJSON(w, http.StatusOK, predictResponse{
		Label:    result.Label,
		Message:  result.Message,
		Features: in.Vector(),
	})
}

// decodeInput 解析JSON请求体, 缺失字段取默认值
func decodeInput(r *http.Request) (heart.Input, error) {
	in := heart.DefaultInput()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&in); err != nil {
		return heart.Input{}, errors.New("invalid request body: " + err.Error())
	}
	if err := decoder.Decode(&json.RawMessage{}); err != io.EOF {
		return heart.Input{}, errors.New("invalid request body: unexpected data after JSON object")
	}
	return in, nil
}

func (h *Handlers) handleSchema(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"fields":   heart.Schema,
		"defaults": heart.DefaultInput(),
	})
}

func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":     "ok",
		"model_type": h.store.Current().ModelType(),
		"uptime":     h.metrics.GetUptime().Round(time.Second).String(),
	})
}

func (h *Handlers) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	w.Write([]byte(h.metrics.ExportPrometheus()))
}

// statusFor 错误到HTTP状态码的映射
func statusFor(err error) int {
	var verr *heart.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, heart.ErrSchemaMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func errorKind(err error) string {
	var verr *heart.ValidationError
	switch {
	case errors.As(err, &verr):
		return "validation"
	case errors.Is(err, heart.ErrSchemaMismatch):
		return "schema"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "inference"
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, errorBody(err))
}

func errorBody(err error) errorResponse {
	body := errorResponse{Error: err.Error()}
	var verr *heart.ValidationError
	if errors.As(err, &verr) {
		body.Fields = verr.Errors
	}
	return body
}
