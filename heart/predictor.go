package heart

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"heartpredict/ml"
)

var (
	ErrSchemaMismatch = errors.New("feature schema mismatch")
	ErrInference      = errors.New("inference failed")
)

const (
	MessageFailure   = "The model predicts: **Heart Failure Detected**."
	MessageNoFailure = "The model predicts: **No Heart Failure Detected**."
)

// Result 预测结果, 不持久化也不记录日志
type Result struct {
	Label   int    `json:"label"`
	Message string `json:"message"`
	Cached  bool   `json:"-"`
}

// ResultFor 标签1为检出心衰, 其余标签均视为未检出
func ResultFor(label int) Result {
	if label == 1 {
		return Result{Label: label, Message: MessageFailure}
	}
	return Result{Label: label, Message: MessageNoFailure}
}

// Predictor 持有一个只读模型, 加载后不再变化, 可并发使用
type Predictor struct {
	model     ml.Classifier
	modelType string
	cache     *lru.Cache[string, int]
}

// Option Predictor选项
type Option func(*Predictor) error

// WithCache 启用大小为size的结果缓存, size<=0时不缓存
func WithCache(size int) Option {
	return func(p *Predictor) error {
		if size <= 0 {
			return nil
		}
		cache, err := lru.New[string, int](size)
		if err != nil {
			return err
		}
		p.cache = cache
		return nil
	}
}

// WithModelType 记录模型类型, 仅用于展示
func WithModelType(modelType string) Option {
	return func(p *Predictor) error {
		p.modelType = modelType
		return nil
	}
}

// NewPredictor 校验模型训练时的特征顺序与Schema一致
func NewPredictor(model ml.Classifier, opts ...Option) (*Predictor, error) {
	if model == nil {
		return nil, errors.New("model is nil")
	}
	if err := checkSchema(model.FeatureNames()); err != nil {
		return nil, err
	}
	p := &Predictor{model: model}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// LoadPredictor 从模型文件加载Predictor
func LoadPredictor(modelType, path string, opts ...Option) (*Predictor, error) {
	model, err := ml.LoadModel(modelType, path)
	if err != nil {
		return nil, err
	}
	opts = append([]Option{WithModelType(modelType)}, opts...)
	return NewPredictor(model, opts...)
}

// ModelType 模型类型
func (p *Predictor) ModelType() string {
	return p.modelType
}

// Predict 组装特征向量并调用一次模型
func (p *Predictor) Predict(ctx context.Context, in Input) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if err := in.Validate(); err != nil {
		return Result{}, err
	}
	vector := in.Vector()
	if want := len(p.model.FeatureNames()); len(vector) != want {
		return Result{}, fmt.Errorf("%w: assembled %d features, model expects %d", ErrSchemaMismatch, len(vector), want)
	}

	var key string
	if p.cache != nil {
		key = vectorKey(vector)
		if label, ok := p.cache.Get(key); ok {
			result := ResultFor(label)
			result.Cached = true
			return result, nil
		}
	}

	label, _, err := p.model.Predict(vector)
	if err != nil {
		if errors.Is(err, ml.ErrFeatureCount) {
			return Result{}, fmt.Errorf("%w: %w", ErrSchemaMismatch, err)
		}
		return Result{}, fmt.Errorf("%w: %w", ErrInference, err)
	}
	if p.cache != nil {
		p.cache.Add(key, label)
	}
	return ResultFor(label), nil
}

func checkSchema(modelNames []string) error {
	want := FeatureNames()
	if len(modelNames) == 0 {
		return fmt.Errorf("%w: model does not declare its feature names, expected %v", ErrSchemaMismatch, want)
	}
	if len(modelNames) != len(want) {
		return fmt.Errorf("%w: model has %d features %v, expected %d %v", ErrSchemaMismatch, len(modelNames), modelNames, len(want), want)
	}
	for i := range want {
		if modelNames[i] != want[i] {
			return fmt.Errorf("%w: feature %d is %q in the model, expected %q", ErrSchemaMismatch, i, modelNames[i], want[i])
		}
	}
	return nil
}

func vectorKey(vector []float64) string {
	var b strings.Builder
	for i, v := range vector {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	return b.String()
}
