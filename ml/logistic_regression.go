package ml

import (
	"errors"
	"fmt"
	"math"
)

// LogisticRegression is a binary classifier over standardized features.
type LogisticRegression struct {
	Epochs       int
	LearningRate float64

	features []string
	params   logisticParams
}

type logisticParams struct {
	Means     []float64 `json:"means"`
	Scales    []float64 `json:"scales"`
	Weights   []float64 `json:"weights"`
	Intercept float64   `json:"intercept"`
	Threshold float64   `json:"threshold"`
}

func NewLogisticRegression(featureNames []string) *LogisticRegression {
	return &LogisticRegression{
		Epochs:       1000,
		LearningRate: 0.1,
		features:     append([]string(nil), featureNames...),
	}
}

func (lr *LogisticRegression) Type() string {
	return LogisticRegressionType
}

func (lr *LogisticRegression) FeatureNames() []string {
	return append([]string(nil), lr.features...)
}

// Train runs full-batch gradient descent. Labels must be 0 or 1.
func (lr *LogisticRegression) Train(features [][]float64, labels []int) error {
	if len(features) == 0 || len(labels) == 0 {
		return errors.New("features or labels empty")
	}
	if len(features) != len(labels) {
		return errors.New("features and labels size mismatch")
	}
	width := len(features[0])
	for _, row := range features {
		if len(row) != width {
			return fmt.Errorf("%w: ragged training rows", ErrFeatureCount)
		}
		if err := checkFeatureCount(lr.features, row); err != nil {
			return err
		}
	}
	for _, label := range labels {
		if label != 0 && label != 1 {
			return fmt.Errorf("logistic regression needs binary labels, got %d", label)
		}
	}
	epochs := lr.Epochs
	if epochs <= 0 {
		epochs = 1000
	}
	rate := lr.LearningRate
	if rate <= 0 {
		rate = 0.1
	}

	means, scales := standardization(features, width)
	scaled := make([][]float64, len(features))
	for i, row := range features {
		scaled[i] = standardize(row, means, scales)
	}

	weights := make([]float64, width)
	intercept := 0.0
	n := float64(len(scaled))
	grad := make([]float64, width)
	for epoch := 0; epoch < epochs; epoch++ {
		for j := range grad {
			grad[j] = 0
		}
		gradIntercept := 0.0
		for i, row := range scaled {
			diff := sigmoid(dot(weights, row)+intercept) - float64(labels[i])
			for j, v := range row {
				grad[j] += diff * v
			}
			gradIntercept += diff
		}
		for j := range weights {
			weights[j] -= rate * grad[j] / n
		}
		intercept -= rate * gradIntercept / n
	}

	lr.params = logisticParams{
		Means:     means,
		Scales:    scales,
		Weights:   weights,
		Intercept: intercept,
		Threshold: 0.5,
	}
	return nil
}

func (lr *LogisticRegression) Predict(features []float64) (int, float64, error) {
	if len(lr.params.Weights) == 0 {
		return 0, 0, ErrNotTrained
	}
	if err := checkFeatureCount(lr.features, features); err != nil {
		return 0, 0, err
	}
	if len(features) != len(lr.params.Weights) {
		return 0, 0, fmt.Errorf("%w: got %d, model expects %d", ErrFeatureCount, len(features), len(lr.params.Weights))
	}
	p := sigmoid(dot(lr.params.Weights, standardize(features, lr.params.Means, lr.params.Scales)) + lr.params.Intercept)
	if p >= lr.params.Threshold {
		return 1, p, nil
	}
	return 0, 1 - p, nil
}

func (lr *LogisticRegression) Save(path string) error {
	if len(lr.params.Weights) == 0 {
		return ErrNotTrained
	}
	return writeArtifact(path, LogisticRegressionType, lr.features, lr.params)
}

func (lr *LogisticRegression) Load(path string) error {
	var params logisticParams
	names, err := readArtifact(path, LogisticRegressionType, &params)
	if err != nil {
		return err
	}
	width := len(params.Weights)
	if width == 0 {
		return ErrNotTrained
	}
	if len(params.Means) != width || len(params.Scales) != width {
		return fmt.Errorf("model %s: standardization size does not match %d weights", path, width)
	}
	if params.Threshold <= 0 || params.Threshold >= 1 {
		params.Threshold = 0.5
	}
	lr.features = names
	lr.params = params
	return nil
}

func standardization(features [][]float64, width int) ([]float64, []float64) {
	means := make([]float64, width)
	scales := make([]float64, width)
	n := float64(len(features))
	for _, row := range features {
		for j, v := range row {
			means[j] += v / n
		}
	}
	for _, row := range features {
		for j, v := range row {
			d := v - means[j]
			scales[j] += d * d / n
		}
	}
	for j := range scales {
		scales[j] = math.Sqrt(scales[j])
		if scales[j] == 0 {
			scales[j] = 1
		}
	}
	return means, scales
}

func standardize(row, means, scales []float64) []float64 {
	out := make([]float64, len(row))
	for j, v := range row {
		scale := scales[j]
		if scale == 0 {
			scale = 1
		}
		out[j] = (v - means[j]) / scale
	}
	return out
}

func dot(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
