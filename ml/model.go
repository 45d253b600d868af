package ml

import (
	"errors"
	"fmt"
)

var (
	ErrNotTrained       = errors.New("model not trained")
	ErrFeatureCount     = errors.New("feature count mismatch")
	ErrUnsupportedModel = errors.New("unsupported model type")
)

const (
	DecisionTreeType       = "decision_tree"
	LogisticRegressionType = "logistic_regression"
)

// Classifier is the inference side of a trained model. Implementations are
// read-only after loading and safe for concurrent use.
type Classifier interface {
	Predict(features []float64) (int, float64, error)
	FeatureNames() []string
}

type MLModel interface {
	Classifier
	Type() string
	Train(features [][]float64, labels []int) error
	Save(path string) error
	Load(path string) error
}

func checkFeatureCount(names []string, features []float64) error {
	if len(names) > 0 && len(features) != len(names) {
		return fmt.Errorf("%w: got %d, model expects %d", ErrFeatureCount, len(features), len(names))
	}
	return nil
}
