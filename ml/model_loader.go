package ml

import (
	"fmt"
)

func NewModel(modelType string, featureNames []string, maxDepth int) (MLModel, error) {
	switch modelType {
	case DecisionTreeType:
		return NewDecisionTree(maxDepth, featureNames), nil
	case LogisticRegressionType:
		return NewLogisticRegression(featureNames), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedModel, modelType)
	}
}

func LoadModel(modelType, path string) (MLModel, error) {
	model, err := NewModel(modelType, nil, 0)
	if err != nil {
		return nil, err
	}
	if err := model.Load(path); err != nil {
		return nil, fmt.Errorf("load %s model from %s: %w", modelType, path, err)
	}
	return model, nil
}
