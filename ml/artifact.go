package ml

import (
	"encoding/json"
	"fmt"
	"os"
)

// artifact is the on-disk envelope shared by all model types.
type artifact struct {
	ModelType    string          `json:"model_type"`
	FeatureNames []string        `json:"feature_names"`
	Payload      json.RawMessage `json:"payload"`
}

func writeArtifact(path, modelType string, featureNames []string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(artifact{
		ModelType:    modelType,
		FeatureNames: featureNames,
		Payload:      raw,
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func readArtifact(path, modelType string, payload interface{}) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode model %s: %w", path, err)
	}
	if a.ModelType != modelType {
		return nil, fmt.Errorf("model %s has type %q, expected %q", path, a.ModelType, modelType)
	}
	if len(a.Payload) == 0 {
		return nil, fmt.Errorf("model %s has no payload", path)
	}
	if err := json.Unmarshal(a.Payload, payload); err != nil {
		return nil, fmt.Errorf("decode model %s payload: %w", path, err)
	}
	return a.FeatureNames, nil
}
