// Package heart 心衰预测: 特征定义、输入校验与推理
package heart

import (
	"errors"
	"fmt"
	"math"
)

// Kind 输入控件类型
type Kind string

const (
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
	KindChoice Kind = "choice"
)

// Field 单个特征的定义
type Field struct {
	Name    string  `json:"name"`
	Label   string  `json:"label"`
	Kind    Kind    `json:"kind"`
	Min     float64 `json:"min,omitempty"`
	Max     float64 `json:"max,omitempty"`
	Step    float64 `json:"step,omitempty"`
	Choices []int   `json:"choices,omitempty"`
	Default float64 `json:"default"`
}

// Schema 特征顺序即模型输入顺序, 不可调整
var Schema = []Field{
	{Name: "age", Label: "Age", Kind: KindInt, Min: 0, Max: 100, Step: 1, Default: 52},
	{Name: "sex", Label: "Sex (1 = Male, 0 = Female)", Kind: KindChoice, Choices: []int{0, 1}, Default: 1},
	{Name: "cp", Label: "Chest Pain Type (0 = Typical, 1 = Atypical, 2 = Non-anginal, 3 = Asymptomatic)", Kind: KindChoice, Choices: []int{0, 1, 2, 3}, Default: 0},
	{Name: "trestbps", Label: "Resting Blood Pressure (in mm Hg)", Kind: KindInt, Min: 50, Max: 200, Step: 1, Default: 125},
	{Name: "chol", Label: "Serum Cholesterol (mg/dl)", Kind: KindInt, Min: 100, Max: 600, Step: 1, Default: 212},
	{Name: "fbs", Label: "Fasting Blood Sugar > 120 mg/dl (1 = True, 0 = False)", Kind: KindChoice, Choices: []int{0, 1}, Default: 0},
	{Name: "restecg", Label: "Resting ECG (0 = Normal, 1 = Abnormality, 2 = Probable/Definite)", Kind: KindChoice, Choices: []int{0, 1, 2}, Default: 1},
	{Name: "thalach", Label: "Maximum Heart Rate Achieved", Kind: KindInt, Min: 50, Max: 250, Step: 1, Default: 168},
	{Name: "exang", Label: "Exercise Induced Angina (1 = Yes, 0 = No)", Kind: KindChoice, Choices: []int{0, 1}, Default: 0},
	{Name: "oldpeak", Label: "ST Depression Induced by Exercise", Kind: KindFloat, Min: 0, Max: 10, Step: 0.01, Default: 1.0},
	{Name: "slope", Label: "Slope of Peak Exercise ST Segment (0 = Upsloping, 1 = Flat, 2 = Downsloping)", Kind: KindChoice, Choices: []int{0, 1, 2}, Default: 2},
	{Name: "ca", Label: "Number of Major Vessels Colored by Fluoroscopy (0-3)", Kind: KindChoice, Choices: []int{0, 1, 2, 3}, Default: 2},
	{Name: "thal", Label: "Thalassemia (1 = Normal, 2 = Fixed Defect, 3 = Reversible Defect)", Kind: KindChoice, Choices: []int{1, 2, 3}, Default: 3},
}

// FeatureNames 返回按模型输入顺序排列的特征名
func FeatureNames() []string {
	names := make([]string, len(Schema))
	for i, field := range Schema {
		names[i] = field.Name
	}
	return names
}

// FieldByName 查找特征定义
func FieldByName(name string) (Field, bool) {
	for _, field := range Schema {
		if field.Name == name {
			return field, true
		}
	}
	return Field{}, false
}

// Check 校验取值是否在该特征的取值域内
func (f Field) Check(value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return errors.New("must be a finite number")
	}
	switch f.Kind {
	case KindChoice:
		for _, choice := range f.Choices {
			if value == float64(choice) {
				return nil
			}
		}
		return fmt.Errorf("must be one of %v", f.Choices)
	case KindInt:
		if value != float64(int64(value)) {
			return errors.New("must be a whole number")
		}
		fallthrough
	default:
		if value < f.Min || value > f.Max {
			return fmt.Errorf("must be between %g and %g", f.Min, f.Max)
		}
		return nil
	}
}
