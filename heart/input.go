package heart

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Input 一次预测的13个临床特征
type Input struct {
	Age      int     `json:"age"`
	Sex      int     `json:"sex"`
	CP       int     `json:"cp"`
	Trestbps int     `json:"trestbps"`
	Chol     int     `json:"chol"`
	FBS      int     `json:"fbs"`
	RestECG  int     `json:"restecg"`
	Thalach  int     `json:"thalach"`
	Exang    int     `json:"exang"`
	Oldpeak  float64 `json:"oldpeak"`
	Slope    int     `json:"slope"`
	CA       int     `json:"ca"`
	Thal     int     `json:"thal"`
}

// FieldError 单个字段的校验错误
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError 输入不在取值域内
type ValidationError struct {
	Errors []FieldError `json:"errors"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + " " + fe.Message
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

// Has 判断某字段是否有错误
func (e *ValidationError) Has(field string) bool {
	for _, fe := range e.Errors {
		if fe.Field == field {
			return true
		}
	}
	return false
}

// DefaultInput 表单默认值
func DefaultInput() Input {
	in, err := InputFromVector(defaultVector())
	if err != nil {
		panic(err)
	}
	return in
}

func defaultVector() []float64 {
	vector := make([]float64, len(Schema))
	for i, field := range Schema {
		vector[i] = field.Default
	}
	return vector
}

// Vector 按Schema顺序组装特征向量
func (in Input) Vector() []float64 {
	return []float64{
		float64(in.Age),
		float64(in.Sex),
		float64(in.CP),
		float64(in.Trestbps),
		float64(in.Chol),
		float64(in.FBS),
		float64(in.RestECG),
		float64(in.Thalach),
		float64(in.Exang),
		in.Oldpeak,
		float64(in.Slope),
		float64(in.CA),
		float64(in.Thal),
	}
}

// Values 以特征名为键的取值
func (in Input) Values() map[string]float64 {
	vector := in.Vector()
	values := make(map[string]float64, len(vector))
	for i, field := range Schema {
		values[field.Name] = vector[i]
	}
	return values
}

// Validate 逐字段校验取值域, 不做跨字段校验
func (in Input) Validate() error {
	return validateVector(in.Vector())
}

func validateVector(vector []float64) error {
	var verr ValidationError
	for i, field := range Schema {
		if err := field.Check(vector[i]); err != nil {
			verr.Errors = append(verr.Errors, FieldError{Field: field.Name, Message: err.Error()})
		}
	}
	if len(verr.Errors) > 0 {
		return &verr
	}
	return nil
}

// InputFromVector 由有序特征向量还原Input, 并校验取值域
func InputFromVector(vector []float64) (Input, error) {
	if len(vector) != len(Schema) {
		return Input{}, fmt.Errorf("%w: vector has %d values, schema has %d fields", ErrSchemaMismatch, len(vector), len(Schema))
	}
	if err := validateVector(vector); err != nil {
		return Input{}, err
	}
	return Input{
		Age:      int(vector[0]),
		Sex:      int(vector[1]),
		CP:       int(vector[2]),
		Trestbps: int(vector[3]),
		Chol:     int(vector[4]),
		FBS:      int(vector[5]),
		RestECG:  int(vector[6]),
		Thalach:  int(vector[7]),
		Exang:    int(vector[8]),
		Oldpeak:  vector[9],
		Slope:    int(vector[10]),
		CA:       int(vector[11]),
		Thal:     int(vector[12]),
	}, nil
}

// ParseValues 解析表单提交, 缺失字段取默认值
func ParseValues(values url.Values) (Input, error) {
	vector := defaultVector()
	var verr ValidationError
	for i, field := range Schema {
		raw := strings.TrimSpace(values.Get(field.Name))
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			verr.Errors = append(verr.Errors, FieldError{Field: field.Name, Message: "must be a number"})
			continue
		}
		vector[i] = v
	}
	if len(verr.Errors) > 0 {
		return Input{}, &verr
	}
	return InputFromVector(vector)
}
