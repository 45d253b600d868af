package ml

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"strconv"
	"strings"
)

// ReadCSV reads a labelled dataset with a header row. Columns are picked by
// name so the file may carry extra columns in any order.
func ReadCSV(r io.Reader, featureNames []string, target string) ([][]float64, []int, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}

	columns := make([]int, len(featureNames))
	for i, name := range featureNames {
		col, ok := index[name]
		if !ok {
			return nil, nil, fmt.Errorf("missing column %q", name)
		}
		columns[i] = col
	}
	targetCol, ok := index[target]
	if !ok {
		return nil, nil, fmt.Errorf("missing target column %q", target)
	}

	var features [][]float64
	var labels []int
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("line %d: %w", line, err)
		}
		row := make([]float64, len(columns))
		for i, col := range columns {
			v, err := strconv.ParseFloat(strings.TrimSpace(record[col]), 64)
			if err != nil {
				return nil, nil, fmt.Errorf("line %d column %q: %w", line, featureNames[i], err)
			}
			row[i] = v
		}
		label, err := strconv.Atoi(strings.TrimSpace(record[targetCol]))
		if err != nil {
			return nil, nil, fmt.Errorf("line %d column %q: %w", line, target, err)
		}
		features = append(features, row)
		labels = append(labels, label)
	}
	if len(features) == 0 {
		return nil, nil, errors.New("dataset has no rows")
	}
	return features, labels, nil
}

func SplitDataset(features [][]float64, labels []int, testRatio float64, seed int64) (trainX [][]float64, trainY []int, testX [][]float64, testY []int) {
	if testRatio <= 0 || testRatio >= 1 {
		testRatio = 0.2
	}
	rnd := rand.New(rand.NewSource(seed))
	indices := rnd.Perm(len(features))

	split := int(math.Round(float64(len(features)) * (1 - testRatio)))
	for i, idx := range indices {
		if i < split {
			trainX = append(trainX, features[idx])
			trainY = append(trainY, labels[idx])
		} else {
			testX = append(testX, features[idx])
			testY = append(testY, labels[idx])
		}
	}
	return trainX, trainY, testX, testY
}

type Evaluation struct {
	Accuracy  float64
	Precision float64
	Recall    float64
	Samples   int
}

// Evaluate scores a binary classifier with label 1 as the positive class.
func Evaluate(model Classifier, testX [][]float64, testY []int) Evaluation {
	eval := Evaluation{Samples: len(testX)}
	if len(testX) == 0 {
		return eval
	}

	var correct, truePositive, predictedPositive, actualPositive int
	for i, feature := range testX {
		label, _, err := model.Predict(feature)
		if err != nil {
			continue
		}
		if label == testY[i] {
			correct++
		}
		if label == 1 {
			predictedPositive++
		}
		if testY[i] == 1 {
			actualPositive++
			if label == 1 {
				truePositive++
			}
		}
	}

	eval.Accuracy = float64(correct) / float64(len(testX))
	if predictedPositive > 0 {
		eval.Precision = float64(truePositive) / float64(predictedPositive)
	}
	if actualPositive > 0 {
		eval.Recall = float64(truePositive) / float64(actualPositive)
	}
	return eval
}
