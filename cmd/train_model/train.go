package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"heartpredict/heart"
	"heartpredict/ml"
)

const targetColumn = "target"

type trainOptions struct {
	dataPath  string
	modelType string
	outPath   string
	maxDepth  int
	testRatio float64
	seed      int64
}

func newTrainCmd() *cobra.Command {
	opts := trainOptions{}
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a model from a labelled CSV and write the artifact",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrain(cmd, opts)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.dataPath, "data", "", "CSV with a header row, the 13 feature columns and a target column")
	flags.StringVar(&opts.modelType, "model-type", ml.DecisionTreeType, "decision_tree or logistic_regression")
	flags.StringVar(&opts.outPath, "out", "./models/heart.json", "model output path")
	flags.IntVar(&opts.maxDepth, "max-depth", 5, "max tree depth")
	flags.Float64Var(&opts.testRatio, "test-ratio", 0.2, "fraction of rows held out for evaluation")
	flags.Int64Var(&opts.seed, "seed", 42, "shuffle seed")
	cmd.MarkFlagRequired("data")
	return cmd
}

func runTrain(cmd *cobra.Command, opts trainOptions) error {
	if opts.testRatio <= 0 || opts.testRatio >= 1 {
		return errors.New("test-ratio must be in (0, 1)")
	}

	file, err := os.Open(opts.dataPath)
	if err != nil {
		return err
	}
	defer file.Close()

	features, labels, err := ml.ReadCSV(file, heart.FeatureNames(), targetColumn)
	if err != nil {
		return fmt.Errorf("read %s: %w", opts.dataPath, err)
	}

	trainX, trainY, testX, testY := ml.SplitDataset(features, labels, opts.testRatio, opts.seed)

	model, err := ml.NewModel(opts.modelType, heart.FeatureNames(), opts.maxDepth)
	if err != nil {
		return err
	}
	if err := model.Train(trainX, trainY); err != nil {
		return fmt.Errorf("failed to train model: %w", err)
	}

	eval := ml.Evaluate(model, testX, testY)
	fmt.Fprintf(cmd.OutOrStdout(), "trained %s on %d rows, evaluated on %d: accuracy=%.2f precision=%.2f recall=%.2f\n",
		opts.modelType, len(trainX), eval.Samples, eval.Accuracy, eval.Precision, eval.Recall)

	if err := os.MkdirAll(filepath.Dir(opts.outPath), 0o755); err != nil {
		return fmt.Errorf("failed to create model dir: %w", err)
	}
	if err := model.Save(opts.outPath); err != nil {
		return fmt.Errorf("failed to save model: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "model saved to %s\n", opts.outPath)
	return nil
}
