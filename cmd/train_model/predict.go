package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"heartpredict/heart"
	"heartpredict/ml"
)

func newPredictCmd() *cobra.Command {
	var modelPath, modelType string
	values := make(map[string]*string, len(heart.Schema))

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Run one prediction, unset features take the form defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			form := make(map[string][]string, len(values))
			for name, v := range values {
				if cmd.Flags().Changed(name) {
					form[name] = []string{*v}
				}
			}
			in, err := heart.ParseValues(form)
			if err != nil {
				return err
			}

			predictor, err := heart.LoadPredictor(modelType, modelPath)
			if err != nil {
				return err
			}
			result, err := predictor.Predict(context.Background(), in)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Message)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&modelPath, "model", "./models/heart.json", "model artifact path")
	flags.StringVar(&modelType, "model-type", ml.DecisionTreeType, "decision_tree or logistic_regression")
	for _, field := range heart.Schema {
		values[field.Name] = flags.String(field.Name, strconv.FormatFloat(field.Default, 'f', -1, 64), field.Label)
	}
	return cmd
}
