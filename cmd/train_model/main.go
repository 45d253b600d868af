package main

import (
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "train_model",
		Short:        "Train and try out heart failure classifiers",
		SilenceUsage: true,
	}
	root.AddCommand(newTrainCmd(), newPredictCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
