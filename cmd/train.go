package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/waste-risk/internal/classifier"
	"github.com/sells-group/waste-risk/internal/geospatial"
	"github.com/sells-group/waste-risk/internal/pipeline"
)

var (
	trainData     string
	trainModel    string
	trainTestFrac float64
	trainSeed     uint64
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the centroid classifier on a labelled dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, out := trainData, trainModel
		if data == "" {
			data = cfg.Data.SyntheticPath
		}
		if out == "" {
			out = cfg.Data.ModelPath
		}
		seed := cfg.Scoring.Seed
		if cmd.Flags().Changed("seed") {
			seed = trainSeed
		}
		return runTrain(cmd.Context(), data, out, trainTestFrac, seed, cmd.OutOrStdout())
	},
}

func init() {
	trainCmd.Flags().StringVar(&trainData, "data", "", "labelled GeoJSON (default data.synthetic_path)")
	trainCmd.Flags().StringVar(&trainModel, "model", "", "model output path (default data.model_path)")
	trainCmd.Flags().Float64Var(&trainTestFrac, "test-fraction", pipeline.DefaultTestFraction, "share of points held out for evaluation")
	trainCmd.Flags().Uint64Var(&trainSeed, "seed", 0, "split seed (default scoring.seed)")
	rootCmd.AddCommand(trainCmd)
}

type trainOutput struct {
	Model     string            `json:"model"`
	Path      string            `json:"path"`
	TrainSize int               `json:"train_size"`
	TestSize  int               `json:"test_size"`
	Report    classifier.Report `json:"report"`
}

func runTrain(ctx context.Context, data, out string, testFrac float64, seed uint64, w io.Writer) error {
	points, err := geospatial.ReadScored(data)
	if err != nil {
		return err
	}
	res, err := pipeline.Train(ctx, points, testFrac, seed)
	if err != nil {
		return err
	}
	if err := res.Model.Save(out); err != nil {
		return err
	}
	zap.L().Info("model saved", zap.String("path", out))

	return printJSON(w, trainOutput{
		Model:     classifier.CentroidName,
		Path:      out,
		TrainSize: res.TrainSize,
		TestSize:  res.TestSize,
		Report:    res.Report,
	})
}
