package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/waste-risk/internal/config"
	"github.com/sells-group/waste-risk/internal/geospatial"
	"github.com/sells-group/waste-risk/internal/model"
	"github.com/sells-group/waste-risk/internal/pipeline"
)

var (
	generateSamples int
	generateBBox    string
	generateSeed    uint64
	generateOut     string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a labelled synthetic dataset for training",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := generateOptions{
			Samples: cfg.Synthetic.Samples,
			Seed:    cfg.Scoring.Seed,
			Out:     cfg.Data.SyntheticPath,
		}
		if generateSamples > 0 {
			opts.Samples = generateSamples
		}
		if cmd.Flags().Changed("seed") {
			opts.Seed = generateSeed
		}
		if generateOut != "" {
			opts.Out = generateOut
		}
		var err error
		if generateBBox != "" {
			opts.BBox, err = model.ParseBBox(generateBBox)
		} else {
			opts.BBox, err = cfg.SyntheticBBox()
		}
		if err != nil {
			return err
		}
		return runGenerate(cmd.Context(), cfg, opts, cmd.OutOrStdout())
	},
}

func init() {
	generateCmd.Flags().IntVar(&generateSamples, "samples", 0, "number of points (default synthetic.samples)")
	generateCmd.Flags().StringVar(&generateBBox, "bbox", "", "bounding box min_lon,min_lat,max_lon,max_lat")
	generateCmd.Flags().Uint64Var(&generateSeed, "seed", 0, "random seed (default scoring.seed)")
	generateCmd.Flags().StringVar(&generateOut, "out", "", "output GeoJSON path (default data.synthetic_path)")
	rootCmd.AddCommand(generateCmd)
}

type generateOptions struct {
	Samples int
	BBox    model.BBox
	Seed    uint64
	Out     string
}

func runGenerate(ctx context.Context, c *config.Config, o generateOptions, w io.Writer) error {
	if o.BBox.IsZero() {
		o.BBox = pipeline.DefaultSyntheticBBox
	}
	records, err := pipeline.Synthesize(o.Samples, o.BBox, o.Seed)
	if err != nil {
		return err
	}

	opts, err := batchOptions(c, c.Synthetic.Preset, c.Synthetic.Binning, o.Seed, nil)
	if err != nil {
		return err
	}
	batch, err := pipeline.Run(ctx, records, opts)
	if err != nil {
		return err
	}

	if err := geospatial.WriteFile(o.Out, batch.Points); err != nil {
		return err
	}
	zap.L().Info("synthetic data written", zap.String("path", o.Out), zap.Int("samples", len(batch.Points)))

	run, err := persistBatch(ctx, c, model.RunSourceSynthetic, batch)
	if err != nil {
		return err
	}
	return printJSON(w, batchSummary(o.Out, batch, run))
}
