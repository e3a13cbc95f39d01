package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/sells-group/waste-risk/internal/config"
	"github.com/sells-group/waste-risk/internal/geospatial"
	"github.com/sells-group/waste-risk/internal/model"
	"github.com/sells-group/waste-risk/internal/pipeline"
)

var (
	scoreIn      string
	scoreOut     string
	scorePreset  string
	scoreBinning string
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score a GeoJSON file of zone points",
	Long:  "Reads point or polygon features with a zone_type property. Missing pop_density, waste_volume, dist_tps and road_access values are derived before scoring.",
	RunE: func(cmd *cobra.Command, args []string) error {
		preset, binning := scorePreset, scoreBinning
		if preset == "" {
			preset = cfg.Scoring.Preset
		}
		if binning == "" {
			binning = cfg.Scoring.Binning
		}
		out := scoreOut
		if out == "" {
			out = cfg.Data.RiskDataPath
		}
		return runScore(cmd.Context(), cfg, scoreIn, out, preset, binning, cmd.OutOrStdout())
	},
}

func init() {
	scoreCmd.Flags().StringVar(&scoreIn, "in", "", "input GeoJSON path")
	scoreCmd.Flags().StringVar(&scoreOut, "out", "", "output GeoJSON path (default data.risk_data_path)")
	scoreCmd.Flags().StringVar(&scorePreset, "preset", "", "weight preset (default scoring.preset)")
	scoreCmd.Flags().StringVar(&scoreBinning, "binning", "", "fixed or equal_width (default scoring.binning)")
	_ = scoreCmd.MarkFlagRequired("in")
	rootCmd.AddCommand(scoreCmd)
}

func runScore(ctx context.Context, c *config.Config, in, out, preset, binning string, w io.Writer) error {
	records, err := geospatial.ReadRecords(in)
	if err != nil {
		return err
	}
	opts, err := batchOptions(c, preset, binning, c.Scoring.Seed, nil)
	if err != nil {
		return err
	}
	batch, err := pipeline.Run(ctx, records, opts)
	if err != nil {
		return err
	}
	if err := geospatial.WriteFile(out, batch.Points); err != nil {
		return err
	}
	run, err := persistBatch(ctx, c, model.RunSourceFile, batch)
	if err != nil {
		return err
	}
	return printJSON(w, batchSummary(out, batch, run))
}
