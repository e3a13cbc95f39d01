package main

import (
	"context"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/waste-risk/internal/config"
	"github.com/sells-group/waste-risk/internal/estimate"
	"github.com/sells-group/waste-risk/internal/geoscraper"
	"github.com/sells-group/waste-risk/internal/geospatial"
	"github.com/sells-group/waste-risk/internal/model"
	"github.com/sells-group/waste-risk/internal/pipeline"
	"github.com/sells-group/waste-risk/internal/resilience"
)

var (
	fetchPlace string
	fetchBBox  string
	fetchOut   string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch OpenStreetMap features, score them and write risk GeoJSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		area, err := fetchArea(cfg, fetchPlace, fetchBBox)
		if err != nil {
			return err
		}
		src := geoscraper.NewOverpassSource(geoscraper.Options{
			Endpoint:    cfg.OSM.Endpoint,
			Timeout:     time.Duration(cfg.OSM.TimeoutSecs) * time.Second,
			MaxParallel: cfg.OSM.MaxParallel,
			Retry:       overpassPolicy(cfg),
		})
		out := fetchOut
		if out == "" {
			out = cfg.Data.RiskDataPath
		}
		return runFetch(cmd.Context(), cfg, src, area, out, cmd.OutOrStdout())
	},
}

func init() {
	fetchCmd.Flags().StringVar(&fetchPlace, "place", "", "place name to fetch (default from config)")
	fetchCmd.Flags().StringVar(&fetchBBox, "bbox", "", "bounding box min_lon,min_lat,max_lon,max_lat (overrides place)")
	fetchCmd.Flags().StringVar(&fetchOut, "out", "", "output GeoJSON path (default data.risk_data_path)")
	rootCmd.AddCommand(fetchCmd)
}

// fetchArea resolves the fetch area from flags, falling back to config. A
// bbox wins over a place name.
func fetchArea(c *config.Config, place, bbox string) (geoscraper.Area, error) {
	if bbox != "" {
		b, err := model.ParseBBox(bbox)
		if err != nil {
			return geoscraper.Area{}, err
		}
		return geoscraper.Area{BBox: b}, nil
	}
	if place != "" {
		return geoscraper.Area{Place: place}, nil
	}
	b, err := c.OSMBBox()
	if err != nil {
		return geoscraper.Area{}, err
	}
	return geoscraper.Area{Place: c.OSM.Place, BBox: b}, nil
}

func overpassPolicy(c *config.Config) resilience.Policy {
	p := resilience.DefaultPolicy()
	if c.OSM.Retries > 0 {
		p.Attempts = c.OSM.Retries
	}
	return p
}

func runFetch(ctx context.Context, c *config.Config, src geoscraper.Source, area geoscraper.Area, out string, w io.Writer) error {
	zones, err := c.Zones()
	if err != nil {
		return err
	}
	points, err := geoscraper.Collect(ctx, src, area, zones)
	if err != nil {
		return err
	}

	records := make([]pipeline.Record, len(points))
	for i, p := range points {
		records[i] = pipeline.Record{Point: p}
	}

	opts, err := batchOptions(c, c.Scoring.Preset, c.Scoring.Binning, c.Scoring.Seed, estimate.Uniform{})
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
	zap.L().Info("risk data written", zap.String("path", out), zap.String("area", area.String()))

	run, err := persistBatch(ctx, c, model.RunSourceOSM, batch)
	if err != nil {
		return err
	}
	return printJSON(w, batchSummary(out, batch, run))
}
