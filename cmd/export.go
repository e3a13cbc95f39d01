package main

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/waste-risk/internal/export"
	"github.com/sells-group/waste-risk/internal/geospatial"
	"github.com/sells-group/waste-risk/internal/model"
	"github.com/sells-group/waste-risk/internal/store"
)

var (
	exportRun    string
	exportIn     string
	exportFormat string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export scored points as a shapefile or spreadsheet",
	Long:  "Exports a stored run (--run <id>|latest) or a scored GeoJSON file (--in). One of the two is required.",
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := export.ParseFormat(exportFormat)
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		var st store.Store
		if exportRun != "" {
			st, err = store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
			if err != nil {
				return err
			}
			if st == nil {
				return eris.New("export: --run requires store.driver to be set")
			}
			defer st.Close() //nolint:errcheck
		}
		return runExport(ctx, st, exportRun, exportIn, f, exportOut, cmd.OutOrStdout())
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportRun, "run", "", "stored run id or \"latest\"")
	exportCmd.Flags().StringVar(&exportIn, "in", "", "scored GeoJSON path")
	exportCmd.Flags().StringVar(&exportFormat, "format", string(export.FormatXLSX), "shp or xlsx")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output path (default derived from the source)")
	exportCmd.MarkFlagsMutuallyExclusive("run", "in")
	exportCmd.MarkFlagsOneRequired("run", "in")
	rootCmd.AddCommand(exportCmd)
}

type exportOutput struct {
	Output string `json:"output"`
	Format string `json:"format"`
	Points int    `json:"points"`
	RunID  string `json:"run_id,omitempty"`
}

// runExport loads points from the store (runRef) or from a GeoJSON file (in)
// and writes them in format f. An empty out is derived from the source.
func runExport(ctx context.Context, st store.Store, runRef, in string, f export.Format, out string, w io.Writer) error {
	var (
		run    *model.Run
		points []model.ScoredPoint
		err    error
	)
	switch {
	case runRef != "":
		if st == nil {
			return eris.New("export: no store configured")
		}
		run, err = store.Resolve(ctx, st, runRef)
		if err != nil {
			return err
		}
		points, err = st.ListPoints(ctx, run.ID)
		if err != nil {
			return err
		}
		if out == "" {
			out = "run-" + run.ID + f.Ext()
		}
	case in != "":
		points, err = geospatial.ReadScored(in)
		if err != nil {
			return err
		}
		if out == "" {
			out = strings.TrimSuffix(in, filepath.Ext(in)) + f.Ext()
		}
	default:
		return eris.New("export: a run or input file is required")
	}

	if err := export.Write(out, f, run, points); err != nil {
		return err
	}
	zap.L().Info("export written", zap.String("path", out), zap.String("format", string(f)))

	res := exportOutput{Output: out, Format: string(f), Points: len(points)}
	if run != nil {
		res.RunID = run.ID
	}
	return printJSON(w, res)
}
