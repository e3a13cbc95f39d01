package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/sells-group/waste-risk/internal/classifier"
	"github.com/sells-group/waste-risk/internal/inference"
)

var predictReq struct {
	popDensity  float64
	distTPS     float64
	wasteVolume float64
	roadAccess  string
	zoneType    string
}

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict the risk level of a single point",
	RunE: func(cmd *cobra.Command, args []string) error {
		req := inference.Request{}
		f := cmd.Flags()
		if f.Changed("pop-density") {
			req.PopDensity = &predictReq.popDensity
		}
		if f.Changed("dist-tps") {
			req.DistTPS = &predictReq.distTPS
		}
		if f.Changed("waste-volume") {
			req.WasteVolume = &predictReq.wasteVolume
		}
		if f.Changed("road-access") {
			req.RoadAccess = &predictReq.roadAccess
		}
		if f.Changed("zone-type") {
			req.ZoneType = &predictReq.zoneType
		}

		provider, _, err := newProvider(cfg, cfg.Data.ModelPath)
		if err != nil {
			return err
		}
		return runPredict(cmd.Context(), provider, req, cmd.OutOrStdout())
	},
}

func init() {
	f := predictCmd.Flags()
	f.Float64Var(&predictReq.popDensity, "pop-density", 0, "population density (people/km²)")
	f.Float64Var(&predictReq.distTPS, "dist-tps", 0, "distance to nearest TPS (m)")
	f.Float64Var(&predictReq.wasteVolume, "waste-volume", 0, "waste volume (kg/day)")
	f.StringVar(&predictReq.roadAccess, "road-access", "", "Good, Moderate or Poor")
	f.StringVar(&predictReq.zoneType, "zone-type", "", "zone category, e.g. Market")
	rootCmd.AddCommand(predictCmd)
}

func runPredict(ctx context.Context, p classifier.Provider, req inference.Request, w io.Writer) error {
	fv, err := req.FeatureVector()
	if err != nil {
		return err
	}
	pred, err := inference.NewService(p).Predict(ctx, fv)
	if err != nil {
		return err
	}
	return printJSON(w, pred)
}
