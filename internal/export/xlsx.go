package export

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/waste-risk/internal/model"
)

// Sheet names of the workbook.
const (
	SheetPoints  = "Points"
	SheetSummary = "Summary"
)

var pointHeader = []string{
	"id", "lon", "lat", "zone_type", "pop_density", "waste_volume", "dist_tps",
	"dist_measured", "road_access", "risk_score", "risk_level",
}

// XLSX writes a workbook with one row per point and a summary sheet.
func XLSX(path string, run *model.Run, points []model.ScoredPoint) error {
	f := xlsx.NewFile()

	sheet, err := f.AddSheet(SheetPoints)
	if err != nil {
		return eris.Wrap(err, "export: add points sheet")
	}
	addStrings(sheet.AddRow(), pointHeader...)
	for _, p := range points {
		row := sheet.AddRow()
		row.AddCell().SetString(p.Point.ID)
		row.AddCell().SetFloat(p.Point.Lon)
		row.AddCell().SetFloat(p.Point.Lat)
		row.AddCell().SetString(string(p.Point.Zone))
		row.AddCell().SetFloat(p.Features.PopDensity)
		row.AddCell().SetFloat(p.Features.WasteVolume)
		row.AddCell().SetFloat(p.Features.DistTPS)
		row.AddCell().SetString(strconv.FormatBool(p.DistMeasured))
		row.AddCell().SetString(string(p.Features.RoadAccess))
		row.AddCell().SetFloat(p.Risk.Score)
		row.AddCell().SetString(string(p.Risk.Level))
	}

	summary, err := f.AddSheet(SheetSummary)
	if err != nil {
		return eris.Wrap(err, "export: add summary sheet")
	}
	if run != nil {
		addStrings(summary.AddRow(), "run_id", run.ID)
		addStrings(summary.AddRow(), "source", string(run.Source))
		addStrings(summary.AddRow(), "preset", run.Preset)
		addStrings(summary.AddRow(), "binning", run.Binning)
		addStrings(summary.AddRow(), "seed", strconv.FormatUint(run.Seed, 10))
		addStrings(summary.AddRow(), "created_at", run.CreatedAt.Format(time.RFC3339))
	}
	counts := make(map[model.RiskLevel]int, 3)
	for _, p := range points {
		counts[p.Risk.Level]++
	}
	for _, lvl := range model.RiskLevels() {
		row := summary.AddRow()
		row.AddCell().SetString(string(lvl))
		row.AddCell().SetInt(counts[lvl])
	}
	total := summary.AddRow()
	total.AddCell().SetString("total")
	total.AddCell().SetInt(len(points))

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "export: create dir for %s", path)
	}
	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

func addStrings(row *xlsx.Row, values ...string) {
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}
