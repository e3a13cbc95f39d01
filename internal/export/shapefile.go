package export

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"

	"github.com/sells-group/waste-risk/internal/model"
)

// DBF column names are limited to 10 characters.
var shapeFields = []shp.Field{
	shp.StringField("ID", 64),
	shp.StringField("ZONE", 16),
	shp.FloatField("POP_DENS", 16, 2),
	shp.FloatField("WASTE_VOL", 16, 2),
	shp.FloatField("DIST_TPS", 16, 2),
	shp.StringField("DIST_MEAS", 1),
	shp.StringField("ROAD", 16),
	shp.FloatField("RISK_SCORE", 12, 6),
	shp.StringField("RISK_LEVEL", 8),
}

// wgs84 is the projection file written next to the shapefile.
const wgs84 = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`

// Shapefile writes a point shapefile (.shp, .shx, .dbf, .prj). path may
// omit the .shp extension.
func Shapefile(path string, points []model.ScoredPoint) error {
	if !strings.EqualFold(filepath.Ext(path), ".shp") {
		path += ".shp"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "export: create dir for %s", path)
	}

	w, err := shp.Create(path, shp.POINT)
	if err != nil {
		return eris.Wrapf(err, "export: create shapefile %s", path)
	}
	err = writeShapes(w, points)
	w.Close()
	if err != nil {
		return err
	}

	// go-shp names the attribute table <base>dbf, without the dot.
	base := strings.TrimSuffix(path, filepath.Ext(path))
	if err := os.Rename(base+"dbf", base+".dbf"); err != nil {
		return eris.Wrapf(err, "export: rename dbf for %s", path)
	}

	prj := base + ".prj"
	if err := os.WriteFile(prj, []byte(wgs84), 0o644); err != nil { //nolint:gosec // shared GIS output
		return eris.Wrapf(err, "export: write %s", prj)
	}
	return nil
}

func writeShapes(w *shp.Writer, points []model.ScoredPoint) error {
	if err := w.SetFields(shapeFields); err != nil {
		return eris.Wrap(err, "export: set dbf fields")
	}
	for i, p := range points {
		row := int(w.Write(&shp.Point{X: p.Point.Lon, Y: p.Point.Lat}))
		measured := "N"
		if p.DistMeasured {
			measured = "Y"
		}
		values := []any{
			p.Point.ID,
			string(p.Point.Zone),
			p.Features.PopDensity,
			p.Features.WasteVolume,
			p.Features.DistTPS,
			measured,
			string(p.Features.RoadAccess),
			p.Risk.Score,
			string(p.Risk.Level),
		}
		for field, v := range values {
			if err := w.WriteAttribute(row, field, v); err != nil {
				return eris.Wrapf(err, "export: write attribute %s of point %d", shapeFields[field].String(), i)
			}
		}
	}
	return nil
}
