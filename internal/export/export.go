// Package export writes scored batches to desktop GIS and spreadsheet formats.
package export

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/waste-risk/internal/model"
)

// Format names an export target.
type Format string

const (
	FormatShapefile Format = "shp"
	FormatXLSX      Format = "xlsx"
)

// ParseFormat accepts "shp", "shapefile" or "xlsx" in any case.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "shp", "shapefile":
		return FormatShapefile, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	}
	return "", eris.Errorf("export: unknown format %q (valid: shp, xlsx)", s)
}

// Ext returns the file extension including the dot.
func (f Format) Ext() string { return "." + string(f) }

// Write exports points to path in the given format. run may be nil.
func Write(path string, f Format, run *model.Run, points []model.ScoredPoint) error {
	switch f {
	case FormatShapefile:
		return Shapefile(path, points)
	case FormatXLSX:
		return XLSX(path, run, points)
	}
	return eris.Errorf("export: unknown format %q", f)
}
