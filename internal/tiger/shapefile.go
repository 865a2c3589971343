package tiger

import (
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// Record is one shapefile feature: its DBF attributes and polygon geometry.
// Numeric DBF fields are decoded to int64 or float64; character fields stay
// strings.
type Record struct {
	Attributes map[string]any
	Geometry   *geom.MultiPolygon
}

// String returns attribute name as a string, or "" when absent.
func (r Record) String(name string) string {
	switch v := r.Attributes[name].(type) {
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// ReadShapefile reads every polygon feature of a shapefile. Records with a
// null or malformed geometry are skipped and counted in the log.
func ReadShapefile(shpPath string) ([]Record, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "tiger: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = strings.TrimRight(f.String(), "\x00")
	}

	var records []Record
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok {
			skipped++
			continue
		}
		mp, err := polygonToMultiPolygon(poly)
		if err != nil {
			skipped++
			continue
		}

		attrs := make(map[string]any, len(fields))
		for i, f := range fields {
			raw := strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
			attrs[names[i]] = decodeAttribute(f.Fieldtype, f.Precision, raw)
		}
		records = append(records, Record{Attributes: attrs, Geometry: mp})
	}
	if err := reader.Err(); err != nil {
		return records, eris.Wrapf(err, "tiger: read shapefile %s", shpPath)
	}

	if skipped > 0 {
		zap.L().Warn("tiger: skipped shapefile records without polygon geometry",
			zap.String("path", shpPath),
			zap.Int("skipped", skipped),
		)
	}
	return records, nil
}

// decodeAttribute converts a DBF value by its field type. Values that fail to
// parse are kept as strings.
func decodeAttribute(fieldType byte, precision uint8, raw string) any {
	if raw == "" {
		if fieldType == 'C' {
			return ""
		}
		return nil
	}
	switch fieldType {
	case 'N':
		if precision == 0 {
			if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
				return n
			}
		}
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
	case 'F':
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
	}
	return raw
}
