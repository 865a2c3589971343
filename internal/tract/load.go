package tract

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/deidentify-cli/internal/tiger"
)

// Load reads tracts from a GeoJSON (.geojson, .json) or shapefile (.shp).
func Load(path string) ([]Tract, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		return LoadGeoJSON(path)
	case ".shp":
		return LoadShapefile(path)
	default:
		return nil, eris.Errorf("tract: unsupported boundary file %s (want .geojson, .json or .shp)", path)
	}
}

// LoadGeoJSON reads a FeatureCollection of tract polygons carrying the TIGER
// attribute names as properties.
func LoadGeoJSON(path string) ([]Tract, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "tract: read %s", path)
	}

	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrapf(err, "tract: decode %s", path)
	}

	tracts := make([]Tract, 0, len(fc.Features))
	var skipped int
	for i, f := range fc.Features {
		mp, ok := toMultiPolygon(f.Geometry)
		if !ok {
			skipped++
			continue
		}
		t, err := fromAttributes(f.Properties, mp)
		if err != nil {
			return nil, eris.Wrapf(err, "tract: feature %d of %s", i, path)
		}
		tracts = append(tracts, t)
	}
	logLoaded(path, len(tracts), skipped)
	return tracts, nil
}

// LoadShapefile reads tracts straight from a TIGER/Line tract shapefile.
func LoadShapefile(path string) ([]Tract, error) {
	records, err := tiger.ReadShapefile(path)
	if err != nil {
		return nil, err
	}
	tracts := make([]Tract, 0, len(records))
	for i, r := range records {
		t, err := fromAttributes(r.Attributes, r.Geometry)
		if err != nil {
			return nil, eris.Wrapf(err, "tract: record %d of %s", i, path)
		}
		tracts = append(tracts, t)
	}
	logLoaded(path, len(tracts), 0)
	return tracts, nil
}

func logLoaded(path string, n, skipped int) {
	zap.L().Info("tract boundaries loaded",
		zap.String("component", "tract"),
		zap.String("path", path),
		zap.Int("tracts", n),
		zap.Int("skipped", skipped),
	)
}

// fromAttributes builds a Tract. GEOID falls back to STATEFP+COUNTYFP+TRACTCE.
func fromAttributes(props map[string]any, mp *geom.MultiPolygon) (Tract, error) {
	t := Tract{
		GEOID:    property(props, "GEOID"),
		StateFP:  property(props, "STATEFP"),
		CountyFP: property(props, "COUNTYFP"),
		TractCE:  property(props, "TRACTCE"),
		Name:     property(props, "NAME"),
		NameLSAD: property(props, "NAMELSAD"),
		Geometry: mp,
	}
	if t.GEOID == "" && t.StateFP != "" && t.CountyFP != "" && t.TractCE != "" {
		t.GEOID = t.StateFP + t.CountyFP + t.TractCE
	}
	if t.GEOID == "" {
		return t, eris.New("no GEOID property")
	}
	return t, nil
}

// property returns a string property, matching the name case-insensitively.
func property(props map[string]any, name string) string {
	v, ok := props[name]
	if !ok {
		for k, val := range props {
			if strings.EqualFold(k, name) {
				v, ok = val, true
				break
			}
		}
	}
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(s, 10)
	default:
		return fmt.Sprint(s)
	}
}

// toMultiPolygon normalises Polygon and MultiPolygon geometries to an XY
// MultiPolygon. Other geometry types are rejected.
func toMultiPolygon(g geom.T) (*geom.MultiPolygon, bool) {
	var coords [][][]geom.Coord
	switch v := g.(type) {
	case *geom.Polygon:
		coords = [][][]geom.Coord{v.Coords()}
	case *geom.MultiPolygon:
		coords = v.Coords()
	default:
		return nil, false
	}

	for _, poly := range coords {
		for _, ring := range poly {
			for k, c := range ring {
				ring[k] = geom.Coord{c.X(), c.Y()}
			}
		}
	}
	mp, err := geom.NewMultiPolygon(geom.XY).SetCoords(coords)
	if err != nil || mp.Empty() {
		return nil, false
	}
	return mp, true
}
