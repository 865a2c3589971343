package tiger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom/encoding/geojson"
)

func TestReadShapefile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tl_2016_53_tract.shp")
	writeTestShapefile(t, path, []testTract{
		{geoid: "53033005302", rings: [][]shp.Point{square(0, 0, 1)}, aland: 123456},
		{geoid: "53033005303", rings: [][]shp.Point{square(1, 0, 1), hole(1.2, 0.2, 0.2)}, aland: 42},
	})

	records, err := ReadShapefile(path)
	require.NoError(t, err)
	require.Len(t, records, 2)

	r := records[0]
	assert.Equal(t, "53033005302", r.String("GEOID"))
	assert.Equal(t, "53", r.String("STATEFP"))
	assert.Equal(t, "033", r.String("COUNTYFP"))
	assert.Equal(t, "005302", r.String("TRACTCE"))
	assert.Equal(t, int64(123456), r.Attributes["ALAND"])
	assert.Equal(t, "123456", r.String("ALAND"))
	assert.Equal(t, "", r.String("MISSING"))

	assert.Equal(t, 2, records[1].Geometry.Polygon(0).NumLinearRings())
}

func TestReadShapefile_Missing(t *testing.T) {
	_, err := ReadShapefile(filepath.Join(t.TempDir(), "none.shp"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tiger: open shapefile")
}

func TestDecodeAttribute(t *testing.T) {
	assert.Equal(t, int64(12), decodeAttribute('N', 0, "12"))
	assert.Equal(t, 1.5, decodeAttribute('N', 2, "1.50"))
	assert.Equal(t, 47.61, decodeAttribute('F', 0, "47.61"))
	assert.Equal(t, "+47.6", decodeAttribute('C', 0, "+47.6"))
	assert.Equal(t, "", decodeAttribute('C', 0, ""))
	assert.Nil(t, decodeAttribute('N', 0, ""))
	assert.Equal(t, "n/a", decodeAttribute('N', 0, "n/a"))
}

func TestWriteGeoJSON(t *testing.T) {
	dir := t.TempDir()
	shpPath := filepath.Join(dir, "in.shp")
	writeTestShapefile(t, shpPath, []testTract{
		{geoid: "53033005302", rings: [][]shp.Point{square(0, 0, 1)}, aland: 7},
	})
	records, err := ReadShapefile(shpPath)
	require.NoError(t, err)

	out := filepath.Join(dir, "geojsons", "Washington_2016.geojson")
	require.NoError(t, WriteGeoJSON(out, records))

	data, err := os.ReadFile(out)
	require.NoError(t, err)

	var fc geojson.FeatureCollection
	require.NoError(t, json.Unmarshal(data, &fc))
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "53033005302", fc.Features[0].Properties["GEOID"])
	assert.InDelta(t, 7, fc.Features[0].Properties["ALAND"], 0)
	assert.NotNil(t, fc.Features[0].Geometry)

	assert.NoFileExists(t, out+".tmp")
}
