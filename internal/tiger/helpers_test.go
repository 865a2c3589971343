package tiger

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/require"
)

type testTract struct {
	geoid string
	rings [][]shp.Point
	aland int
}

// square returns a closed clockwise ring, the shapefile winding for outer rings.
func square(x0, y0, size float64) []shp.Point {
	return []shp.Point{
		{X: x0, Y: y0},
		{X: x0, Y: y0 + size},
		{X: x0 + size, Y: y0 + size},
		{X: x0 + size, Y: y0},
		{X: x0, Y: y0},
	}
}

// hole returns a closed counter-clockwise ring.
func hole(x0, y0, size float64) []shp.Point {
	return []shp.Point{
		{X: x0, Y: y0},
		{X: x0 + size, Y: y0},
		{X: x0 + size, Y: y0 + size},
		{X: x0, Y: y0 + size},
		{X: x0, Y: y0},
	}
}

func polygon(rings [][]shp.Point) *shp.Polygon {
	p := shp.Polygon(*shp.NewPolyLine(rings))
	return &p
}

// writeTestShapefile writes a tract shapefile with the TIGER attribute names.
func writeTestShapefile(t *testing.T, path string, tracts []testTract) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{
		shp.StringField("STATEFP", 2),
		shp.StringField("COUNTYFP", 3),
		shp.StringField("TRACTCE", 6),
		shp.StringField("GEOID", 11),
		shp.StringField("NAME", 7),
		shp.StringField("NAMELSAD", 20),
		shp.NumberField("ALAND", 14),
	}))

	for _, tr := range tracts {
		row := int(w.Write(polygon(tr.rings)))
		for i, v := range []any{tr.geoid[:2], tr.geoid[2:5], tr.geoid[5:], tr.geoid, "1", "Census Tract 1", tr.aland} {
			require.NoError(t, w.WriteAttribute(row, i, v))
		}
	}
	w.Close()
	fixDBFName(t, path)
}

// fixDBFName moves the attribute table go-shp's writer leaves at "<base>dbf"
// to "<base>.dbf", where readers look for it.
func fixDBFName(t *testing.T, path string) {
	t.Helper()
	base := strings.TrimSuffix(path, filepath.Ext(path))
	if _, err := os.Stat(base + "dbf"); err == nil {
		require.NoError(t, os.Rename(base+"dbf", base+".dbf"))
	}
	require.FileExists(t, base+".dbf")
}

// zipDir zips every file in dir into a single archive at zipPath.
func zipDir(t *testing.T, dir, zipPath string) {
	t.Helper()
	out, err := os.Create(zipPath)
	require.NoError(t, err)
	defer out.Close() //nolint:errcheck

	zw := zip.NewWriter(out)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		if e.IsDir() || strings.HasSuffix(e.Name(), ".zip") {
			continue
		}
		fw, err := zw.Create(e.Name())
		require.NoError(t, err)
		f, err := os.Open(filepath.Join(dir, e.Name()))
		require.NoError(t, err)
		_, err = io.Copy(fw, f)
		f.Close() //nolint:errcheck
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

func writeLines(t *testing.T, path string, lines ...string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
}
