package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/deidentify-cli/internal/config"
	"github.com/sells-group/deidentify-cli/internal/tiger"
)

func TestSplitAndTrim(t *testing.T) {
	assert.Equal(t, []string{"Washington", "41"}, splitAndTrim(" Washington, ,41 ,"))
	assert.Nil(t, splitAndTrim(""))
}

func TestTigerOptions(t *testing.T) {
	saved := tigerFlags
	t.Cleanup(func() { tigerFlags = saved })

	c := config.TigerConfig{Year: 2016, DataDir: "data", Source: "http", Concurrency: 4}

	opts := tigerOptions(c)
	assert.Equal(t, 2016, opts.Year)
	assert.Equal(t, "http", opts.Source)
	assert.Equal(t, 4, opts.Concurrency)
	assert.Equal(t, "data", opts.DataDir)
	assert.False(t, opts.Force)

	tigerFlags.year = 2020
	tigerFlags.source = "ftp"
	tigerFlags.concurrency = 2
	tigerFlags.baseURL = "http://mirror.local/TIGER"
	tigerFlags.force = true

	opts = tigerOptions(c)
	assert.Equal(t, 2020, opts.Year)
	assert.Equal(t, "ftp", opts.Source)
	assert.Equal(t, 2, opts.Concurrency)
	assert.Equal(t, "http://mirror.local/TIGER", opts.BaseURL)
	assert.True(t, opts.Force)
}

func TestFormatArtifactStatus(t *testing.T) {
	var buf bytes.Buffer
	formatArtifactStatus(&buf, []tiger.ArtifactStatus{
		{
			State:     tiger.State{Name: "Washington", FIPS: "53"},
			Archive:   true,
			Shapefile: true,
			GeoJSON:   true,
			BuiltAt:   time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC),
		},
		{State: tiger.State{Name: "Oregon", FIPS: "41"}},
	})

	out := buf.String()
	assert.Contains(t, out, "FIPS")
	assert.Contains(t, out, "GEOJSON")
	assert.Contains(t, out, "Washington")
	assert.Contains(t, out, "2024-03-01 09:30")
	assert.Contains(t, out, "Oregon")
}

func TestFormatLoadResults(t *testing.T) {
	var buf bytes.Buffer
	formatLoadResults(&buf, []tiger.LoadResult{
		{State: tiger.State{Name: "Washington", FIPS: "53"}, Rows: 1458, Duration: 1500 * time.Millisecond},
		{State: tiger.State{Name: "Oregon", FIPS: "41"}, Skipped: true},
	})

	out := buf.String()
	assert.Contains(t, out, "1458")
	assert.Contains(t, out, "1.5s")
	assert.Contains(t, out, "loaded")
	assert.Contains(t, out, "skipped")
}

func TestFormatLoadStatus(t *testing.T) {
	var buf bytes.Buffer
	formatLoadStatus(&buf, nil)
	assert.Contains(t, buf.String(), "No tract data loaded yet")

	buf.Reset()
	formatLoadStatus(&buf, []tiger.StatusRow{{
		StateFIPS:  "53",
		StateName:  "Washington",
		Year:       2016,
		RowCount:   1458,
		LoadedAt:   time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC),
		DurationMs: 820,
	}})
	out := buf.String()
	assert.Contains(t, out, "LOADED AT")
	assert.Contains(t, out, "2016")
	assert.Contains(t, out, "820ms")
}

func TestShippedStateList(t *testing.T) {
	states, err := tiger.LoadStates("../states.txt", "../fips.txt")
	require.NoError(t, err)
	assert.Equal(t, []tiger.State{{Name: "Washington", FIPS: "53"}}, states)
}

func TestYesNo(t *testing.T) {
	assert.Equal(t, "yes", yesNo(true))
	assert.Equal(t, "-", yesNo(false))
}
