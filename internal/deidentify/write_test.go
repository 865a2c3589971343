package deidentify

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSONLinesSortsKeys(t *testing.T) {
	var buf bytes.Buffer
	err := WriteJSONLines(&buf, []map[string]any{
		{"z": "1", "census_tract": "53033000100", "a": json.Number("7")},
		{"b": "<&>"},
	})
	require.NoError(t, err)
	assert.Equal(t, "{\"a\":7,\"census_tract\":\"53033000100\",\"z\":\"1\"}\n{\"b\":\"<&>\"}\n", buf.String())
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	err := WriteCSV(&buf, []string{"id", "note", TractColumn}, []map[string]any{
		{"id": json.Number("1"), "note": "a, b", TractColumn: "53033000100"},
		{"id": "2", TractColumn: ""},
	})
	require.NoError(t, err)
	assert.Equal(t, "id,note,census_tract\n1,\"a, b\",53033000100\n2,,\n", buf.String())
}

func TestWriteStdoutAndFile(t *testing.T) {
	records := []map[string]any{{"id": "1", TractColumn: "53033000100"}}

	var stdout bytes.Buffer
	require.NoError(t, Write(&Table{Format: FormatJSON, Records: records}, "", &stdout))
	assert.Equal(t, "{\"census_tract\":\"53033000100\",\"id\":\"1\"}\n", stdout.String())

	stdout.Reset()
	require.NoError(t, Write(&Table{Format: FormatXLSX, Columns: []string{"id", TractColumn}, Records: records}, "", &stdout))
	assert.Equal(t, "id,census_tract\n1,53033000100\n", stdout.String())

	out := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, Write(&Table{Format: FormatJSON, Records: records}, out, &stdout))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var got []map[string]string
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, []map[string]string{{"id": "1", TractColumn: "53033000100"}}, got)

	out = filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, Write(&Table{Format: FormatJSON}, out, &stdout))
	data, err = os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))
}

func TestWriteBadOutputPath(t *testing.T) {
	err := Write(&Table{Format: FormatCSV}, filepath.Join(t.TempDir(), "missing", "out.csv"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deidentify: create")
}
