package deidentify

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/deidentify-cli/internal/address"
)

func writeInput(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestFormatFor(t *testing.T) {
	for path, want := range map[string]Format{
		"in.json": FormatJSON,
		"in.CSV":  FormatCSV,
		"in.xlsx": FormatXLSX,
		"in.XLS":  FormatXLS,
	} {
		got, err := FormatFor(path)
		require.NoError(t, err)
		assert.Equal(t, want, got, path)
	}

	for _, path := range []string{"in.xlsm", "in.txt", "noext"} {
		_, err := FormatFor(path)
		var extErr *address.UnsupportedFileExtensionError
		require.True(t, errors.As(err, &extErr), path)
		assert.Equal(t, path, extErr.Path)
		assert.Equal(t, SupportedExtensions, extErr.Supported)
	}
}

func TestReadFile_MalformedXLS(t *testing.T) {
	path := writeInput(t, "in.xls", "Patient Name,DOB\nJane,1990-01-02\n")
	_, err := ReadFile(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deidentify: read")
}

func TestReadJSONLines(t *testing.T) {
	path := writeInput(t, "in.json", `{"id": 1, "address": "123 Main St"}

{"id": 2, "address": "456 Pine St", "zip": 98101}
`)
	tbl, err := ReadFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, tbl.Format)
	assert.Nil(t, tbl.Columns)
	require.Len(t, tbl.Records, 2)
	assert.Equal(t, "123 Main St", tbl.Records[0]["address"])
	assert.Equal(t, json.Number("98101"), tbl.Records[1]["zip"])
}

func TestReadJSONArray(t *testing.T) {
	tbl, err := ReadJSON(context.Background(), strings.NewReader("\ufeff  [{\"a\": \"x\"}, {\"a\": \"y\"}]"))
	require.NoError(t, err)
	require.Len(t, tbl.Records, 2)
	assert.Equal(t, "y", tbl.Records[1]["a"])
}

func TestReadJSONEmptyAndInvalid(t *testing.T) {
	tbl, err := ReadJSON(context.Background(), strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, tbl.Records)

	_, err = ReadJSON(context.Background(), strings.NewReader("{\"a\": 1}\n{broken\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestReadCSV(t *testing.T) {
	path := writeInput(t, "in.csv", "\ufeffid,address,city\n1,123 Main St,Seattle\n2,456 Pine St\n")
	tbl, err := ReadFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, tbl.Format)
	assert.Equal(t, []string{"id", "address", "city"}, tbl.Columns)
	require.Len(t, tbl.Records, 2)
	assert.Equal(t, "Seattle", tbl.Records[0]["city"])
	assert.Equal(t, "", tbl.Records[1]["city"])
}

func TestReadXLSX(t *testing.T) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Sheet1")
	require.NoError(t, err)
	for _, cells := range [][]string{{"id", "address"}, {"1", "123 Main St"}} {
		row := sheet.AddRow()
		for _, c := range cells {
			row.AddCell().SetString(c)
		}
	}
	path := filepath.Join(t.TempDir(), "in.xlsx")
	require.NoError(t, f.Save(path))

	tbl, err := ReadFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, tbl.Format)
	assert.Equal(t, []string{"id", "address"}, tbl.Columns)
	require.Len(t, tbl.Records, 1)
	assert.Equal(t, "123 Main St", tbl.Records[0]["address"])
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(context.Background(), filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deidentify: open")
}

func TestDropAndAddColumns(t *testing.T) {
	tbl := &Table{
		Format:  FormatCSV,
		Columns: []string{"id", "street", "zip"},
		Records: []map[string]any{{"id": "1", "street": "x", "zip": "98101"}},
	}
	tbl.dropColumns([]string{"street"})
	tbl.addColumn(TractColumn)
	tbl.addColumn(TractColumn)
	assert.Equal(t, []string{"id", "zip", TractColumn}, tbl.Columns)
	assert.NotContains(t, tbl.Records[0], "street")

	js := &Table{Format: FormatJSON}
	js.addColumn(TractColumn)
	assert.Nil(t, js.Columns)
}
