// Package deidentify replaces identifying address and participant columns in
// tabular records with a Census tract and a keyed participant hash.
package deidentify

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/deidentify-cli/internal/address"
	"github.com/sells-group/deidentify-cli/internal/fetcher"
)

// Format is the layout of an input file, which also decides the output layout.
type Format string

// Input formats.
const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
)

// SupportedExtensions lists the input extensions ReadFile accepts.
var SupportedExtensions = []string{".csv", ".json", ".xls", ".xlsx"}

// Table is the set of records read from one input file. Columns keeps the
// header order of tabular input and is nil for JSON.
type Table struct {
	Format  Format
	Columns []string
	Records []map[string]any
}

// FormatFor returns the Format of path by extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	case ".xls":
		return FormatXLS, nil
	default:
		return "", &address.UnsupportedFileExtensionError{Path: path, Supported: SupportedExtensions}
	}
}

// ReadFile loads every record of path.
func ReadFile(ctx context.Context, path string) (*Table, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}

	if format == FormatXLSX {
		header, rows, err := fetcher.ReadXLSX(path, fetcher.XLSXOptions{})
		if err != nil {
			return nil, eris.Wrapf(err, "deidentify: read %s", path)
		}
		return tableFromRows(FormatXLSX, header, rows), nil
	}
	if format == FormatXLS {
		header, rows, err := fetcher.ReadXLS(path, fetcher.XLSOptions{})
		if err != nil {
			return nil, eris.Wrapf(err, "deidentify: read %s", path)
		}
		return tableFromRows(FormatXLS, header, rows), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "deidentify: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	var t *Table
	if format == FormatJSON {
		t, err = ReadJSON(ctx, f)
	} else {
		t, err = ReadCSV(ctx, f)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "deidentify: read %s", path)
	}
	return t, nil
}

// ReadJSON reads one JSON object per line, or a single JSON array of objects
// when the first non-blank byte is '['.
func ReadJSON(ctx context.Context, r io.Reader) (*Table, error) {
	br := bufio.NewReader(r)
	isArray, err := startsWithArray(br)
	if err != nil {
		return nil, err
	}

	var (
		items <-chan map[string]any
		errs  <-chan error
	)
	if isArray {
		items, errs = fetcher.DecodeJSONArray[map[string]any](ctx, br)
	} else {
		items, errs = fetcher.DecodeJSONLines[map[string]any](ctx, br)
	}

	t := &Table{Format: FormatJSON}
	for rec := range items {
		if rec == nil {
			rec = map[string]any{}
		}
		t.Records = append(t.Records, rec)
	}
	if err := <-errs; err != nil {
		return nil, err
	}
	return t, nil
}

func startsWithArray(br *bufio.Reader) (bool, error) {
	for {
		b, err := br.ReadByte()
		if err == io.EOF {
			return false, nil
		}
		if err != nil {
			return false, eris.Wrap(err, "json: peek")
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		case 0xEF:
			// UTF-8 byte order mark.
			if _, err := br.Discard(2); err != nil {
				return false, eris.Wrap(err, "json: peek")
			}
			continue
		}
		return b == '[', br.UnreadByte()
	}
}

// ReadCSV reads a CSV file with a header row.
func ReadCSV(ctx context.Context, r io.Reader) (*Table, error) {
	headerCh := make(chan []string, 1)
	rows, errs := fetcher.StreamCSV(ctx, r, fetcher.CSVOptions{HasHeader: true, HeaderCh: headerCh})

	var body [][]string
	for row := range rows {
		body = append(body, row)
	}
	if err := <-errs; err != nil {
		return nil, err
	}

	var header []string
	select {
	case header = <-headerCh:
	default:
	}
	return tableFromRows(FormatCSV, header, body), nil
}

func tableFromRows(format Format, header []string, rows [][]string) *Table {
	t := &Table{
		Format:  format,
		Columns: slices.Clone(header),
		Records: make([]map[string]any, 0, len(rows)),
	}
	for _, row := range rows {
		rec := make(map[string]any, len(header))
		for i, col := range header {
			if i < len(row) {
				rec[col] = row[i]
			} else {
				rec[col] = ""
			}
		}
		t.Records = append(t.Records, rec)
	}
	return t
}

// dropColumns removes cols from every record and from the column order.
func (t *Table) dropColumns(cols []string) {
	if len(cols) == 0 {
		return
	}
	for _, rec := range t.Records {
		for _, c := range cols {
			delete(rec, c)
		}
	}
	if t.Columns != nil {
		t.Columns = slices.DeleteFunc(t.Columns, func(c string) bool {
			return slices.Contains(cols, c)
		})
	}
}

// addColumn appends col to the column order of tabular tables.
func (t *Table) addColumn(col string) {
	if t.Format == FormatJSON || slices.Contains(t.Columns, col) {
		return
	}
	t.Columns = append(t.Columns, col)
}
