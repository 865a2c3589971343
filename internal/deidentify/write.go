package deidentify

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sells-group/deidentify-cli/internal/address"
)

// Write emits t to output, or to stdout when output is empty. JSON tables go
// to stdout as one sorted-key object per line and to a file as one JSON
// array; tabular tables are written as CSV either way.
func Write(t *Table, output string, stdout io.Writer) error {
	if output == "" {
		if t.Format == FormatJSON {
			return WriteJSONLines(stdout, t.Records)
		}
		return WriteCSV(stdout, t.Columns, t.Records)
	}

	f, err := os.Create(output)
	if err != nil {
		return eris.Wrapf(err, "deidentify: create %s", output)
	}
	if t.Format == FormatJSON {
		err = WriteJSONArray(f, t.Records)
	} else {
		err = WriteCSV(f, t.Columns, t.Records)
	}
	if cerr := f.Close(); err == nil && cerr != nil {
		err = eris.Wrapf(cerr, "deidentify: close %s", output)
	}
	return err
}

// WriteJSONLines writes one JSON object per line. Object keys are sorted.
func WriteJSONLines(w io.Writer, records []map[string]any) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return eris.Wrapf(err, "deidentify: encode record %d", i)
		}
	}
	return eris.Wrap(bw.Flush(), "deidentify: flush")
}

// WriteJSONArray writes all records as a single JSON array.
func WriteJSONArray(w io.Writer, records []map[string]any) error {
	if records == nil {
		records = []map[string]any{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return eris.Wrap(enc.Encode(records), "deidentify: encode records")
}

// WriteCSV writes a header row followed by one row per record in column
// order.
func WriteCSV(w io.Writer, columns []string, records []map[string]any) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return eris.Wrap(err, "deidentify: write csv header")
	}
	row := make([]string, len(columns))
	for i, rec := range records {
		for j, col := range columns {
			row[j] = address.ValueString(rec[col])
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrapf(err, "deidentify: write csv row %d", i)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "deidentify: flush csv")
}
