package fetcher

import (
	"os"

	"github.com/extrame/xls"
	"github.com/rotisserie/eris"
)

// XLSOptions configures the XLS parser.
type XLSOptions struct {
	SheetIndex int // default 0
}

// ReadXLS is ReadXLSX for legacy Excel 97-2003 workbooks.
func ReadXLS(path string, opts XLSOptions) (header []string, rows [][]string, err error) {
	// The BIFF parser panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			header, rows = nil, nil
			err = eris.Errorf("xls: malformed workbook %s: %v", path, r)
		}
	}()

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, eris.Wrap(err, "xls: open file")
	}
	defer f.Close() //nolint:errcheck

	wb, err := xls.OpenReader(f, "utf-8")
	if err != nil {
		return nil, nil, eris.Wrap(err, "xls: parse workbook")
	}
	if wb == nil {
		return nil, nil, eris.Errorf("xls: %s has no workbook stream", path)
	}
	if opts.SheetIndex >= wb.NumSheets() {
		return nil, nil, eris.Errorf("xls: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, wb.NumSheets())
	}
	sheet := wb.GetSheet(opts.SheetIndex)
	if sheet == nil {
		return nil, nil, eris.Errorf("xls: sheet %d not found", opts.SheetIndex)
	}

	// MaxRow is the last row index, not a count.
	for i := 0; i <= int(sheet.MaxRow); i++ {
		cells := xlsRow(sheet, i)
		if cells == nil {
			continue
		}
		if header == nil {
			header = trimTrailingBlank(cells)
			continue
		}
		if isBlankRow(cells) {
			continue
		}
		rows = append(rows, fitWidth(cells, len(header)))
	}

	if header == nil {
		return nil, nil, eris.Errorf("xls: sheet %q has no header row", sheet.Name)
	}
	return header, rows, nil
}

// xlsRow returns the cells of row i, or nil when the row holds no cells.
// WorkSheet.Row dereferences missing rows, so absent rows are recovered here.
func xlsRow(sheet *xls.WorkSheet, i int) (cells []string) {
	defer func() {
		if recover() != nil {
			cells = nil
		}
	}()
	row := sheet.Row(i)
	if row == nil || row.LastCol() <= 0 {
		return nil
	}
	cells = make([]string, row.LastCol())
	for j := row.FirstCol(); j < row.LastCol(); j++ {
		cells[j] = row.Col(j)
	}
	return cells
}
