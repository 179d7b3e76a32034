package extractor

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrEmptySpreadsheet means the workbook has no sheet with data.
var ErrEmptySpreadsheet = errors.New("spreadsheet has no rows")

// ReadSpreadsheet returns the rows of the first non-empty sheet of an XLSX
// workbook. Cells are returned raw, so dates come back as Excel serials and
// amounts without display formatting.
func ReadSpreadsheet(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		if hasData(rows) {
			return rows, nil
		}
	}
	return nil, ErrEmptySpreadsheet
}

func hasData(rows [][]string) bool {
	for _, row := range rows {
		for _, c := range row {
			if strings.TrimSpace(c) != "" {
				return true
			}
		}
	}
	return false
}
