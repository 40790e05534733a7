package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// extractSpreadsheet linearizes a workbook so tabular context survives
// chunking: per sheet a "Sheet: name" line, the header row, then one
// "header: value" pairing per data row.
func (e *Extractor) extractSpreadsheet(data []byte) (Result, error) {
	wb, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return textFallback(data, fmt.Errorf("open workbook: %w", err))
	}
	defer wb.Close()

	sheets := wb.GetSheetList()

	var b strings.Builder
	for _, sheet := range sheets {
		rows, err := wb.GetRows(sheet)
		if err != nil {
			continue
		}
		lines := linearizeRows(rows)
		if len(lines) == 0 {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "Sheet: %s\n%s", sheet, strings.Join(lines, "\n"))
	}

	return Result{
		Content:    b.String(),
		Method:     MethodSpreadsheet,
		Confidence: 1,
		PageCount:  len(sheets),
	}, nil
}

// linearizeRows renders the first non-empty row as a header line and
// every following row as "header: value" pairs.
func linearizeRows(rows [][]string) []string {
	var lines []string
	var headers []string

	for _, row := range rows {
		cells := make([]string, len(row))
		empty := true
		for i, cell := range row {
			cells[i] = strings.TrimSpace(cell)
			if cells[i] != "" {
				empty = false
			}
		}
		if empty {
			continue
		}

		if headers == nil {
			headers = cells
			lines = append(lines, strings.Join(nonEmptyCells(cells), ", "))
			continue
		}

		pairs := make([]string, 0, len(cells))
		for i, cell := range cells {
			if cell == "" {
				continue
			}
			key := ""
			if i < len(headers) {
				key = headers[i]
			}
			if key == "" {
				key = fmt.Sprintf("column %d", i+1)
			}
			pairs = append(pairs, key+": "+cell)
		}
		if len(pairs) > 0 {
			lines = append(lines, strings.Join(pairs, ", "))
		}
	}
	return lines
}

func nonEmptyCells(cells []string) []string {
	out := make([]string, 0, len(cells))
	for _, cell := range cells {
		if cell != "" {
			out = append(out, cell)
		}
	}
	return out
}
