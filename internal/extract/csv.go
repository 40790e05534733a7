package extract

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// extractDelimited parses CSV or TSV content and linearizes it the same
// way as spreadsheet sheets. Ragged and loosely quoted rows are
// tolerated; a hard parse error falls back to the raw text.
func extractDelimited(data []byte, comma rune) (Result, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return textFallback(data, fmt.Errorf("read delimited row: %w", err))
		}
		rows = append(rows, record)
	}

	return Result{
		Content:    strings.Join(linearizeRows(rows), "\n"),
		Method:     MethodDelimited,
		Confidence: 1,
	}, nil
}
