package connector

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// fetchCSV parses the inline CSV payload into rows keyed by header name.
// When the header flag is off, columns are named column_1..column_n.
func fetchCSV(cfg *CSVConfig) ([]map[string]interface{}, error) {
	if cfg == nil || strings.TrimSpace(cfg.Data) == "" {
		return nil, configErrorf("csv connection has no inline data")
	}
	if cfg.QuoteChar != "" && cfg.QuoteChar != `"` {
		// encoding/csv only quotes with '"'.
		return nil, configErrorf("unsupported csv quote character %q", cfg.QuoteChar)
	}

	reader := csv.NewReader(strings.NewReader(cfg.Data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	if cfg.Delimiter != "" {
		if utf8.RuneCountInString(cfg.Delimiter) != 1 {
			return nil, configErrorf("csv delimiter must be a single character, got %q", cfg.Delimiter)
		}
		delim, _ := utf8.DecodeRuneInString(cfg.Delimiter)
		reader.Comma = delim
	}

	first, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []map[string]interface{}{}, nil
		}
		return nil, configErrorf("failed to parse csv data: %v", err)
	}

	hasHeader := cfg.HasHeader == nil || *cfg.HasHeader
	headers := make([]string, len(first))
	if hasHeader {
		copy(headers, first)
	} else {
		for i := range first {
			headers[i] = fmt.Sprintf("column_%d", i+1)
		}
	}

	results := make([]map[string]interface{}, 0)
	appendRow := func(record []string) {
		rowData := make(map[string]interface{}, len(headers))
		for i, header := range headers {
			if i < len(record) {
				rowData[header] = record[i]
			} else {
				rowData[header] = "" // pad short rows
			}
		}
		results = append(results, rowData)
	}

	if !hasHeader {
		appendRow(first)
	}
	for {
		record, err := reader.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, configErrorf("failed to parse csv data: %v", err)
		}
		appendRow(record)
	}
	return results, nil
}
