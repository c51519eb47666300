package ingestion

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// table is a header-indexed CSV source held in memory for one snapshot.
type table struct {
	file   string
	header map[string]int
	rows   [][]string
}

func readTable(r io.Reader, file string, columns []string) (*table, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = false

	head, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, SchemaError{File: file, reason: fmt.Errorf("empty file: %w", errMalformedRow)}
	}
	if err != nil {
		return nil, SchemaError{File: file, Line: 1, reason: fmt.Errorf("%v: %w", err, errMalformedRow)}
	}

	header := make(map[string]int, len(head))
	for i, name := range head {
		header[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	for _, col := range columns {
		if _, ok := header[col]; !ok {
			return nil, SchemaError{File: file, Column: col, reason: errMissingColumn}
		}
	}

	t := &table{file: file, header: header}
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			line := 0
			if errors.As(err, &parseErr) {
				line = parseErr.Line
			}
			return nil, SchemaError{File: file, Line: line, reason: fmt.Errorf("%v: %w", err, errMalformedRow)}
		}
		t.rows = append(t.rows, row)
	}
	return t, nil
}

// line maps a data row index to its 1-based line in the file.
func (t *table) line(i int) int {
	return i + 2
}

func (t *table) cell(row []string, col string) string {
	return row[t.header[col]]
}

func (t *table) str(row []string, col string) *string {
	v := t.cell(row, col)
	if v == "" {
		return nil
	}
	return &v
}

func (t *table) requiredID(i int, row []string, col string) (int64, error) {
	v := strings.TrimSpace(t.cell(row, col))
	if v == "" {
		return 0, SchemaError{File: t.file, Line: t.line(i), Column: col, reason: errMissingValue}
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, SchemaError{File: t.file, Line: t.line(i), Column: col, reason: fmt.Errorf("%q: %w", v, errInvalidType)}
	}
	return id, nil
}

func (t *table) optInt(i int, row []string, col string) (*int, error) {
	v := strings.TrimSpace(t.cell(row, col))
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, SchemaError{File: t.file, Line: t.line(i), Column: col, reason: fmt.Errorf("%q: %w", v, errInvalidType)}
	}
	return &n, nil
}

func (t *table) optFloat(i int, row []string, col string) (*float64, error) {
	v := strings.TrimSpace(t.cell(row, col))
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, SchemaError{File: t.file, Line: t.line(i), Column: col, reason: fmt.Errorf("%q: %w", v, errInvalidType)}
	}
	return &f, nil
}
