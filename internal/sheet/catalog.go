package sheet

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// CatalogRow is one question row of the golden sheet or an admin upload.
type CatalogRow struct {
	Line          int
	ID            uint
	Category      string
	SourceText    string
	TargetText    string
	SearchResults string
	AnswerSource  string
	AnswerTarget  string
	Assignees     []string
}

// CatalogSheet is a parsed catalog file.
type CatalogSheet struct {
	Rows    []CatalogRow
	Skipped int
}

// ReadCatalog parses a catalog CSV whose first row is the header. Rows without
// source text are skipped.
func ReadCatalog(r io.Reader) (CatalogSheet, error) {
	reader := newReader(r)

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return CatalogSheet{}, nil
	}
	if err != nil {
		return CatalogSheet{}, fmt.Errorf("read catalog header: %w", err)
	}
	mapping := CatalogSchema.Bind(header)
	if !mapping.Has(ColumnSourceText) {
		return CatalogSheet{}, fmt.Errorf("%w: missing %q column", ErrHeaderNotFound, HeaderSourceText)
	}

	var result CatalogSheet
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return CatalogSheet{}, fmt.Errorf("read catalog line %d: %w", line+1, err)
		}
		line++

		source := mapping.Value(record, ColumnSourceText)
		if source == "" {
			result.Skipped++
			continue
		}

		row := CatalogRow{
			Line:          line,
			Category:      mapping.Value(record, ColumnCategory),
			SourceText:    source,
			TargetText:    mapping.Value(record, ColumnTargetText),
			SearchResults: mapping.Raw(record, ColumnSearchResults),
			AnswerSource:  mapping.Raw(record, ColumnAnswerSource),
			AnswerTarget:  mapping.Raw(record, ColumnAnswerTarget),
			Assignees:     SplitEmails(mapping.Raw(record, ColumnAssignees)),
		}
		if raw := mapping.Value(record, ColumnID); raw != "" {
			if id, err := strconv.ParseUint(raw, 10, 64); err == nil {
				row.ID = uint(id)
			}
		}
		result.Rows = append(result.Rows, row)
	}

	return result, nil
}

func newReader(r io.Reader) *csv.Reader {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	return reader
}
