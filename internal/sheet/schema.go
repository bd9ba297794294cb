// Package sheet turns loosely structured spreadsheet exports into typed rows.
// Header lookup happens once per sheet through a Schema; downstream code never
// re-checks which columns were present.
package sheet

import (
	"errors"
	"regexp"
	"sort"
	"strings"
)

// Column is a logical column understood by the importers.
type Column string

const (
	ColumnCategory         Column = "category"
	ColumnSourceText       Column = "source_text"
	ColumnTargetText       Column = "target_text"
	ColumnSearchResults    Column = "search_results"
	ColumnAnswerSource     Column = "answer_source"
	ColumnAnswerTarget     Column = "answer_target"
	ColumnID               Column = "id"
	ColumnAssignees        Column = "assignees"
	ColumnMembers          Column = "members"
	ColumnFeedbackQuestion Column = "feedback_question"
	ColumnFeedbackSearch   Column = "feedback_search"
	ColumnFeedbackAnswer   Column = "feedback_answer"
)

// Export header names. Catalog exports use them so that an export can be imported again.
const (
	HeaderCategory      = "Category"
	HeaderSourceText    = "Q (Gu)"
	HeaderTargetText    = "Q (En)"
	HeaderSearchResults = "Search Results"
	HeaderAnswerSource  = "A (Gu)"
	HeaderAnswerTarget  = "A(En)"
)

// ErrHeaderNotFound is returned when no row carries the required header cells.
var ErrHeaderNotFound = errors.New("sheet header row not found")

// Schema lists the accepted header spellings of each logical column, in priority order.
type Schema map[Column][]string

// CatalogSchema describes the golden question sheet and admin CSV uploads.
var CatalogSchema = Schema{
	ColumnCategory:      {HeaderCategory},
	ColumnSourceText:    {HeaderSourceText, "source text", "source_text"},
	ColumnTargetText:    {HeaderTargetText, "target text", "target_text"},
	ColumnSearchResults: {HeaderSearchResults, "search_results"},
	ColumnAnswerSource:  {HeaderAnswerSource, "answer_source"},
	ColumnAnswerTarget:  {HeaderAnswerTarget, "answer_target"},
	ColumnID:            {"id", "question_id", "question id"},
	ColumnAssignees:     {"assigned_emails", "assigned emails", "members", "assignees", "assigned to", "assigned_to"},
}

// EvalSchema describes the external evaluation sheet used for reconciliation.
var EvalSchema = Schema{
	ColumnCategory:         {HeaderCategory},
	ColumnSourceText:       {HeaderSourceText, "source text", "source_text"},
	ColumnTargetText:       {HeaderTargetText, "target text", "target_text"},
	ColumnMembers:          {"members"},
	ColumnFeedbackQuestion: {"fb q -for col d", "feedback q"},
	ColumnFeedbackSearch:   {"fb search col e", "feedback search"},
	ColumnFeedbackAnswer:   {"fb a col g", "feedback a"},
}

var whitespace = regexp.MustCompile(`\s+`)

// NormalizeHeader lower-cases a header cell and collapses inner whitespace.
func NormalizeHeader(value string) string {
	return whitespace.ReplaceAllString(strings.ToLower(strings.TrimSpace(value)), " ")
}

// Mapping resolves logical columns to cell positions for one sheet.
type Mapping map[Column]int

// Bind maps a header row onto the schema. Columns without a matching header are
// absent; a repeated header binds to its rightmost cell.
func (s Schema) Bind(header []string) Mapping {
	positions := make(map[string]int, len(header))
	for i, cell := range header {
		positions[NormalizeHeader(strings.TrimPrefix(cell, "\ufeff"))] = i
	}

	mapping := Mapping{}
	for column, aliases := range s {
		for _, alias := range aliases {
			if pos, ok := positions[NormalizeHeader(alias)]; ok {
				mapping[column] = pos
				break
			}
		}
	}
	return mapping
}

// Has reports whether the column was found in the header.
func (m Mapping) Has(column Column) bool {
	_, ok := m[column]
	return ok
}

// Raw returns the untrimmed cell value of a column, or "" when absent.
func (m Mapping) Raw(record []string, column Column) string {
	pos, ok := m[column]
	if !ok || pos >= len(record) {
		return ""
	}
	return record[pos]
}

// Value returns the trimmed cell value of a column.
func (m Mapping) Value(record []string, column Column) string {
	return strings.TrimSpace(m.Raw(record, column))
}

// SplitEmails splits a comma, semicolon or pipe delimited list into distinct,
// lower-cased, sorted addresses. Leading "@" characters (sheet mentions) are dropped.
func SplitEmails(blob string) []string {
	replacer := strings.NewReplacer(";", ",", "|", ",", "\n", ",")
	seen := map[string]struct{}{}
	for _, part := range strings.Split(replacer.Replace(blob), ",") {
		email := strings.TrimLeft(strings.ToLower(strings.TrimSpace(part)), "@")
		if email == "" {
			continue
		}
		seen[email] = struct{}{}
	}

	emails := make([]string, 0, len(seen))
	for email := range seen {
		emails = append(emails, email)
	}
	sort.Strings(emails)
	return emails
}
