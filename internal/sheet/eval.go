package sheet

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// EvalRow is one row of the evaluation sheet.
type EvalRow struct {
	Line             int
	Category         string
	SourceText       string
	TargetText       string
	Members          []string
	FeedbackQuestion string
	FeedbackSearch   string
	FeedbackAnswer   string
}

// HasFeedback reports whether any qualitative feedback text is present.
func (r EvalRow) HasFeedback() bool {
	return r.FeedbackQuestion != "" || r.FeedbackSearch != "" || r.FeedbackAnswer != ""
}

// EvalSheet is a parsed evaluation sheet.
type EvalSheet struct {
	Rows   []EvalRow
	Emails []string
}

// ReadEvalSheet locates the header row carrying both the members and source-text
// columns and parses every following row with non-empty source text.
func ReadEvalSheet(r io.Reader) (EvalSheet, error) {
	records, err := newReader(r).ReadAll()
	if err != nil {
		return EvalSheet{}, fmt.Errorf("read eval sheet: %w", err)
	}

	headerAt := -1
	var mapping Mapping
	for i, record := range records {
		candidate := EvalSchema.Bind(record)
		if candidate.Has(ColumnMembers) && candidate.Has(ColumnSourceText) {
			headerAt = i
			mapping = candidate
			break
		}
	}
	if headerAt < 0 {
		return EvalSheet{}, fmt.Errorf("%w: need members and %q columns", ErrHeaderNotFound, HeaderSourceText)
	}

	unique := map[string]struct{}{}
	var sheet EvalSheet
	for i := headerAt + 1; i < len(records); i++ {
		record := records[i]
		source := mapping.Value(record, ColumnSourceText)
		if source == "" {
			continue
		}

		members := make([]string, 0)
		for _, email := range SplitEmails(mapping.Raw(record, ColumnMembers)) {
			if !strings.Contains(email, "@") {
				continue
			}
			members = append(members, email)
			unique[email] = struct{}{}
		}

		sheet.Rows = append(sheet.Rows, EvalRow{
			Line:             i + 1,
			Category:         mapping.Value(record, ColumnCategory),
			SourceText:       source,
			TargetText:       mapping.Value(record, ColumnTargetText),
			Members:          members,
			FeedbackQuestion: mapping.Value(record, ColumnFeedbackQuestion),
			FeedbackSearch:   mapping.Value(record, ColumnFeedbackSearch),
			FeedbackAnswer:   mapping.Value(record, ColumnFeedbackAnswer),
		})
	}

	sheet.Emails = make([]string, 0, len(unique))
	for email := range unique {
		sheet.Emails = append(sheet.Emails, email)
	}
	sort.Strings(sheet.Emails)

	return sheet, nil
}
