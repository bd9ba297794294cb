package service

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-annotation-api/internal/repository"
	"github.com/noah-isme/gema-annotation-api/internal/sheet"
)

var feedbackExportColumns = []string{
	"user_email",
	"question_id",
	sheet.HeaderSourceText,
	sheet.HeaderTargetText,
	"submission_status",
	"q_translation_rating",
	"q_translation_comment",
	"search_rating",
	"search_issue_type",
	"search_comment",
	"answer_accuracy_rating",
	"answer_translation_rating",
	"answer_comment",
	"created_at",
	"updated_at",
}

var questionExportColumns = []string{
	sheet.HeaderCategory,
	sheet.HeaderSourceText,
	sheet.HeaderTargetText,
	sheet.HeaderSearchResults,
	sheet.HeaderAnswerTarget,
	sheet.HeaderAnswerSource,
}

// ExportService builds the downloadable reports.
type ExportService interface {
	Questions(ctx context.Context, includeInactive bool) (sheet.Table, error)
	Feedback(ctx context.Context) (sheet.Table, error)
}

type exportService struct {
	store  repository.Store
	logger zerolog.Logger
}

// NewExportService constructs the export service.
func NewExportService(store repository.Store, logger zerolog.Logger) ExportService {
	return &exportService{
		store:  store,
		logger: logger.With().Str("component", "export_service").Logger(),
	}
}

// Questions exports the catalog in id order using the catalog sheet headers, so
// the file can be imported back.
func (s *exportService) Questions(ctx context.Context, includeInactive bool) (sheet.Table, error) {
	questions, err := s.store.Questions().ListAll(ctx, !includeInactive)
	if err != nil {
		return sheet.Table{}, err
	}
	table := sheet.Table{Columns: questionExportColumns, Rows: make([][]string, 0, len(questions))}
	for _, question := range questions {
		table.Rows = append(table.Rows, []string{
			question.Category,
			question.SourceText,
			question.TargetText,
			question.SearchResults,
			question.AnswerTarget,
			question.AnswerSource,
		})
	}
	return table, nil
}

// Feedback exports every feedback row, most recently updated first.
func (s *exportService) Feedback(ctx context.Context) (sheet.Table, error) {
	rows, err := s.store.Feedback().ListForExport(ctx)
	if err != nil {
		return sheet.Table{}, err
	}
	table := sheet.Table{Columns: feedbackExportColumns, Rows: make([][]string, 0, len(rows))}
	for _, row := range rows {
		table.Rows = append(table.Rows, []string{
			row.AnnotatorEmail,
			strconv.FormatUint(uint64(row.QuestionID), 10),
			row.SourceText,
			row.TargetText,
			string(row.Status),
			formatRating(row.QuestionTranslationRating),
			row.QuestionTranslationComment,
			formatRating(row.SearchRating),
			formatOptional(row.SearchIssueType),
			row.SearchComment,
			formatRating(row.AnswerAccuracyRating),
			formatRating(row.AnswerTranslationRating),
			row.AnswerComment,
			formatTimestamp(row.CreatedAt),
			formatTimestamp(row.UpdatedAt),
		})
	}
	return table, nil
}

func formatRating(value *int) string {
	if value == nil {
		return ""
	}
	return strconv.Itoa(*value)
}

func formatOptional(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func formatTimestamp(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}
