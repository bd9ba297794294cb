package service

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-annotation-api/internal/dto"
	"github.com/noah-isme/gema-annotation-api/internal/models"
	"github.com/noah-isme/gema-annotation-api/internal/observability"
	"github.com/noah-isme/gema-annotation-api/internal/repository"
	"github.com/noah-isme/gema-annotation-api/internal/sheet"
)

var (
	// ErrQuestionNotFound indicates the referenced question does not exist.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrInvalidImportMode is returned for an import mode other than insert, upsert or sync.
	ErrInvalidImportMode = errors.New("invalid import mode")
)

// CatalogImportOptions controls how an import merges rows into the catalog.
type CatalogImportOptions struct {
	Mode models.ImportMode
	// ReplaceAssignments drops a touched question's assignments before applying
	// the row's assignee list. Rows without assignees keep theirs.
	ReplaceAssignments bool
}

// CatalogService manages the question catalog.
type CatalogService interface {
	Import(ctx context.Context, actor Actor, catalog sheet.CatalogSheet, opts CatalogImportOptions) (dto.CatalogImportResponse, error)
	Bootstrap(ctx context.Context, path string) (int, error)
	Deactivate(ctx context.Context, actor Actor, questionID uint) error
	ListActive(ctx context.Context) ([]dto.QuestionSummary, error)
}

type catalogService struct {
	store     repository.Store
	activity  ActivityRecorder
	publisher EventPublisher
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewCatalogService constructs the catalog service.
func NewCatalogService(store repository.Store, activity ActivityRecorder, publisher EventPublisher, logger zerolog.Logger) CatalogService {
	return &catalogService{
		store:     store,
		activity:  activity,
		publisher: publisher,
		logger:    logger.With().Str("component", "catalog_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/gema-annotation-api/internal/service/catalog"),
	}
}

// Import merges catalog rows in one transaction. Insert mode keeps existing rows
// untouched; upsert updates by explicit id when it exists and by composite key
// otherwise; sync additionally deactivates every question the run did not touch.
func (s *catalogService) Import(ctx context.Context, actor Actor, catalog sheet.CatalogSheet, opts CatalogImportOptions) (dto.CatalogImportResponse, error) {
	mode, err := models.ParseImportMode(string(opts.Mode))
	if err != nil {
		return dto.CatalogImportResponse{}, fmt.Errorf("%w: %s", ErrInvalidImportMode, opts.Mode)
	}
	opts.Mode = mode
	spanCtx, span := s.tracer.Start(ctx, "catalog.import", trace.WithAttributes(
		attribute.String("catalog.mode", string(opts.Mode)),
		attribute.Int("catalog.rows", len(catalog.Rows)),
	))
	defer span.End()

	report := dto.CatalogImportResponse{
		Mode:        string(opts.Mode),
		RowsRead:    len(catalog.Rows),
		RowsSkipped: catalog.Skipped,
	}

	err = s.store.Transaction(spanCtx, func(tx repository.Store) error {
		seen := make(map[uint]struct{}, len(catalog.Rows))
		touched := make([]uint, 0, len(catalog.Rows))

		for _, row := range catalog.Rows {
			id, created, err := s.applyRow(spanCtx, tx, row, opts.Mode)
			if err != nil {
				return fmt.Errorf("catalog line %d: %w", row.Line, err)
			}
			if id == 0 {
				continue
			}
			if created {
				report.Inserted++
			} else if opts.Mode != models.ImportModeInsert {
				report.Updated++
			}
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				touched = append(touched, id)
			}

			if len(row.Assignees) == 0 {
				continue
			}
			if err := s.applyAssignees(spanCtx, tx, id, row.Assignees, opts.ReplaceAssignments, &report); err != nil {
				return fmt.Errorf("catalog line %d: %w", row.Line, err)
			}
		}
		report.Touched = len(touched)

		if opts.Mode == models.ImportModeSync {
			deactivated, err := tx.Questions().DeactivateExcept(spanCtx, touched)
			if err != nil {
				return err
			}
			report.Deactivated = deactivated
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error().Err(err).Str("mode", report.Mode).Msg("catalog import rolled back")
		return dto.CatalogImportResponse{}, err
	}

	observability.CatalogImportRows().WithLabelValues(report.Mode).Add(float64(report.RowsRead))
	s.logger.Info().
		Str("mode", report.Mode).
		Int("rows", report.RowsRead).
		Int("inserted", report.Inserted).
		Int("updated", report.Updated).
		Int64("deactivated", report.Deactivated).
		Msg("catalog imported")

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     ActionImport,
		EntityType: "question",
		Metadata: map[string]interface{}{
			"mode":                report.Mode,
			"rows_read":           report.RowsRead,
			"inserted":            report.Inserted,
			"updated":             report.Updated,
			"deactivated":         report.Deactivated,
			"assignments_added":   report.AssignmentsAdded,
			"replace_assignments": opts.ReplaceAssignments,
		},
	})
	publishAfterCommit(ctx, s.publisher, s.logger, EventImported, actor, report)

	return report, nil
}

func (s *catalogService) applyRow(ctx context.Context, tx repository.Store, row sheet.CatalogRow, mode models.ImportMode) (uint, bool, error) {
	question := questionFromRow(row)

	if mode == models.ImportModeInsert {
		return tx.Questions().InsertIfAbsent(ctx, &question)
	}

	if row.ID > 0 {
		updated, err := tx.Questions().UpdateByID(ctx, row.ID, question)
		if err != nil {
			return 0, false, err
		}
		if updated {
			return row.ID, false, nil
		}
	}

	_, err := tx.Questions().GetByKey(ctx, question.Key())
	exists := err == nil
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, err
	}
	id, err := tx.Questions().UpsertByKey(ctx, &question)
	if err != nil {
		return 0, false, err
	}
	return id, !exists, nil
}

func (s *catalogService) applyAssignees(ctx context.Context, tx repository.Store, questionID uint, emails []string, replace bool, report *dto.CatalogImportResponse) error {
	if replace {
		removed, err := tx.Assignments().DeleteByQuestions(ctx, []uint{questionID})
		if err != nil {
			return err
		}
		report.AssignmentsRemoved += removed
	}

	for _, email := range emails {
		created, err := tx.Annotators().EnsureExists(ctx, email, nil)
		if err != nil {
			return err
		}
		if created {
			report.AnnotatorsCreated++
		}
		annotator, err := tx.Annotators().GetByEmail(ctx, email)
		if err != nil {
			return err
		}
		added, err := tx.Assignments().InsertIfAbsent(ctx, repository.AssignmentPair{AnnotatorID: annotator.ID, QuestionID: questionID})
		if err != nil {
			return err
		}
		if added {
			report.AssignmentsAdded++
		}
	}
	return nil
}

// Bootstrap seeds an empty catalog from the CSV at path. A non-empty catalog, an
// empty path or a missing file leave the store untouched.
func (s *catalogService) Bootstrap(ctx context.Context, path string) (int, error) {
	if path == "" {
		return 0, nil
	}
	count, err := s.store.Questions().Count(ctx)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, nil
	}

	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		s.logger.Info().Str("path", path).Msg("catalog seed file not found, skipping bootstrap")
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	defer file.Close()

	catalog, err := sheet.ReadCatalog(file)
	if err != nil {
		return 0, err
	}

	inserted := 0
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		for _, row := range catalog.Rows {
			question := questionFromRow(row)
			_, created, err := tx.Questions().InsertIfAbsent(ctx, &question)
			if err != nil {
				return err
			}
			if created {
				inserted++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info().Str("path", path).Int("inserted", inserted).Msg("catalog bootstrapped")
	return inserted, nil
}

func (s *catalogService) Deactivate(ctx context.Context, actor Actor, questionID uint) error {
	changed, err := s.store.Questions().Deactivate(ctx, questionID)
	if err != nil {
		return err
	}
	if !changed {
		return ErrQuestionNotFound
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     ActionDeactivate,
		EntityType: "question",
		EntityID:   &questionID,
	})
	return nil
}

func (s *catalogService) ListActive(ctx context.Context) ([]dto.QuestionSummary, error) {
	questions, err := s.store.Questions().ListAll(ctx, true)
	if err != nil {
		return nil, err
	}
	summaries := make([]dto.QuestionSummary, 0, len(questions))
	for _, question := range questions {
		summaries = append(summaries, dto.QuestionSummary{
			ID:         question.ID,
			Category:   question.Category,
			SourceText: question.SourceText,
		})
	}
	return summaries, nil
}

func questionFromRow(row sheet.CatalogRow) models.Question {
	return models.Question{
		Category:      row.Category,
		SourceText:    row.SourceText,
		TargetText:    row.TargetText,
		SearchResults: row.SearchResults,
		AnswerSource:  row.AnswerSource,
		AnswerTarget:  row.AnswerTarget,
		Active:        true,
	}
}
