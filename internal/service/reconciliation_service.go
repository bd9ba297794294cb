package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-annotation-api/internal/dto"
	"github.com/noah-isme/gema-annotation-api/internal/matching"
	"github.com/noah-isme/gema-annotation-api/internal/models"
	"github.com/noah-isme/gema-annotation-api/internal/observability"
	"github.com/noah-isme/gema-annotation-api/internal/repository"
	"github.com/noah-isme/gema-annotation-api/internal/sheet"
)

const (
	reconcileLockKey    = "annotation:reconcile:lock"
	reconcileSampleSize = 5
)

// ReconciliationConfig tunes the reconciliation engine.
type ReconciliationConfig struct {
	// TestCategories name question categories purged on every run.
	TestCategories []string
	LockTTL        time.Duration
}

// ReconcileOptions controls a single run.
type ReconcileOptions struct {
	// DryRun matches and reports without writing anything.
	DryRun bool
}

// ReconciliationService rebuilds annotators and assignments from the eval sheet.
type ReconciliationService interface {
	Reconcile(ctx context.Context, actor Actor, eval sheet.EvalSheet, opts ReconcileOptions) (dto.ReconcileReport, error)
}

type reconciliationService struct {
	store     repository.Store
	locker    Locker
	activity  ActivityRecorder
	publisher EventPublisher
	cfg       ReconciliationConfig
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewReconciliationService constructs the reconciliation engine.
func NewReconciliationService(store repository.Store, locker Locker, activity ActivityRecorder, publisher EventPublisher, cfg ReconciliationConfig, logger zerolog.Logger) ReconciliationService {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Minute
	}
	if locker == nil {
		locker = NewLocker(nil)
	}
	return &reconciliationService{
		store:     store,
		locker:    locker,
		activity:  activity,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger.With().Str("component", "reconciliation_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/gema-annotation-api/internal/service/reconciliation"),
		now:       time.Now,
	}
}

type resolvedRow struct {
	questionID uint
	row        sheet.EvalRow
}

// Reconcile matches every sheet row against the catalog and, unless DryRun is
// set, resyncs the store in one transaction:
//
//  1. annotators missing from the sheet are deleted with their feedback and assignments;
//  2. questions in test categories are deleted with their feedback and assignments;
//  3. every sheet email is ensured as an annotator;
//  4. the assignment table is wiped and rebuilt from resolved rows;
//  5. sheet comments are seeded as submitted feedback without ratings.
//
// Ambiguous and unmapped rows never fail the run; they are counted and sampled.
func (s *reconciliationService) Reconcile(ctx context.Context, actor Actor, eval sheet.EvalSheet, opts ReconcileOptions) (dto.ReconcileReport, error) {
	started := s.now()
	spanCtx, span := s.tracer.Start(ctx, "reconciliation.run", trace.WithAttributes(
		attribute.Int("reconcile.rows", len(eval.Rows)),
		attribute.Int("reconcile.emails", len(eval.Emails)),
		attribute.Bool("reconcile.dry_run", opts.DryRun),
	))
	defer span.End()

	report, err := s.run(spanCtx, eval, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observability.Reconciliations().WithLabelValues("failed").Inc()
		s.logger.Error().Err(err).Bool("dry_run", opts.DryRun).Msg("reconciliation failed")
		return dto.ReconcileReport{}, err
	}

	result := "applied"
	if opts.DryRun {
		result = "dry_run"
	}
	observability.Reconciliations().WithLabelValues(result).Inc()
	observability.ReconciliationDuration().Observe(s.now().Sub(started).Seconds())

	s.logger.Info().
		Bool("applied", report.Applied).
		Int("rows", report.SheetRows).
		Int("mapped", report.Mapped).
		Int("unmapped", report.Unmapped).
		Int("ambiguous", report.Ambiguous).
		Int64("assignments", report.Assignments).
		Msg("reconciliation finished")

	if report.Applied {
		recordActivity(ctx, s.activity, s.logger, ActivityEntry{
			Actor:      actor,
			Action:     ActionReconcile,
			EntityType: "assignment",
			Metadata: map[string]interface{}{
				"sheet_rows":          report.SheetRows,
				"mapped_rows":         report.Mapped,
				"unmapped_rows":       report.Unmapped,
				"ambiguous_rows":      report.Ambiguous,
				"annotators_pruned":   report.AnnotatorsPruned,
				"questions_purged":    report.QuestionsPurged,
				"assignments_created": report.AssignmentsCreated,
				"feedback_seeded":     report.FeedbackSeeded,
			},
		})
		publishAfterCommit(ctx, s.publisher, s.logger, EventReconciled, actor, report)
	}

	return report, nil
}

func (s *reconciliationService) run(ctx context.Context, eval sheet.EvalSheet, opts ReconcileOptions) (dto.ReconcileReport, error) {
	if opts.DryRun {
		_, report, err := s.match(ctx, s.store, eval)
		return report, err
	}

	release, err := s.locker.Acquire(ctx, reconcileLockKey, s.cfg.LockTTL)
	if err != nil {
		return dto.ReconcileReport{}, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn().Err(err).Msg("failed to release reconciliation lock")
		}
	}()

	var report dto.ReconcileReport
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		resolved, matched, err := s.match(ctx, tx, eval)
		if err != nil {
			return err
		}
		report = matched
		if err := s.apply(ctx, tx, eval.Emails, resolved, &report); err != nil {
			return err
		}
		report.Applied = true
		return nil
	})
	if err != nil {
		return dto.ReconcileReport{}, err
	}
	return report, nil
}

// match resolves every row against an index of the whole catalog, active or not.
func (s *reconciliationService) match(ctx context.Context, store repository.Store, eval sheet.EvalSheet) ([]resolvedRow, dto.ReconcileReport, error) {
	report := dto.ReconcileReport{
		SheetRows:        len(eval.Rows),
		UniqueEmails:     len(eval.Emails),
		UnmappedSamples:  []string{},
		AmbiguousSamples: []string{},
	}

	questions, err := store.Questions().ListKeys(ctx)
	if err != nil {
		return nil, report, fmt.Errorf("load catalog keys: %w", err)
	}
	entries := make([]matching.Entry, 0, len(questions))
	for _, question := range questions {
		entries = append(entries, matching.Entry{
			ID:         question.ID,
			Category:   question.Category,
			SourceText: question.SourceText,
			TargetText: question.TargetText,
		})
	}
	index := matching.NewIndex(entries)
	s.logger.Debug().Int("catalog_keys", index.Len()).Int("rows", len(eval.Rows)).Msg("matching sheet rows")

	resolved := make([]resolvedRow, 0, len(eval.Rows))
	for _, row := range eval.Rows {
		result := index.Match(matching.Row{
			Category:   row.Category,
			SourceText: row.SourceText,
			TargetText: row.TargetText,
		})
		observability.MatchOutcomes().WithLabelValues(result.Outcome.String(), string(result.Tier)).Inc()

		switch result.Outcome {
		case matching.Resolved:
			report.Mapped++
			resolved = append(resolved, resolvedRow{questionID: result.QuestionID, row: row})
		case matching.Ambiguous:
			report.Ambiguous++
			if len(report.AmbiguousSamples) < reconcileSampleSize {
				report.AmbiguousSamples = append(report.AmbiguousSamples, row.SourceText)
			}
		default:
			report.Unmapped++
			if len(report.UnmappedSamples) < reconcileSampleSize {
				report.UnmappedSamples = append(report.UnmappedSamples, row.SourceText)
			}
		}
	}
	return resolved, report, nil
}

func (s *reconciliationService) apply(ctx context.Context, tx repository.Store, allowed []string, resolved []resolvedRow, report *dto.ReconcileReport) error {
	allowedEmails := make([]string, 0, len(allowed))
	for _, email := range allowed {
		if normalized := models.NormalizeEmail(email); normalized != "" {
			allowedEmails = append(allowedEmails, normalized)
		}
	}

	if len(allowedEmails) > 0 {
		stale, err := tx.Annotators().IDsExcept(ctx, allowedEmails)
		if err != nil {
			return err
		}
		if _, err := tx.Feedback().DeleteByAnnotators(ctx, stale); err != nil {
			return err
		}
		if _, err := tx.Assignments().DeleteByAnnotators(ctx, stale); err != nil {
			return err
		}
		pruned, err := tx.Annotators().DeleteByIDs(ctx, stale)
		if err != nil {
			return err
		}
		report.AnnotatorsPruned = pruned
	}

	purgedIDs, err := tx.Questions().IDsByCategories(ctx, s.cfg.TestCategories)
	if err != nil {
		return err
	}
	if _, err := tx.Assignments().DeleteByQuestions(ctx, purgedIDs); err != nil {
		return err
	}
	if _, err := tx.Feedback().DeleteByQuestions(ctx, purgedIDs); err != nil {
		return err
	}
	purged, err := tx.Questions().DeleteByIDs(ctx, purgedIDs)
	if err != nil {
		return err
	}
	report.QuestionsPurged = purged
	purgedSet := make(map[uint]struct{}, len(purgedIDs))
	for _, id := range purgedIDs {
		purgedSet[id] = struct{}{}
	}

	for _, email := range allowedEmails {
		created, err := tx.Annotators().EnsureExists(ctx, email, nil)
		if err != nil {
			return err
		}
		if created {
			report.AnnotatorsCreated++
		}
	}

	removed, err := tx.Assignments().DeleteAll(ctx)
	if err != nil {
		return err
	}
	report.AssignmentsRemoved = removed

	emailIndex, err := tx.Annotators().EmailIndex(ctx)
	if err != nil {
		return err
	}

	seededAt := s.now().UTC()
	pairs := make([]repository.AssignmentPair, 0, len(resolved))
	for _, item := range resolved {
		if _, gone := purgedSet[item.questionID]; gone {
			continue
		}
		for _, email := range item.row.Members {
			annotatorID, ok := emailIndex[models.NormalizeEmail(email)]
			if !ok {
				continue
			}
			pairs = append(pairs, repository.AssignmentPair{AnnotatorID: annotatorID, QuestionID: item.questionID})

			if !item.row.HasFeedback() {
				continue
			}
			if err := tx.Feedback().SeedComments(ctx, repository.FeedbackSeed{
				AnnotatorID:                annotatorID,
				QuestionID:                 item.questionID,
				QuestionTranslationComment: item.row.FeedbackQuestion,
				SearchComment:              item.row.FeedbackSearch,
				AnswerComment:              item.row.FeedbackAnswer,
			}, seededAt); err != nil {
				return err
			}
			report.FeedbackSeeded++
		}
	}

	created, err := tx.Assignments().InsertBatchIfAbsent(ctx, pairs)
	if err != nil {
		return err
	}
	report.AssignmentsCreated = created

	if report.Annotators, err = tx.Annotators().Count(ctx); err != nil {
		return err
	}
	if report.Assignments, err = tx.Assignments().Count(ctx); err != nil {
		return err
	}
	if report.ActiveQuestions, err = tx.Questions().CountActive(ctx); err != nil {
		return err
	}
	return nil
}
