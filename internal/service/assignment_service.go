package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-annotation-api/internal/distribution"
	"github.com/noah-isme/gema-annotation-api/internal/dto"
	"github.com/noah-isme/gema-annotation-api/internal/models"
	"github.com/noah-isme/gema-annotation-api/internal/observability"
	"github.com/noah-isme/gema-annotation-api/internal/repository"
)

var (
	// ErrNoAnnotators is returned when a distribution names no known annotator.
	ErrNoAnnotators = errors.New("at least one known annotator is required")
	// ErrInvalidQuota is returned when the quota policy is used without a positive quota.
	ErrInvalidQuota = errors.New("per-annotator quota must be positive")
)

// AssignmentService creates assignments outside of reconciliation.
type AssignmentService interface {
	AssignManual(ctx context.Context, actor Actor, req dto.ManualAssignmentRequest) (dto.ManualAssignmentResponse, error)
	Distribute(ctx context.Context, actor Actor, req dto.DistributeRequest) (dto.DistributeResponse, error)
}

type assignmentService struct {
	store     repository.Store
	validator *validator.Validate
	activity  ActivityRecorder
	publisher EventPublisher
	logger    zerolog.Logger
	tracer    trace.Tracer
	shuffle   func([]uint)
}

// NewAssignmentService constructs the assignment service.
func NewAssignmentService(store repository.Store, validate *validator.Validate, activity ActivityRecorder, publisher EventPublisher, logger zerolog.Logger) AssignmentService {
	return &assignmentService{
		store:     store,
		validator: validate,
		activity:  activity,
		publisher: publisher,
		logger:    logger.With().Str("component", "assignment_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/gema-annotation-api/internal/service/assignment"),
		shuffle:   distribution.Shuffle,
	}
}

// AssignManual links one annotator to one question. Unknown annotators or
// questions make the call a no-op.
func (s *assignmentService) AssignManual(ctx context.Context, actor Actor, req dto.ManualAssignmentRequest) (dto.ManualAssignmentResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ManualAssignmentResponse{}, err
	}
	resp := dto.ManualAssignmentResponse{AnnotatorID: req.AnnotatorID, QuestionID: req.QuestionID}

	if _, err := s.store.Annotators().GetByID(ctx, req.AnnotatorID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Debug().Uint("annotator_id", req.AnnotatorID).Msg("manual assignment skipped, unknown annotator")
			return resp, nil
		}
		return dto.ManualAssignmentResponse{}, err
	}
	if _, err := s.store.Questions().GetByID(ctx, req.QuestionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Debug().Uint("question_id", req.QuestionID).Msg("manual assignment skipped, unknown question")
			return resp, nil
		}
		return dto.ManualAssignmentResponse{}, err
	}

	created, err := s.store.Assignments().InsertIfAbsent(ctx, repository.AssignmentPair{
		AnnotatorID: req.AnnotatorID,
		QuestionID:  req.QuestionID,
	})
	if err != nil {
		return dto.ManualAssignmentResponse{}, err
	}
	resp.Created = created
	return resp, nil
}

// Distribute spreads the shuffled pool of active, unassigned questions over the
// requested annotators. Unknown and duplicate annotator ids are dropped while the
// order of the remaining ids is kept.
func (s *assignmentService) Distribute(ctx context.Context, actor Actor, req dto.DistributeRequest) (dto.DistributeResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.DistributeResponse{}, err
	}
	policy, err := models.ParseDistributionPolicy(req.Policy)
	if err != nil {
		return dto.DistributeResponse{}, err
	}
	if policy == models.DistributionQuota && req.PerAnnotator <= 0 {
		return dto.DistributeResponse{}, ErrInvalidQuota
	}

	spanCtx, span := s.tracer.Start(ctx, "assignments.distribute", trace.WithAttributes(
		attribute.String("distribution.policy", string(policy)),
		attribute.Int("distribution.annotators", len(req.AnnotatorIDs)),
	))
	defer span.End()

	resp := dto.DistributeResponse{Policy: string(policy)}
	err = s.store.Transaction(spanCtx, func(tx repository.Store) error {
		annotators, err := s.knownAnnotators(spanCtx, tx, req.AnnotatorIDs)
		if err != nil {
			return err
		}
		if len(annotators) == 0 {
			return ErrNoAnnotators
		}

		pool, err := tx.Questions().UnassignedActiveIDs(spanCtx)
		if err != nil {
			return err
		}
		resp.PoolSize = len(pool)
		s.shuffle(pool)

		plan := distribution.Plan(pool, annotators, policy, req.PerAnnotator)
		resp.Allocations = make([]dto.AnnotatorAllocation, 0, len(plan))
		for _, allocation := range plan {
			pairs := make([]repository.AssignmentPair, 0, len(allocation.QuestionIDs))
			for _, questionID := range allocation.QuestionIDs {
				pairs = append(pairs, repository.AssignmentPair{AnnotatorID: allocation.AnnotatorID, QuestionID: questionID})
			}
			inserted, err := tx.Assignments().InsertBatchIfAbsent(spanCtx, pairs)
			if err != nil {
				return err
			}
			resp.Created += inserted
			resp.Allocations = append(resp.Allocations, dto.AnnotatorAllocation{
				AnnotatorID: allocation.AnnotatorID,
				Received:    inserted,
			})
		}
		resp.Remaining = resp.PoolSize - distribution.Assigned(plan)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return dto.DistributeResponse{}, err
	}

	observability.AssignmentsDistributed().WithLabelValues(resp.Policy).Add(float64(resp.Created))
	s.logger.Info().
		Str("policy", resp.Policy).
		Int("pool", resp.PoolSize).
		Int64("created", resp.Created).
		Msg("assignments distributed")

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     ActionDistribute,
		EntityType: "assignment",
		Metadata: map[string]interface{}{
			"policy":        resp.Policy,
			"pool_size":     resp.PoolSize,
			"created":       resp.Created,
			"annotators":    len(resp.Allocations),
			"per_annotator": req.PerAnnotator,
		},
	})
	publishAfterCommit(ctx, s.publisher, s.logger, EventDistributed, actor, resp)

	return resp, nil
}

func (s *assignmentService) knownAnnotators(ctx context.Context, tx repository.Store, requested []uint) ([]uint, error) {
	existing, err := tx.Annotators().ExistingIDs(ctx, requested)
	if err != nil {
		return nil, err
	}
	known := make(map[uint]struct{}, len(existing))
	for _, id := range existing {
		known[id] = struct{}{}
	}

	ordered := make([]uint, 0, len(existing))
	for _, id := range requested {
		if _, ok := known[id]; !ok {
			continue
		}
		ordered = append(ordered, id)
		delete(known, id)
	}
	return ordered, nil
}
