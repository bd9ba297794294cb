package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
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
)

const (
	noticeDraftSaved = "Draft saved. This question remains pending until you submit."
	noticeSubmitted  = "Submitted and moved to next pending question."
	lowRating        = 2
)

// ValidationError rejects a submission that fails the completeness gate. Nothing
// is written when it is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// FeedbackService saves annotator feedback.
type FeedbackService interface {
	Save(ctx context.Context, actor Actor, req dto.FeedbackSaveRequest) (dto.FeedbackSaveResponse, error)
}

type feedbackService struct {
	store     repository.Store
	tasks     TaskService
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewFeedbackService constructs the feedback service.
func NewFeedbackService(store repository.Store, tasks TaskService, validate *validator.Validate, logger zerolog.Logger) FeedbackService {
	return &feedbackService{
		store:     store,
		tasks:     tasks,
		validator: validate,
		logger:    logger.With().Str("component", "feedback_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/gema-annotation-api/internal/service/feedback"),
		now:       time.Now,
	}
}

// Save upserts the actor's feedback for one question. A draft is stored as is; a
// submission must pass validateSubmission first. Saving against a question that
// is inactive or not assigned to the actor writes nothing and returns the next
// pending task.
func (s *feedbackService) Save(ctx context.Context, actor Actor, req dto.FeedbackSaveRequest) (dto.FeedbackSaveResponse, error) {
	req.QuestionTranslationComment = strings.TrimSpace(req.QuestionTranslationComment)
	req.SearchComment = strings.TrimSpace(req.SearchComment)
	req.AnswerComment = strings.TrimSpace(req.AnswerComment)
	req.SaveAction = strings.ToLower(strings.TrimSpace(req.SaveAction))
	if err := s.validator.Struct(req); err != nil {
		return dto.FeedbackSaveResponse{}, err
	}
	action, err := models.ParseSaveAction(req.SaveAction)
	if err != nil {
		return dto.FeedbackSaveResponse{}, err
	}

	spanCtx, span := s.tracer.Start(ctx, "feedback.save", trace.WithAttributes(
		attribute.Int64("feedback.question_id", int64(req.QuestionID)),
		attribute.String("feedback.action", string(action)),
	))
	defer span.End()

	question, open, err := s.openQuestion(spanCtx, actor.ID, req.QuestionID)
	if err != nil {
		span.RecordError(err)
		return dto.FeedbackSaveResponse{}, err
	}
	if !open {
		task, err := s.tasks.Next(spanCtx, actor)
		if err != nil {
			return dto.FeedbackSaveResponse{}, err
		}
		return dto.FeedbackSaveResponse{Saved: false, Task: task}, nil
	}

	if action == models.SaveActionSubmitted {
		if err := validateSubmission(req); err != nil {
			observability.FeedbackSaves().WithLabelValues("rejected").Inc()
			span.SetStatus(codes.Error, err.Error())
			return dto.FeedbackSaveResponse{}, err
		}
	}

	now := s.now().UTC()
	feedback := models.Feedback{
		AnnotatorID:                actor.ID,
		QuestionID:                 question.ID,
		Status:                     action.Status(),
		QuestionTranslationRating:  req.QuestionTranslationRating,
		QuestionTranslationComment: req.QuestionTranslationComment,
		SearchComment:              req.SearchComment,
		AnswerAccuracyRating:       req.AnswerAccuracyRating,
		AnswerTranslationRating:    req.AnswerTranslationRating,
		AnswerComment:              req.AnswerComment,
		CreatedAt:                  now,
		UpdatedAt:                  now,
	}
	if err := s.store.Feedback().Upsert(spanCtx, &feedback); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error().Err(err).Uint("question_id", question.ID).Msg("failed to save feedback")
		return dto.FeedbackSaveResponse{}, err
	}
	observability.FeedbackSaves().WithLabelValues(string(feedback.Status)).Inc()

	var task dto.TaskResponse
	if action == models.SaveActionDraft {
		task, err = s.tasks.View(spanCtx, actor, question)
		task.Notice = noticeDraftSaved
	} else {
		task, err = s.tasks.Next(spanCtx, actor)
		task.Notice = noticeSubmitted
	}
	if err != nil {
		return dto.FeedbackSaveResponse{}, err
	}

	return dto.FeedbackSaveResponse{Saved: true, Status: string(feedback.Status), Task: task}, nil
}

func (s *feedbackService) openQuestion(ctx context.Context, annotatorID, questionID uint) (models.Question, bool, error) {
	question, err := s.store.Questions().GetActiveByID(ctx, questionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Question{}, false, nil
	}
	if err != nil {
		return models.Question{}, false, err
	}
	assigned, err := s.store.Assignments().Exists(ctx, repository.AssignmentPair{AnnotatorID: annotatorID, QuestionID: questionID})
	if err != nil {
		return models.Question{}, false, err
	}
	return question, assigned, nil
}

// validateSubmission enforces the submit gate: all three primary ratings in
// 1..5, a question-translation comment when that rating is 2 or lower, and an
// answer comment when either answer rating is 2 or lower.
func validateSubmission(req dto.FeedbackSaveRequest) error {
	ratings := []struct {
		field string
		value *int
	}{
		{"q_translation_rating", req.QuestionTranslationRating},
		{"answer_accuracy_rating", req.AnswerAccuracyRating},
		{"answer_translation_rating", req.AnswerTranslationRating},
	}
	for _, rating := range ratings {
		if rating.value == nil || *rating.value < 1 || *rating.value > 5 {
			return &ValidationError{
				Field:   rating.field,
				Message: "All ratings are required and must be between 1 and 5 before submit.",
			}
		}
	}

	if *req.QuestionTranslationRating <= lowRating && req.QuestionTranslationComment == "" {
		return &ValidationError{
			Field:   "q_translation_comment",
			Message: "Add a question translation comment when rating is 1 or 2.",
		}
	}
	if (*req.AnswerAccuracyRating <= lowRating || *req.AnswerTranslationRating <= lowRating) && req.AnswerComment == "" {
		return &ValidationError{
			Field:   "answer_comment",
			Message: "Add an answer comment when answer accuracy/translation rating is 1 or 2.",
		}
	}
	return nil
}
