package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-annotation-api/internal/dto"
	"github.com/noah-isme/gema-annotation-api/internal/models"
	"github.com/noah-isme/gema-annotation-api/internal/repository"
)

const recentSuggestionLimit = 200

// SuggestionService records question proposals from annotators.
type SuggestionService interface {
	Create(ctx context.Context, actor Actor, req dto.SuggestionCreateRequest) (dto.SuggestionResponse, error)
	ListRecent(ctx context.Context) ([]dto.SuggestionResponse, error)
}

type suggestionService struct {
	repo      repository.SuggestionRepository
	validator *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time
}

// NewSuggestionService constructs the suggestion service.
func NewSuggestionService(repo repository.SuggestionRepository, validate *validator.Validate, logger zerolog.Logger) SuggestionService {
	return &suggestionService{
		repo:      repo,
		validator: validate,
		logger:    logger.With().Str("component", "suggestion_service").Logger(),
		now:       time.Now,
	}
}

func (s *suggestionService) Create(ctx context.Context, actor Actor, req dto.SuggestionCreateRequest) (dto.SuggestionResponse, error) {
	req.SourceText = strings.TrimSpace(req.SourceText)
	req.TargetText = strings.TrimSpace(req.TargetText)
	req.Notes = strings.TrimSpace(req.Notes)
	if err := s.validator.Struct(req); err != nil {
		return dto.SuggestionResponse{}, err
	}

	suggestion := models.SuggestedQuestion{
		AnnotatorID: actor.ID,
		SourceText:  req.SourceText,
		TargetText:  req.TargetText,
		Status:      models.SuggestionStatusNew,
		Notes:       req.Notes,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.repo.Create(ctx, &suggestion); err != nil {
		s.logger.Error().Err(err).Uint("annotator_id", actor.ID).Msg("failed to store suggestion")
		return dto.SuggestionResponse{}, err
	}

	return dto.SuggestionResponse{
		ID:             suggestion.ID,
		AnnotatorID:    suggestion.AnnotatorID,
		AnnotatorEmail: actor.Email,
		SourceText:     suggestion.SourceText,
		TargetText:     suggestion.TargetText,
		Status:         suggestion.Status,
		Notes:          suggestion.Notes,
		CreatedAt:      suggestion.CreatedAt,
	}, nil
}

// ListRecent returns the latest suggestions, newest first.
func (s *suggestionService) ListRecent(ctx context.Context) ([]dto.SuggestionResponse, error) {
	rows, err := s.repo.ListRecent(ctx, recentSuggestionLimit)
	if err != nil {
		return nil, err
	}
	responses := make([]dto.SuggestionResponse, 0, len(rows))
	for _, row := range rows {
		responses = append(responses, dto.SuggestionResponse{
			ID:             row.ID,
			AnnotatorID:    row.AnnotatorID,
			AnnotatorEmail: row.AnnotatorEmail,
			SourceText:     row.SourceText,
			TargetText:     row.TargetText,
			Status:         row.Status,
			Notes:          row.Notes,
			CreatedAt:      row.CreatedAt,
		})
	}
	return responses, nil
}
