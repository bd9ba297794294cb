package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-annotation-api/internal/dto"
	"github.com/noah-isme/gema-annotation-api/internal/models"
	"github.com/noah-isme/gema-annotation-api/internal/repository"
	"github.com/noah-isme/gema-annotation-api/internal/sheet"
)

// ErrAnnotatorNotFound indicates no annotator has the requested email or id.
var ErrAnnotatorNotFound = errors.New("annotator not found")

// AnnotatorService manages the annotator directory.
type AnnotatorService interface {
	Create(ctx context.Context, req dto.AnnotatorCreateRequest) (dto.AnnotatorResponse, bool, error)
	BulkCreate(ctx context.Context, req dto.AnnotatorBulkCreateRequest) (dto.AnnotatorBulkCreateResponse, error)
	List(ctx context.Context) ([]dto.AnnotatorResponse, error)
	GetByEmail(ctx context.Context, email string) (dto.AnnotatorResponse, error)
}

type annotatorService struct {
	repo      repository.AnnotatorRepository
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewAnnotatorService constructs the annotator directory service.
func NewAnnotatorService(repo repository.AnnotatorRepository, validate *validator.Validate, logger zerolog.Logger) AnnotatorService {
	return &annotatorService{
		repo:      repo,
		validator: validate,
		logger:    logger.With().Str("component", "annotator_service").Logger(),
	}
}

// Create adds an annotator unless the email is already known. The boolean
// reports whether a row was created.
func (s *annotatorService) Create(ctx context.Context, req dto.AnnotatorCreateRequest) (dto.AnnotatorResponse, bool, error) {
	req.Email = models.NormalizeEmail(req.Email)
	req.Username = strings.TrimSpace(req.Username)
	if err := s.validator.Struct(req); err != nil {
		return dto.AnnotatorResponse{}, false, err
	}

	var username *string
	if req.Username != "" {
		username = &req.Username
	}

	created, err := s.repo.EnsureExists(ctx, req.Email, username)
	if err != nil {
		return dto.AnnotatorResponse{}, false, err
	}
	annotator, err := s.repo.GetByEmail(ctx, req.Email)
	if err != nil {
		return dto.AnnotatorResponse{}, false, err
	}
	if created {
		s.logger.Info().Uint("annotator_id", annotator.ID).Msg("annotator added")
	}
	return dto.NewAnnotatorResponse(annotator), created, nil
}

// BulkCreate adds every distinct address in the blob. Entries that are not valid
// email addresses are reported and skipped.
func (s *annotatorService) BulkCreate(ctx context.Context, req dto.AnnotatorBulkCreateRequest) (dto.AnnotatorBulkCreateResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.AnnotatorBulkCreateResponse{}, err
	}

	resp := dto.AnnotatorBulkCreateResponse{Emails: []string{}}
	for _, email := range sheet.SplitEmails(req.Emails) {
		if err := s.validator.Var(email, "email"); err != nil {
			resp.Invalid = append(resp.Invalid, email)
			continue
		}
		created, err := s.repo.EnsureExists(ctx, email, nil)
		if err != nil {
			return dto.AnnotatorBulkCreateResponse{}, err
		}
		if created {
			resp.Added++
		} else {
			resp.Existing++
		}
		resp.Emails = append(resp.Emails, email)
	}

	s.logger.Info().Int("added", resp.Added).Int("existing", resp.Existing).Msg("bulk annotator add")
	return resp, nil
}

func (s *annotatorService) List(ctx context.Context) ([]dto.AnnotatorResponse, error) {
	annotators, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	responses := make([]dto.AnnotatorResponse, 0, len(annotators))
	for _, annotator := range annotators {
		responses = append(responses, dto.NewAnnotatorResponse(annotator))
	}
	return responses, nil
}

func (s *annotatorService) GetByEmail(ctx context.Context, email string) (dto.AnnotatorResponse, error) {
	annotator, err := s.repo.GetByEmail(ctx, models.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AnnotatorResponse{}, ErrAnnotatorNotFound
		}
		return dto.AnnotatorResponse{}, err
	}
	return dto.NewAnnotatorResponse(annotator), nil
}
