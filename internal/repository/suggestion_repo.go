package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-annotation-api/internal/models"
)

// SuggestionListing is a suggested question together with its author's email.
type SuggestionListing struct {
	ID             uint
	AnnotatorID    uint
	AnnotatorEmail string
	SourceText     string
	TargetText     string
	Status         string
	Notes          string
	CreatedAt      time.Time
}

// SuggestionRepository persists annotator question proposals.
type SuggestionRepository interface {
	Create(ctx context.Context, suggestion *models.SuggestedQuestion) error
	ListRecent(ctx context.Context, limit int) ([]SuggestionListing, error)
}

type suggestionRepository struct {
	db *gorm.DB
}

// NewSuggestionRepository instantiates a GORM-backed repository.
func NewSuggestionRepository(db *gorm.DB) SuggestionRepository {
	return &suggestionRepository{db: db}
}

func (r *suggestionRepository) Create(ctx context.Context, suggestion *models.SuggestedQuestion) error {
	return r.db.WithContext(ctx).Create(suggestion).Error
}

func (r *suggestionRepository) ListRecent(ctx context.Context, limit int) ([]SuggestionListing, error) {
	query := r.db.WithContext(ctx).Table("suggested_questions AS s").
		Select("s.id, s.annotator_id, a.email AS annotator_email, s.source_text, s.target_text, s.status, s.notes, s.created_at").
		Joins("JOIN annotators a ON a.id = s.annotator_id").
		Order("s.id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []SuggestionListing
	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
