package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-annotation-api/internal/models"
)

// FeedbackSeed carries qualitative comments imported from an external sheet.
type FeedbackSeed struct {
	AnnotatorID                uint
	QuestionID                 uint
	QuestionTranslationComment string
	SearchComment              string
	AnswerComment              string
}

// FeedbackExportRow is one feedback row joined with its annotator and question.
type FeedbackExportRow struct {
	AnnotatorEmail             string
	QuestionID                 uint
	SourceText                 string
	TargetText                 string
	Status                     models.SubmissionStatus `gorm:"column:submission_status"`
	QuestionTranslationRating  *int
	QuestionTranslationComment string
	SearchRating               *int
	SearchIssueType            *string
	SearchComment              string
	AnswerAccuracyRating       *int
	AnswerTranslationRating    *int
	AnswerComment              string
	CreatedAt                  time.Time
	UpdatedAt                  time.Time
}

// FeedbackRepository defines persistence operations for feedback. At most one
// row exists per (annotator, question); writes replace it.
type FeedbackRepository interface {
	Upsert(ctx context.Context, feedback *models.Feedback) error
	SeedComments(ctx context.Context, seed FeedbackSeed, at time.Time) error
	Get(ctx context.Context, annotatorID, questionID uint) (models.Feedback, error)
	Count(ctx context.Context) (int64, error)
	DeleteByAnnotators(ctx context.Context, annotatorIDs []uint) (int64, error)
	DeleteByQuestions(ctx context.Context, questionIDs []uint) (int64, error)
	ListForExport(ctx context.Context) ([]FeedbackExportRow, error)
}

type feedbackRepository struct {
	db *gorm.DB
}

// NewFeedbackRepository instantiates a GORM-backed repository.
func NewFeedbackRepository(db *gorm.DB) FeedbackRepository {
	return &feedbackRepository{db: db}
}

var feedbackPairColumns = []clause.Column{{Name: "annotator_id"}, {Name: "question_id"}}

// Upsert writes the feedback row for its pair. On conflict every content column
// and updated_at are replaced while created_at keeps its first value.
func (r *feedbackRepository) Upsert(ctx context.Context, feedback *models.Feedback) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: feedbackPairColumns,
			DoUpdates: clause.AssignmentColumns([]string{
				"submission_status",
				"question_translation_rating",
				"question_translation_comment",
				"search_rating",
				"search_issue_type",
				"search_comment",
				"answer_accuracy_rating",
				"answer_translation_rating",
				"answer_comment",
				"updated_at",
			}),
		}).
		Create(feedback).Error
}

// SeedComments stores sheet comments as submitted feedback. Ratings are left null
// on insert and untouched on conflict.
func (r *feedbackRepository) SeedComments(ctx context.Context, seed FeedbackSeed, at time.Time) error {
	row := models.Feedback{
		AnnotatorID:                seed.AnnotatorID,
		QuestionID:                 seed.QuestionID,
		Status:                     models.SubmissionStatusSubmitted,
		QuestionTranslationComment: seed.QuestionTranslationComment,
		SearchComment:              seed.SearchComment,
		AnswerComment:              seed.AnswerComment,
		CreatedAt:                  at,
		UpdatedAt:                  at,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: feedbackPairColumns,
			DoUpdates: clause.AssignmentColumns([]string{
				"submission_status",
				"question_translation_comment",
				"search_comment",
				"answer_comment",
				"updated_at",
			}),
		}).
		Create(&row).Error
}

func (r *feedbackRepository) Get(ctx context.Context, annotatorID, questionID uint) (models.Feedback, error) {
	var feedback models.Feedback
	if err := r.db.WithContext(ctx).
		Where("annotator_id = ? AND question_id = ?", annotatorID, questionID).
		First(&feedback).Error; err != nil {
		return models.Feedback{}, err
	}
	return feedback, nil
}

func (r *feedbackRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.Feedback{}).Count(&total).Error
	return total, err
}

func (r *feedbackRepository) DeleteByAnnotators(ctx context.Context, annotatorIDs []uint) (int64, error) {
	if len(annotatorIDs) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Where("annotator_id IN ?", annotatorIDs).Delete(&models.Feedback{})
	return result.RowsAffected, result.Error
}

func (r *feedbackRepository) DeleteByQuestions(ctx context.Context, questionIDs []uint) (int64, error) {
	if len(questionIDs) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Where("question_id IN ?", questionIDs).Delete(&models.Feedback{})
	return result.RowsAffected, result.Error
}

// ListForExport returns every feedback row, most recently updated first.
func (r *feedbackRepository) ListForExport(ctx context.Context) ([]FeedbackExportRow, error) {
	var rows []FeedbackExportRow
	err := r.db.WithContext(ctx).Table("feedback AS f").
		Select(`a.email AS annotator_email,
			q.id AS question_id,
			q.source_text,
			q.target_text,
			f.submission_status,
			f.question_translation_rating,
			f.question_translation_comment,
			f.search_rating,
			f.search_issue_type,
			f.search_comment,
			f.answer_accuracy_rating,
			f.answer_translation_rating,
			f.answer_comment,
			f.created_at,
			f.updated_at`).
		Joins("JOIN annotators a ON a.id = f.annotator_id").
		Joins("JOIN questions q ON q.id = f.question_id").
		Order("f.updated_at DESC, f.id DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
