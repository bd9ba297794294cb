package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-annotation-api/internal/models"
)

// AssignmentPair identifies one (annotator, question) relation.
type AssignmentPair struct {
	AnnotatorID uint
	QuestionID  uint
}

// AssignmentRepository defines persistence operations for the assignment graph.
// Inserts never fail on an existing pair.
type AssignmentRepository interface {
	InsertIfAbsent(ctx context.Context, pair AssignmentPair) (bool, error)
	InsertBatchIfAbsent(ctx context.Context, pairs []AssignmentPair) (int64, error)
	Exists(ctx context.Context, pair AssignmentPair) (bool, error)
	Count(ctx context.Context) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)
	DeleteByAnnotators(ctx context.Context, annotatorIDs []uint) (int64, error)
	DeleteByQuestions(ctx context.Context, questionIDs []uint) (int64, error)
}

type assignmentRepository struct {
	db *gorm.DB
}

// NewAssignmentRepository instantiates a GORM-backed repository.
func NewAssignmentRepository(db *gorm.DB) AssignmentRepository {
	return &assignmentRepository{db: db}
}

const assignmentBatchSize = 500

var assignmentPairColumns = []clause.Column{{Name: "annotator_id"}, {Name: "question_id"}}

func (r *assignmentRepository) InsertIfAbsent(ctx context.Context, pair AssignmentPair) (bool, error) {
	inserted, err := r.InsertBatchIfAbsent(ctx, []AssignmentPair{pair})
	return inserted > 0, err
}

// InsertBatchIfAbsent stores every pair that is not already present and returns
// how many rows were actually created.
func (r *assignmentRepository) InsertBatchIfAbsent(ctx context.Context, pairs []AssignmentPair) (int64, error) {
	if len(pairs) == 0 {
		return 0, nil
	}
	rows := make([]models.Assignment, 0, len(pairs))
	for _, pair := range pairs {
		rows = append(rows, models.Assignment{AnnotatorID: pair.AnnotatorID, QuestionID: pair.QuestionID})
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: assignmentPairColumns, DoNothing: true}).
		CreateInBatches(&rows, assignmentBatchSize)
	return result.RowsAffected, result.Error
}

func (r *assignmentRepository) Exists(ctx context.Context, pair AssignmentPair) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Assignment{}).
		Where("annotator_id = ? AND question_id = ?", pair.AnnotatorID, pair.QuestionID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *assignmentRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.Assignment{}).Count(&total).Error
	return total, err
}

// DeleteAll wipes the whole assignment relation.
func (r *assignmentRepository) DeleteAll(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Assignment{})
	return result.RowsAffected, result.Error
}

func (r *assignmentRepository) DeleteByAnnotators(ctx context.Context, annotatorIDs []uint) (int64, error) {
	if len(annotatorIDs) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Where("annotator_id IN ?", annotatorIDs).Delete(&models.Assignment{})
	return result.RowsAffected, result.Error
}

func (r *assignmentRepository) DeleteByQuestions(ctx context.Context, questionIDs []uint) (int64, error) {
	if len(questionIDs) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Where("question_id IN ?", questionIDs).Delete(&models.Assignment{})
	return result.RowsAffected, result.Error
}
