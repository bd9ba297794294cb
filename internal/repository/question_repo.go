package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-annotation-api/internal/models"
)

// QuestionRepository defines persistence operations for the question catalog.
type QuestionRepository interface {
	Count(ctx context.Context) (int64, error)
	CountActive(ctx context.Context) (int64, error)
	InsertIfAbsent(ctx context.Context, question *models.Question) (uint, bool, error)
	UpsertByKey(ctx context.Context, question *models.Question) (uint, error)
	UpdateByID(ctx context.Context, id uint, question models.Question) (bool, error)
	GetByID(ctx context.Context, id uint) (models.Question, error)
	GetActiveByID(ctx context.Context, id uint) (models.Question, error)
	GetByKey(ctx context.Context, key models.QuestionKey) (models.Question, error)
	ListAll(ctx context.Context, activeOnly bool) ([]models.Question, error)
	ListKeys(ctx context.Context) ([]models.Question, error)
	Categories(ctx context.Context) ([]string, error)
	Deactivate(ctx context.Context, id uint) (bool, error)
	DeactivateExcept(ctx context.Context, keep []uint) (int64, error)
	IDsByCategories(ctx context.Context, categories []string) ([]uint, error)
	DeleteByIDs(ctx context.Context, ids []uint) (int64, error)
	UnassignedActiveIDs(ctx context.Context) ([]uint, error)
}

type questionRepository struct {
	db *gorm.DB
}

// NewQuestionRepository instantiates a GORM-backed repository.
func NewQuestionRepository(db *gorm.DB) QuestionRepository {
	return &questionRepository{db: db}
}

var questionKeyColumns = []clause.Column{{Name: "category"}, {Name: "source_text"}, {Name: "target_text"}}

func (r *questionRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.Question{}).Count(&total).Error
	return total, err
}

func (r *questionRepository) CountActive(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.Question{}).Where("active = ?", true).Count(&total).Error
	return total, err
}

// InsertIfAbsent adds the question unless its composite key exists. It returns the
// id of the stored row either way and whether a row was created.
func (r *questionRepository) InsertIfAbsent(ctx context.Context, question *models.Question) (uint, bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: questionKeyColumns, DoNothing: true}).
		Create(question)
	if result.Error != nil {
		return 0, false, result.Error
	}
	id, err := r.idByKey(ctx, question.Key())
	return id, result.RowsAffected > 0, err
}

// UpsertByKey inserts the question or refreshes the content of the row that shares
// its composite key, reactivating it.
func (r *questionRepository) UpsertByKey(ctx context.Context, question *models.Question) (uint, error) {
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   questionKeyColumns,
			DoUpdates: clause.AssignmentColumns([]string{"search_results", "answer_source", "answer_target", "active"}),
		}).
		Create(question).Error; err != nil {
		return 0, err
	}
	return r.idByKey(ctx, question.Key())
}

func (r *questionRepository) idByKey(ctx context.Context, key models.QuestionKey) (uint, error) {
	question, err := r.GetByKey(ctx, key)
	if err != nil {
		return 0, err
	}
	return question.ID, nil
}

// UpdateByID overwrites every content column of an existing question. It reports
// false when no row has the id.
func (r *questionRepository) UpdateByID(ctx context.Context, id uint, question models.Question) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Question{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"category":       question.Category,
			"source_text":    question.SourceText,
			"target_text":    question.TargetText,
			"search_results": question.SearchResults,
			"answer_source":  question.AnswerSource,
			"answer_target":  question.AnswerTarget,
			"active":         question.Active,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *questionRepository) GetByID(ctx context.Context, id uint) (models.Question, error) {
	var question models.Question
	if err := r.db.WithContext(ctx).First(&question, id).Error; err != nil {
		return models.Question{}, err
	}
	return question, nil
}

func (r *questionRepository) GetActiveByID(ctx context.Context, id uint) (models.Question, error) {
	var question models.Question
	if err := r.db.WithContext(ctx).Where("id = ? AND active = ?", id, true).First(&question).Error; err != nil {
		return models.Question{}, err
	}
	return question, nil
}

func (r *questionRepository) GetByKey(ctx context.Context, key models.QuestionKey) (models.Question, error) {
	var question models.Question
	if err := r.db.WithContext(ctx).
		Where("category = ? AND source_text = ? AND target_text = ?", key.Category, key.SourceText, key.TargetText).
		First(&question).Error; err != nil {
		return models.Question{}, err
	}
	return question, nil
}

func (r *questionRepository) ListAll(ctx context.Context, activeOnly bool) ([]models.Question, error) {
	query := r.db.WithContext(ctx).Model(&models.Question{})
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	var questions []models.Question
	if err := query.Order("id ASC").Find(&questions).Error; err != nil {
		return nil, err
	}
	return questions, nil
}

// ListKeys loads the identity columns of every question, active or not.
func (r *questionRepository) ListKeys(ctx context.Context) ([]models.Question, error) {
	var questions []models.Question
	if err := r.db.WithContext(ctx).
		Select("id", "category", "source_text", "target_text").
		Order("id ASC").
		Find(&questions).Error; err != nil {
		return nil, err
	}
	return questions, nil
}

func (r *questionRepository) Categories(ctx context.Context) ([]string, error) {
	var categories []string
	if err := r.db.WithContext(ctx).Model(&models.Question{}).
		Where("category <> ''").
		Distinct("category").
		Order("category ASC").
		Pluck("category", &categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

func (r *questionRepository) Deactivate(ctx context.Context, id uint) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Question{}).
		Where("id = ?", id).
		Update("active", false)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// DeactivateExcept clears the active flag on every question not listed in keep.
// An empty keep list deactivates the whole catalog.
func (r *questionRepository) DeactivateExcept(ctx context.Context, keep []uint) (int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Question{}).Where("active = ?", true)
	if len(keep) > 0 {
		query = query.Where("id NOT IN ?", keep)
	}
	result := query.Update("active", false)
	return result.RowsAffected, result.Error
}

func (r *questionRepository) IDsByCategories(ctx context.Context, categories []string) ([]uint, error) {
	if len(categories) == 0 {
		return nil, nil
	}
	var ids []uint
	if err := r.db.WithContext(ctx).Model(&models.Question{}).
		Where("category IN ?", categories).
		Order("id ASC").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *questionRepository) DeleteByIDs(ctx context.Context, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.Question{})
	return result.RowsAffected, result.Error
}

// UnassignedActiveIDs lists active questions that nobody is assigned to, in id order.
func (r *questionRepository) UnassignedActiveIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).Table("questions AS q").
		Joins("LEFT JOIN assignments a ON a.question_id = q.id").
		Where("q.active = ? AND a.id IS NULL", true).
		Order("q.id ASC").
		Pluck("q.id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
