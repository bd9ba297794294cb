package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-annotation-api/internal/models"
)

// AnnotatorRepository defines persistence operations for annotators. Emails are
// expected to be normalised by the caller.
type AnnotatorRepository interface {
	EnsureExists(ctx context.Context, email string, username *string) (bool, error)
	GetByEmail(ctx context.Context, email string) (models.Annotator, error)
	GetByID(ctx context.Context, id uint) (models.Annotator, error)
	List(ctx context.Context) ([]models.Annotator, error)
	EmailIndex(ctx context.Context) (map[string]uint, error)
	ExistingIDs(ctx context.Context, ids []uint) ([]uint, error)
	IDsExcept(ctx context.Context, emails []string) ([]uint, error)
	DeleteByIDs(ctx context.Context, ids []uint) (int64, error)
	Count(ctx context.Context) (int64, error)
}

type annotatorRepository struct {
	db *gorm.DB
}

// NewAnnotatorRepository instantiates a GORM-backed repository.
func NewAnnotatorRepository(db *gorm.DB) AnnotatorRepository {
	return &annotatorRepository{db: db}
}

func (r *annotatorRepository) EnsureExists(ctx context.Context, email string, username *string) (bool, error) {
	annotator := models.Annotator{Email: email, Username: username}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "email"}}, DoNothing: true}).
		Create(&annotator)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *annotatorRepository) GetByEmail(ctx context.Context, email string) (models.Annotator, error) {
	var annotator models.Annotator
	if err := r.db.WithContext(ctx).Where("LOWER(email) = ?", email).First(&annotator).Error; err != nil {
		return models.Annotator{}, err
	}
	return annotator, nil
}

func (r *annotatorRepository) GetByID(ctx context.Context, id uint) (models.Annotator, error) {
	var annotator models.Annotator
	if err := r.db.WithContext(ctx).First(&annotator, id).Error; err != nil {
		return models.Annotator{}, err
	}
	return annotator, nil
}

func (r *annotatorRepository) List(ctx context.Context) ([]models.Annotator, error) {
	var annotators []models.Annotator
	if err := r.db.WithContext(ctx).Order("email ASC").Find(&annotators).Error; err != nil {
		return nil, err
	}
	return annotators, nil
}

func (r *annotatorRepository) EmailIndex(ctx context.Context) (map[string]uint, error) {
	annotators, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	index := make(map[string]uint, len(annotators))
	for _, annotator := range annotators {
		index[models.NormalizeEmail(annotator.Email)] = annotator.ID
	}
	return index, nil
}

func (r *annotatorRepository) ExistingIDs(ctx context.Context, ids []uint) ([]uint, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var existing []uint
	if err := r.db.WithContext(ctx).Model(&models.Annotator{}).
		Where("id IN ?", ids).
		Pluck("id", &existing).Error; err != nil {
		return nil, err
	}
	return existing, nil
}

func (r *annotatorRepository) IDsExcept(ctx context.Context, emails []string) ([]uint, error) {
	query := r.db.WithContext(ctx).Model(&models.Annotator{})
	if len(emails) > 0 {
		query = query.Where("LOWER(email) NOT IN ?", emails)
	}
	var ids []uint
	if err := query.Order("id ASC").Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *annotatorRepository) DeleteByIDs(ctx context.Context, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.Annotator{})
	return result.RowsAffected, result.Error
}

func (r *annotatorRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.Annotator{}).Count(&total).Error
	return total, err
}
