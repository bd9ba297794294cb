package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-annotation-api/internal/models"
)

// ProgressCounts is the assigned/completed tally for one annotator.
type ProgressCounts struct {
	Assigned  int64
	Completed int64
}

// AnnotatorProgressRow is one line of the admin progress table.
type AnnotatorProgressRow struct {
	AnnotatorID uint
	Email       string
	Assigned    int64
	Completed   int64
	Drafts      int64
}

// CoverageFilter narrows the per-question coverage listing.
type CoverageFilter struct {
	Bucket      models.CoverageBucket
	AnnotatorID *uint
	Category    string
	Search      string
	Limit       int
	Offset      int
}

// CoverageRow is the assignment coverage of one active question.
type CoverageRow struct {
	QuestionID     uint
	Category       string
	SourceText     string
	AssignedCount  int64
	CompletedCount int64
}

// CoverageTotals counts active questions per coverage bucket.
type CoverageTotals struct {
	Total      int64 `gorm:"column:total_count"`
	Unassigned int64 `gorm:"column:unassigned_count"`
	Partial    int64 `gorm:"column:partial_count"`
	Full       int64 `gorm:"column:full_count"`
}

// ProgressRepository serves read-only projections of the assignment and feedback graph.
type ProgressRepository interface {
	AnnotatorProgress(ctx context.Context, annotatorID uint) (ProgressCounts, error)
	ListAnnotatorProgress(ctx context.Context) ([]AnnotatorProgressRow, error)
	NextPendingQuestion(ctx context.Context, annotatorID uint) (models.Question, error)
	Coverage(ctx context.Context, filter CoverageFilter) ([]CoverageRow, error)
	CountCoverage(ctx context.Context, filter CoverageFilter) (int64, error)
	CoverageTotals(ctx context.Context) (CoverageTotals, error)
}

type progressRepository struct {
	db *gorm.DB
}

// NewProgressRepository instantiates a GORM-backed repository.
func NewProgressRepository(db *gorm.DB) ProgressRepository {
	return &progressRepository{db: db}
}

const (
	assignedCountExpr  = "COUNT(DISTINCT a.annotator_id)"
	completedCountExpr = "COUNT(DISTINCT f.annotator_id)"
)

func (r *progressRepository) AnnotatorProgress(ctx context.Context, annotatorID uint) (ProgressCounts, error) {
	var counts ProgressCounts
	err := r.db.WithContext(ctx).Raw(`
		SELECT
		  COUNT(DISTINCT a.question_id) AS assigned,
		  COUNT(DISTINCT f.question_id) AS completed
		FROM assignments a
		LEFT JOIN feedback f
		  ON f.question_id = a.question_id
		 AND f.annotator_id = a.annotator_id
		 AND f.submission_status = ?
		WHERE a.annotator_id = ?`,
		models.SubmissionStatusSubmitted, annotatorID,
	).Scan(&counts).Error
	return counts, err
}

func (r *progressRepository) ListAnnotatorProgress(ctx context.Context) ([]AnnotatorProgressRow, error) {
	var rows []AnnotatorProgressRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT
		  u.id AS annotator_id,
		  u.email,
		  COUNT(DISTINCT a.question_id) AS assigned,
		  COUNT(DISTINCT CASE WHEN f.submission_status = ? THEN f.question_id END) AS completed,
		  COUNT(DISTINCT CASE WHEN f.submission_status = ? THEN f.question_id END) AS drafts
		FROM annotators u
		LEFT JOIN assignments a ON a.annotator_id = u.id
		LEFT JOIN feedback f ON f.annotator_id = u.id AND f.question_id = a.question_id
		GROUP BY u.id, u.email
		ORDER BY u.email`,
		models.SubmissionStatusSubmitted, models.SubmissionStatusDraft,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// NextPendingQuestion returns the lowest-id active question assigned to the
// annotator that has no submitted feedback. It returns gorm.ErrRecordNotFound
// when nothing is pending.
func (r *progressRepository) NextPendingQuestion(ctx context.Context, annotatorID uint) (models.Question, error) {
	var question models.Question
	err := r.db.WithContext(ctx).Table("assignments AS a").
		Select("q.*").
		Joins("JOIN questions q ON q.id = a.question_id").
		Joins("LEFT JOIN feedback f ON f.annotator_id = a.annotator_id AND f.question_id = a.question_id AND f.submission_status = ?", models.SubmissionStatusSubmitted).
		Where("a.annotator_id = ? AND q.active = ? AND f.id IS NULL", annotatorID, true).
		Order("q.id ASC").
		Limit(1).
		Scan(&question).Error
	if err != nil {
		return models.Question{}, err
	}
	if question.ID == 0 {
		return models.Question{}, gorm.ErrRecordNotFound
	}
	return question, nil
}

func (r *progressRepository) Coverage(ctx context.Context, filter CoverageFilter) ([]CoverageRow, error) {
	summary, args := coverageSummarySQL(filter)
	query := summary + " ORDER BY q.id"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}
	var rows []CoverageRow
	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *progressRepository) CountCoverage(ctx context.Context, filter CoverageFilter) (int64, error) {
	summary, args := coverageSummarySQL(filter)
	var total int64
	err := r.db.WithContext(ctx).Raw("SELECT COUNT(*) FROM ("+summary+") t", args...).Scan(&total).Error
	return total, err
}

func (r *progressRepository) CoverageTotals(ctx context.Context) (CoverageTotals, error) {
	summary, args := coverageSummarySQL(CoverageFilter{Bucket: models.CoverageAll})
	var totals CoverageTotals
	err := r.db.WithContext(ctx).Raw(`
		SELECT
		  COUNT(*) AS total_count,
		  COALESCE(SUM(CASE WHEN assigned_count = 0 THEN 1 ELSE 0 END), 0) AS unassigned_count,
		  COALESCE(SUM(CASE WHEN assigned_count > 0 AND completed_count < assigned_count THEN 1 ELSE 0 END), 0) AS partial_count,
		  COALESCE(SUM(CASE WHEN assigned_count > 0 AND completed_count >= assigned_count THEN 1 ELSE 0 END), 0) AS full_count
		FROM (`+summary+`) t`, args...,
	).Scan(&totals).Error
	return totals, err
}

// coverageSummarySQL builds the grouped per-question query shared by the
// listing, its count and the bucket totals. Only active questions are covered.
func coverageSummarySQL(filter CoverageFilter) (string, []interface{}) {
	where := []string{"q.active = ?"}
	args := []interface{}{models.SubmissionStatusSubmitted, true}

	if category := strings.TrimSpace(filter.Category); category != "" {
		where = append(where, "q.category = ?")
		args = append(args, category)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + search + "%"
		where = append(where, "(q.source_text LIKE ? OR q.target_text LIKE ?)")
		args = append(args, like, like)
	}
	if filter.AnnotatorID != nil {
		where = append(where, "EXISTS (SELECT 1 FROM assignments a2 WHERE a2.question_id = q.id AND a2.annotator_id = ?)")
		args = append(args, *filter.AnnotatorID)
	}

	having := ""
	switch filter.Bucket {
	case models.CoverageUnassigned:
		having = " HAVING " + assignedCountExpr + " = 0"
	case models.CoveragePartial:
		having = " HAVING " + assignedCountExpr + " > 0 AND " + completedCountExpr + " < " + assignedCountExpr
	case models.CoverageFull:
		having = " HAVING " + assignedCountExpr + " > 0 AND " + completedCountExpr + " >= " + assignedCountExpr
	}

	query := `SELECT
		  q.id AS question_id,
		  q.category,
		  q.source_text,
		  ` + assignedCountExpr + ` AS assigned_count,
		  ` + completedCountExpr + ` AS completed_count
		FROM questions q
		LEFT JOIN assignments a ON a.question_id = q.id
		LEFT JOIN feedback f
		  ON f.question_id = q.id
		 AND f.annotator_id = a.annotator_id
		 AND f.submission_status = ?
		WHERE ` + strings.Join(where, " AND ") + `
		GROUP BY q.id, q.category, q.source_text` + having

	return query, args
}
