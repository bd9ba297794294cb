package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store groups the repositories that share one database handle so services can
// run several of them inside a single transaction.
type Store interface {
	Annotators() AnnotatorRepository
	Questions() QuestionRepository
	Assignments() AssignmentRepository
	Feedback() FeedbackRepository
	Suggestions() SuggestionRepository
	Progress() ProgressRepository
	Activity() ActivityLogRepository
	// Transaction runs fn against a store bound to one transaction. Any error
	// returned by fn rolls the whole transaction back.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

type gormStore struct {
	db *gorm.DB
}

// NewStore builds a GORM-backed store.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Annotators() AnnotatorRepository   { return NewAnnotatorRepository(s.db) }
func (s *gormStore) Questions() QuestionRepository     { return NewQuestionRepository(s.db) }
func (s *gormStore) Assignments() AssignmentRepository { return NewAssignmentRepository(s.db) }
func (s *gormStore) Feedback() FeedbackRepository      { return NewFeedbackRepository(s.db) }
func (s *gormStore) Suggestions() SuggestionRepository { return NewSuggestionRepository(s.db) }
func (s *gormStore) Progress() ProgressRepository      { return NewProgressRepository(s.db) }
func (s *gormStore) Activity() ActivityLogRepository   { return NewActivityLogRepository(s.db) }

func (s *gormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}
