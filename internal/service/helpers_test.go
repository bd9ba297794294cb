package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/gema-annotation-api/internal/database"
	"github.com/noah-isme/gema-annotation-api/internal/models"
	"github.com/noah-isme/gema-annotation-api/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func testValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func setupTestStore(t *testing.T) (repository.Store, *gorm.DB) {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))
	return repository.NewStore(db), db
}

func addQuestion(t *testing.T, store repository.Store, category, source, target string) uint {
	t.Helper()
	id, err := store.Questions().UpsertByKey(context.Background(), &models.Question{
		Category:   category,
		SourceText: source,
		TargetText: target,
		Active:     true,
	})
	require.NoError(t, err)
	return id
}

func addAnnotator(t *testing.T, store repository.Store, email string) uint {
	t.Helper()
	ctx := context.Background()
	_, err := store.Annotators().EnsureExists(ctx, email, nil)
	require.NoError(t, err)
	annotator, err := store.Annotators().GetByEmail(ctx, email)
	require.NoError(t, err)
	return annotator.ID
}

func assign(t *testing.T, store repository.Store, annotatorID, questionID uint) {
	t.Helper()
	_, err := store.Assignments().InsertIfAbsent(context.Background(), repository.AssignmentPair{AnnotatorID: annotatorID, QuestionID: questionID})
	require.NoError(t, err)
}

// assignedPairs returns the stored pairs among the given annotators and questions.
func assignedPairs(t *testing.T, store repository.Store, annotators, questions []uint) []repository.AssignmentPair {
	t.Helper()
	var pairs []repository.AssignmentPair
	for _, annotatorID := range annotators {
		for _, questionID := range questions {
			pair := repository.AssignmentPair{AnnotatorID: annotatorID, QuestionID: questionID}
			exists, err := store.Assignments().Exists(context.Background(), pair)
			require.NoError(t, err)
			if exists {
				pairs = append(pairs, pair)
			}
		}
	}
	return pairs
}

func annotatorIDs(t *testing.T, store repository.Store, emails ...string) []uint {
	t.Helper()
	ids := make([]uint, 0, len(emails))
	for _, email := range emails {
		annotator, err := store.Annotators().GetByEmail(context.Background(), email)
		require.NoError(t, err)
		ids = append(ids, annotator.ID)
	}
	return ids
}

func intPtr(v int) *int { return &v }

type recordedEvent struct {
	eventType string
	payload   interface{}
}

type memoryPublisher struct {
	events []recordedEvent
}

func (p *memoryPublisher) Publish(_ context.Context, eventType string, _ Actor, payload interface{}) error {
	p.events = append(p.events, recordedEvent{eventType: eventType, payload: payload})
	return nil
}

var adminActor = Actor{Email: "admin@local", Role: RoleAdmin}
