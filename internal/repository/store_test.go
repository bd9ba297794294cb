package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/gema-annotation-api/internal/database"
	"github.com/noah-isme/gema-annotation-api/internal/models"
)

func setupStoreDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))
	return db
}

func seedQuestion(t *testing.T, repo QuestionRepository, category, source, target string) uint {
	t.Helper()
	id, err := repo.UpsertByKey(context.Background(), &models.Question{
		Category:   category,
		SourceText: source,
		TargetText: target,
		Active:     true,
	})
	require.NoError(t, err)
	return id
}

func seedAnnotator(t *testing.T, repo AnnotatorRepository, email string) uint {
	t.Helper()
	ctx := context.Background()
	_, err := repo.EnsureExists(ctx, email, nil)
	require.NoError(t, err)
	annotator, err := repo.GetByEmail(ctx, email)
	require.NoError(t, err)
	return annotator.ID
}

func intPtr(v int) *int { return &v }

func TestAnnotatorRepositoryEnsureExistsIsIdempotent(t *testing.T) {
	store := NewStore(setupStoreDB(t))
	ctx := context.Background()

	created, err := store.Annotators().EnsureExists(ctx, "a@example.com", nil)
	require.NoError(t, err)
	require.True(t, created)

	created, err = store.Annotators().EnsureExists(ctx, "a@example.com", nil)
	require.NoError(t, err)
	require.False(t, created)

	seedAnnotator(t, store.Annotators(), "b@example.com")

	total, err := store.Annotators().Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, total)

	others, err := store.Annotators().IDsExcept(ctx, []string{"a@example.com"})
	require.NoError(t, err)
	require.Len(t, others, 1)

	index, err := store.Annotators().EmailIndex(ctx)
	require.NoError(t, err)
	require.Contains(t, index, "a@example.com")
	require.Contains(t, index, "b@example.com")
}

func TestQuestionRepositoryUpsertKeepsTripleUnique(t *testing.T) {
	store := NewStore(setupStoreDB(t))
	ctx := context.Background()
	questions := store.Questions()

	first := seedQuestion(t, questions, "Cat", "source", "target")
	again, err := questions.UpsertByKey(ctx, &models.Question{
		Category:      "Cat",
		SourceText:    "source",
		TargetText:    "target",
		SearchResults: "fresh",
		Active:        true,
	})
	require.NoError(t, err)
	require.Equal(t, first, again)

	stored, err := questions.GetByID(ctx, first)
	require.NoError(t, err)
	require.Equal(t, "fresh", stored.SearchResults)

	id, created, err := questions.InsertIfAbsent(ctx, &models.Question{Category: "Cat", SourceText: "source", TargetText: "target", SearchResults: "ignored"})
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first, id)

	total, err := questions.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
}

func TestQuestionRepositoryDeactivateExcept(t *testing.T) {
	store := NewStore(setupStoreDB(t))
	ctx := context.Background()
	questions := store.Questions()

	keep := seedQuestion(t, questions, "Cat", "one", "")
	seedQuestion(t, questions, "Cat", "two", "")
	seedQuestion(t, questions, "Other", "three", "")

	changed, err := questions.DeactivateExcept(ctx, []uint{keep})
	require.NoError(t, err)
	require.EqualValues(t, 2, changed)

	active, err := questions.ListAll(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, keep, active[0].ID)

	all, err := questions.ListAll(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 3)

	categories, err := questions.Categories(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"Cat", "Other"}, categories)
}

func TestAssignmentRepositoryInsertIfAbsent(t *testing.T) {
	store := NewStore(setupStoreDB(t))
	ctx := context.Background()

	annotator := seedAnnotator(t, store.Annotators(), "a@example.com")
	q1 := seedQuestion(t, store.Questions(), "Cat", "one", "")
	q2 := seedQuestion(t, store.Questions(), "Cat", "two", "")

	inserted, err := store.Assignments().InsertBatchIfAbsent(ctx, []AssignmentPair{
		{AnnotatorID: annotator, QuestionID: q1},
		{AnnotatorID: annotator, QuestionID: q2},
	})
	require.NoError(t, err)
	require.EqualValues(t, 2, inserted)

	created, err := store.Assignments().InsertIfAbsent(ctx, AssignmentPair{AnnotatorID: annotator, QuestionID: q1})
	require.NoError(t, err)
	require.False(t, created)

	unassigned, err := store.Questions().UnassignedActiveIDs(ctx)
	require.NoError(t, err)
	require.Empty(t, unassigned)

	removed, err := store.Assignments().DeleteAll(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, removed)

	unassigned, err = store.Questions().UnassignedActiveIDs(ctx)
	require.NoError(t, err)
	require.Equal(t, []uint{q1, q2}, unassigned)
}

func TestFeedbackRepositoryUpsertPreservesCreatedAt(t *testing.T) {
	store := NewStore(setupStoreDB(t))
	ctx := context.Background()

	annotator := seedAnnotator(t, store.Annotators(), "a@example.com")
	question := seedQuestion(t, store.Questions(), "Cat", "one", "")

	created := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.Feedback().Upsert(ctx, &models.Feedback{
		AnnotatorID:               annotator,
		QuestionID:                question,
		Status:                    models.SubmissionStatusSubmitted,
		QuestionTranslationRating: intPtr(4),
		CreatedAt:                 created,
		UpdatedAt:                 created,
	}))

	later := created.Add(time.Hour)
	require.NoError(t, store.Feedback().Upsert(ctx, &models.Feedback{
		AnnotatorID: annotator,
		QuestionID:  question,
		Status:      models.SubmissionStatusDraft,
		CreatedAt:   later,
		UpdatedAt:   later,
	}))

	total, err := store.Feedback().Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)

	stored, err := store.Feedback().Get(ctx, annotator, question)
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusDraft, stored.Status)
	require.Nil(t, stored.QuestionTranslationRating)
	require.True(t, stored.CreatedAt.Equal(created))
	require.True(t, stored.UpdatedAt.Equal(later))
}

func TestFeedbackRepositoryConcurrentUpsertsKeepOneRow(t *testing.T) {
	store := NewStore(setupStoreDB(t))
	ctx := context.Background()

	annotator := seedAnnotator(t, store.Annotators(), "a@example.com")
	question := seedQuestion(t, store.Questions(), "Cat", "one", "")

	created := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.Feedback().Upsert(ctx, &models.Feedback{
		AnnotatorID: annotator,
		QuestionID:  question,
		Status:      models.SubmissionStatusDraft,
		CreatedAt:   created,
		UpdatedAt:   created,
	}))

	const writers = 8
	errs := make(chan error, writers)
	var wg sync.WaitGroup
	for i := 1; i <= writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			at := created.Add(time.Duration(i) * time.Minute)
			errs <- store.Feedback().Upsert(ctx, &models.Feedback{
				AnnotatorID:   annotator,
				QuestionID:    question,
				Status:        models.SubmissionStatusSubmitted,
				AnswerComment: fmt.Sprintf("save-%d", i),
				CreatedAt:     at,
				UpdatedAt:     at,
			})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	total, err := store.Feedback().Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)

	stored, err := store.Feedback().Get(ctx, annotator, question)
	require.NoError(t, err)
	require.True(t, stored.CreatedAt.Equal(created))
	var n int
	_, err = fmt.Sscanf(stored.AnswerComment, "save-%d", &n)
	require.NoError(t, err)
	require.True(t, stored.UpdatedAt.Equal(created.Add(time.Duration(n)*time.Minute)))

	last := created.Add(time.Hour)
	require.NoError(t, store.Feedback().Upsert(ctx, &models.Feedback{
		AnnotatorID:   annotator,
		QuestionID:    question,
		Status:        models.SubmissionStatusDraft,
		AnswerComment: "final",
		CreatedAt:     last,
		UpdatedAt:     last,
	}))
	stored, err = store.Feedback().Get(ctx, annotator, question)
	require.NoError(t, err)
	require.Equal(t, "final", stored.AnswerComment)
	require.Equal(t, models.SubmissionStatusDraft, stored.Status)
	require.True(t, stored.CreatedAt.Equal(created))
	require.True(t, stored.UpdatedAt.Equal(last))

	total, err = store.Feedback().Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
}

func TestFeedbackRepositorySeedCommentsKeepsRatings(t *testing.T) {
	store := NewStore(setupStoreDB(t))
	ctx := context.Background()

	annotator := seedAnnotator(t, store.Annotators(), "a@example.com")
	question := seedQuestion(t, store.Questions(), "Cat", "one", "")
	now := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Feedback().Upsert(ctx, &models.Feedback{
		AnnotatorID:          annotator,
		QuestionID:           question,
		Status:               models.SubmissionStatusDraft,
		AnswerAccuracyRating: intPtr(2),
		CreatedAt:            now,
		UpdatedAt:            now,
	}))
	require.NoError(t, store.Feedback().SeedComments(ctx, FeedbackSeed{
		AnnotatorID:   annotator,
		QuestionID:    question,
		AnswerComment: "from sheet",
	}, now.Add(time.Minute)))

	stored, err := store.Feedback().Get(ctx, annotator, question)
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusSubmitted, stored.Status)
	require.Equal(t, "from sheet", stored.AnswerComment)
	require.NotNil(t, stored.AnswerAccuracyRating)
	require.Equal(t, 2, *stored.AnswerAccuracyRating)

	rows, err := store.Feedback().ListForExport(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "a@example.com", rows[0].AnnotatorEmail)
	require.Equal(t, "one", rows[0].SourceText)
}

func TestProgressRepositoryCountsSubmittedOnly(t *testing.T) {
	store := NewStore(setupStoreDB(t))
	ctx := context.Background()

	alice := seedAnnotator(t, store.Annotators(), "alice@example.com")
	bob := seedAnnotator(t, store.Annotators(), "bob@example.com")
	q1 := seedQuestion(t, store.Questions(), "Cat", "one", "")
	q2 := seedQuestion(t, store.Questions(), "Cat", "two", "")
	q3 := seedQuestion(t, store.Questions(), "Other", "three", "")

	_, err := store.Assignments().InsertBatchIfAbsent(ctx, []AssignmentPair{
		{AnnotatorID: alice, QuestionID: q1},
		{AnnotatorID: alice, QuestionID: q2},
		{AnnotatorID: bob, QuestionID: q1},
	})
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, store.Feedback().Upsert(ctx, &models.Feedback{AnnotatorID: alice, QuestionID: q1, Status: models.SubmissionStatusSubmitted, CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, store.Feedback().Upsert(ctx, &models.Feedback{AnnotatorID: alice, QuestionID: q2, Status: models.SubmissionStatusDraft, CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, store.Feedback().Upsert(ctx, &models.Feedback{AnnotatorID: bob, QuestionID: q1, Status: models.SubmissionStatusSubmitted, CreatedAt: now, UpdatedAt: now}))

	counts, err := store.Progress().AnnotatorProgress(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, ProgressCounts{Assigned: 2, Completed: 1}, counts)

	next, err := store.Progress().NextPendingQuestion(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, q2, next.ID)

	_, err = store.Progress().NextPendingQuestion(ctx, bob)
	require.True(t, errors.Is(err, gorm.ErrRecordNotFound))

	table, err := store.Progress().ListAnnotatorProgress(ctx)
	require.NoError(t, err)
	require.Len(t, table, 2)
	require.Equal(t, "alice@example.com", table[0].Email)
	require.EqualValues(t, 1, table[0].Drafts)

	totals, err := store.Progress().CoverageTotals(ctx)
	require.NoError(t, err)
	require.Equal(t, CoverageTotals{Total: 3, Unassigned: 1, Partial: 1, Full: 1}, totals)

	rows, err := store.Progress().Coverage(ctx, CoverageFilter{Bucket: models.CoverageFull})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, q1, rows[0].QuestionID)
	require.EqualValues(t, 2, rows[0].AssignedCount)
	require.EqualValues(t, 2, rows[0].CompletedCount)

	count, err := store.Progress().CountCoverage(ctx, CoverageFilter{Bucket: models.CoverageAll, AnnotatorID: &alice})
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	rows, err = store.Progress().Coverage(ctx, CoverageFilter{Bucket: models.CoverageAll, Category: "Other"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, q3, rows[0].QuestionID)
}

func TestStoreTransactionRollsBack(t *testing.T) {
	store := NewStore(setupStoreDB(t))
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.Transaction(ctx, func(tx Store) error {
		if _, err := tx.Annotators().EnsureExists(ctx, "ghost@example.com", nil); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	total, err := store.Annotators().Count(ctx)
	require.NoError(t, err)
	require.Zero(t, total)
}

func TestSuggestionAndActivityRepositories(t *testing.T) {
	store := NewStore(setupStoreDB(t))
	ctx := context.Background()
	annotator := seedAnnotator(t, store.Annotators(), "a@example.com")

	for _, text := range []string{"first", "second"} {
		require.NoError(t, store.Suggestions().Create(ctx, &models.SuggestedQuestion{
			AnnotatorID: annotator,
			SourceText:  text,
			Status:      models.SuggestionStatusNew,
		}))
	}
	listing, err := store.Suggestions().ListRecent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, listing, 1)
	require.Equal(t, "second", listing[0].SourceText)
	require.Equal(t, "a@example.com", listing[0].AnnotatorEmail)

	require.NoError(t, store.Activity().Create(ctx, &models.ActivityLog{ActorEmail: "admin@local", ActorRole: "admin", Action: "reconcile", EntityType: "assignment"}))
	require.NoError(t, store.Activity().Create(ctx, &models.ActivityLog{ActorEmail: "admin@local", ActorRole: "admin", Action: "import", EntityType: "question", CorrelationID: "corr-2"}))
	entries, total, err := store.Activity().List(ctx, ActivityLogFilter{Action: "reconcile", PageSize: 10})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Len(t, entries, 1)
	require.Equal(t, "assignment", entries[0].EntityType)

	entries, total, err = store.Activity().List(ctx, ActivityLogFilter{CorrelationID: "corr-2", PageSize: 10})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, "import", entries[0].Action)
}
