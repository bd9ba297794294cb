package service

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-annotation-api/internal/models"
	"github.com/noah-isme/gema-annotation-api/internal/repository"
	"github.com/noah-isme/gema-annotation-api/internal/sheet"
)

func readCatalog(t *testing.T, csv string) sheet.CatalogSheet {
	t.Helper()
	catalog, err := sheet.ReadCatalog(strings.NewReader(csv))
	require.NoError(t, err)
	return catalog
}

func newCatalogFixture(t *testing.T) (CatalogService, repository.Store, *memoryActivityRepo, *memoryPublisher) {
	store, _ := setupTestStore(t)
	activity := &memoryActivityRepo{}
	publisher := &memoryPublisher{}
	svc := NewCatalogService(store, NewActivityService(activity, testLogger()), publisher, testLogger())
	return svc, store, activity, publisher
}

func TestCatalogImportUpsertInsertsAndRefreshes(t *testing.T) {
	svc, store, activity, publisher := newCatalogFixture(t)
	ctx := context.Background()

	csv := "Category,Q (Gu),Q (En),Search Results,A(En),A (Gu)\n" +
		"Cat,one,One,s1,a1,g1\n" +
		"Cat,two,Two,s2,a2,g2\n" +
		",,,,,\n"
	report, err := svc.Import(ctx, adminActor, readCatalog(t, csv), CatalogImportOptions{Mode: models.ImportModeUpsert})
	require.NoError(t, err)
	require.Equal(t, 2, report.Inserted)
	require.Equal(t, 1, report.RowsSkipped)
	require.Equal(t, 2, report.Touched)

	csv = "Category,Q (Gu),Q (En),Search Results,A(En),A (Gu)\n" +
		"Cat,one,One,fresh,a1,g1\n"
	report, err = svc.Import(ctx, adminActor, readCatalog(t, csv), CatalogImportOptions{Mode: models.ImportModeUpsert})
	require.NoError(t, err)
	require.Zero(t, report.Inserted)
	require.Equal(t, 1, report.Updated)

	question, err := store.Questions().GetByKey(ctx, models.QuestionKey{Category: "Cat", SourceText: "one", TargetText: "One"})
	require.NoError(t, err)
	require.Equal(t, "fresh", question.SearchResults)
	require.Equal(t, "g1", question.AnswerSource)
	require.Equal(t, "a1", question.AnswerTarget)

	require.Len(t, activity.entries, 2)
	require.Len(t, publisher.events, 2)
	require.Equal(t, EventImported, publisher.events[0].eventType)
}

func TestCatalogImportInsertModeIgnoresExisting(t *testing.T) {
	svc, store, _, _ := newCatalogFixture(t)
	ctx := context.Background()
	addQuestion(t, store, "Cat", "one", "One")

	csv := "Category,Q (Gu),Q (En),Search Results\nCat,one,One,changed\nCat,new,New,x\n"
	report, err := svc.Import(ctx, adminActor, readCatalog(t, csv), CatalogImportOptions{Mode: models.ImportModeInsert})
	require.NoError(t, err)
	require.Equal(t, 1, report.Inserted)
	require.Zero(t, report.Updated)

	question, err := store.Questions().GetByKey(ctx, models.QuestionKey{Category: "Cat", SourceText: "one", TargetText: "One"})
	require.NoError(t, err)
	require.Empty(t, question.SearchResults)
}

func TestCatalogImportUpsertByExplicitID(t *testing.T) {
	svc, store, _, _ := newCatalogFixture(t)
	ctx := context.Background()
	id := addQuestion(t, store, "Cat", "old text", "")
	require.NoError(t, svc.Deactivate(ctx, adminActor, id))

	csv := "id,Category,Q (Gu),Q (En)\n" + strconv.FormatUint(uint64(id), 10) + ",Cat,new text,New\n"
	report, err := svc.Import(ctx, adminActor, readCatalog(t, csv), CatalogImportOptions{Mode: models.ImportModeUpsert})
	require.NoError(t, err)
	require.Equal(t, 1, report.Updated)

	question, err := store.Questions().GetByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "new text", question.SourceText)
	require.True(t, question.Active)

	total, err := store.Questions().Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
}

func TestCatalogImportSyncDeactivatesUntouchedButKeepsFeedback(t *testing.T) {
	svc, store, _, _ := newCatalogFixture(t)
	ctx := context.Background()

	keep := addQuestion(t, store, "Cat", "keep", "")
	drop := addQuestion(t, store, "Cat", "drop", "")
	annotator := addAnnotator(t, store, "a@example.com")
	require.NoError(t, store.Feedback().SeedComments(ctx, repository.FeedbackSeed{AnnotatorID: annotator, QuestionID: drop, AnswerComment: "note"}, time.Now()))

	csv := "Category,Q (Gu),Q (En)\nCat,keep,\n"
	report, err := svc.Import(ctx, adminActor, readCatalog(t, csv), CatalogImportOptions{Mode: models.ImportModeSync})
	require.NoError(t, err)
	require.EqualValues(t, 1, report.Deactivated)

	active, err := store.Questions().ListAll(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, keep, active[0].ID)

	feedback, err := store.Feedback().Get(ctx, annotator, drop)
	require.NoError(t, err)
	require.Equal(t, "note", feedback.AnswerComment)
}

func TestCatalogImportAssigneesUnionAndReplace(t *testing.T) {
	svc, store, _, _ := newCatalogFixture(t)
	ctx := context.Background()

	question := addQuestion(t, store, "Cat", "one", "")
	old := addAnnotator(t, store, "old@example.com")
	assign(t, store, old, question)

	csv := "Category,Q (Gu),Q (En),Assigned Emails\nCat,one,,New@Example.com; second@example.com\n"
	report, err := svc.Import(ctx, adminActor, readCatalog(t, csv), CatalogImportOptions{Mode: models.ImportModeUpsert})
	require.NoError(t, err)
	require.Equal(t, 2, report.AnnotatorsCreated)
	require.EqualValues(t, 2, report.AssignmentsAdded)

	count, err := store.Assignments().Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 3, count)

	csv = "Category,Q (Gu),Q (En),Assigned Emails\nCat,one,,second@example.com\n"
	report, err = svc.Import(ctx, adminActor, readCatalog(t, csv), CatalogImportOptions{Mode: models.ImportModeUpsert, ReplaceAssignments: true})
	require.NoError(t, err)
	require.EqualValues(t, 3, report.AssignmentsRemoved)

	count, err = store.Assignments().Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
	pairs := assignedPairs(t, store, annotatorIDs(t, store, "old@example.com", "new@example.com", "second@example.com"), []uint{question})
	require.Len(t, pairs, 1)
	second, err := store.Annotators().GetByEmail(ctx, "second@example.com")
	require.NoError(t, err)
	require.Equal(t, second.ID, pairs[0].AnnotatorID)
}

func TestCatalogExportRoundTrip(t *testing.T) {
	svc, store, _, _ := newCatalogFixture(t)
	ctx := context.Background()

	csv := "Category,Q (Gu),Q (En),Search Results,A(En),A (Gu)\n" +
		"Cat,\"one, with comma\",One,\"said \"\"hi\"\"\",a1,g1\n" +
		"Other,two,,s2,,\n"
	_, err := svc.Import(ctx, adminActor, readCatalog(t, csv), CatalogImportOptions{Mode: models.ImportModeUpsert})
	require.NoError(t, err)

	exporter := NewExportService(store, testLogger())
	table, err := exporter.Questions(ctx, false)
	require.NoError(t, err)
	var buf strings.Builder
	require.NoError(t, sheet.WriteCSV(&buf, table))

	reimport, err := sheet.ReadCatalog(strings.NewReader(buf.String()))
	require.NoError(t, err)
	require.Len(t, reimport.Rows, 2)

	original, err := store.Questions().ListAll(ctx, true)
	require.NoError(t, err)
	for i, row := range reimport.Rows {
		require.Equal(t, original[i].Key(), models.QuestionKey{Category: row.Category, SourceText: row.SourceText, TargetText: row.TargetText})
		require.Equal(t, original[i].SearchResults, row.SearchResults)
		require.Equal(t, original[i].AnswerSource, row.AnswerSource)
	}
}

func TestCatalogBootstrapOnlySeedsEmptyCatalog(t *testing.T) {
	svc, _, _, _ := newCatalogFixture(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "seed.csv")
	require.NoError(t, os.WriteFile(path, []byte("Category,Q (Gu),Q (En)\nCat,one,\nCat,one,\nCat,two,\n"), 0o600))

	inserted, err := svc.Bootstrap(ctx, path)
	require.NoError(t, err)
	require.Equal(t, 2, inserted)

	inserted, err = svc.Bootstrap(ctx, path)
	require.NoError(t, err)
	require.Zero(t, inserted)

	inserted, err = svc.Bootstrap(ctx, filepath.Join(t.TempDir(), "missing.csv"))
	require.NoError(t, err)
	require.Zero(t, inserted)

	listed, err := svc.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 2)
}

func TestCatalogDeactivateUnknownQuestion(t *testing.T) {
	svc, _, _, _ := newCatalogFixture(t)
	require.ErrorIs(t, svc.Deactivate(context.Background(), adminActor, 999), ErrQuestionNotFound)
}

func TestCatalogImportRejectsUnknownMode(t *testing.T) {
	svc, _, _, _ := newCatalogFixture(t)
	_, err := svc.Import(context.Background(), adminActor, sheet.CatalogSheet{}, CatalogImportOptions{Mode: "merge"})
	require.ErrorIs(t, err, ErrInvalidImportMode)
}
