package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-annotation-api/internal/dto"
	"github.com/noah-isme/gema-annotation-api/internal/repository"
)

func newAssignmentFixture(t *testing.T) (*assignmentService, repository.Store, *memoryPublisher) {
	t.Helper()
	store, _ := setupTestStore(t)
	publisher := &memoryPublisher{}
	svc := NewAssignmentService(store, testValidator(), NewActivityService(&memoryActivityRepo{}, testLogger()), publisher, testLogger()).(*assignmentService)
	svc.shuffle = func([]uint) {}
	return svc, store, publisher
}

func seedQuestions(t *testing.T, store repository.Store, n int) []uint {
	t.Helper()
	ids := make([]uint, 0, n)
	for i := 0; i < n; i++ {
		ids = append(ids, addQuestion(t, store, "Cat", string(rune('a'+i)), ""))
	}
	return ids
}

func TestAssignManualIsIdempotent(t *testing.T) {
	svc, store, _ := newAssignmentFixture(t)
	ctx := context.Background()
	annotator := addAnnotator(t, store, "a@example.com")
	question := addQuestion(t, store, "Cat", "one", "")

	resp, err := svc.AssignManual(ctx, adminActor, dto.ManualAssignmentRequest{AnnotatorID: annotator, QuestionID: question})
	require.NoError(t, err)
	require.True(t, resp.Created)

	resp, err = svc.AssignManual(ctx, adminActor, dto.ManualAssignmentRequest{AnnotatorID: annotator, QuestionID: question})
	require.NoError(t, err)
	require.False(t, resp.Created)

	resp, err = svc.AssignManual(ctx, adminActor, dto.ManualAssignmentRequest{AnnotatorID: 999, QuestionID: question})
	require.NoError(t, err)
	require.False(t, resp.Created)

	count, err := store.Assignments().Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestDistributeQuotaCapsEachAnnotator(t *testing.T) {
	svc, store, publisher := newAssignmentFixture(t)
	ctx := context.Background()
	seedQuestions(t, store, 10)
	a := addAnnotator(t, store, "a@example.com")
	b := addAnnotator(t, store, "b@example.com")

	resp, err := svc.Distribute(ctx, adminActor, dto.DistributeRequest{AnnotatorIDs: []uint{a, b, a, 404}, Policy: "quota", PerAnnotator: 3})
	require.NoError(t, err)
	require.Equal(t, 10, resp.PoolSize)
	require.EqualValues(t, 6, resp.Created)
	require.Equal(t, 4, resp.Remaining)
	require.Equal(t, []dto.AnnotatorAllocation{{AnnotatorID: a, Received: 3}, {AnnotatorID: b, Received: 3}}, resp.Allocations)
	require.Len(t, publisher.events, 1)
	require.Equal(t, EventDistributed, publisher.events[0].eventType)

	resp, err = svc.Distribute(ctx, adminActor, dto.DistributeRequest{AnnotatorIDs: []uint{a, b}, Policy: "count", PerAnnotator: 3})
	require.NoError(t, err)
	require.Equal(t, 4, resp.PoolSize)
	require.EqualValues(t, 4, resp.Created)
	require.Zero(t, resp.Remaining)
}

func TestDistributeExhaustiveCoversEveryQuestionOnce(t *testing.T) {
	svc, store, _ := newAssignmentFixture(t)
	ctx := context.Background()
	questions := seedQuestions(t, store, 7)
	a := addAnnotator(t, store, "a@example.com")
	b := addAnnotator(t, store, "b@example.com")
	c := addAnnotator(t, store, "c@example.com")
	assign(t, store, c, questions[0])

	resp, err := svc.Distribute(ctx, adminActor, dto.DistributeRequest{AnnotatorIDs: []uint{a, b, c}, Policy: "exhaustive"})
	require.NoError(t, err)
	require.Equal(t, 6, resp.PoolSize)
	require.EqualValues(t, 6, resp.Created)
	require.Zero(t, resp.Remaining)

	pairs := assignedPairs(t, store, []uint{a, b, c}, questions)
	perQuestion := map[uint]int{}
	perAnnotator := map[uint]int{}
	for _, pair := range pairs {
		perQuestion[pair.QuestionID]++
		perAnnotator[pair.AnnotatorID]++
	}
	require.Len(t, perQuestion, 7)
	for _, count := range perQuestion {
		require.Equal(t, 1, count)
	}
	require.Equal(t, 2, perAnnotator[a])
	require.Equal(t, 2, perAnnotator[b])
	require.Equal(t, 3, perAnnotator[c])

	unassigned, err := store.Questions().UnassignedActiveIDs(ctx)
	require.NoError(t, err)
	require.Empty(t, unassigned)
}

func TestDistributeValidatesInput(t *testing.T) {
	svc, store, _ := newAssignmentFixture(t)
	ctx := context.Background()
	a := addAnnotator(t, store, "a@example.com")

	_, err := svc.Distribute(ctx, adminActor, dto.DistributeRequest{AnnotatorIDs: []uint{a}, Policy: "quota"})
	require.ErrorIs(t, err, ErrInvalidQuota)

	_, err = svc.Distribute(ctx, adminActor, dto.DistributeRequest{AnnotatorIDs: []uint{77}, Policy: "all"})
	require.ErrorIs(t, err, ErrNoAnnotators)

	_, err = svc.Distribute(ctx, adminActor, dto.DistributeRequest{AnnotatorIDs: []uint{a}, Policy: "random"})
	require.Error(t, err)
}
