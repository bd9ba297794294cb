package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-annotation-api/internal/dto"
	"github.com/noah-isme/gema-annotation-api/internal/models"
)

func TestClampPageSize(t *testing.T) {
	require.Equal(t, 50, clampPageSize(0))
	require.Equal(t, 10, clampPageSize(3))
	require.Equal(t, 10, clampPageSize(-5))
	require.Equal(t, 75, clampPageSize(75))
	require.Equal(t, 200, clampPageSize(1000))
}

func TestCoverageBucketsAndPagination(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	a := addAnnotator(t, store, "a@example.com")
	b := addAnnotator(t, store, "b@example.com")

	ids := make([]uint, 0, 25)
	for i := 0; i < 25; i++ {
		ids = append(ids, addQuestion(t, store, "Cat", fmt.Sprintf("question %02d", i), ""))
	}
	addQuestion(t, store, "Other", "lonely", "")

	assign(t, store, a, ids[0])
	assign(t, store, b, ids[0])
	assign(t, store, a, ids[1])
	now := time.Now()
	require.NoError(t, store.Feedback().Upsert(ctx, &models.Feedback{AnnotatorID: a, QuestionID: ids[0], Status: models.SubmissionStatusSubmitted, CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, store.Feedback().Upsert(ctx, &models.Feedback{AnnotatorID: a, QuestionID: ids[1], Status: models.SubmissionStatusSubmitted, CreatedAt: now, UpdatedAt: now}))

	svc := NewProgressService(store, testLogger())

	resp, err := svc.Coverage(ctx, dto.CoverageListRequest{Page: 9, PageSize: 3})
	require.NoError(t, err)
	require.Equal(t, 10, resp.Pagination.PageSize)
	require.Equal(t, 3, resp.Pagination.TotalPages)
	require.Equal(t, 3, resp.Pagination.Page)
	require.Len(t, resp.Items, 6)
	require.Equal(t, dto.CoverageTotals{Total: 26, Unassigned: 24, Partial: 1, Full: 1}, resp.Totals)
	require.Equal(t, []string{"Cat", "Other"}, resp.Categories)

	resp, err = svc.Coverage(ctx, dto.CoverageListRequest{Status: "partial"})
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)
	require.Equal(t, ids[0], resp.Items[0].QuestionID)
	require.EqualValues(t, 2, resp.Items[0].AssignedCount)
	require.EqualValues(t, 1, resp.Items[0].CompletedCount)
	require.Equal(t, "partial", resp.Items[0].Status)

	resp, err = svc.Coverage(ctx, dto.CoverageListRequest{Status: "bogus", AnnotatorID: a})
	require.NoError(t, err)
	require.Equal(t, "all", resp.Filters.Status)
	require.Len(t, resp.Items, 2)

	resp, err = svc.Coverage(ctx, dto.CoverageListRequest{Query: "lone", Category: "Other"})
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)
	require.Equal(t, "unassigned", resp.Items[0].Status)
}

func TestAnnotatorProgressCountsDraftsSeparately(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	a := addAnnotator(t, store, "a@example.com")
	q1 := addQuestion(t, store, "Cat", "one", "")
	q2 := addQuestion(t, store, "Cat", "two", "")
	assign(t, store, a, q1)
	assign(t, store, a, q2)
	now := time.Now()
	require.NoError(t, store.Feedback().Upsert(ctx, &models.Feedback{AnnotatorID: a, QuestionID: q1, Status: models.SubmissionStatusSubmitted, CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, store.Feedback().Upsert(ctx, &models.Feedback{AnnotatorID: a, QuestionID: q2, Status: models.SubmissionStatusDraft, CreatedAt: now, UpdatedAt: now}))

	rows, err := NewProgressService(store, testLogger()).AnnotatorProgress(ctx)
	require.NoError(t, err)
	require.Equal(t, []dto.AnnotatorProgressResponse{{
		AnnotatorID: a,
		Email:       "a@example.com",
		Assigned:    2,
		Completed:   1,
		Drafts:      1,
		Remaining:   1,
	}}, rows)
}
