package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-annotation-api/internal/dto"
	"github.com/noah-isme/gema-annotation-api/internal/models"
	"github.com/noah-isme/gema-annotation-api/internal/repository"
)

const (
	defaultCoveragePageSize = 50
	minCoveragePageSize     = 10
	maxCoveragePageSize     = 200
)

// ProgressService serves the admin read-side projections of the assignment graph.
type ProgressService interface {
	Coverage(ctx context.Context, req dto.CoverageListRequest) (dto.CoverageListResponse, error)
	AnnotatorProgress(ctx context.Context) ([]dto.AnnotatorProgressResponse, error)
}

type progressService struct {
	store  repository.Store
	logger zerolog.Logger
}

// NewProgressService constructs the progress service.
func NewProgressService(store repository.Store, logger zerolog.Logger) ProgressService {
	return &progressService{
		store:  store,
		logger: logger.With().Str("component", "progress_service").Logger(),
	}
}

// Coverage lists active questions with their assigned and completed annotator
// counts. A page past the end is clamped to the last page.
func (s *progressService) Coverage(ctx context.Context, req dto.CoverageListRequest) (dto.CoverageListResponse, error) {
	bucket := models.ParseCoverageBucket(req.Status)
	filter := repository.CoverageFilter{
		Bucket:   bucket,
		Category: strings.TrimSpace(req.Category),
		Search:   strings.TrimSpace(req.Query),
	}
	if req.AnnotatorID > 0 {
		annotatorID := req.AnnotatorID
		filter.AnnotatorID = &annotatorID
	}

	pageSize := clampPageSize(req.PageSize)
	total, err := s.store.Progress().CountCoverage(ctx, filter)
	if err != nil {
		return dto.CoverageListResponse{}, err
	}
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	if totalPages < 1 {
		totalPages = 1
	}
	page := maxInt(req.Page, 1)
	if page > totalPages {
		page = totalPages
	}

	filter.Limit = pageSize
	filter.Offset = (page - 1) * pageSize
	rows, err := s.store.Progress().Coverage(ctx, filter)
	if err != nil {
		return dto.CoverageListResponse{}, err
	}

	totals, err := s.store.Progress().CoverageTotals(ctx)
	if err != nil {
		return dto.CoverageListResponse{}, err
	}
	categories, err := s.store.Questions().Categories(ctx)
	if err != nil {
		return dto.CoverageListResponse{}, err
	}

	items := make([]dto.CoverageItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, dto.CoverageItem{
			QuestionID:     row.QuestionID,
			Category:       row.Category,
			SourceText:     row.SourceText,
			AssignedCount:  row.AssignedCount,
			CompletedCount: row.CompletedCount,
			Status:         string(models.ClassifyCoverage(row.AssignedCount, row.CompletedCount)),
		})
	}
	if categories == nil {
		categories = []string{}
	}

	return dto.CoverageListResponse{
		Items: items,
		Pagination: dto.PaginationMeta{
			Page:       page,
			PageSize:   pageSize,
			TotalItems: total,
			TotalPages: totalPages,
		},
		Totals: dto.CoverageTotals{
			Total:      totals.Total,
			Unassigned: totals.Unassigned,
			Partial:    totals.Partial,
			Full:       totals.Full,
		},
		Categories: categories,
		Filters: dto.CoverageFilters{
			Status:      string(bucket),
			AnnotatorID: req.AnnotatorID,
			Category:    filter.Category,
			Query:       filter.Search,
		},
	}, nil
}

func (s *progressService) AnnotatorProgress(ctx context.Context) ([]dto.AnnotatorProgressResponse, error) {
	rows, err := s.store.Progress().ListAnnotatorProgress(ctx)
	if err != nil {
		return nil, err
	}
	responses := make([]dto.AnnotatorProgressResponse, 0, len(rows))
	for _, row := range rows {
		remaining := row.Assigned - row.Completed
		if remaining < 0 {
			remaining = 0
		}
		responses = append(responses, dto.AnnotatorProgressResponse{
			AnnotatorID: row.AnnotatorID,
			Email:       row.Email,
			Assigned:    row.Assigned,
			Completed:   row.Completed,
			Drafts:      row.Drafts,
			Remaining:   remaining,
		})
	}
	return responses, nil
}

// clampPageSize defaults an unset size to 50 and keeps the rest within 10..200.
func clampPageSize(size int) int {
	if size == 0 {
		return defaultCoveragePageSize
	}
	if size < minCoveragePageSize {
		return minCoveragePageSize
	}
	if size > maxCoveragePageSize {
		return maxCoveragePageSize
	}
	return size
}
