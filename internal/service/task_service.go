package service

import (
	"context"
	"errors"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-annotation-api/internal/dto"
	"github.com/noah-isme/gema-annotation-api/internal/models"
	"github.com/noah-isme/gema-annotation-api/internal/repository"
)

const (
	defaultSectionTitle   = "Search Context"
	maxSectionTitleLength = 120
)

var sectionHeaderPrefixes = []string{"query", "question", "retrieved", "response", "result"}

// TaskService serves the annotator's work queue.
type TaskService interface {
	Next(ctx context.Context, actor Actor) (dto.TaskResponse, error)
	View(ctx context.Context, actor Actor, question models.Question) (dto.TaskResponse, error)
	Progress(ctx context.Context, annotatorID uint) (dto.ProgressResponse, error)
}

type taskService struct {
	store     repository.Store
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
}

// NewTaskService constructs the task service.
func NewTaskService(store repository.Store, logger zerolog.Logger) TaskService {
	return &taskService{
		store:     store,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "task_service").Logger(),
	}
}

// Next returns the lowest-id active question assigned to the actor without a
// submitted feedback row, or a done task when there is none.
func (s *taskService) Next(ctx context.Context, actor Actor) (dto.TaskResponse, error) {
	question, err := s.store.Progress().NextPendingQuestion(ctx, actor.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		progress, err := s.Progress(ctx, actor.ID)
		if err != nil {
			return dto.TaskResponse{}, err
		}
		return dto.TaskResponse{Done: true, Progress: progress}, nil
	}
	if err != nil {
		return dto.TaskResponse{}, err
	}
	return s.View(ctx, actor, question)
}

// View builds the task for a specific question, including any saved feedback.
func (s *taskService) View(ctx context.Context, actor Actor, question models.Question) (dto.TaskResponse, error) {
	progress, err := s.Progress(ctx, actor.ID)
	if err != nil {
		return dto.TaskResponse{}, err
	}

	questionResp := dto.NewQuestionResponse(question)
	task := dto.TaskResponse{
		Question:       &questionResp,
		SearchSections: s.searchSections(question.SearchResults),
		Progress:       progress,
	}

	feedback, err := s.store.Feedback().Get(ctx, actor.ID, question.ID)
	switch {
	case err == nil:
		resp := dto.NewFeedbackResponse(feedback)
		task.Feedback = &resp
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return dto.TaskResponse{}, err
	}
	return task, nil
}

func (s *taskService) Progress(ctx context.Context, annotatorID uint) (dto.ProgressResponse, error) {
	counts, err := s.store.Progress().AnnotatorProgress(ctx, annotatorID)
	if err != nil {
		return dto.ProgressResponse{}, err
	}
	remaining := counts.Assigned - counts.Completed
	if remaining < 0 {
		remaining = 0
	}
	return dto.ProgressResponse{Assigned: counts.Assigned, Completed: counts.Completed, Remaining: remaining}, nil
}

func (s *taskService) searchSections(raw string) []dto.SearchSection {
	text := raw
	if strings.Contains(text, "<") {
		text = html.UnescapeString(s.sanitizer.Sanitize(text))
	}
	return ParseSearchSections(text)
}

// ParseSearchSections splits a search-results blob into titled sections. A line
// starting with query, question, retrieved, response or result (case-insensitive,
// at most 120 characters) opens a new section; text before the first header goes
// under "Search Context".
func ParseSearchSections(raw string) []dto.SearchSection {
	text := strings.TrimSpace(raw)
	if text == "" {
		return []dto.SearchSection{{Title: defaultSectionTitle, Body: ""}}
	}

	var (
		sections []dto.SearchSection
		current  []string
		title    = defaultSectionTitle
	)
	flush := func() {
		body := strings.TrimSpace(strings.Join(current, "\n"))
		if body != "" {
			sections = append(sections, dto.SearchSection{Title: title, Body: body})
		}
		current = nil
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		stripped := strings.TrimSpace(line)
		header := isSectionHeader(stripped)
		switch {
		case header && len(current) == 0 && title == defaultSectionTitle:
			title = stripped
		case header && len(current) > 0:
			flush()
			title = stripped
		default:
			current = append(current, line)
		}
	}
	flush()

	if len(sections) == 0 {
		return []dto.SearchSection{{Title: defaultSectionTitle, Body: text}}
	}
	return sections
}

func isSectionHeader(line string) bool {
	if utf8.RuneCountInString(line) > maxSectionTitleLength {
		return false
	}
	lower := strings.ToLower(line)
	for _, prefix := range sectionHeaderPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}
