package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-annotation-api/internal/dto"
	"github.com/noah-isme/gema-annotation-api/internal/service"
	"github.com/noah-isme/gema-annotation-api/internal/utils"
)

// AnnotationHandler serves the annotator work queue.
type AnnotationHandler struct {
	tasks       service.TaskService
	feedback    service.FeedbackService
	catalog     service.CatalogService
	suggestions service.SuggestionService
	saveLimiter fiber.Handler
	logger      zerolog.Logger
}

// NewAnnotationHandler constructs the handler. saveLimiter may be nil.
func NewAnnotationHandler(tasks service.TaskService, feedback service.FeedbackService, catalog service.CatalogService, suggestions service.SuggestionService, saveLimiter fiber.Handler, logger zerolog.Logger) *AnnotationHandler {
	if saveLimiter == nil {
		saveLimiter = func(c *fiber.Ctx) error { return c.Next() }
	}
	return &AnnotationHandler{
		tasks:       tasks,
		feedback:    feedback,
		catalog:     catalog,
		suggestions: suggestions,
		saveLimiter: saveLimiter,
		logger:      logger.With().Str("component", "annotation_handler").Logger(),
	}
}

// Register attaches annotator routes. The group must already require the annotator role.
func (h *AnnotationHandler) Register(router fiber.Router) {
	router.Get("/task", h.next)
	router.Get("/progress", h.progress)
	router.Post("/feedback", h.saveLimiter, h.save)
	router.Get("/questions", h.questions)
	router.Post("/suggestions", h.suggest)
}

func (h *AnnotationHandler) next(c *fiber.Ctx) error {
	task, err := h.tasks.Next(withRequestContext(c), actorFromContext(c))
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to load next task")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load task")
	}
	return utils.SendSuccess(c, "task", task)
}

func (h *AnnotationHandler) progress(c *fiber.Ctx) error {
	progress, err := h.tasks.Progress(withRequestContext(c), actorFromContext(c).ID)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to load progress")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load progress")
	}
	return utils.SendSuccess(c, "progress", progress)
}

func (h *AnnotationHandler) save(c *fiber.Ctx) error {
	var payload dto.FeedbackSaveRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.feedback.Save(withRequestContext(c), actorFromContext(c), payload)
	if err != nil {
		var validationErr *service.ValidationError
		switch {
		case errors.As(err, &validationErr):
			return utils.SendFieldError(c, validationErr.Field, validationErr.Message)
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Uint("question_id", payload.QuestionID).Msg("failed to save feedback")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to save feedback")
		}
	}

	message := "feedback saved"
	if !result.Saved {
		message = "question not available, showing next task"
	}
	return utils.SendSuccess(c, message, result)
}

func (h *AnnotationHandler) questions(c *fiber.Ctx) error {
	questions, err := h.catalog.ListActive(withRequestContext(c))
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list questions")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list questions")
	}
	return utils.SendSuccess(c, "questions", questions)
}

func (h *AnnotationHandler) suggest(c *fiber.Ctx) error {
	var payload dto.SuggestionCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	suggestion, err := h.suggestions.Create(withRequestContext(c), actorFromContext(c), payload)
	if err != nil {
		if isValidationError(err) {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to store suggestion")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to store suggestion")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "suggestion stored", suggestion)
}
