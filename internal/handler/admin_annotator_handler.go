package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-annotation-api/internal/dto"
	"github.com/noah-isme/gema-annotation-api/internal/service"
	"github.com/noah-isme/gema-annotation-api/internal/utils"
)

// AdminAnnotatorHandler manages the annotator directory.
type AdminAnnotatorHandler struct {
	annotators service.AnnotatorService
	progress   service.ProgressService
	logger     zerolog.Logger
}

// NewAdminAnnotatorHandler constructs the handler.
func NewAdminAnnotatorHandler(annotators service.AnnotatorService, progress service.ProgressService, logger zerolog.Logger) *AdminAnnotatorHandler {
	return &AdminAnnotatorHandler{
		annotators: annotators,
		progress:   progress,
		logger:     logger.With().Str("component", "admin_annotator_handler").Logger(),
	}
}

// Register attaches annotator admin routes to the router group.
func (h *AdminAnnotatorHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", h.create)
	router.Post("/bulk", h.bulkCreate)
	router.Get("/progress", h.progressTable)
}

func (h *AdminAnnotatorHandler) list(c *fiber.Ctx) error {
	annotators, err := h.annotators.List(withRequestContext(c))
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list annotators")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list annotators")
	}
	return utils.SendSuccess(c, "annotators", annotators)
}

func (h *AdminAnnotatorHandler) create(c *fiber.Ctx) error {
	var payload dto.AnnotatorCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	annotator, created, err := h.annotators.Create(withRequestContext(c), payload)
	if err != nil {
		if isValidationError(err) {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to create annotator")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to create annotator")
	}

	if !created {
		return utils.SendSuccess(c, "annotator already exists", annotator)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "annotator created", annotator)
}

func (h *AdminAnnotatorHandler) bulkCreate(c *fiber.Ctx) error {
	var payload dto.AnnotatorBulkCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.annotators.BulkCreate(withRequestContext(c), payload)
	if err != nil {
		if isValidationError(err) {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("bulk annotator add failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to add annotators")
	}
	return utils.SendSuccess(c, "annotators added", result)
}

func (h *AdminAnnotatorHandler) progressTable(c *fiber.Ctx) error {
	rows, err := h.progress.AnnotatorProgress(withRequestContext(c))
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to load annotator progress")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load progress")
	}
	return utils.SendSuccess(c, "annotator progress", rows)
}
