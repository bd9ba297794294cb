package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-annotation-api/internal/dto"
	"github.com/noah-isme/gema-annotation-api/internal/service"
	"github.com/noah-isme/gema-annotation-api/internal/utils"
)

// AdminAssignmentHandler wires manual assignment, bulk distribution and coverage.
type AdminAssignmentHandler struct {
	assignments service.AssignmentService
	progress    service.ProgressService
	logger      zerolog.Logger
}

// NewAdminAssignmentHandler constructs the handler.
func NewAdminAssignmentHandler(assignments service.AssignmentService, progress service.ProgressService, logger zerolog.Logger) *AdminAssignmentHandler {
	return &AdminAssignmentHandler{
		assignments: assignments,
		progress:    progress,
		logger:      logger.With().Str("component", "admin_assignment_handler").Logger(),
	}
}

// Register attaches assignment admin routes to the router group.
func (h *AdminAssignmentHandler) Register(router fiber.Router) {
	router.Post("", h.create)
	router.Post("/distribute", h.distribute)
	router.Get("/coverage", h.coverage)
}

func (h *AdminAssignmentHandler) create(c *fiber.Ctx) error {
	var payload dto.ManualAssignmentRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.assignments.AssignManual(withRequestContext(c), actorFromContext(c), payload)
	if err != nil {
		if isValidationError(err) {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to create assignment")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to create assignment")
	}

	if !result.Created {
		return utils.SendSuccess(c, "assignment unchanged", result)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "assignment created", result)
}

func (h *AdminAssignmentHandler) distribute(c *fiber.Ctx) error {
	var payload dto.DistributeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.assignments.Distribute(withRequestContext(c), actorFromContext(c), payload)
	if err != nil {
		switch {
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrInvalidQuota), errors.Is(err, service.ErrNoAnnotators):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("distribution failed")
			return utils.SendError(c, fiber.StatusInternalServerError, "distribution failed")
		}
	}
	return utils.SendSuccess(c, "assignments distributed", result)
}

func (h *AdminAssignmentHandler) coverage(c *fiber.Ctx) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page size")
	}
	annotatorID, err := parseQueryInt(c, "annotator_id")
	if err != nil || annotatorID < 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid annotator id")
	}

	result, err := h.progress.Coverage(withRequestContext(c), dto.CoverageListRequest{
		Status:      c.Query("status"),
		AnnotatorID: uint(annotatorID),
		Category:    c.Query("category"),
		Query:       c.Query("q"),
		Page:        page,
		PageSize:    pageSize,
	})
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to load coverage")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load coverage")
	}
	return utils.SendSuccess(c, "coverage", result)
}
