package handler

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-annotation-api/internal/dto"
	"github.com/noah-isme/gema-annotation-api/internal/models"
	"github.com/noah-isme/gema-annotation-api/internal/service"
	"github.com/noah-isme/gema-annotation-api/internal/sheet"
	"github.com/noah-isme/gema-annotation-api/internal/utils"
)

const csvContentType = "text/csv; charset=utf-8"

// AdminCatalogHandler manages the question catalog, suggestions and exports.
type AdminCatalogHandler struct {
	catalog     service.CatalogService
	exports     service.ExportService
	suggestions service.SuggestionService
	validator   *validator.Validate
	maxUpload   int64
	logger      zerolog.Logger
}

// NewAdminCatalogHandler constructs the handler.
func NewAdminCatalogHandler(catalog service.CatalogService, exports service.ExportService, suggestions service.SuggestionService, validate *validator.Validate, maxUpload int64, logger zerolog.Logger) *AdminCatalogHandler {
	return &AdminCatalogHandler{
		catalog:     catalog,
		exports:     exports,
		suggestions: suggestions,
		validator:   validate,
		maxUpload:   maxUpload,
		logger:      logger.With().Str("component", "admin_catalog_handler").Logger(),
	}
}

// Register attaches catalog admin routes to the router group.
func (h *AdminCatalogHandler) Register(router fiber.Router) {
	router.Post("/questions/import", h.importCatalog)
	router.Post("/questions/:id/deactivate", h.deactivate)
	router.Get("/suggestions", h.listSuggestions)
	router.Get("/exports/questions.csv", h.exportQuestions)
	router.Get("/exports/feedback.csv", h.exportFeedback)
}

func (h *AdminCatalogHandler) importCatalog(c *fiber.Ctx) error {
	var form dto.CatalogImportRequest
	if err := c.BodyParser(&form); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid form")
	}
	if err := h.validator.Struct(form); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	body, err := readTextUpload(c, "file", h.maxUpload)
	if err != nil {
		return utils.SendError(c, uploadStatus(err), err.Error())
	}
	catalog, err := sheet.ReadCatalog(bytes.NewReader(body))
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	report, err := h.catalog.Import(withRequestContext(c), actorFromContext(c), catalog, service.CatalogImportOptions{
		Mode:               models.ImportMode(form.Mode),
		ReplaceAssignments: form.ReplaceAssignments,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidImportMode) {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("catalog import failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "catalog import failed")
	}
	return utils.SendSuccess(c, "catalog imported", report)
}

func (h *AdminCatalogHandler) deactivate(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	if err := h.catalog.Deactivate(withRequestContext(c), actorFromContext(c), id); err != nil {
		if errors.Is(err, service.ErrQuestionNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "question not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Uint("question_id", id).Msg("failed to deactivate question")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to deactivate question")
	}
	return utils.SendSuccess(c, "question deactivated", fiber.Map{"id": id, "active": false})
}

func (h *AdminCatalogHandler) listSuggestions(c *fiber.Ctx) error {
	suggestions, err := h.suggestions.ListRecent(withRequestContext(c))
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list suggestions")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list suggestions")
	}
	return utils.SendSuccess(c, "suggestions", suggestions)
}

func (h *AdminCatalogHandler) exportQuestions(c *fiber.Ctx) error {
	table, err := h.exports.Questions(withRequestContext(c), parseFlag(c, "include_inactive"))
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("question export failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "export failed")
	}
	return h.sendTable(c, "questions", table)
}

func (h *AdminCatalogHandler) exportFeedback(c *fiber.Ctx) error {
	table, err := h.exports.Feedback(withRequestContext(c))
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("feedback export failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "export failed")
	}
	return h.sendTable(c, "feedback", table)
}

func (h *AdminCatalogHandler) sendTable(c *fiber.Ctx, name string, table sheet.Table) error {
	var buf bytes.Buffer
	if err := sheet.WriteCSV(&buf, table); err != nil {
		requestLogger(h.logger, c).Error().Err(err).Str("export", name).Msg("failed to encode export")
		return utils.SendError(c, fiber.StatusInternalServerError, "export failed")
	}
	filename := fmt.Sprintf("%s-%s.csv", name, time.Now().UTC().Format("20060102-150405"))
	return utils.SendAttachment(c, filename, csvContentType, buf.Bytes())
}
