package handler

import (
	"bytes"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-annotation-api/internal/service"
	"github.com/noah-isme/gema-annotation-api/internal/sheet"
	"github.com/noah-isme/gema-annotation-api/internal/utils"
)

// AdminReconcileHandler accepts evaluation sheet uploads.
type AdminReconcileHandler struct {
	service   service.ReconciliationService
	maxUpload int64
	logger    zerolog.Logger
}

// NewAdminReconcileHandler constructs the handler.
func NewAdminReconcileHandler(service service.ReconciliationService, maxUpload int64, logger zerolog.Logger) *AdminReconcileHandler {
	return &AdminReconcileHandler{
		service:   service,
		maxUpload: maxUpload,
		logger:    logger.With().Str("component", "admin_reconcile_handler").Logger(),
	}
}

// Register attaches the reconciliation route.
func (h *AdminReconcileHandler) Register(router fiber.Router) {
	router.Post("", h.reconcile)
}

func (h *AdminReconcileHandler) reconcile(c *fiber.Ctx) error {
	body, err := readTextUpload(c, "file", h.maxUpload)
	if err != nil {
		return utils.SendError(c, uploadStatus(err), err.Error())
	}
	eval, err := sheet.ReadEvalSheet(bytes.NewReader(body))
	if err != nil {
		if errors.Is(err, sheet.ErrHeaderNotFound) {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		return utils.SendError(c, fiber.StatusBadRequest, "unreadable sheet")
	}

	dryRun := parseFlag(c, "dry_run")
	report, err := h.service.Reconcile(withRequestContext(c), actorFromContext(c), eval, service.ReconcileOptions{DryRun: dryRun})
	if err != nil {
		if errors.Is(err, service.ErrReconciliationInProgress) {
			return utils.SendError(c, fiber.StatusConflict, err.Error())
		}
		requestLogger(h.logger, c).Error().Err(err).Bool("dry_run", dryRun).Msg("reconciliation failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "reconciliation failed")
	}

	message := "reconciliation applied"
	if dryRun {
		message = "reconciliation dry run"
	}
	return utils.SendSuccess(c, message, report)
}
