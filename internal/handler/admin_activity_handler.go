package handler

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-annotation-api/internal/dto"
	"github.com/noah-isme/gema-annotation-api/internal/service"
	"github.com/noah-isme/gema-annotation-api/internal/utils"
)

const (
	defaultActivityPageSize = 25
	maxActivityPageSize     = 200
)

// AdminActivityHandler exposes the audit trail written by imports,
// reconciliations and distributions.
type AdminActivityHandler struct {
	activity service.ActivityService
	logger   zerolog.Logger
}

func NewAdminActivityHandler(activity service.ActivityService, logger zerolog.Logger) *AdminActivityHandler {
	return &AdminActivityHandler{
		activity: activity,
		logger:   logger.With().Str("component", "admin_activity_handler").Logger(),
	}
}

// Register attaches activity log routes to the router group.
func (h *AdminActivityHandler) Register(router fiber.Router) {
	router.Get("", h.list)
}

// list supports the actor_email, action, entity_type, correlation_id and
// since (RFC3339) filters.
func (h *AdminActivityHandler) list(c *fiber.Ctx) error {
	req, field, err := activityRequestFromQuery(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid "+field)
	}

	response, err := h.activity.List(withRequestContext(c), req)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list activity logs")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list activity logs")
	}
	return utils.SendSuccess(c, "activity logs", response)
}

func activityRequestFromQuery(c *fiber.Ctx) (dto.ActivityListRequest, string, error) {
	req := dto.ActivityListRequest{
		ActorEmail:    c.Query("actor_email"),
		Action:        c.Query("action"),
		EntityType:    c.Query("entity_type"),
		CorrelationID: c.Query("correlation_id"),
	}

	page, err := parseQueryInt(c, "page")
	if err != nil {
		return req, "page", err
	}
	size, err := parseQueryInt(c, "page_size")
	if err != nil {
		return req, "page_size", err
	}
	req.Page = max(page, 1)
	switch {
	case size <= 0:
		req.PageSize = defaultActivityPageSize
	case size > maxActivityPageSize:
		req.PageSize = maxActivityPageSize
	default:
		req.PageSize = size
	}

	if raw := strings.TrimSpace(c.Query("since")); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return req, "since", err
		}
		req.Since = since
	}
	return req, "", nil
}
