package tables

import (
	"errors"

	"discovery-sync/core/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for table inspection.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the table routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/tables")
	group.Get("/", h.HandleList)
	group.Get("/:name", h.HandleDescribe)
}

// HandleList lists the mirror tables.
// @Summary List Tables
// @Description List the mirror tables with their row counts.
// @Tags tables
// @Produce json
// @Success 200 {array} Summary "Tables"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Security ApiKeyAuth
// @Router /tables [get]
func (h *Handler) HandleList(c *fiber.Ctx) error {
	list, err := h.service.List(c.UserContext())
	if err != nil {
		logger.WithRayID(h.service.logger, c).Error("Failed to list tables", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(list)
}

// HandleDescribe returns the columns and sample rows of a table.
// @Summary Describe Table
// @Description Get the columns, row count and sample rows of a mirror table.
// @Tags tables
// @Produce json
// @Param name path string true "Table name"
// @Param limit query int false "Sample rows (default 10, max 100)"
// @Success 200 {object} Details "Table details"
// @Failure 404 {object} map[string]string "Not Found"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Security ApiKeyAuth
// @Router /tables/{name} [get]
func (h *Handler) HandleDescribe(c *fiber.Ctx) error {
	name := c.Params("name")
	details, err := h.service.Describe(c.UserContext(), name, c.QueryInt("limit", DefaultSampleLimit))
	if err != nil {
		if errors.Is(err, ErrTableNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		logger.WithRayID(h.service.logger, c).Error("Failed to describe table", zap.String("table", name), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(details)
}
