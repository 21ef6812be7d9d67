package jobs

import (
	"errors"

	"discovery-sync/core/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// StartRequest is the optional body of POST /jobs.
type StartRequest struct {
	// Kinds restricts the run to these kinds.
	Kinds []string `json:"kinds"`
}

// Handler handles HTTP requests for sync runs.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the job routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/jobs")
	group.Post("/", h.HandleStart)
	group.Get("/", h.HandleList)
	group.Get("/:id", h.HandleGet)
	group.Get("/:id/report", h.HandleReport)
}

// HandleStart starts a sync run.
// @Summary Start Sync Run
// @Description Start a sync run in the background. Only one run can be active at a time.
// @Tags jobs
// @Accept json
// @Produce json
// @Param request body StartRequest false "Kinds to sync"
// @Success 202 {object} Job "Run started"
// @Failure 400 {object} map[string]string "Bad Request"
// @Failure 409 {object} map[string]string "Run in progress"
// @Security ApiKeyAuth
// @Router /jobs [post]
func (h *Handler) HandleStart(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	var req StartRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid request body",
			})
		}
	}

	job, err := h.service.Start(req.Kinds, TriggerAPI)
	if err != nil {
		if errors.Is(err, ErrRunInProgress) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error":  err.Error(),
				"run_id": h.service.Active(),
			})
		}
		l.Error("Failed to start sync run", zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	l.Info("Sync run started", zap.String("run_id", job.ID))
	return c.Status(fiber.StatusAccepted).JSON(job)
}

// HandleList lists recent sync runs.
// @Summary List Sync Runs
// @Description List recent sync runs, newest first.
// @Tags jobs
// @Produce json
// @Success 200 {array} Job "Runs"
// @Security ApiKeyAuth
// @Router /jobs [get]
func (h *Handler) HandleList(c *fiber.Ctx) error {
	return c.JSON(h.service.List())
}

// HandleGet returns one sync run.
// @Summary Get Sync Run
// @Description Get the status, timings and report of a sync run.
// @Tags jobs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} Job "Run"
// @Failure 404 {object} map[string]string "Not Found"
// @Security ApiKeyAuth
// @Router /jobs/{id} [get]
func (h *Handler) HandleGet(c *fiber.Ctx) error {
	job, err := h.service.Get(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(job)
}

// HandleReport returns the report of a sync run, from memory or the archive.
// @Summary Get Run Report
// @Description Get the report of a finished sync run.
// @Tags jobs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} orchestrator.Report "Report"
// @Failure 404 {object} map[string]string "Not Found"
// @Security ApiKeyAuth
// @Router /jobs/{id}/report [get]
func (h *Handler) HandleReport(c *fiber.Ctx) error {
	report, err := h.service.Report(c.UserContext(), c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(report)
}
