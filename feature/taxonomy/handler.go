package taxonomy

import (
	"discovery-sync/core/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// KindsResponse is the body of GET /taxonomy/kinds.
type KindsResponse struct {
	Kinds []string `json:"kinds"`
}

// Handler handles HTTP requests for the taxonomy.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the taxonomy routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/taxonomy")
	group.Get("/kinds", h.HandleKinds)
}

// HandleKinds lists the node kinds known to the appliance.
// @Summary List Node Kinds
// @Description List the node kinds of the appliance taxonomy.
// @Tags taxonomy
// @Produce json
// @Success 200 {object} KindsResponse "Kinds"
// @Failure 502 {object} map[string]string "Upstream Error"
// @Security ApiKeyAuth
// @Router /taxonomy/kinds [get]
func (h *Handler) HandleKinds(c *fiber.Ctx) error {
	kinds, err := h.service.Kinds(c.UserContext())
	if err != nil {
		logger.WithRayID(h.service.logger, c).Error("Failed to fetch node kinds", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(KindsResponse{Kinds: kinds})
}
