package taxonomy

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const cacheTTL = 5 * time.Minute

// Feature implements the loader.Feature interface.
type Feature struct {
	handler *Handler
}

// NewFeature creates the taxonomy feature.
func NewFeature(lister KindLister, logger *zap.Logger) *Feature {
	return &Feature{handler: NewHandler(NewService(lister, cacheTTL, logger))}
}

// Name returns the name of the feature.
func (f *Feature) Name() string {
	return "taxonomy"
}

// IsEnabled checks if the feature is enabled.
func (f *Feature) IsEnabled() bool {
	return true
}

// Load registers the feature's routes.
func (f *Feature) Load(app fiber.Router) error {
	f.handler.RegisterRoutes(app)
	return nil
}
