package registry

import (
	"github.com/driftscan/driftscan/internal/detectors"
	"github.com/driftscan/driftscan/pkg/config"
	"github.com/driftscan/driftscan/pkg/models"
)

// defaultDetector pairs a detector constructor with the registration
// metadata used when no override is configured.
type defaultDetector struct {
	id       string
	category models.Category
	build    func() detectors.Detector
	enabled  func(cfg config.DetectorConfig) bool
}

var defaultDetectors = []defaultDetector{
	{"api/routes", models.CategoryAPI, func() detectors.Detector { return detectors.NewRoutes() },
		func(c config.DetectorConfig) bool { return c.Routes }},
	{"api/envelope", models.CategoryAPI, func() detectors.Detector { return detectors.NewEnvelope() },
		func(c config.DetectorConfig) bool { return c.Envelope }},
	{"auth/middleware", models.CategoryAuth, func() detectors.Detector { return detectors.NewAuth() },
		func(c config.DetectorConfig) bool { return c.Auth }},
	{"errors/propagation-style", models.CategoryErrors, func() detectors.Detector { return detectors.NewErrors() },
		func(c config.DetectorConfig) bool { return c.Errors }},
	{"data-access/orm-style", models.CategoryDataAccess, func() detectors.Detector { return detectors.NewDataAccess() },
		func(c config.DetectorConfig) bool { return c.DataAccess }},
	{"performance/hotpath", models.CategoryPerformance, func() detectors.Detector { return detectors.NewPerformance() },
		func(c config.DetectorConfig) bool { return c.Performance }},
	{"structural/layout", models.CategoryStructural, func() detectors.Detector { return detectors.NewStructural() },
		func(c config.DetectorConfig) bool { return c.Structural }},
	{"documentation/comment-style", models.CategoryDocumentation, func() detectors.Detector { return detectors.NewDocumentation() },
		func(c config.DetectorConfig) bool { return c.Documentation }},
	{"security/secrets", models.CategorySecurity, func() detectors.Detector { return detectors.NewSecurity() },
		func(c config.DetectorConfig) bool { return c.Security }},
	{"testing/naming", models.CategoryTesting, func() detectors.Detector { return detectors.NewTesting() },
		func(c config.DetectorConfig) bool { return c.Testing }},
	{"config/loading-style", models.CategoryConfig, func() detectors.Detector { return detectors.NewConfig() },
		func(c config.DetectorConfig) bool { return c.Config }},
}

// RegisterDefaults registers the eleven built-in detectors, covering ten
// categories with two for api (§4.2/§4.3), into reg, honoring cfg's per-category enablement.
func RegisterDefaults(reg *Registry, cfg config.DetectorConfig) error {
	for _, d := range defaultDetectors {
		d := d
		info := Info{
			Category: d.category,
			Enabled:  d.enabled(cfg),
		}
		if err := reg.RegisterFactory(d.id, func() detectors.Detector { return d.build() }, info, false); err != nil {
			return err
		}
	}
	return nil
}
