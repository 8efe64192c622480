package cli

import (
	"github.com/quarrydata/quarry/internal/plan"
	"github.com/quarrydata/quarry/internal/registry"
	"github.com/quarrydata/quarry/internal/schema"
)

// loadPlan runs the shared load pipeline: read config, apply overrides,
// validate, build the registry, compile the plan.
func loadPlan(config string, ov schema.Overrides) (*plan.Plan, *registry.Registry, error) {
	m, err := schema.LoadWith(config, ov)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "load config", err)
	}
	reg, err := registry.New(m.Config.Locale)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "build registry", err)
	}
	p, err := plan.Compile(m, reg)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "compile plan", err)
	}
	return p, reg, nil
}

func seedOverride(changed bool, seed int64) schema.Overrides {
	ov := schema.Overrides{}
	if changed {
		ov.Seed = &seed
	}
	return ov
}
