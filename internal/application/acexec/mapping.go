// Package acexec turns per-device plans into the minimum set of IR
// bridge commands, tolerating first-boot unknowns, PIR lockouts and
// partial device failures.
package acexec

import (
	"github.com/NotCoffee418/power-control-center/pkg/models"
)

// PlanToState maps a plan to the concrete device state it asks for.
// NoChange returns nil: the prior state is retained and no command may
// be induced by it.
func PlanToState(plan *models.Plan) *models.AcCommand {
	if plan == nil {
		return nil
	}

	switch plan.Mode {
	case models.PlanOff:
		return &models.AcCommand{IsOn: false, Mode: models.AcModeOff}

	case models.PlanColder:
		switch intensityOrDefault(plan.Intensity) {
		case models.IntensityLow:
			return &models.AcCommand{IsOn: true, Mode: models.AcModeCool, Temperature: 26, FanSpeed: 0}
		case models.IntensityHigh:
			return &models.AcCommand{IsOn: true, Mode: models.AcModeCool, Temperature: 20, FanSpeed: 5, Powerful: true}
		default:
			return &models.AcCommand{IsOn: true, Mode: models.AcModeCool, Temperature: 22, FanSpeed: 0}
		}

	case models.PlanWarmer:
		switch intensityOrDefault(plan.Intensity) {
		case models.IntensityLow:
			return &models.AcCommand{IsOn: true, Mode: models.AcModeHeat, Temperature: 19, FanSpeed: 0}
		case models.IntensityHigh:
			return &models.AcCommand{IsOn: true, Mode: models.AcModeHeat, Temperature: 24, FanSpeed: 5, Powerful: true}
		default:
			return &models.AcCommand{IsOn: true, Mode: models.AcModeHeat, Temperature: 22, FanSpeed: 0}
		}
	}

	return nil
}

// intensityOrDefault applies the Medium default when the graph did not
// supply an intensity.
func intensityOrDefault(i models.Intensity) models.Intensity {
	switch i {
	case models.IntensityLow, models.IntensityMedium, models.IntensityHigh:
		return i
	}
	return models.IntensityMedium
}

// PlanFromState inverts PlanToState for the canonical states: it
// recognizes the eight reference rows and the off state. Used to audit
// the mapping and by the simulator.
func PlanFromState(s *models.AcCommand) *models.Plan {
	if s == nil {
		return &models.Plan{Mode: models.PlanNoChange}
	}
	if !s.IsOn {
		return &models.Plan{Mode: models.PlanOff}
	}

	var mode models.PlanMode
	switch s.Mode {
	case models.AcModeCool:
		mode = models.PlanColder
	case models.AcModeHeat:
		mode = models.PlanWarmer
	default:
		return nil
	}

	for _, intensity := range []models.Intensity{models.IntensityLow, models.IntensityMedium, models.IntensityHigh} {
		candidate := PlanToState(&models.Plan{Mode: mode, Intensity: intensity})
		if candidate != nil && candidate.Equal(*s) && candidate.Powerful == s.Powerful {
			return &models.Plan{Mode: mode, Intensity: intensity}
		}
	}
	return nil
}
