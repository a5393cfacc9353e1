package domain

import (
	"fmt"
	"strings"
)

// ApplyScenario selects how the simulated patch engine resolves files.
type ApplyScenario string

const (
	ScenarioSuccess ApplyScenario = "success"
	ScenarioFailure ApplyScenario = "failure"
)

func ParseApplyScenario(raw string) (ApplyScenario, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", string(ScenarioSuccess):
		return ScenarioSuccess, nil
	case string(ScenarioFailure), "fail":
		return ScenarioFailure, nil
	default:
		return ScenarioSuccess, fmt.Errorf("invalid apply scenario %q", raw)
	}
}
