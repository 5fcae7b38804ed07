// Package models provides domain models for trade analytics.
package models

import (
	"fmt"
	"strings"
)

// Direction represents the side of a closed trade.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// ParseDirection parses broker style side strings (LONG/SHORT, BUY/SELL, L/S).
func ParseDirection(s string) (Direction, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LONG", "BUY", "L", "B":
		return DirectionLong, nil
	case "SHORT", "SELL", "S":
		return DirectionShort, nil
	default:
		return "", fmt.Errorf("unknown direction %q", s)
	}
}

// PlanAdherence is the trader's self-rating of how closely a trade followed the plan.
type PlanAdherence string

const (
	PlanPerfectExecution PlanAdherence = "PERFECT_EXECUTION"
	PlanMinorDeviation   PlanAdherence = "MINOR_DEVIATION"
	PlanMajorDeviation   PlanAdherence = "MAJOR_DEVIATION"
	PlanNoPlan           PlanAdherence = "NO_PLAN"
	PlanNotRated         PlanAdherence = "NOT_RATED"
)

// ParsePlanAdherence parses a rating. An empty string is NOT_RATED.
func ParsePlanAdherence(s string) (PlanAdherence, error) {
	v := PlanAdherence(strings.ToUpper(strings.TrimSpace(s)))
	switch v {
	case "":
		return PlanNotRated, nil
	case PlanPerfectExecution, PlanMinorDeviation, PlanMajorDeviation, PlanNoPlan, PlanNotRated:
		return v, nil
	default:
		return "", fmt.Errorf("unknown plan adherence %q", s)
	}
}

// IsRated reports whether the trader rated the trade at all.
func (p PlanAdherence) IsRated() bool {
	return p != "" && p != PlanNotRated
}

// Followed reports whether the rating counts as following the plan.
func (p PlanAdherence) Followed() bool {
	return p == PlanPerfectExecution || p == PlanMinorDeviation
}
