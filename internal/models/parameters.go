package models

import (
	"fmt"

	"github.com/bactolab/resistscope/internal/utils"
)

// SimulationParameters is the configuration form submitted before a run starts
type SimulationParameters struct {
	InitialPopulation       int     `json:"initialPopulation"`
	Generations             int     `json:"generations"`
	MutationRate            float64 `json:"mutationRate"`
	HGTRate                 float64 `json:"hgtRate"`
	AntibioticConcentration float64 `json:"antibioticConcentration"`
	FitnessCost             float64 `json:"fitnessCost"`
	GridWidth               int     `json:"gridWidth"`
	GridHeight              int     `json:"gridHeight"`
	SelectionPressure       float64 `json:"selectionPressure"`
}

// Parameter bounds enforced by Validate
const (
	MinInitialPopulation = 1
	MaxInitialPopulation = 1_000_000
	MinGenerations       = 1
	MaxGenerations       = 10_000
	MaxConcentration     = 100.0
	MinGridSize          = 10
	MaxGridSize          = 1000
	MaxSelectionPressure = 10.0
)

// DefaultParameters returns the values the form starts from
func DefaultParameters() SimulationParameters {
	return SimulationParameters{
		InitialPopulation:       1000,
		Generations:             100,
		MutationRate:            0.001,
		HGTRate:                 0.01,
		AntibioticConcentration: 1.0,
		FitnessCost:             0.1,
		GridWidth:               100,
		GridHeight:              100,
		SelectionPressure:       1.0,
	}
}

// Validate checks every field and reports all failures at once.
// The returned error is a *ValidationError or nil.
func (p *SimulationParameters) Validate() error {
	verr := NewValidationError()

	if p.InitialPopulation < MinInitialPopulation || p.InitialPopulation > MaxInitialPopulation {
		verr.Add("initialPopulation", fmt.Sprintf("must be between %d and %d", MinInitialPopulation, MaxInitialPopulation))
	}
	if p.Generations < MinGenerations || p.Generations > MaxGenerations {
		verr.Add("generations", fmt.Sprintf("must be between %d and %d", MinGenerations, MaxGenerations))
	}
	checkUnit(verr, "mutationRate", p.MutationRate)
	checkUnit(verr, "hgtRate", p.HGTRate)
	checkUnit(verr, "fitnessCost", p.FitnessCost)

	if !utils.IsFinite(p.AntibioticConcentration) || p.AntibioticConcentration < 0 || p.AntibioticConcentration > MaxConcentration {
		verr.Add("antibioticConcentration", fmt.Sprintf("must be between 0 and %g", MaxConcentration))
	}
	if p.GridWidth < MinGridSize || p.GridWidth > MaxGridSize {
		verr.Add("gridWidth", fmt.Sprintf("must be between %d and %d", MinGridSize, MaxGridSize))
	}
	if p.GridHeight < MinGridSize || p.GridHeight > MaxGridSize {
		verr.Add("gridHeight", fmt.Sprintf("must be between %d and %d", MinGridSize, MaxGridSize))
	}
	if !utils.IsFinite(p.SelectionPressure) || p.SelectionPressure < 0 || p.SelectionPressure > MaxSelectionPressure {
		verr.Add("selectionPressure", fmt.Sprintf("must be between 0 and %g", MaxSelectionPressure))
	}

	// A population larger than the grid cannot be placed
	if p.GridWidth > 0 && p.GridHeight > 0 && p.InitialPopulation > p.GridWidth*p.GridHeight {
		verr.Add("initialPopulation", "cannot exceed gridWidth * gridHeight")
	}

	return verr.OrNil()
}

func checkUnit(verr *ValidationError, field string, v float64) {
	if !utils.IsFinite(v) || v < 0 || v > 1 {
		verr.Add(field, "must be between 0 and 1")
	}
}
