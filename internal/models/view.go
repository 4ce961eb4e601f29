package models

import "fmt"

// DataPoint is the buffered view record kept per simulation generation
type DataPoint struct {
	Generation              int     `json:"generation"`
	TotalPopulation         int     `json:"totalPopulation"`
	ResistantCount          int     `json:"resistantCount"`
	SensitiveCount          int     `json:"sensitiveCount"`
	ResistanceFrequency     float64 `json:"resistanceFrequency"`
	AntibioticConcentration float64 `json:"antibioticConcentration"`
	MutationRate            float64 `json:"mutationRate,omitempty"`
	MutationCount           int     `json:"mutationCount,omitempty"`
	BeneficialMutations     int     `json:"beneficialMutations,omitempty"`
	NeutralMutations        int     `json:"neutralMutations,omitempty"`
	DeleteriousMutations    int     `json:"deleteriousMutations,omitempty"`
	HGTEvents               int     `json:"hgtEvents,omitempty"`
	BirthCount              int     `json:"birthCount,omitempty"`
	DeathCount              int     `json:"deathCount,omitempty"`
	AverageFitness          float64 `json:"averageFitness,omitempty"`
	Timestamp               string  `json:"timestamp,omitempty"`
}

// ChartKind names a chart family
type ChartKind string

const (
	ChartPopulation ChartKind = "population"
	ChartMutation   ChartKind = "mutation"
	ChartResistance ChartKind = "resistance"
	ChartGrowth     ChartKind = "growth"
)

// ParseChartKind validates a chart family name
func ParseChartKind(s string) (ChartKind, error) {
	switch k := ChartKind(s); k {
	case ChartPopulation, ChartMutation, ChartResistance, ChartGrowth:
		return k, nil
	}
	return "", fmt.Errorf("unknown chart %q (supported: population, mutation, resistance, growth)", s)
}

// PopulationPoint feeds the population chart
type PopulationPoint struct {
	Generation      int     `json:"generation"`
	TotalPopulation int     `json:"totalPopulation"`
	ResistantCount  int     `json:"resistantCount"`
	SensitiveCount  int     `json:"sensitiveCount"`
	GrowthRate      float64 `json:"growthRate"`
	Timestamp       string  `json:"timestamp,omitempty"`
}

// MutationPoint feeds the mutation chart
type MutationPoint struct {
	Generation           int     `json:"generation"`
	TotalMutations       int     `json:"totalMutations"`
	BeneficialMutations  int     `json:"beneficialMutations"`
	NeutralMutations     int     `json:"neutralMutations"`
	DeleteriousMutations int     `json:"deleteriousMutations"`
	MutationRate         float64 `json:"mutationRate"`
	HGTEvents            int     `json:"hgtEvents"`
}

// ResistancePoint feeds the resistance chart
type ResistancePoint struct {
	Generation              int     `json:"generation"`
	ResistanceFrequency     float64 `json:"resistanceFrequency"`
	ResistantCount          int     `json:"resistantCount"`
	SensitiveCount          int     `json:"sensitiveCount"`
	AntibioticConcentration float64 `json:"antibioticConcentration"`
	SelectionPressure       float64 `json:"selectionPressure"`
}

// GrowthPoint feeds the growth chart
type GrowthPoint struct {
	Generation int     `json:"generation"`
	Population int     `json:"population"`
	GrowthRate float64 `json:"growthRate"`
	BirthCount int     `json:"birthCount"`
	DeathCount int     `json:"deathCount"`
	NetGrowth  int     `json:"netGrowth"`
}
