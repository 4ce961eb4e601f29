// Package analytics provides the series types shared by the statistics,
// anomaly detection and downsampling packages.
package analytics

import (
	"fmt"
	"sort"

	"github.com/bactolab/resistscope/internal/models"
)

// GenerationPoint is a single value observed at a simulation generation.
// This is the common type used across all analytics packages (stats, anomaly, etc.)
type GenerationPoint struct {
	Generation int     `json:"generation"`
	Value      float64 `json:"value"`
}

// GenerationSeries is an ordered collection of generation points
type GenerationSeries []GenerationPoint

// Values extracts just the values from the series
func (s GenerationSeries) Values() []float64 {
	values := make([]float64, len(s))
	for i, p := range s {
		values[i] = p.Value
	}
	return values
}

// Generations extracts just the generations from the series
func (s GenerationSeries) Generations() []int {
	gens := make([]int, len(s))
	for i, p := range s {
		gens[i] = p.Generation
	}
	return gens
}

// Len returns the number of points
func (s GenerationSeries) Len() int {
	return len(s)
}

// Field names a numeric column of a buffered data point
type Field string

const (
	FieldTotalPopulation         Field = "totalPopulation"
	FieldResistantCount          Field = "resistantCount"
	FieldSensitiveCount          Field = "sensitiveCount"
	FieldResistanceFrequency     Field = "resistanceFrequency"
	FieldAntibioticConcentration Field = "antibioticConcentration"
	FieldMutationRate            Field = "mutationRate"
	FieldMutationCount           Field = "mutationCount"
	FieldHGTEvents               Field = "hgtEvents"
	FieldAverageFitness          Field = "averageFitness"
)

var extractors = map[Field]func(p *models.DataPoint) float64{
	FieldTotalPopulation:         func(p *models.DataPoint) float64 { return float64(p.TotalPopulation) },
	FieldResistantCount:          func(p *models.DataPoint) float64 { return float64(p.ResistantCount) },
	FieldSensitiveCount:          func(p *models.DataPoint) float64 { return float64(p.SensitiveCount) },
	FieldResistanceFrequency:     func(p *models.DataPoint) float64 { return p.ResistanceFrequency },
	FieldAntibioticConcentration: func(p *models.DataPoint) float64 { return p.AntibioticConcentration },
	FieldMutationRate:            func(p *models.DataPoint) float64 { return p.MutationRate },
	FieldMutationCount:           func(p *models.DataPoint) float64 { return float64(p.MutationCount) },
	FieldHGTEvents:               func(p *models.DataPoint) float64 { return float64(p.HGTEvents) },
	FieldAverageFitness:          func(p *models.DataPoint) float64 { return p.AverageFitness },
}

// ParseField validates a field name
func ParseField(name string) (Field, error) {
	f := Field(name)
	if _, ok := extractors[f]; !ok {
		return "", fmt.Errorf("unknown field %q (supported: %v)", name, Fields())
	}
	return f, nil
}

// Fields lists the supported field names
func Fields() []string {
	names := make([]string, 0, len(extractors))
	for f := range extractors {
		names = append(names, string(f))
	}
	sort.Strings(names)
	return names
}

// ExtractSeries pulls one field out of a buffer as a generation series
func ExtractSeries(points []models.DataPoint, field Field) (GenerationSeries, error) {
	get, ok := extractors[field]
	if !ok {
		return nil, fmt.Errorf("unknown field %q", field)
	}
	series := make(GenerationSeries, len(points))
	for i := range points {
		series[i] = GenerationPoint{Generation: points[i].Generation, Value: get(&points[i])}
	}
	return series, nil
}
