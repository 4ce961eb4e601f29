// Package transform maps simulation update records onto the per-chart view
// records served to dashboards. All functions are pure.
package transform

import (
	"fmt"
	"time"

	"github.com/bactolab/resistscope/internal/models"
)

// ToDataPoint converts one validated update into a buffered data point
func ToDataPoint(u *models.SimulationUpdate) models.DataPoint {
	p := models.DataPoint{
		Generation:              u.Generation,
		TotalPopulation:         u.PopulationSize,
		ResistantCount:          u.ResistantCount,
		SensitiveCount:          u.PopulationSize - u.ResistantCount,
		ResistanceFrequency:     ResistanceFrequency(u.ResistantCount, u.PopulationSize),
		AntibioticConcentration: u.AntibioticConcentration,
		MutationRate:            models.FloatOr(u.MutationRate, 0),
		BeneficialMutations:     models.IntOr(u.BeneficialMutations, 0),
		NeutralMutations:        models.IntOr(u.NeutralMutations, 0),
		DeleteriousMutations:    models.IntOr(u.DeleteriousMutations, 0),
		HGTEvents:               models.IntOr(u.HGTEvents, 0),
		BirthCount:              models.IntOr(u.BirthCount, 0),
		DeathCount:              models.IntOr(u.DeathCount, 0),
		AverageFitness:          models.FloatOr(u.AverageFitness, 0),
	}

	if u.MutationCount != nil {
		p.MutationCount = *u.MutationCount
	} else {
		p.MutationCount = p.BeneficialMutations + p.NeutralMutations + p.DeleteriousMutations
	}
	if u.Timestamp != nil {
		p.Timestamp = u.Timestamp.UTC().Format(time.RFC3339Nano)
	}
	return p
}

// ToDataPoints converts a batch of updates, preserving order
func ToDataPoints(updates []*models.SimulationUpdate) []models.DataPoint {
	points := make([]models.DataPoint, len(updates))
	for i, u := range updates {
		points[i] = ToDataPoint(u)
	}
	return points
}

// ToUpdate is the inverse of ToDataPoint, used to replay stored points.
// Zero optional counters are omitted.
func ToUpdate(p models.DataPoint, status models.SimulationStatus) *models.SimulationUpdate {
	u := &models.SimulationUpdate{
		Generation:              p.Generation,
		PopulationSize:          p.TotalPopulation,
		ResistantCount:          p.ResistantCount,
		AntibioticConcentration: p.AntibioticConcentration,
		MutationRate:            nonZeroFloat(p.MutationRate),
		MutationCount:           nonZeroInt(p.MutationCount),
		BeneficialMutations:     nonZeroInt(p.BeneficialMutations),
		NeutralMutations:        nonZeroInt(p.NeutralMutations),
		DeleteriousMutations:    nonZeroInt(p.DeleteriousMutations),
		HGTEvents:               nonZeroInt(p.HGTEvents),
		BirthCount:              nonZeroInt(p.BirthCount),
		DeathCount:              nonZeroInt(p.DeathCount),
		AverageFitness:          nonZeroFloat(p.AverageFitness),
		Status:                  status,
	}
	if p.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339Nano, p.Timestamp); err == nil {
			u.Timestamp = &ts
		}
	}
	return u
}

func nonZeroInt(v int) *int {
	if v == 0 {
		return nil
	}
	return &v
}

func nonZeroFloat(v float64) *float64 {
	if v == 0 {
		return nil
	}
	return &v
}

// ResistanceFrequency is resistant / total, 0 for an empty population
func ResistanceFrequency(resistant, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(resistant) / float64(total)
}

// GrowthRate is (cur - prev) / prev, 0 when prev is 0
func GrowthRate(prev, cur int) float64 {
	if prev == 0 {
		return 0
	}
	return float64(cur-prev) / float64(prev)
}

// PopulationView builds the population chart
func PopulationView(points []models.DataPoint) []models.PopulationPoint {
	out := make([]models.PopulationPoint, len(points))
	for i, p := range points {
		out[i] = models.PopulationPoint{
			Generation:      p.Generation,
			TotalPopulation: p.TotalPopulation,
			ResistantCount:  p.ResistantCount,
			SensitiveCount:  p.TotalPopulation - p.ResistantCount,
			Timestamp:       p.Timestamp,
		}
		if i > 0 {
			out[i].GrowthRate = GrowthRate(points[i-1].TotalPopulation, p.TotalPopulation)
		}
	}
	return out
}

// MutationView builds the mutation chart
func MutationView(points []models.DataPoint) []models.MutationPoint {
	out := make([]models.MutationPoint, len(points))
	for i, p := range points {
		out[i] = models.MutationPoint{
			Generation:           p.Generation,
			TotalMutations:       p.MutationCount,
			BeneficialMutations:  p.BeneficialMutations,
			NeutralMutations:     p.NeutralMutations,
			DeleteriousMutations: p.DeleteriousMutations,
			MutationRate:         p.MutationRate,
			HGTEvents:            p.HGTEvents,
		}
	}
	return out
}

// ResistanceView builds the resistance chart. Selection pressure is
// antibiotic concentration weighted by resistance frequency.
func ResistanceView(points []models.DataPoint) []models.ResistancePoint {
	out := make([]models.ResistancePoint, len(points))
	for i, p := range points {
		freq := ResistanceFrequency(p.ResistantCount, p.TotalPopulation)
		out[i] = models.ResistancePoint{
			Generation:              p.Generation,
			ResistanceFrequency:     freq,
			ResistantCount:          p.ResistantCount,
			SensitiveCount:          p.TotalPopulation - p.ResistantCount,
			AntibioticConcentration: p.AntibioticConcentration,
			SelectionPressure:       p.AntibioticConcentration * freq,
		}
	}
	return out
}

// GrowthView builds the growth chart
func GrowthView(points []models.DataPoint) []models.GrowthPoint {
	out := make([]models.GrowthPoint, len(points))
	for i, p := range points {
		out[i] = models.GrowthPoint{
			Generation: p.Generation,
			Population: p.TotalPopulation,
			BirthCount: p.BirthCount,
			DeathCount: p.DeathCount,
		}
		if i > 0 {
			prev := points[i-1].TotalPopulation
			out[i].GrowthRate = GrowthRate(prev, p.TotalPopulation)
			out[i].NetGrowth = p.TotalPopulation - prev
		}
	}
	return out
}

// ChartView dispatches to the view builder for kind. The result is one of
// the typed point slices.
func ChartView(kind models.ChartKind, points []models.DataPoint) (interface{}, int, error) {
	switch kind {
	case models.ChartPopulation:
		v := PopulationView(points)
		return v, len(v), nil
	case models.ChartMutation:
		v := MutationView(points)
		return v, len(v), nil
	case models.ChartResistance:
		v := ResistanceView(points)
		return v, len(v), nil
	case models.ChartGrowth:
		v := GrowthView(points)
		return v, len(v), nil
	}
	return nil, 0, fmt.Errorf("unknown chart %q", kind)
}
