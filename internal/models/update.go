package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bactolab/resistscope/internal/utils"
)

// SimulationStatus is the lifecycle status reported by the simulation engine
type SimulationStatus string

const (
	StatusIdle      SimulationStatus = "idle"
	StatusRunning   SimulationStatus = "running"
	StatusPaused    SimulationStatus = "paused"
	StatusCompleted SimulationStatus = "completed"
	StatusError     SimulationStatus = "error"
	StatusCancelled SimulationStatus = "cancelled"
)

// IsValid reports whether s is a known status
func (s SimulationStatus) IsValid() bool {
	switch s {
	case StatusIdle, StatusRunning, StatusPaused, StatusCompleted, StatusError, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether s ends a run
func (s SimulationStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusError
}

// SimulationUpdate is one per-generation snapshot from the simulation engine.
// Optional counters are pointers so absent and zero can be told apart.
type SimulationUpdate struct {
	Generation              int              `json:"generation"`
	PopulationSize          int              `json:"population_size"`
	ResistantCount          int              `json:"resistant_count"`
	AntibioticConcentration float64          `json:"antibiotic_concentration"`
	MutationRate            *float64         `json:"mutation_rate,omitempty"`
	MutationCount           *int             `json:"mutation_count,omitempty"`
	BeneficialMutations     *int             `json:"beneficial_mutations,omitempty"`
	NeutralMutations        *int             `json:"neutral_mutations,omitempty"`
	DeleteriousMutations    *int             `json:"deleterious_mutations,omitempty"`
	HGTEvents               *int             `json:"hgt_events,omitempty"`
	BirthCount              *int             `json:"birth_count,omitempty"`
	DeathCount              *int             `json:"death_count,omitempty"`
	AverageFitness          *float64         `json:"average_fitness,omitempty"`
	Timestamp               *time.Time       `json:"timestamp,omitempty"`
	Status                  SimulationStatus `json:"status,omitempty"`
}

// rawUpdate mirrors the wire shape with every field optional so presence can be checked
type rawUpdate struct {
	Generation              *int     `json:"generation"`
	PopulationSize          *int     `json:"population_size"`
	ResistantCount          *int     `json:"resistant_count"`
	AntibioticConcentration *float64 `json:"antibiotic_concentration"`
	MutationRate            *float64 `json:"mutation_rate"`
	MutationCount           *int     `json:"mutation_count"`
	BeneficialMutations     *int     `json:"beneficial_mutations"`
	NeutralMutations        *int     `json:"neutral_mutations"`
	DeleteriousMutations    *int     `json:"deleterious_mutations"`
	HGTEvents               *int     `json:"hgt_events"`
	BirthCount              *int     `json:"birth_count"`
	DeathCount              *int     `json:"death_count"`
	AverageFitness          *float64 `json:"average_fitness"`
	Timestamp               *string  `json:"timestamp"`
	Status                  *string  `json:"status"`
}

// ValidationError collects per-field validation messages
type ValidationError struct {
	Fields map[string]string `json:"fields"`
}

// NewValidationError creates an empty ValidationError
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string]string)}
}

// Add records a message for a field, keeping the first message per field
func (e *ValidationError) Add(field, message string) {
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = message
	}
}

// HasErrors reports whether any field failed
func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

// OrNil returns nil when no field failed, so callers can return it directly as an error
func (e *ValidationError) OrNil() error {
	if !e.HasErrors() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// ParseUpdate decodes and validates a single wire record
func ParseUpdate(data []byte) (*SimulationUpdate, error) {
	var raw rawUpdate
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("invalid update payload: %w", err)
	}
	return raw.toUpdate()
}

// ParseUpdates decodes a single record or an array of records.
// Validation stops at the first bad record and reports its index.
func ParseUpdates(data []byte) ([]*SimulationUpdate, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty update payload")
	}
	if trimmed[0] != '[' {
		u, err := ParseUpdate(trimmed)
		if err != nil {
			return nil, err
		}
		return []*SimulationUpdate{u}, nil
	}

	var raws []rawUpdate
	if err := json.Unmarshal(trimmed, &raws); err != nil {
		return nil, fmt.Errorf("invalid update payload: %w", err)
	}
	updates := make([]*SimulationUpdate, 0, len(raws))
	for i := range raws {
		u, err := raws[i].toUpdate()
		if err != nil {
			return nil, fmt.Errorf("update %d: %w", i, err)
		}
		updates = append(updates, u)
	}
	return updates, nil
}

func (r *rawUpdate) toUpdate() (*SimulationUpdate, error) {
	verr := NewValidationError()

	if r.Generation == nil {
		verr.Add("generation", "is required")
	} else if *r.Generation < 0 {
		verr.Add("generation", "must be >= 0")
	}
	if r.PopulationSize == nil {
		verr.Add("population_size", "is required")
	} else if *r.PopulationSize < 0 {
		verr.Add("population_size", "must be >= 0")
	}
	if r.ResistantCount == nil {
		verr.Add("resistant_count", "is required")
	} else if *r.ResistantCount < 0 {
		verr.Add("resistant_count", "must be >= 0")
	} else if r.PopulationSize != nil && *r.ResistantCount > *r.PopulationSize {
		verr.Add("resistant_count", "cannot exceed population_size")
	}

	conc := 0.0
	if r.AntibioticConcentration != nil {
		conc = *r.AntibioticConcentration
		if !utils.IsFinite(conc) || conc < 0 {
			verr.Add("antibiotic_concentration", "must be a finite value >= 0")
		}
	}
	if r.MutationRate != nil && (!utils.IsFinite(*r.MutationRate) || *r.MutationRate < 0 || *r.MutationRate > 1) {
		verr.Add("mutation_rate", "must be within [0, 1]")
	}
	for field, v := range map[string]*int{
		"mutation_count":        r.MutationCount,
		"beneficial_mutations":  r.BeneficialMutations,
		"neutral_mutations":     r.NeutralMutations,
		"deleterious_mutations": r.DeleteriousMutations,
		"hgt_events":            r.HGTEvents,
		"birth_count":           r.BirthCount,
		"death_count":           r.DeathCount,
	} {
		if v != nil && *v < 0 {
			verr.Add(field, "must be >= 0")
		}
	}
	if r.AverageFitness != nil && !utils.IsFinite(*r.AverageFitness) {
		verr.Add("average_fitness", "must be finite")
	}

	var ts *time.Time
	if r.Timestamp != nil && *r.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339Nano, *r.Timestamp)
		if err != nil {
			verr.Add("timestamp", "must be an ISO-8601 timestamp")
		} else {
			ts = &parsed
		}
	}

	var status SimulationStatus
	if r.Status != nil && *r.Status != "" {
		status = SimulationStatus(*r.Status)
		if !status.IsValid() {
			verr.Add("status", "unknown status")
		}
	}

	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	return &SimulationUpdate{
		Generation:              *r.Generation,
		PopulationSize:          *r.PopulationSize,
		ResistantCount:          *r.ResistantCount,
		AntibioticConcentration: conc,
		MutationRate:            r.MutationRate,
		MutationCount:           r.MutationCount,
		BeneficialMutations:     r.BeneficialMutations,
		NeutralMutations:        r.NeutralMutations,
		DeleteriousMutations:    r.DeleteriousMutations,
		HGTEvents:               r.HGTEvents,
		BirthCount:              r.BirthCount,
		DeathCount:              r.DeathCount,
		AverageFitness:          r.AverageFitness,
		Timestamp:               ts,
		Status:                  status,
	}, nil
}

// IntOr dereferences p or returns def
func IntOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

// FloatOr dereferences p or returns def
func FloatOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}
