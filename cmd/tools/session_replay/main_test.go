package main

import (
	"testing"

	"github.com/bactolab/resistscope/internal/models"
)

func TestBatches(t *testing.T) {
	points := make([]models.DataPoint, 7)
	for i := range points {
		points[i] = models.DataPoint{Generation: i, TotalPopulation: 100, ResistantCount: i}
	}

	got := batches(points, 3, models.StatusCompleted)
	if len(got) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(got))
	}
	if len(got[2]) != 1 {
		t.Errorf("last batch should hold the remainder, got %d", len(got[2]))
	}
	if got[0][0].Status != models.StatusRunning {
		t.Errorf("first record status = %q, want running", got[0][0].Status)
	}
	if got[0][1].Status != "" {
		t.Errorf("middle records carry no status, got %q", got[0][1].Status)
	}
	if got[2][0].Status != models.StatusCompleted || got[2][0].Generation != 6 {
		t.Errorf("last record = %+v", got[2][0])
	}
}

func TestBatches_SinglePoint(t *testing.T) {
	got := batches([]models.DataPoint{{Generation: 0, TotalPopulation: 10}}, 5, models.StatusCompleted)
	if len(got) != 1 || len(got[0]) != 1 {
		t.Fatalf("unexpected batches %+v", got)
	}
	// running wins so the buffer starts collecting
	if got[0][0].Status != models.StatusRunning {
		t.Errorf("status = %q", got[0][0].Status)
	}
}
