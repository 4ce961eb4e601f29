package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/bactolab/resistscope/internal/kv"
	"github.com/bactolab/resistscope/internal/logging"
	"github.com/bactolab/resistscope/internal/metrics"
	"github.com/bactolab/resistscope/internal/session"
	"github.com/bactolab/resistscope/internal/stream"
)

type testEnv struct {
	logger   *logging.Logger
	registry *stream.Registry
	store    *session.Store
	metrics  *metrics.Metrics
	ingest   *IngestService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	registry := stream.NewRegistry(stream.Config{MaxDataPoints: 100, FlushSize: 1, AutoReset: true})
	t.Cleanup(registry.Close)

	logger := logging.NewNop()
	m := metrics.New()
	return &testEnv{
		logger:   logger,
		registry: registry,
		store:    session.NewStore(kv.NewMemoryStore(), session.Config{StorageKey: "test", MaxSessions: 5}),
		metrics:  m,
		ingest:   NewIngestService(logger, registry, m),
	}
}

// update renders one wire record; status may be empty
func update(gen, population, resistant int, status string) string {
	s := fmt.Sprintf(`{"generation":%d,"population_size":%d,"resistant_count":%d,"antibiotic_concentration":1.5`, gen, population, resistant)
	if status != "" {
		s += fmt.Sprintf(`,"status":%q`, status)
	}
	return s + "}"
}

func updates(records ...string) []byte {
	return []byte("[" + strings.Join(records, ",") + "]")
}

// runSimulation pushes n generations through a running buffer
func (e *testEnv) runSimulation(t *testing.T, id string, n int) {
	t.Helper()
	records := make([]string, n)
	for i := range records {
		status := ""
		if i == 0 {
			status = "running"
		}
		records[i] = update(i, 100+i, i%100, status)
	}
	if _, err := e.ingest.Ingest(context.Background(), SourceHTTP, id, updates(records...)); err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
}

func serviceCode(err error) string {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Code
	}
	return ""
}
