package services

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bactolab/resistscope/internal/blob"
	"github.com/bactolab/resistscope/internal/models"
)

func newSessionEnv(t *testing.T) (*testEnv, *SessionService, blob.Store) {
	t.Helper()
	env := newTestEnv(t)
	sink := blob.NewMemoryStore()
	return env, NewSessionService(env.logger, env.store, env.registry, sink, env.metrics), sink
}

func TestSessionService_SaveAndLoad(t *testing.T) {
	env, svc, _ := newSessionEnv(t)
	ctx := context.Background()
	env.runSimulation(t, "sim-1", 12)

	params := models.DefaultParameters()
	sess, err := svc.Save(ctx, &models.SaveSessionRequest{SimulationID: "sim-1", Parameters: &params})
	require.NoError(t, err)
	assert.Len(t, sess.Data, 12)
	assert.Equal(t, 12, sess.Metadata.TotalGenerations)
	assert.Empty(t, sess.Metadata.EndTime, "running simulations have no end time")
	require.NotNil(t, sess.Metadata.Parameters)

	got, err := svc.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)
	assert.Equal(t, "sim-1", got.SimulationID)

	latest, err := svc.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, latest.ID)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 12, list[0].PointCount)
}

func TestSessionService_SaveErrors(t *testing.T) {
	env, svc, _ := newSessionEnv(t)
	ctx := context.Background()

	_, err := svc.Save(ctx, &models.SaveSessionRequest{})
	assert.Equal(t, CodeInvalidRequest, serviceCode(err))

	_, err = svc.Save(ctx, &models.SaveSessionRequest{SimulationID: "ghost"})
	assert.Equal(t, CodeNotFound, serviceCode(err))

	env.registry.GetOrCreate("empty")
	_, err = svc.Save(ctx, &models.SaveSessionRequest{SimulationID: "empty"})
	assert.Equal(t, CodeNoData, serviceCode(err))

	env.runSimulation(t, "sim-1", 3)
	bad := models.DefaultParameters()
	bad.MutationRate = 2
	_, err = svc.Save(ctx, &models.SaveSessionRequest{SimulationID: "sim-1", Parameters: &bad})
	assert.Equal(t, CodeValidation, serviceCode(err))
}

func TestSessionService_RetentionCap(t *testing.T) {
	env, svc, _ := newSessionEnv(t)
	ctx := context.Background()
	env.runSimulation(t, "sim-1", 3)

	var ids []string
	for i := 0; i < 8; i++ {
		sess, err := svc.Save(ctx, &models.SaveSessionRequest{SimulationID: "sim-1"})
		require.NoError(t, err)
		ids = append(ids, sess.ID)
	}

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 5)
	assert.Equal(t, ids[7], list[0].ID, "newest first")

	_, err = svc.Get(ctx, ids[0])
	assert.Equal(t, CodeNotFound, serviceCode(err), "oldest session is evicted")
}

func TestSessionService_DeleteAndClear(t *testing.T) {
	env, svc, _ := newSessionEnv(t)
	ctx := context.Background()
	env.runSimulation(t, "sim-1", 3)

	sess, err := svc.Save(ctx, &models.SaveSessionRequest{SimulationID: "sim-1"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, sess.ID))
	assert.Equal(t, CodeNotFound, serviceCode(svc.Delete(ctx, sess.ID)))

	_, err = svc.Save(ctx, &models.SaveSessionRequest{SimulationID: "sim-1"})
	require.NoError(t, err)
	n, err := svc.Clear(ctx)
	require.NoError(t, err)
	assert.Positive(t, n)

	_, err = svc.Latest(ctx)
	assert.Equal(t, CodeNotFound, serviceCode(err))
}

func TestSessionService_ExportImportRoundTrip(t *testing.T) {
	env, svc, _ := newSessionEnv(t)
	ctx := context.Background()
	env.runSimulation(t, "sim-1", 6)

	sess, err := svc.Save(ctx, &models.SaveSessionRequest{SimulationID: "sim-1"})
	require.NoError(t, err)

	var buf bytes.Buffer
	name, err := svc.Export(ctx, sess.ID, &buf)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(name, "simulation-session-"))
	assert.Contains(t, buf.String(), `"version": "1.0"`)

	imported, err := svc.Import(ctx, &buf)
	require.NoError(t, err)
	assert.NotEqual(t, sess.ID, imported.ID, "import creates a new session")
	assert.Equal(t, sess.Data, imported.Data)
	assert.Equal(t, "sim-1", imported.SimulationID)

	_, err = svc.Export(ctx, "missing", &buf)
	assert.Equal(t, CodeNotFound, serviceCode(err))
}

func TestSessionService_ImportRejectsMalformed(t *testing.T) {
	_, svc, _ := newSessionEnv(t)
	ctx := context.Background()

	cases := []string{
		`not json`,
		`{"timestamp":"x","data":[]}`,
		`{"version":"1.0","timestamp":"x"}`,
		`{"version":"1.0","data":[{"generation":0,"totalPopulation":10}]}`,
		`{"version":"1.0","data":[{"generation":"0","totalPopulation":10,"resistantCount":1}]}`,
	}
	for _, body := range cases {
		_, err := svc.Import(ctx, strings.NewReader(body))
		assert.Equal(t, CodeInvalidImport, serviceCode(err), body)
	}

	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list, "nothing is stored for rejected files")
}

func TestSessionService_ExportToSink(t *testing.T) {
	env, svc, sink := newSessionEnv(t)
	ctx := context.Background()
	env.runSimulation(t, "sim-1", 4)

	sess, err := svc.Save(ctx, &models.SaveSessionRequest{SimulationID: "sim-1"})
	require.NoError(t, err)

	resp, err := svc.ExportToSink(ctx, sess.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, "memory", resp.Driver)
	assert.True(t, strings.HasPrefix(resp.Key, "sessions/"))

	objects, err := sink.List(ctx, "sessions/")
	require.NoError(t, err)
	require.Len(t, objects, 1)

	resp, err = svc.ExportToSink(ctx, sess.ID, &models.ExportRequest{Key: "archive"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(resp.Key, "archive/"))

	noSink := NewSessionService(env.logger, env.store, env.registry, nil, nil)
	_, err = noSink.ExportToSink(ctx, sess.ID, nil)
	assert.Equal(t, CodeUnavailable, serviceCode(err))
}

func TestSessionService_Restore(t *testing.T) {
	env, svc, _ := newSessionEnv(t)
	ctx := context.Background()
	env.runSimulation(t, "sim-1", 5)

	sess, err := svc.Save(ctx, &models.SaveSessionRequest{SimulationID: "sim-1"})
	require.NoError(t, err)

	info, err := svc.Restore(ctx, sess.ID, &models.RestoreRequest{SimulationID: "replay"})
	require.NoError(t, err)
	assert.Equal(t, "replay", info.SimulationID)
	assert.Equal(t, 5, info.Points)
	assert.Equal(t, 4, info.LastGeneration)
	assert.Equal(t, "idle", info.State)

	info, err = svc.Restore(ctx, sess.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, "sim-1", info.SimulationID)

	_, err = svc.Restore(ctx, sess.ID, &models.RestoreRequest{SimulationID: "bad.id"})
	assert.Equal(t, CodeInvalidRequest, serviceCode(err))
}

func TestMetadata(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	data := []models.DataPoint{
		{Generation: 0, Timestamp: "2026-03-01T08:00:00Z"},
		{Generation: 9, Timestamp: "2026-03-01T08:30:00Z"},
	}

	meta := Metadata(data, models.StatusCompleted, nil, now)
	assert.Equal(t, 10, meta.TotalGenerations)
	assert.Equal(t, "2026-03-01T08:00:00Z", meta.StartTime)
	assert.Equal(t, "2026-03-01T08:30:00Z", meta.EndTime)

	meta = Metadata(data, models.StatusRunning, nil, now)
	assert.Empty(t, meta.EndTime)

	meta = Metadata(nil, models.StatusCompleted, nil, now)
	assert.Equal(t, 0, meta.TotalGenerations)
	assert.Equal(t, "2026-03-01T09:00:00Z", meta.StartTime)
}
