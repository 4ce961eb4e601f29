package handlers

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bactolab/resistscope/internal/models"
	"github.com/bactolab/resistscope/internal/services"
)

func (s *testServer) saveSession(t *testing.T, simulationID string) string {
	t.Helper()
	resp := s.do(t, http.MethodPost, "/v1/sessions", models.SaveSessionRequest{SimulationID: simulationID})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var saved models.SessionSavedResponse
	decode(t, resp, &saved)
	require.NotEmpty(t, saved.ID)
	return saved.ID
}

func TestHandler_SaveAndGetSession(t *testing.T) {
	s := newTestServer(t)
	s.runSimulation(t, "sim-1", 12)

	id := s.saveSession(t, "sim-1")

	resp := s.do(t, http.MethodGet, "/v1/sessions/"+id, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var sess models.Session
	decode(t, resp, &sess)
	assert.Equal(t, id, sess.ID)
	assert.Equal(t, "sim-1", sess.SimulationID)
	assert.Len(t, sess.Data, 12)
	assert.Equal(t, 12, sess.Metadata.TotalGenerations)
	assert.Empty(t, sess.Metadata.EndTime, "a running simulation has no end time")

	resp = s.do(t, http.MethodGet, "/v1/sessions/latest", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decode(t, resp, &sess)
	assert.Equal(t, id, sess.ID)
}

func TestHandler_SaveSession_Errors(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, http.MethodPost, "/v1/sessions", `{}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = s.do(t, http.MethodPost, "/v1/sessions", models.SaveSessionRequest{SimulationID: "ghost"})
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/v1/sessions/latest", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/v1/sessions/nope", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestHandler_ListDeleteClearSessions(t *testing.T) {
	s := newTestServer(t)
	s.runSimulation(t, "sim-1", 3)

	first := s.saveSession(t, "sim-1")
	second := s.saveSession(t, "sim-1")

	resp := s.do(t, http.MethodGet, "/v1/sessions", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var list models.SessionListResponse
	decode(t, resp, &list)
	require.Len(t, list.Sessions, 2)
	assert.Equal(t, second, list.Sessions[0].ID, "newest session first")
	assert.Equal(t, 3, list.Sessions[0].PointCount)

	resp = s.do(t, http.MethodDelete, "/v1/sessions/"+first, nil)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	resp = s.do(t, http.MethodDelete, "/v1/sessions/"+first, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp = s.do(t, http.MethodDelete, "/v1/sessions", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var cleared map[string]int
	decode(t, resp, &cleared)
	assert.Equal(t, 1, cleared["removed"])
}

func TestHandler_ExportImportSession(t *testing.T) {
	s := newTestServer(t)
	s.runSimulation(t, "sim-1", 8)
	id := s.saveSession(t, "sim-1")

	resp := s.do(t, http.MethodGet, "/v1/sessions/"+id+"/export", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "attachment")
	assert.Contains(t, resp.Header.Get("Content-Disposition"), ".json")

	file, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NotEmpty(t, file)

	// raw body import
	resp = s.do(t, http.MethodPost, "/v1/sessions/import", file)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var imported models.SessionSavedResponse
	decode(t, resp, &imported)
	assert.NotEqual(t, id, imported.ID)

	// multipart import
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "session.json")
	require.NoError(t, err)
	_, err = part.Write(file)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/sessions/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err = s.app.Test(req, 5000)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/v1/sessions", nil)
	var list models.SessionListResponse
	decode(t, resp, &list)
	assert.Len(t, list.Sessions, 3)
}

func TestHandler_ImportSession_Invalid(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, http.MethodPost, "/v1/sessions/import", `{"hello":"world"}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var errResp models.ErrorResponse
	decode(t, resp, &errResp)
	assert.Equal(t, services.CodeInvalidImport, errResp.Error.Code)

	resp = s.do(t, http.MethodPost, "/v1/sessions/import", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestHandler_ExportSessionToSink(t *testing.T) {
	s := newTestServer(t)
	s.runSimulation(t, "sim-1", 4)
	id := s.saveSession(t, "sim-1")

	resp := s.do(t, http.MethodPost, "/v1/sessions/"+id+"/export", models.ExportRequest{Key: "archive"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var out models.ExportResponse
	decode(t, resp, &out)
	assert.Equal(t, "memory", out.Driver)
	assert.True(t, strings.HasPrefix(out.Key, "archive/"), out.Key)

	infos, err := s.sink.List(context.Background(), "archive/")
	require.NoError(t, err)
	assert.Len(t, infos, 1)

	resp = s.do(t, http.MethodPost, "/v1/sessions/missing/export", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestHandler_RestoreSession(t *testing.T) {
	s := newTestServer(t)
	s.runSimulation(t, "sim-1", 6)
	id := s.saveSession(t, "sim-1")

	resp := s.do(t, http.MethodPost, "/v1/sessions/"+id+"/restore", models.RestoreRequest{SimulationID: "replay-1"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var info models.SimulationInfo
	decode(t, resp, &info)
	assert.Equal(t, "replay-1", info.SimulationID)
	assert.Equal(t, 6, info.Points)
	assert.Equal(t, "idle", info.State)

	resp = s.do(t, http.MethodGet, "/v1/simulations/replay-1/data?downsampling=none", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var chart models.ChartResponse
	decode(t, resp, &chart)
	assert.Equal(t, 6, chart.Count)
}

func TestHandler_ReservedSessionIDs(t *testing.T) {
	s := newTestServer(t)
	s.runSimulation(t, "sim-1", 4)

	resp := s.do(t, http.MethodPut, "/v1/parameters/draft", models.DefaultParameters())
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	for _, sid := range []string{"draft", "index"} {
		resp = s.do(t, http.MethodGet, "/v1/sessions/"+sid, nil)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, sid)

		resp = s.do(t, http.MethodDelete, "/v1/sessions/"+sid, nil)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, sid)

		resp = s.do(t, http.MethodPost, "/v1/sessions/"+sid+"/restore", models.RestoreRequest{SimulationID: "sim-1"})
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, sid)
	}

	var info models.SimulationInfo
	decode(t, s.do(t, http.MethodGet, "/v1/simulations/sim-1", nil), &info)
	assert.Equal(t, 4, info.Points, "a rejected restore must leave the live buffer alone")

	resp = s.do(t, http.MethodGet, "/v1/parameters/draft", nil)
	assert.Equal(t, "true", resp.Header.Get("X-Draft-Found"))
}
