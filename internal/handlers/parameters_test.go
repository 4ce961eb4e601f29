package handlers

import (
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bactolab/resistscope/internal/models"
)

func TestHandler_ValidateParameters(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, http.MethodPost, "/v1/parameters/validate", models.DefaultParameters())
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var out models.ValidationResponse
	decode(t, resp, &out)
	assert.True(t, out.Valid)
	assert.Empty(t, out.Errors)

	bad := models.DefaultParameters()
	bad.InitialPopulation = 0
	bad.MutationRate = 2
	resp = s.do(t, http.MethodPost, "/v1/parameters/validate", bad)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	out = models.ValidationResponse{}
	decode(t, resp, &out)
	assert.False(t, out.Valid)
	assert.Contains(t, out.Errors, "initialPopulation")
	assert.Contains(t, out.Errors, "mutationRate")
}

func TestHandler_Draft(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, http.MethodGet, "/v1/parameters/draft", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "false", resp.Header.Get("X-Draft-Found"))
	var params models.SimulationParameters
	decode(t, resp, &params)
	assert.Equal(t, models.DefaultParameters(), params)

	draft := models.DefaultParameters()
	draft.Generations = 250
	resp = s.do(t, http.MethodPut, "/v1/parameters/draft", draft)
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/v1/parameters/draft", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "true", resp.Header.Get("X-Draft-Found"))
	decode(t, resp, &params)
	assert.Equal(t, 250, params.Generations)

	resp = s.do(t, http.MethodDelete, "/v1/parameters/draft", nil)
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/v1/parameters/draft", nil)
	assert.Equal(t, "false", resp.Header.Get("X-Draft-Found"))
}

func TestHandler_GetDefaultParameters(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, http.MethodGet, "/v1/parameters/defaults", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var params models.SimulationParameters
	decode(t, resp, &params)
	assert.Equal(t, 1000, params.InitialPopulation)
}
