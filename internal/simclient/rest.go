// Package simclient talks to the simulation engine: REST for polling
// updates and status, WebSocket for the live spatial feed.
package simclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/bactolab/resistscope/internal/logging"
	"github.com/bactolab/resistscope/internal/models"
	"github.com/bactolab/resistscope/internal/utils"
)

var restLog = logging.Global().With("component", "simclient.rest")

// RESTClient polls the simulation engine's HTTP API
type RESTClient struct {
	baseURL string
	timeout time.Duration
}

// NewRESTClient creates a client for baseURL (e.g. http://localhost:8000)
func NewRESTClient(baseURL string, timeout time.Duration) *RESTClient {
	if timeout <= 0 {
		timeout = utils.DefaultRequestTimeout
	}
	return &RESTClient{baseURL: strings.TrimRight(baseURL, "/"), timeout: timeout}
}

func (c *RESTClient) endpoint(simulationID, suffix string) string {
	return fmt.Sprintf("%s/api/simulations/%s/%s", c.baseURL, url.PathEscape(simulationID), suffix)
}

func (c *RESTClient) get(target string) ([]byte, error) {
	agent := fiber.Get(target)
	agent.Timeout(c.timeout)
	agent.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return nil, fmt.Errorf("request %s failed: %w", target, errors.Join(errs...))
	}
	if code < 200 || code >= 300 {
		return nil, fmt.Errorf("request %s returned status %d", target, code)
	}
	return body, nil
}

// FetchUpdates returns the updates the engine has produced so far. The body
// may be a single record or an array; every record is validated.
func (c *RESTClient) FetchUpdates(simulationID string) ([]*models.SimulationUpdate, error) {
	body, err := c.get(c.endpoint(simulationID, "updates"))
	if err != nil {
		return nil, err
	}
	updates, err := models.ParseUpdates(body)
	if err != nil {
		return nil, fmt.Errorf("simulation %s: %w", simulationID, err)
	}
	restLog.Debug("Fetched updates", "simulation_id", simulationID, "count", len(updates))
	return updates, nil
}

type statusBody struct {
	Status models.SimulationStatus `json:"status"`
}

// FetchStatus returns the engine's current status for the simulation
func (c *RESTClient) FetchStatus(simulationID string) (models.SimulationStatus, error) {
	body, err := c.get(c.endpoint(simulationID, "status"))
	if err != nil {
		return "", err
	}

	var sb statusBody
	if err := json.Unmarshal(body, &sb); err != nil {
		return "", fmt.Errorf("invalid status payload: %w", err)
	}
	if !sb.Status.IsValid() {
		return "", fmt.Errorf("unknown simulation status %q", sb.Status)
	}
	return sb.Status, nil
}
