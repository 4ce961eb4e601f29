package simclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"github.com/bactolab/resistscope/internal/logging"
	"github.com/bactolab/resistscope/internal/models"
	"github.com/bactolab/resistscope/internal/utils"
)

var wsLog = logging.Global().With("component", "simclient.ws")

// ErrReconnectsExhausted is returned by Run when the server stays unreachable
var ErrReconnectsExhausted = errors.New("websocket reconnect attempts exhausted")

// MessageHandler receives every decoded frame. Returned errors are logged;
// they do not close the connection.
type MessageHandler func(ctx context.Context, msg *models.WSMessage) error

// WSConfig controls the reconnect policy
type WSConfig struct {
	ReconnectDelay time.Duration
	MaxReconnects  int
	WriteTimeout   time.Duration
	// OnReconnect is called before each reconnect attempt, starting at 1
	OnReconnect func(simulationID string, attempt int)
}

// WSClient streams the spatial feed for one simulation at a time per Run call
type WSClient struct {
	urlFor func(simulationID string) string
	cfg    WSConfig
	dialer *websocket.Dialer
	now    func() time.Time
}

// NewWSClient creates a client; urlFor maps a simulation id to its ws(s) URL
func NewWSClient(urlFor func(string) string, cfg WSConfig) *WSClient {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = utils.DefaultReconnectDelay
	}
	if cfg.MaxReconnects < 0 {
		cfg.MaxReconnects = 0
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = utils.WSWriteTimeout
	}
	return &WSClient{
		urlFor: urlFor,
		cfg:    cfg,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		now:    time.Now,
	}
}

// Run connects, sends the spatial-data request and dispatches frames until
// ctx is cancelled or the server closes normally (both return nil). After an
// unclean close it waits ReconnectDelay and reconnects; once MaxReconnects
// consecutive attempts fail it returns ErrReconnectsExhausted.
func (c *WSClient) Run(ctx context.Context, simulationID string, handler MessageHandler) error {
	// WithMaxRetries treats 0 as unlimited, so no reconnects needs StopBackOff
	var base backoff.BackOff = &backoff.StopBackOff{}
	if c.cfg.MaxReconnects > 0 {
		base = backoff.WithMaxRetries(backoff.NewConstantBackOff(c.cfg.ReconnectDelay), uint64(c.cfg.MaxReconnects))
	}
	policy := backoff.WithContext(base, ctx)

	attempt := 0
	for {
		connected, err := c.session(ctx, simulationID, handler)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			wsLog.Info("WebSocket closed by server", "simulation_id", simulationID)
			return nil
		}
		if connected {
			policy.Reset()
			attempt = 0
		}

		wait := policy.NextBackOff()
		if wait == backoff.Stop {
			if ctx.Err() != nil {
				return nil
			}
			wsLog.Error("Giving up on WebSocket", "simulation_id", simulationID, "attempts", attempt, "error", err)
			return fmt.Errorf("%w: %v", ErrReconnectsExhausted, err)
		}

		attempt++
		wsLog.Warn("WebSocket disconnected, reconnecting",
			"simulation_id", simulationID,
			"attempt", attempt,
			"delay", wait.String(),
			"error", err)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
		if c.cfg.OnReconnect != nil {
			c.cfg.OnReconnect(simulationID, attempt)
		}
	}
}

// session runs one connection. connected reports whether the dial succeeded;
// a nil error means the server closed normally.
func (c *WSClient) session(ctx context.Context, simulationID string, handler MessageHandler) (connected bool, err error) {
	target := c.urlFor(simulationID)
	conn, resp, err := c.dialer.DialContext(ctx, target, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return false, fmt.Errorf("dial %s: %w", target, err)
	}
	defer func() { _ = conn.Close() }()

	wsLog.Info("WebSocket connected", "simulation_id", simulationID, "url", target)

	var writeMu sync.Mutex
	write := func(v interface{}) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
		return conn.WriteJSON(v)
	}

	if err := write(models.NewSpatialDataRequest(simulationID, c.now())); err != nil {
		return true, fmt.Errorf("send spatial data request: %w", err)
	}

	// unblock ReadMessage on cancellation
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			writeMu.Lock()
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			writeMu.Unlock()
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return true, nil
			}
			return true, err
		}

		var msg models.WSMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			wsLog.Warn("Dropping malformed frame", "simulation_id", simulationID, "error", err)
			continue
		}
		if msg.SimulationID == "" {
			msg.SimulationID = simulationID
		}
		if err := handler(ctx, &msg); err != nil {
			wsLog.Warn("Failed to handle frame", "simulation_id", simulationID, "type", msg.Type, "error", err)
		}
	}
}
