package simclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bactolab/resistscope/internal/models"
)

func TestRESTClient_FetchUpdates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/simulations/sim-1/updates":
			_, _ = w.Write([]byte(`[
				{"generation":0,"population_size":100,"resistant_count":10,"antibiotic_concentration":1},
				{"generation":1,"population_size":110,"resistant_count":15,"antibiotic_concentration":1,"mutation_rate":0.01}
			]`))
		case "/api/simulations/sim-1/status":
			_, _ = w.Write([]byte(`{"status":"running"}`))
		case "/api/simulations/bad/updates":
			_, _ = w.Write([]byte(`{"generation":0,"population_size":10,"resistant_count":20}`))
		case "/api/simulations/odd/status":
			_, _ = w.Write([]byte(`{"status":"exploded"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := NewRESTClient(srv.URL+"/", time.Second)

	updates, err := client.FetchUpdates("sim-1")
	require.NoError(t, err)
	require.Len(t, updates, 2)
	assert.Equal(t, 110, updates[1].PopulationSize)
	require.NotNil(t, updates[1].MutationRate)

	status, err := client.FetchStatus("sim-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRunning, status)

	_, err = client.FetchUpdates("bad")
	assert.Error(t, err, "resistant > population must be rejected")

	_, err = client.FetchStatus("odd")
	assert.Error(t, err)

	_, err = client.FetchUpdates("missing")
	assert.Error(t, err)
}

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

func wsURL(srv *httptest.Server) func(string) string {
	return func(id string) string {
		return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/spatial/" + id
	}
}

func readHandshake(t *testing.T, conn *websocket.Conn) models.WSMessage {
	t.Helper()
	var msg models.WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Errorf("failed to read handshake: %v", err)
	}
	return msg
}

func sendFrame(conn *websocket.Conn, msgType string, data string) {
	_ = conn.WriteJSON(models.WSMessage{Type: msgType, Data: json.RawMessage(data)})
}

func closeNormally(conn *websocket.Conn) {
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
	_, _, _ = conn.ReadMessage()
	_ = conn.Close()
}

type recorder struct {
	mu   sync.Mutex
	msgs []models.WSMessage
}

func (r *recorder) handle(_ context.Context, msg *models.WSMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, *msg)
	return nil
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.msgs))
	for i, m := range r.msgs {
		out[i] = m.Type
	}
	return out
}

func TestWSClient_HandshakeAndDispatch(t *testing.T) {
	handshakes := make(chan models.WSMessage, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ws/spatial/sim-1", r.URL.Path)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		handshakes <- readHandshake(t, conn)
		sendFrame(conn, models.WSSimulationUpdate, `{"generation":0,"population_size":100,"resistant_count":10}`)
		_ = conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		sendFrame(conn, models.WSGridStats, `{"occupied":12}`)
		closeNormally(conn)
	}))
	defer srv.Close()

	rec := &recorder{}
	client := NewWSClient(wsURL(srv), WSConfig{ReconnectDelay: 10 * time.Millisecond, MaxReconnects: 2})

	err := client.Run(context.Background(), "sim-1", rec.handle)
	require.NoError(t, err)

	handshake := <-handshakes
	assert.Equal(t, models.WSGetSpatialData, handshake.Type)
	assert.Equal(t, "sim-1", handshake.SimulationID)
	assert.JSONEq(t, `{"type":"get_spatial_data"}`, string(handshake.Data))
	assert.NotEmpty(t, handshake.Timestamp)

	assert.Equal(t, []string{models.WSSimulationUpdate, models.WSGridStats}, rec.types())
	assert.Equal(t, "sim-1", rec.msgs[0].SimulationID, "missing simulation id should be filled in")
}

func TestWSClient_ReconnectsAfterUncleanClose(t *testing.T) {
	var connections int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		readHandshake(t, conn)
		if atomic.AddInt32(&connections, 1) == 1 {
			// drop without a close frame
			_ = conn.Close()
			return
		}
		sendFrame(conn, models.WSSpatialUpdate, `{"cells":[]}`)
		closeNormally(conn)
	}))
	defer srv.Close()

	var reconnects int32
	rec := &recorder{}
	client := NewWSClient(wsURL(srv), WSConfig{
		ReconnectDelay: 10 * time.Millisecond,
		MaxReconnects:  3,
		OnReconnect:    func(string, int) { atomic.AddInt32(&reconnects, 1) },
	})

	require.NoError(t, client.Run(context.Background(), "sim-2", rec.handle))
	assert.Equal(t, int32(2), atomic.LoadInt32(&connections))
	assert.Equal(t, int32(1), atomic.LoadInt32(&reconnects))
	assert.Equal(t, []string{models.WSSpatialUpdate}, rec.types())
}

func TestWSClient_GivesUpAfterMaxReconnects(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	target := wsURL(srv)
	srv.Close()

	var attempts []int
	client := NewWSClient(target, WSConfig{
		ReconnectDelay: 5 * time.Millisecond,
		MaxReconnects:  3,
		OnReconnect:    func(_ string, attempt int) { attempts = append(attempts, attempt) },
	})

	start := time.Now()
	err := client.Run(context.Background(), "sim-3", (&recorder{}).handle)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrReconnectsExhausted), err.Error())
	assert.Equal(t, []int{1, 2, 3}, attempts)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestWSClient_CancelStopsRun(t *testing.T) {
	connected := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		readHandshake(t, conn)
		close(connected)
		// hold the connection until the client closes it
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	client := NewWSClient(wsURL(srv), WSConfig{ReconnectDelay: time.Hour, MaxReconnects: 5})

	done := make(chan error, 1)
	go func() { done <- client.Run(ctx, "sim-4", (&recorder{}).handle) }()

	select {
	case <-connected:
	case <-time.After(5 * time.Second):
		t.Fatal("client never connected")
	}
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestWSClient_ZeroReconnects(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	target := wsURL(srv)
	srv.Close()

	called := false
	client := NewWSClient(target, WSConfig{MaxReconnects: 0, OnReconnect: func(string, int) { called = true }})

	err := client.Run(context.Background(), "sim-5", (&recorder{}).handle)
	assert.True(t, errors.Is(err, ErrReconnectsExhausted))
	assert.False(t, called)
}
