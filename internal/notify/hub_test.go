package notify

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agent-curve-engine/internal/domain"
)

func dialHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHub_BroadcastTrade(t *testing.T) {
	hub := NewHub(nil, nil)
	defer hub.Close()
	conn := dialHub(t, hub)

	// The registration races the broadcast; wait for the subscriber.
	require.Eventually(t, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		return len(hub.clients) == 1
	}, time.Second, 10*time.Millisecond)

	hub.TradeExecuted(&domain.TradeRecord{
		TradeID: "t1",
		AgentID: "agent1",
		Side:    domain.TradeBuy,
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var event Event
	require.NoError(t, json.Unmarshal(payload, &event))
	assert.Equal(t, "trade", event.Type)
	assert.Equal(t, "agent1", event.AgentID)
}

func TestHub_BroadcastGraduation(t *testing.T) {
	hub := NewHub(nil, nil)
	defer hub.Close()
	conn := dialHub(t, hub)

	require.Eventually(t, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		return len(hub.clients) == 1
	}, time.Second, 10*time.Millisecond)

	hub.GraduationCompleted(&domain.GraduationEvent{
		EventID: "ev1",
		AgentID: "agent1",
		Status:  domain.GraduationCompleted,
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var event Event
	require.NoError(t, json.Unmarshal(payload, &event))
	assert.Equal(t, "graduation", event.Type)
}

func TestHub_CloseDisconnectsClients(t *testing.T) {
	hub := NewHub(nil, nil)
	conn := dialHub(t, hub)

	require.Eventually(t, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		return len(hub.clients) == 1
	}, time.Second, 10*time.Millisecond)

	hub.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err) // close frame or EOF

	// Broadcasting after close is a no-op.
	hub.TradeExecuted(&domain.TradeRecord{TradeID: "t1", AgentID: "agent1"})
}
