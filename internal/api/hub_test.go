package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orbitwatch/internal/domain"
	"orbitwatch/internal/storage/memory"
)

func newStreamEnv(t *testing.T, allowedOrigins []string) (*Hub, string) {
	t.Helper()

	hub := NewHub(allowedOrigins, zerolog.Nop())
	srv := NewServer(Options{
		Signals:    memory.NewSignalStore(),
		Divergence: memory.NewDivergenceStore(),
		Baselines:  memory.NewBaselineStore(),
		Hub:        hub,
		Logger:     zerolog.Nop(),
	})

	server := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		server.Close()
		hub.Close()
	})

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/stream/signals"
	return hub, wsURL
}

func readFrame(t *testing.T, conn *websocket.Conn) streamFrame {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var frame streamFrame
	require.NoError(t, json.Unmarshal(msg, &frame))
	return frame
}

func TestHub_DeliversPublishedSignals(t *testing.T) {
	hub, wsURL := newStreamEnv(t, nil)

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	defer resp.Body.Close()

	// The hello frame confirms registration: it is queued before the
	// client is added and the writer only starts afterwards.
	hello := readFrame(t, conn)
	assert.Equal(t, "connected", hello.Type)
	assert.Nil(t, hello.Signal)
	assert.Equal(t, 1, hub.ClientCount())

	detectedAt := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	hub.Publish(testStreamSignal("fp-stream", detectedAt))

	frame := readFrame(t, conn)
	require.Equal(t, "signal", frame.Type)
	require.NotNil(t, frame.Signal)
	assert.Equal(t, "fp-stream", frame.Signal.Fingerprint)
	assert.Equal(t, domain.AnomalyOrbitManeuver, frame.Signal.AnomalyType)
	assert.Equal(t, domain.SeverityHigh, frame.Signal.Severity)
	assert.Equal(t, 25544, frame.Signal.ObjectID)
	assert.True(t, frame.Signal.DetectedAt.Equal(detectedAt))
}

func TestHub_FansOutToAllClients(t *testing.T) {
	hub, wsURL := newStreamEnv(t, nil)

	var conns []*websocket.Conn
	for i := 0; i < 3; i++ {
		conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.NoError(t, err)
		resp.Body.Close()
		defer conn.Close()

		assert.Equal(t, "connected", readFrame(t, conn).Type)
		conns = append(conns, conn)
	}
	assert.Equal(t, 3, hub.ClientCount())

	hub.Publish(testStreamSignal("fp-fanout", time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)))

	for _, conn := range conns {
		frame := readFrame(t, conn)
		require.Equal(t, "signal", frame.Type)
		assert.Equal(t, "fp-fanout", frame.Signal.Fingerprint)
	}
}

func TestHub_UnregistersOnDisconnect(t *testing.T) {
	hub, wsURL := newStreamEnv(t, nil)

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "connected", readFrame(t, conn).Type)
	require.Equal(t, 1, hub.ClientCount())

	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool {
		return hub.ClientCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHub_CloseIsIdempotentAndRejectsNewClients(t *testing.T) {
	hub, wsURL := newStreamEnv(t, nil)

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	resp.Body.Close()
	defer conn.Close()
	assert.Equal(t, "connected", readFrame(t, conn).Type)

	hub.Close()
	hub.Close()
	assert.Equal(t, 0, hub.ClientCount())

	// Publishing into a closed hub is a no-op.
	hub.Publish(testStreamSignal("fp-after-close", time.Now().UTC()))

	// The connected peer gets a going-away close frame.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway))

	// New handshakes are refused outright.
	httpURL := "http" + strings.TrimPrefix(wsURL, "ws")
	httpResp, err := http.Get(httpURL)
	require.NoError(t, err)
	defer httpResp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, httpResp.StatusCode)
}

func TestHub_ChecksOrigin(t *testing.T) {
	_, wsURL := newStreamEnv(t, []string{"https://dashboard.example.com"})

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{
		"Origin": {"https://evil.example.com"},
	})
	require.Error(t, err)
	if resp != nil {
		resp.Body.Close()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	}

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{
		"Origin": {"https://dashboard.example.com"},
	})
	require.NoError(t, err)
	defer conn.Close()
	resp.Body.Close()
	assert.Equal(t, "connected", readFrame(t, conn).Type)
}
