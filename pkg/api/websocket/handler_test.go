package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/duragraph/duragraph/pkg/adapters/events/memory"
	"github.com/duragraph/duragraph/pkg/domain"
)

func newStreamServer(t *testing.T) (*memory.Bus, *httptest.Server, chan struct{}) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	bus := memory.NewBus()
	h := NewHandler(bus, zap.NewNop())

	done := make(chan struct{})
	router := gin.New()
	router.GET("/api/v1/runs/:id/ws", func(c *gin.Context) {
		h.HandleRunStream(c)
		close(done)
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return bus, srv, done
}

func dialStream(t *testing.T, srv *httptest.Server, runID string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/runs/" + runID + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn
}

func waitSubscribed(t *testing.T, bus *memory.Bus, runID string) {
	t.Helper()

	require.Eventually(t, func() bool {
		return bus.Subscribers(domain.EventSubject(runID)) == 1
	}, time.Second, 10*time.Millisecond, "stream never subscribed to run events")
}

func TestRunStreamDeliversEvents(t *testing.T) {
	bus, srv, _ := newStreamServer(t)
	conn := dialStream(t, srv, "r1")
	defer conn.Close()

	waitSubscribed(t, bus, "r1")

	require.NoError(t, bus.Publish(context.Background(), domain.EventSubject("r1"), domain.Event{
		ID:    "e1",
		Type:  domain.EventTypeRunCreated,
		RunID: "r1",
	}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var event domain.Event
	require.NoError(t, json.Unmarshal(data, &event))
	assert.Equal(t, "e1", event.ID)
	assert.Equal(t, domain.EventTypeRunCreated, event.Type)
	assert.Equal(t, "r1", event.RunID)
}

func TestRunStreamEndsOnClientDisconnect(t *testing.T) {
	bus, srv, done := newStreamServer(t)
	conn := dialStream(t, srv, "r1")

	waitSubscribed(t, bus, "r1")

	// No events are flowing; closing the client must still end the
	// handler promptly.
	require.NoError(t, conn.Close())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream handler kept running after client disconnect")
	}
}
