package handler

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ieltsprediction/payment-server/internal/pkg/jwt"
	"github.com/ieltsprediction/payment-server/internal/pkg/logger"
	"github.com/ieltsprediction/payment-server/internal/pkg/ws"
)

func setupEventsServer(t *testing.T, origins []string) (*httptest.Server, *ws.Hub) {
	t.Helper()

	hub := ws.NewHub(logger.Discard())
	h := NewPaymentEventsHandler(hub, "jwt-secret", origins, logger.Discard())

	router := gin.New()
	router.GET("/ws", h.Handle)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server, hub
}

func wsURL(server *httptest.Server, token string) string {
	return "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?token=" + token
}

func TestPaymentEventsHandler_Push(t *testing.T) {
	server, hub := setupEventsServer(t, []string{"https://ieltsprediction.test"})

	token, err := jwt.GenerateToken("user-1", "jwt-secret", 1)
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server, token), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.IsOnline("user-1") }, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.SendToUser("user-1", &ws.Message{
		Type: "payment_completed",
		Data: map[string]string{"order_reference": "IELTS PREDICTION 1000"},
	}))

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(data), "IELTS PREDICTION 1000")

	conn.Close()
	assert.Eventually(t, func() bool { return !hub.IsOnline("user-1") }, time.Second, 10*time.Millisecond)
}

func TestPaymentEventsHandler_RejectsBadToken(t *testing.T) {
	server, hub := setupEventsServer(t, nil)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(server, "garbage"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 401, resp.StatusCode)
	assert.Equal(t, 0, hub.ConnectionCount())
}

func TestPaymentEventsHandler_RejectsForeignOrigin(t *testing.T) {
	server, hub := setupEventsServer(t, []string{"https://ieltsprediction.test"})

	token, err := jwt.GenerateToken("user-1", "jwt-secret", 1)
	require.NoError(t, err)

	header := map[string][]string{"Origin": {"https://evil.test"}}
	_, _, err = websocket.DefaultDialer.Dial(wsURL(server, token), header)
	assert.Error(t, err)
	assert.Equal(t, 0, hub.ConnectionCount())
}
