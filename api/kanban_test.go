package api

import (
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialBoard(t *testing.T, server *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/kanban" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readText(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	return string(data)
}

func TestKanbanSocket_BroadcastsToEverySession(t *testing.T) {
	a := newTestAPI(t)
	server := httptest.NewServer(a.router)
	defer server.Close()

	first := dialBoard(t, server, "")
	second := dialBoard(t, server, "")
	require.Eventually(t, func() bool { return a.handler.Hub.Count() == 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, first.WriteMessage(websocket.TextMessage,
		[]byte(`{"action":"create_column","column":{"title":"Backlog","tag_color":"#fff"}}`)))

	want := `{"action":"create_column","column":{"id":1,"title":"Backlog","tag_color":"#fff","tasks":[]}}`
	assert.JSONEq(t, want, readText(t, first))
	assert.JSONEq(t, want, readText(t, second))
}

func TestKanbanSocket_QueriesReplyToRequesterOnly(t *testing.T) {
	a := newTestAPI(t)
	server := httptest.NewServer(a.router)
	defer server.Close()

	first := dialBoard(t, server, "")
	second := dialBoard(t, server, "")
	require.Eventually(t, func() bool { return a.handler.Hub.Count() == 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, first.WriteMessage(websocket.TextMessage, []byte(`{"action":"get_cards"}`)))
	assert.JSONEq(t, `{"action":"get_cards","kanban_cards":[]}`, readText(t, first))

	require.NoError(t, second.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := second.ReadMessage()
	var netErr net.Error
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Timeout())
}

func TestKanbanSocket_ProtocolErrorKeepsSessionOpen(t *testing.T) {
	a := newTestAPI(t)
	server := httptest.NewServer(a.router)
	defer server.Close()

	conn := dialBoard(t, server, "")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	assert.Contains(t, readText(t, conn), `"error"`)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"action":"get_columns"}`)))
	assert.JSONEq(t, `{"action":"get_columns","columns":[]}`, readText(t, conn))
}

func TestKanbanSocket_SessionEvictedOnDisconnect(t *testing.T) {
	a := newTestAPI(t)
	server := httptest.NewServer(a.router)
	defer server.Close()

	conn := dialBoard(t, server, "")
	require.Eventually(t, func() bool { return a.handler.Hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	conn.Close()

	require.Eventually(t, func() bool { return a.handler.Hub.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestKanbanSocket_RequireAuth(t *testing.T) {
	a := newTestAPI(t)
	a.handler.RequireSocketAuth = true
	server := httptest.NewServer(a.router)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/kanban"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	user, token := a.user(t, "ann@example.com")
	conn := dialBoard(t, server, "?token="+token)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"action":"create_column","column":{"title":"Backlog","tag_color":"#fff"}}`)))
	readText(t, conn)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"action":"create_card","kanban_card":{"name":"Acme","company":"Acme","phone":"1","comment":"","task":"","column_id":1}}`)))
	readText(t, conn)

	var owner *uint
	require.NoError(t, a.handler.DB.Table("kanban_cards").Select("user_id").Row().Scan(&owner))
	require.NotNil(t, owner)
	assert.Equal(t, user.ID, *owner)
}
