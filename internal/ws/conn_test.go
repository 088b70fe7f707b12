package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/haftomg96/MVP-chat-app/internal/config"
	"github.com/haftomg96/MVP-chat-app/internal/models"
	"github.com/haftomg96/MVP-chat-app/internal/presence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

// tokenVerifier accepts the credentials it was built with.
type tokenVerifier map[string]string

func (v tokenVerifier) Verify(_ context.Context, credential string) (models.User, bool) {
	id, ok := v[credential]
	if !ok {
		return models.User{}, false
	}
	return models.User{ID: id}, true
}

var verifier = tokenVerifier{"tok-1": "u1", "tok-2": "u2"}

func startServer(t *testing.T, cfg config.Config) string {
	t.Helper()
	h, _ := startHub(t)
	r := gin.New()
	r.GET("/ws", Serve(h, verifier, cfg))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func write(t *testing.T, conn *websocket.Conn, typ string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(presence.Frame{Type: typ, Data: raw}))
}

func read(t *testing.T, conn *websocket.Conn) presence.Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f presence.Frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func login(t *testing.T, url, token string) *websocket.Conn {
	t.Helper()
	conn := dial(t, url)
	write(t, conn, presence.KindAuthenticate, token)
	require.Equal(t, presence.OutUserStatus, read(t, conn).Type)
	require.Equal(t, presence.OutOnlineUsers, read(t, conn).Type)
	return conn
}

var testCfg = config.Config{WsSendBuffer: 16}

func TestServe_AuthenticateThenSnapshot(t *testing.T) {
	url := startServer(t, testCfg)
	c1 := login(t, url, "tok-1")

	c2 := dial(t, url)
	write(t, c2, presence.KindAuthenticate, "Bearer tok-2")

	var st presence.UserStatus
	require.NoError(t, json.Unmarshal(read(t, c2).Data, &st))
	assert.Equal(t, presence.UserStatus{UserID: "u2", Online: true}, st)

	f := read(t, c2)
	require.Equal(t, presence.OutOnlineUsers, f.Type)
	var snap presence.OnlineUsers
	require.NoError(t, json.Unmarshal(f.Data, &snap))
	assert.ElementsMatch(t, []string{"u1", "u2"}, snap.OnlineUserIDs)

	f = read(t, c1)
	require.Equal(t, presence.OutUserStatus, f.Type)
	require.NoError(t, json.Unmarshal(f.Data, &st))
	assert.Equal(t, presence.UserStatus{UserID: "u2", Online: true}, st)
}

func TestServe_RejectedCredentialCanRetry(t *testing.T) {
	url := startServer(t, testCfg)
	conn := dial(t, url)

	write(t, conn, presence.KindAuthenticate, "nope")
	f := read(t, conn)
	require.Equal(t, presence.OutAuthFailed, f.Type)
	var af presence.AuthFailed
	require.NoError(t, json.Unmarshal(f.Data, &af))
	assert.NotEmpty(t, af.Reason)

	write(t, conn, presence.KindAuthenticate, "tok-1")
	assert.Equal(t, presence.OutUserStatus, read(t, conn).Type)
	assert.Equal(t, presence.OutOnlineUsers, read(t, conn).Type)
}

func TestServe_RoutesMessageAndTyping(t *testing.T) {
	url := startServer(t, testCfg)
	c1 := login(t, url, "tok-1")
	c2 := login(t, url, "tok-2")
	read(t, c1) // u2 online

	msg := map[string]any{"id": "m1", "senderId": "u1", "receiverId": "u2", "content": "hello", "type": "text"}
	write(t, c1, presence.KindSendMessage, msg)
	f := read(t, c2)
	assert.Equal(t, presence.OutReceiveMessage, f.Type)
	want, _ := json.Marshal(msg)
	assert.JSONEq(t, string(want), string(f.Data))

	write(t, c2, presence.KindTyping, map[string]any{"senderId": "u2", "receiverId": "u1", "isTyping": true})
	f = read(t, c1)
	assert.Equal(t, presence.OutUserTyping, f.Type)

	write(t, c2, presence.KindMessageRead, map[string]any{"messageId": "m1", "senderId": "u1", "receiverId": "u2"})
	assert.Equal(t, presence.OutMessageRead, read(t, c1).Type)
}

func TestServe_SpoofedSenderDropped(t *testing.T) {
	url := startServer(t, testCfg)
	c1 := login(t, url, "tok-1")
	c2 := login(t, url, "tok-2")
	read(t, c1)

	write(t, c1, presence.KindSendMessage, map[string]any{"senderId": "u2", "receiverId": "u1", "content": "x"})
	forged := `{"type":"send-message","data":{"senderId":"u2","SenderID":"u1","receiverId":"u2","content":"forged"}}`
	require.NoError(t, c1.WriteMessage(websocket.TextMessage, []byte(forged)))
	write(t, c1, presence.KindSendMessage, map[string]any{"senderId": "u1", "receiverId": "u2", "content": "real"})

	f := read(t, c2)
	var got map[string]any
	require.NoError(t, json.Unmarshal(f.Data, &got))
	assert.Equal(t, "real", got["content"])
}

func TestServe_DisconnectAnnouncesOffline(t *testing.T) {
	url := startServer(t, testCfg)
	c1 := login(t, url, "tok-1")
	c2 := login(t, url, "tok-2")
	read(t, c1)

	require.NoError(t, c2.Close())

	f := read(t, c1)
	var st presence.UserStatus
	require.NoError(t, json.Unmarshal(f.Data, &st))
	assert.Equal(t, presence.UserStatus{UserID: "u2", Online: false}, st)
}

func TestServe_SecondLoginSupersedesFirst(t *testing.T) {
	url := startServer(t, testCfg)
	peer := login(t, url, "tok-2")
	old := login(t, url, "tok-1")
	read(t, peer) // u1 online

	fresh := login(t, url, "tok-1")
	read(t, peer) // u1 online again

	require.NoError(t, old.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := old.ReadMessage()
	require.Error(t, err, "superseded socket must be closed")

	// the stale socket's teardown must not mark u1 offline
	write(t, peer, presence.KindTyping, map[string]any{"senderId": "u2", "receiverId": "u1", "isTyping": true})
	assert.Equal(t, presence.OutUserTyping, read(t, fresh).Type)
}

func TestServe_AuthTimeoutClosesSocket(t *testing.T) {
	url := startServer(t, config.Config{WsSendBuffer: 16, WsAuthTimeoutSeconds: 1})
	conn := dial(t, url)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	var ne net.Error
	if errors.As(err, &ne) {
		assert.False(t, ne.Timeout(), "socket should be closed by the server, not by the read deadline")
	}
}

func TestServe_OriginPolicy(t *testing.T) {
	url := startServer(t, config.Config{WsSendBuffer: 16, Env: "prod"})
	host := strings.TrimSuffix(strings.TrimPrefix(url, "ws://"), "/ws")

	tests := []struct {
		name   string
		origin string
		wantOK bool
	}{
		{"no origin", "", true},
		{"same host", "http://" + host, true},
		{"foreign origin", "https://evil.example.com", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			if tt.origin != "" {
				header.Set("Origin", tt.origin)
			}
			conn, resp, err := websocket.DefaultDialer.Dial(url, header)
			if !tt.wantOK {
				assert.ErrorIs(t, err, websocket.ErrBadHandshake)
				require.NotNil(t, resp)
				assert.Equal(t, http.StatusForbidden, resp.StatusCode)
				return
			}
			require.NoError(t, err)
			_ = conn.Close()
		})
	}
}
