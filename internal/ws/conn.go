package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/haftomg96/MVP-chat-app/internal/auth"
	"github.com/haftomg96/MVP-chat-app/internal/config"
	"github.com/haftomg96/MVP-chat-app/internal/models"
	"github.com/haftomg96/MVP-chat-app/internal/mw"
	"github.com/haftomg96/MVP-chat-app/internal/presence"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxFrameSize   = 1 << 20 // 1MB
	verifyTimeout  = 5 * time.Second
	defaultSendBuf = 256
)

// Verifier resolves a credential presented on the socket.
type Verifier interface {
	Verify(ctx context.Context, credential string) (models.User, bool)
}

// Client is the websocket side of one connection. The send channel is
// written and closed only by the hub loop.
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	sendClosed bool
	pc         *presence.Conn
	remote     string
	log        zerolog.Logger
}

func newClient(h *Hub, conn *websocket.Conn, buf int, remote string) *Client {
	if buf <= 0 {
		buf = defaultSendBuf
	}
	c := &Client{hub: h, conn: conn, send: make(chan []byte, buf), remote: remote}
	c.pc = presence.NewConn(c)
	c.log = h.log.With().Str("remote", remote).Logger()
	return c
}

// Send queues a frame without blocking. A full buffer drops the frame.
func (c *Client) Send(frame []byte) bool {
	if c.sendClosed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Close tears down the transport; the read pump then reports the closure.
func (c *Client) Close() {
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

func (c *Client) closeSend() {
	if !c.sendClosed {
		c.sendClosed = true
		close(c.send)
	}
}

func newUpgrader(env string) *websocket.Upgrader {
	return &websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return mw.OriginAllowed(env, r.Header.Get("Origin"), r.Host)
		},
	}
}

// Serve upgrades the request. The socket starts unauthenticated; the client
// must send an authenticate frame within the configured timeout.
func Serve(h *Hub, v Verifier, cfg config.Config) gin.HandlerFunc {
	upgrader := newUpgrader(cfg.Env)
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			h.log.Debug().Err(err).Msg("upgrade failed")
			return
		}
		client := newClient(h, conn, cfg.WsSendBuffer, c.ClientIP())
		if !h.register(client) {
			_ = conn.Close()
			return
		}
		if d := cfg.WsAuthTimeout(); d > 0 {
			timer := time.AfterFunc(d, func() { h.expire(client) })
			defer timer.Stop()
		}

		go client.writePump()
		client.readPump(v)
	}
}

func (c *Client) readPump(v Verifier) {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug().Err(err).Msg("connection lost")
			}
			return
		}
		var in presence.Frame
		if err := json.Unmarshal(data, &in); err != nil {
			c.log.Debug().Err(err).Msg("malformed frame")
			continue
		}
		if in.Type == presence.KindAuthenticate {
			c.authenticate(v, in.Data)
			continue
		}
		evt, err := presence.DecodeEvent(in.Type, in.Data)
		if err != nil {
			c.log.Debug().Err(err).Msg("frame dropped")
			continue
		}
		c.hub.dispatch(c, evt)
	}
}

// authenticate runs on the read goroutine so a slow session store only
// stalls this connection.
func (c *Client) authenticate(v Verifier, data json.RawMessage) {
	if c.pc.State() != presence.StateUnauthenticated {
		c.log.Debug().Msg("already authenticated, credential ignored")
		return
	}
	var credential string
	if err := json.Unmarshal(data, &credential); err != nil {
		c.hub.reject(c, "malformed credential")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), verifyTimeout)
	defer cancel()
	user, ok := v.Verify(ctx, auth.StripBearer(credential))
	if !ok {
		c.log.Info().Msg("authentication failed")
		c.hub.reject(c, "invalid credential")
		return
	}
	c.hub.authenticate(c, user.ID)
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(message)
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
