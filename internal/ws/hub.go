package ws

import (
	"context"
	"sync/atomic"

	"github.com/haftomg96/MVP-chat-app/internal/metrics"
	"github.com/haftomg96/MVP-chat-app/internal/presence"
	"github.com/rs/zerolog"
)

type cmdKind int

const (
	cmdOpen cmdKind = iota
	cmdAuthenticate
	cmdReject
	cmdDispatch
	cmdExpire
	cmdClose
	cmdSnapshot
)

type command struct {
	kind   cmdKind
	client *Client
	userID string
	reason string
	evt    presence.Event
	reply  chan []string
}

// Hub serialises every presence mutation and routing decision through one
// loop. Connection goroutines only submit commands.
type Hub struct {
	inbox   chan command
	done    chan struct{}
	manager *presence.Manager
	clients map[*Client]struct{}
	open    atomic.Int32
	online  atomic.Int32
	log     zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		inbox:   make(chan command, 256),
		done:    make(chan struct{}),
		manager: presence.NewManager(presence.NewRegistry(), log.With().Str("component", "presence").Logger()),
		clients: make(map[*Client]struct{}),
		log:     log,
	}
}

// Run processes commands until ctx is cancelled, then closes every live
// connection and leaves the registry empty.
func (h *Hub) Run(ctx context.Context) {
	h.log.Info().Msg("hub started")
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case cmd := <-h.inbox:
			h.handle(cmd)
		}
	}
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} { return h.done }

func (h *Hub) handle(cmd command) {
	c := cmd.client
	switch cmd.kind {
	case cmdOpen:
		h.clients[c] = struct{}{}
		h.open.Store(int32(len(h.clients)))
		metrics.WsConnections.Inc()
		return
	case cmdSnapshot:
		cmd.reply <- h.manager.Registry().SnapshotIDs()
		return
	}

	if _, ok := h.clients[c]; !ok {
		return
	}
	switch cmd.kind {
	case cmdAuthenticate:
		h.manager.Authenticate(c.pc, cmd.userID)
	case cmdReject:
		h.manager.Reject(c.pc, cmd.reason)
	case cmdDispatch:
		h.manager.Dispatch(c.pc, cmd.evt)
	case cmdExpire:
		if c.pc.State() == presence.StateUnauthenticated {
			h.log.Info().Str("remote", c.remote).Msg("authentication timeout, closing")
			c.Close()
		}
	case cmdClose:
		h.release(c)
	}
	h.online.Store(int32(h.manager.Registry().Len()))
}

func (h *Hub) release(c *Client) {
	h.manager.Close(c.pc)
	delete(h.clients, c)
	c.closeSend()
	h.open.Store(int32(len(h.clients)))
	metrics.WsConnections.Dec()
}

func (h *Hub) shutdown() {
	n := len(h.clients)
	for c := range h.clients {
		h.release(c)
		c.Close()
	}
	h.online.Store(int32(h.manager.Registry().Len()))
	h.log.Info().Int("closed", n).Int("registered", h.manager.Registry().Len()).Msg("hub stopped")
}

// submit reports false once the hub has stopped.
func (h *Hub) submit(cmd command) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.inbox <- cmd:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) register(c *Client) bool { return h.submit(command{kind: cmdOpen, client: c}) }

func (h *Hub) authenticate(c *Client, userID string) {
	h.submit(command{kind: cmdAuthenticate, client: c, userID: userID})
}

func (h *Hub) reject(c *Client, reason string) {
	h.submit(command{kind: cmdReject, client: c, reason: reason})
}

func (h *Hub) dispatch(c *Client, evt presence.Event) {
	h.submit(command{kind: cmdDispatch, client: c, evt: evt})
}

func (h *Hub) expire(c *Client) { h.submit(command{kind: cmdExpire, client: c}) }

func (h *Hub) unregister(c *Client) { h.submit(command{kind: cmdClose, client: c}) }

// OnlineUsers returns the ids of every user with a registered connection.
func (h *Hub) OnlineUsers(ctx context.Context) ([]string, error) {
	reply := make(chan []string, 1)
	select {
	case h.inbox <- command{kind: cmdSnapshot, reply: reply}:
	case <-h.done:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case ids := <-reply:
		return ids, nil
	case <-h.done:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Online is the number of registered users as of the last processed command.
func (h *Hub) Online() int { return int(h.online.Load()) }

// Connections is the number of open connections, authenticated or not.
func (h *Hub) Connections() int { return int(h.open.Load()) }
