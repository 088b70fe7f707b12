// Package presence tracks which users have a live connection and routes
// ephemeral events between them. Nothing in this package locks: every call
// is expected to come from the single hub loop.
package presence

import (
	"sync/atomic"
	"time"

	"github.com/haftomg96/MVP-chat-app/internal/metrics"
	"github.com/rs/zerolog"
)

type State int32

const (
	StateUnauthenticated State = iota
	StateAuthenticated
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Conn is a live connection. The state is atomic so the transport goroutines
// can check it; the user id is only touched by the hub loop.
type Conn struct {
	transport Handle
	state     atomic.Int32
	userID    string
	openedAt  time.Time
}

func NewConn(transport Handle) *Conn {
	return &Conn{transport: transport, openedAt: time.Now()}
}

func (c *Conn) Send(frame []byte) bool { return c.transport.Send(frame) }

func (c *Conn) Close() { c.transport.Close() }

func (c *Conn) State() State { return State(c.state.Load()) }

func (c *Conn) UserID() string { return c.userID }

func (c *Conn) OpenedAt() time.Time { return c.openedAt }

// Manager drives the connection state machine and owns registry writes.
type Manager struct {
	registry    *Registry
	router      *Router
	broadcaster *Broadcaster
	log         zerolog.Logger
}

func NewManager(registry *Registry, log zerolog.Logger) *Manager {
	return &Manager{
		registry:    registry,
		router:      NewRouter(registry, log),
		broadcaster: NewBroadcaster(registry, log),
		log:         log,
	}
}

func (m *Manager) Registry() *Registry { return m.registry }

// Authenticate attaches userID to an unauthenticated connection, announces it
// and sends it the current online set. A connection already mapped for the
// same user is closed. Returns false if c was not waiting for a credential.
func (m *Manager) Authenticate(c *Conn, userID string) bool {
	if c.State() != StateUnauthenticated {
		m.log.Debug().Str("user_id", userID).Str("state", c.State().String()).Msg("credential ignored")
		return false
	}
	prev, replaced := m.registry.Register(userID, c)
	c.userID = userID
	c.state.Store(int32(StateAuthenticated))
	metrics.OnlineUsers.Set(float64(m.registry.Len()))

	if replaced && prev != Handle(c) {
		m.log.Info().Str("user_id", userID).Msg("superseded connection closed")
		prev.Close()
	}

	m.broadcaster.Announce(userID, true)

	frame, err := EncodeFrame(OutOnlineUsers, OnlineUsers{OnlineUserIDs: m.registry.SnapshotIDs()})
	if err != nil {
		m.log.Warn().Err(err).Msg("encode online users")
		return true
	}
	c.Send(frame)
	m.log.Info().Str("user_id", userID).Int("online", m.registry.Len()).Msg("user online")
	return true
}

// Reject tells a still unauthenticated connection its credential was refused.
func (m *Manager) Reject(c *Conn, reason string) {
	if c.State() != StateUnauthenticated {
		return
	}
	frame, err := EncodeFrame(OutAuthFailed, AuthFailed{Reason: reason})
	if err != nil {
		return
	}
	c.Send(frame)
}

// Dispatch routes an event emitted by c. Events from unauthenticated
// connections, or naming another user as their origin, are dropped.
func (m *Manager) Dispatch(c *Conn, evt Event) bool {
	if c.State() != StateAuthenticated {
		metrics.RoutedEvents.WithLabelValues(evt.Name(), OutcomeRejected).Inc()
		m.log.Debug().Str("event", evt.Name()).Msg("event from unauthenticated connection dropped")
		return false
	}
	if origin := evt.Origin(); origin != "" && origin != c.userID {
		metrics.RoutedEvents.WithLabelValues(evt.Name(), OutcomeRejected).Inc()
		m.log.Warn().Str("event", evt.Name()).Str("user_id", c.userID).Str("origin", origin).Msg("event origin mismatch dropped")
		return false
	}
	return m.router.Route(evt)
}

// Close moves c to the terminal state. Only the connection the registry still
// maps for its user is unregistered and announced offline.
func (m *Manager) Close(c *Conn) {
	prev := State(c.state.Swap(int32(StateClosed)))
	if prev != StateAuthenticated {
		return
	}
	if h, ok := m.registry.Lookup(c.userID); !ok || h != Handle(c) {
		m.log.Debug().Str("user_id", c.userID).Msg("superseded connection closed, registry untouched")
		return
	}
	m.registry.Unregister(c.userID)
	metrics.OnlineUsers.Set(float64(m.registry.Len()))
	m.broadcaster.Announce(c.userID, false)
	m.log.Info().Str("user_id", c.userID).Int("online", m.registry.Len()).Msg("user offline")
}
