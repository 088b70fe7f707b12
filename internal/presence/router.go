package presence

import (
	"encoding/json"

	"github.com/haftomg96/MVP-chat-app/internal/metrics"
	"github.com/rs/zerolog"
)

// Route outcomes, also used as metric labels.
const (
	OutcomeDelivered  = "delivered"
	OutcomeOffline    = "offline"
	OutcomeSendFailed = "send_failed"
	OutcomeRejected   = "rejected"
)

// Router forwards each event to the live handle of its single recipient.
// It only reads the registry.
type Router struct {
	registry *Registry
	log      zerolog.Logger
}

func NewRouter(registry *Registry, log zerolog.Logger) *Router {
	return &Router{registry: registry, log: log}
}

// Route reports whether the event was queued on the recipient's transport.
// An offline recipient or a failed send drops the event.
func (r *Router) Route(evt Event) bool {
	to := evt.Recipient()
	h, ok := r.registry.Lookup(to)
	if !ok {
		r.count(evt, OutcomeOffline)
		r.log.Debug().Str("event", evt.Name()).Str("to", to).Msg("recipient offline, dropped")
		return false
	}
	frame, err := encodeRaw(evt.Name(), payloadOf(evt))
	if err != nil {
		r.count(evt, OutcomeSendFailed)
		r.log.Warn().Err(err).Str("event", evt.Name()).Msg("encode frame")
		return false
	}
	if !h.Send(frame) {
		r.count(evt, OutcomeSendFailed)
		r.log.Debug().Str("event", evt.Name()).Str("to", to).Msg("send failed, dropped")
		return false
	}
	r.count(evt, OutcomeDelivered)
	return true
}

func (r *Router) count(evt Event, outcome string) {
	metrics.RoutedEvents.WithLabelValues(evt.Name(), outcome).Inc()
}

// payloadOf falls back to the event's own fields when it was built in code
// rather than decoded from a frame.
func payloadOf(evt Event) json.RawMessage {
	if raw := evt.Payload(); len(raw) > 0 {
		return raw
	}
	raw, err := json.Marshal(evt)
	if err != nil {
		return nil
	}
	return raw
}
