package presence

import (
	"strconv"

	"github.com/haftomg96/MVP-chat-app/internal/metrics"
	"github.com/rs/zerolog"
)

// Broadcaster tells every registered connection that a user came online or went offline.
type Broadcaster struct {
	registry *Registry
	log      zerolog.Logger
}

func NewBroadcaster(registry *Registry, log zerolog.Logger) *Broadcaster {
	return &Broadcaster{registry: registry, log: log}
}

// Announce sends user-status to every registered handle, the subject included,
// and returns how many handles accepted the frame.
func (b *Broadcaster) Announce(userID string, reachable bool) int {
	frame, err := EncodeFrame(OutUserStatus, UserStatus{UserID: userID, Online: reachable})
	if err != nil {
		b.log.Warn().Err(err).Str("user_id", userID).Msg("encode presence")
		return 0
	}
	sent := 0
	b.registry.each(func(_ string, h Handle) {
		if h.Send(frame) {
			sent++
		}
	})
	metrics.PresenceAnnouncements.WithLabelValues(strconv.FormatBool(reachable)).Inc()
	b.log.Debug().Str("user_id", userID).Bool("online", reachable).Int("recipients", sent).Msg("presence announced")
	return sent
}
