package auth

import (
	"context"
	"errors"
	"time"

	"github.com/haftomg96/MVP-chat-app/internal/metrics"
	"github.com/haftomg96/MVP-chat-app/internal/models"
	"github.com/rs/zerolog/log"
)

// Verifier resolves a bearer credential to the user that owns it.
type Verifier struct {
	store  SessionStore
	secret string
	now    func() time.Time
}

func NewVerifier(store SessionStore, secret string) *Verifier {
	return &Verifier{store: store, secret: secret, now: time.Now}
}

// Verify succeeds only for a well-signed token whose session row exists, has
// not expired and belongs to the token's user. Every failure, the store being
// unreachable included, is reported the same way.
func (v *Verifier) Verify(ctx context.Context, credential string) (models.User, bool) {
	if credential == "" {
		return v.reject("empty")
	}
	claims, err := ParseAccessToken(credential, v.secret)
	if err != nil {
		log.Debug().Err(err).Msg("credential rejected")
		return v.reject("bad_token")
	}
	sess, err := v.store.FindSession(ctx, credential)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return v.reject("no_session")
		}
		log.Error().Err(err).Msg("session store lookup")
		return v.reject("store_error")
	}
	if !sess.ExpiresAt.After(v.now()) {
		return v.reject("expired")
	}
	if sess.UserID != claims.UserID {
		return v.reject("user_mismatch")
	}
	user := sess.User
	if user.ID == "" {
		user.ID = sess.UserID
	}
	metrics.AuthAttempts.WithLabelValues("ok").Inc()
	return user, true
}

func (v *Verifier) reject(reason string) (models.User, bool) {
	metrics.AuthAttempts.WithLabelValues(reason).Inc()
	return models.User{}, false
}
