package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/haftomg96/MVP-chat-app/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

var ErrSessionNotFound = errors.New("session not found")

// SessionStore resolves an access token to its session record.
type SessionStore interface {
	FindSession(ctx context.Context, token string) (*models.Session, error)
}

// GormSessionStore reads sessions from the relational store.
type GormSessionStore struct {
	db *gorm.DB
}

func NewGormSessionStore(db *gorm.DB) *GormSessionStore { return &GormSessionStore{db: db} }

func (s *GormSessionStore) FindSession(ctx context.Context, token string) (*models.Session, error) {
	var sess models.Session
	err := s.db.WithContext(ctx).Preload("User").Where("token = ?", token).First(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	return &sess, nil
}

func CreateSession(db *gorm.DB, userID, token string, expiresAt time.Time) error {
	return db.Create(&models.Session{Token: token, UserID: userID, ExpiresAt: expiresAt}).Error
}

func DeleteSession(db *gorm.DB, token string) error {
	return db.Where("token = ?", token).Delete(&models.Session{}).Error
}

const sessionKeyPrefix = "chat:session:"

// CachedSessionStore keeps recently verified sessions in Redis so that
// reconnect storms do not all hit Postgres. Redis failures fall through to
// the wrapped store.
type CachedSessionStore struct {
	next SessionStore
	rdb  *redis.Client
	ttl  time.Duration
}

func NewCachedSessionStore(next SessionStore, rdb *redis.Client, ttl time.Duration) *CachedSessionStore {
	return &CachedSessionStore{next: next, rdb: rdb, ttl: ttl}
}

func sessionKey(token string) string { return sessionKeyPrefix + token }

func (s *CachedSessionStore) FindSession(ctx context.Context, token string) (*models.Session, error) {
	data, err := s.rdb.Get(ctx, sessionKey(token)).Bytes()
	switch {
	case err == nil:
		var sess models.Session
		if err := json.Unmarshal(data, &sess); err == nil {
			return &sess, nil
		}
		log.Warn().Msg("corrupt cached session, reloading")
	case !errors.Is(err, redis.Nil):
		log.Warn().Err(err).Msg("session cache get")
	}

	sess, err := s.next.FindSession(ctx, token)
	if err != nil {
		return nil, err
	}
	s.store(ctx, sess)
	return sess, nil
}

func (s *CachedSessionStore) store(ctx context.Context, sess *models.Session) {
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return
	}
	if s.ttl > 0 && s.ttl < ttl {
		ttl = s.ttl
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, sessionKey(sess.Token), data, ttl).Err(); err != nil {
		log.Warn().Err(err).Msg("session cache set")
	}
}

// Evict drops a cached session, used on logout.
func (s *CachedSessionStore) Evict(ctx context.Context, token string) error {
	return s.rdb.Del(ctx, sessionKey(token)).Err()
}
