package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/haftomg96/MVP-chat-app/internal/auth"
	"github.com/haftomg96/MVP-chat-app/internal/config"
	"github.com/haftomg96/MVP-chat-app/internal/models"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// SessionEvictor drops a cached session so a logged out token stops
// verifying before its cache entry expires.
type SessionEvictor interface {
	Evict(ctx context.Context, token string) error
}

// UserService owns accounts and the sessions behind access tokens.
type UserService struct {
	db      *gorm.DB
	cfg     config.Config
	evictor SessionEvictor
}

// NewUserService accepts a nil evictor when no session cache is configured.
func NewUserService(db *gorm.DB, cfg config.Config, evictor SessionEvictor) *UserService {
	return &UserService{db: db, cfg: cfg, evictor: evictor}
}

type LoginResult struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresAt    time.Time   `json:"expires_at"`
	User         models.User `json:"user"`
}

func avatarURL(name string) string {
	return "https://ui-avatars.com/api/?name=" + url.QueryEscape(name) + "&background=2DD4BF&color=fff"
}

func normalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// Register creates the account and logs it in. An empty name defaults to the
// local part of the email.
func (s *UserService) Register(ctx context.Context, email, name, password string) (*LoginResult, error) {
	email = normalizeEmail(email)
	name = strings.TrimSpace(name)
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrEmailTaken
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := models.User{Email: email, Name: name, Picture: avatarURL(name), PasswordHash: hash}

	var res *LoginResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		res, err = s.issue(tx, user)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("user_id", user.ID).Msg("user registered")
	return res, nil
}

// Login checks the password and opens a new session.
func (s *UserService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !auth.VerifyPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	var res *LoginResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		res, err = s.issue(tx, user)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// issue signs an access token, stores it as a session row and pairs it with
// a refresh token.
func (s *UserService) issue(tx *gorm.DB, user models.User) (*LoginResult, error) {
	at, exp, err := auth.GenerateAccessToken(user.ID, s.cfg.JWTSecret, s.cfg.AccessTokenTTL())
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	if err := auth.CreateSession(tx, user.ID, at, exp); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	rt, err := auth.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}
	if err := auth.SaveRefreshToken(tx, user.ID, rt, time.Now().Add(s.cfg.RefreshTokenTTL())); err != nil {
		return nil, fmt.Errorf("save refresh token: %w", err)
	}
	return &LoginResult{AccessToken: at, RefreshToken: rt, ExpiresAt: exp, User: user}, nil
}

// RefreshTokens rotates a refresh token: the old one is revoked and a new
// access/refresh pair is issued.
func (s *UserService) RefreshTokens(ctx context.Context, oldRT string) (*LoginResult, error) {
	var res *LoginResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := auth.ValidateRefreshToken(tx, oldRT)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidRefreshToken
			}
			return err
		}
		if err := auth.RevokeRefreshToken(tx, oldRT); err != nil {
			return err
		}
		var user models.User
		if err := tx.First(&user, "id = ?", rec.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidRefreshToken
			}
			return err
		}
		res, err = s.issue(tx, user)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Logout deletes the session behind token. Live sockets already authenticated
// with it stay open; only new verifications fail.
func (s *UserService) Logout(ctx context.Context, token string) error {
	if err := auth.DeleteSession(s.db.WithContext(ctx), token); err != nil {
		return err
	}
	if s.evictor != nil {
		if err := s.evictor.Evict(ctx, token); err != nil {
			log.Warn().Err(err).Msg("evict cached session")
		}
	}
	return nil
}
