package service

import (
	"context"

	"github.com/haftomg96/MVP-chat-app/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

// PresenceSource reports which users currently hold a live connection.
type PresenceSource interface {
	OnlineUsers(ctx context.Context) ([]string, error)
}

// ContactService lists the people a user can chat with.
type ContactService struct {
	db       *gorm.DB
	presence PresenceSource
}

func NewContactService(db *gorm.DB, presence PresenceSource) *ContactService {
	return &ContactService{db: db, presence: presence}
}

type ContactDTO struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture,omitempty"`
	Online  bool   `json:"online"`
}

// List returns every user except userID, ordered by name. If presence is
// unavailable everyone is reported offline.
func (s *ContactService) List(ctx context.Context, userID string) ([]ContactDTO, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Where("id <> ?", userID).Order("name asc").Find(&users).Error; err != nil {
		return nil, err
	}
	online, err := s.presence.OnlineUsers(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("presence snapshot")
	}
	return withPresence(users, online), nil
}

func withPresence(users []models.User, online []string) []ContactDTO {
	set := lo.SliceToMap(online, func(id string) (string, struct{}) { return id, struct{}{} })
	return lo.Map(users, func(u models.User, _ int) ContactDTO {
		_, on := set[u.ID]
		return ContactDTO{ID: u.ID, Email: u.Email, Name: u.Name, Picture: u.Picture, Online: on}
	})
}
