package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	Email        string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Name         string    `gorm:"size:128;not null" json:"name"`
	Picture      string    `gorm:"size:512" json:"picture,omitempty"`
	PasswordHash string    `gorm:"not null" json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// Session is the server-side record behind an access token. A token is only
// valid while its row exists and has not expired.
type Session struct {
	Token     string    `gorm:"primaryKey;size:512" json:"token"`
	UserID    string    `gorm:"index;size:36;not null" json:"userId"`
	User      User      `gorm:"constraint:OnDelete:CASCADE" json:"user"`
	ExpiresAt time.Time `gorm:"index;not null" json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

type RefreshToken struct {
	ID        uint       `gorm:"primaryKey"`
	UserID    string     `gorm:"index;size:36;not null"`
	Token     string     `gorm:"uniqueIndex;size:128;not null"`
	ExpiresAt time.Time  `gorm:"index;not null"`
	RevokedAt *time.Time
	CreatedAt time.Time
}

type MessageType string

const (
	MessageText  MessageType = "text"
	MessageFile  MessageType = "file"
	MessageVoice MessageType = "voice"
)

// Message is a direct message between two users. ClearedBy and DeletedBy list
// the users who hid it from their own view; the other participant still sees it.
type Message struct {
	ID         string              `gorm:"primaryKey;size:36" json:"id"`
	SenderID   string              `gorm:"index:idx_msg_pair;size:36;not null" json:"senderId"`
	ReceiverID string              `gorm:"index:idx_msg_pair;size:36;not null" json:"receiverId"`
	Type       MessageType         `gorm:"size:16;not null;default:text" json:"type"`
	Content    string              `gorm:"type:text;not null" json:"content"`
	Metadata   map[string]any      `gorm:"type:jsonb;serializer:json" json:"metadata,omitempty"`
	IsRead     bool                `gorm:"index;not null;default:false" json:"isRead"`
	Reactions  map[string][]string `gorm:"type:jsonb;serializer:json" json:"reactions,omitempty"`
	ClearedBy  []string            `gorm:"type:jsonb;serializer:json" json:"-"`
	DeletedBy  []string            `gorm:"type:jsonb;serializer:json" json:"-"`
	CreatedAt  time.Time           `gorm:"index" json:"createdAt"`
}

func (m *Message) BeforeCreate(*gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
