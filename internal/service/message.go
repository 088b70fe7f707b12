package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/haftomg96/MVP-chat-app/internal/models"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MessageService persists direct messages. Delivery to a live recipient is
// the client's job: it emits send-message once the row is stored.
type MessageService struct {
	db *gorm.DB
}

func NewMessageService(db *gorm.DB) *MessageService {
	return &MessageService{db: db}
}

type SendInput struct {
	ReceiverID string             `json:"receiverId" binding:"required"`
	Content    string             `json:"content" binding:"required"`
	Type       models.MessageType `json:"type" binding:"omitempty,oneof=text file voice"`
	Metadata   map[string]any     `json:"metadata"`
}

// Send stores a message from senderID. The receiver must exist.
func (s *MessageService) Send(ctx context.Context, senderID string, in SendInput) (*models.Message, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", in.ReceiverID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrUserNotFound
	}
	msg := models.Message{
		SenderID:   senderID,
		ReceiverID: in.ReceiverID,
		Type:       lo.Ternary(in.Type == "", models.MessageText, in.Type),
		Content:    in.Content,
		Metadata:   in.Metadata,
	}
	if err := s.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

func betweenScope(a, b string) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		return q.Where("((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?))", a, b, b, a)
	}
}

// hiddenFrom matches rows whose jsonb user list in column contains userID.
func hiddenFrom(column string) string {
	return fmt.Sprintf("COALESCE(%s, '[]'::jsonb) @> ?::jsonb", column)
}

// userList is the jsonb operand for hiddenFrom and for appending to a list.
func userList(userID string) string {
	b, _ := json.Marshal([]string{userID})
	return string(b)
}

// visibleTo drops messages userID cleared or deleted.
func visibleTo(userID string) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		list := userList(userID)
		return q.Where("NOT "+hiddenFrom("cleared_by"), list).Where("NOT "+hiddenFrom("deleted_by"), list)
	}
}

// Conversation lists the messages between userID and otherID, oldest first,
// and marks the ones addressed to userID as read. Messages userID cleared or
// deleted are left out.
func (s *MessageService) Conversation(ctx context.Context, userID, otherID string) ([]models.Message, error) {
	var msgs []models.Message
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Scopes(betweenScope(userID, otherID), visibleTo(userID)).Order("created_at asc").Find(&msgs).Error; err != nil {
			return err
		}
		_, err := markRead(tx, userID, otherID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// MarkRead marks every unread message from fromID to userID as read.
func (s *MessageService) MarkRead(ctx context.Context, userID, fromID string) (int64, error) {
	return markRead(s.db.WithContext(ctx), userID, fromID)
}

func markRead(tx *gorm.DB, userID, fromID string) (int64, error) {
	res := tx.Model(&models.Message{}).
		Where("sender_id = ? AND receiver_id = ? AND is_read = ?", fromID, userID, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

// React toggles userID's reaction on a message it sent or received.
func (s *MessageService) React(ctx context.Context, userID, messageID, emoji string) (*models.Message, error) {
	var msg models.Message
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND (sender_id = ? OR receiver_id = ?)", messageID, userID, userID).
			First(&msg).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMessageNotFound
		}
		if err != nil {
			return err
		}
		msg.Reactions = ToggleReaction(msg.Reactions, userID, emoji)
		return tx.Model(&msg).Select("reactions").Updates(&msg).Error
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// ToggleReaction gives each user at most one reaction per message. Picking
// the emoji the user already chose removes it; picking another one moves it.
// Emojis left without users are dropped.
func ToggleReaction(reactions map[string][]string, userID, emoji string) map[string][]string {
	out := make(map[string][]string, len(reactions)+1)
	had := false
	for e, users := range reactions {
		if lo.Contains(users, userID) {
			had = had || e == emoji
			users = lo.Without(users, userID)
		}
		if len(users) > 0 {
			out[e] = append([]string(nil), users...)
		}
	}
	if !had {
		out[emoji] = append(out[emoji], userID)
	}
	return out
}

type LastMessage struct {
	Content   string             `json:"content"`
	CreatedAt time.Time          `json:"createdAt"`
	IsRead    bool               `json:"isRead"`
	SenderID  string             `json:"senderId"`
	Type      models.MessageType `json:"type"`
	Metadata  map[string]any     `json:"metadata,omitempty"`
}

// peerMessage is a message row tagged with the other participant.
type peerMessage struct {
	models.Message
	Peer string
}

// lastMessagesSQL picks one row per peer: DISTINCT ON keeps the first row of
// each group and the ORDER BY puts the newest first.
var lastMessagesSQL = `SELECT DISTINCT ON (peer) m.*,
	CASE WHEN m.sender_id = ? THEN m.receiver_id ELSE m.sender_id END AS peer
FROM messages m
WHERE (m.sender_id = ? OR m.receiver_id = ?)
	AND NOT ` + hiddenFrom("m.cleared_by") + `
	AND NOT ` + hiddenFrom("m.deleted_by") + `
ORDER BY peer, m.created_at DESC`

// LastMessages returns the newest visible message of every conversation
// userID is in, keyed by the other participant.
func (s *MessageService) LastMessages(ctx context.Context, userID string) (map[string]LastMessage, error) {
	var rows []peerMessage
	list := userList(userID)
	err := s.db.WithContext(ctx).Raw(lastMessagesSQL, userID, userID, userID, list, list).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return byPeer(rows), nil
}

func byPeer(rows []peerMessage) map[string]LastMessage {
	return lo.SliceToMap(rows, func(r peerMessage) (string, LastMessage) {
		return r.Peer, LastMessage{
			Content:   r.Content,
			CreatedAt: r.CreatedAt,
			IsRead:    r.IsRead,
			SenderID:  r.SenderID,
			Type:      r.Type,
			Metadata:  r.Metadata,
		}
	})
}
