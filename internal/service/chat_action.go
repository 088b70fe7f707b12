package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/haftomg96/MVP-chat-app/internal/models"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

type ChatAction string

const (
	ActionMarkUnread ChatAction = "mark-unread"
	ActionArchive    ChatAction = "archive"
	ActionMute       ChatAction = "mute"
	ActionClear      ChatAction = "clear"
	ActionDelete     ChatAction = "delete"
)

var chatActions = []ChatAction{ActionMarkUnread, ActionArchive, ActionMute, ActionClear, ActionDelete}

// ParseChatAction accepts the action names clients send.
func ParseChatAction(s string) (ChatAction, error) {
	a := ChatAction(s)
	if !lo.Contains(chatActions, a) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAction, s)
	}
	return a, nil
}

// ApplyChatAction runs action on userID's conversation with targetID and
// returns the confirmation shown to the user.
//
// Clear and delete hide the messages that exist now from userID only; later
// messages stay visible. Archive and mute are acknowledged without state.
func (s *MessageService) ApplyChatAction(ctx context.Context, userID string, action ChatAction, targetID string) (string, error) {
	switch action {
	case ActionMarkUnread:
		return "Marked as unread", s.markUnread(ctx, userID, targetID)
	case ActionArchive:
		return "Chat archived", nil
	case ActionMute:
		return "Chat muted", nil
	case ActionClear:
		_, err := s.hide(ctx, "cleared_by", userID, targetID)
		return "Chat cleared", err
	case ActionDelete:
		_, err := s.hide(ctx, "deleted_by", userID, targetID)
		return "Chat deleted", err
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidAction, action)
}

// markUnread flips the newest message from targetID back to unread. A
// conversation without one is left alone.
func (s *MessageService) markUnread(ctx context.Context, userID, targetID string) error {
	var last models.Message
	err := s.db.WithContext(ctx).
		Scopes(visibleTo(userID)).
		Where("sender_id = ? AND receiver_id = ?", targetID, userID).
		Order("created_at desc").
		First(&last).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&last).Update("is_read", false).Error
}

// hide appends userID to column on every message between the two users that
// does not list it yet.
func (s *MessageService) hide(ctx context.Context, column, userID, targetID string) (int64, error) {
	list := userList(userID)
	res := s.db.WithContext(ctx).Model(&models.Message{}).
		Scopes(betweenScope(userID, targetID)).
		Where("NOT "+hiddenFrom(column), list).
		Update(column, gorm.Expr(fmt.Sprintf("COALESCE(%s, '[]'::jsonb) || ?::jsonb", column), list))
	return res.RowsAffected, res.Error
}

type ExportLine struct {
	Timestamp time.Time `json:"timestamp"`
	Sender    string    `json:"sender"`
	Message   string    `json:"message"`
}

type exportRow struct {
	CreatedAt   time.Time
	Content     string
	SenderName  string
	SenderEmail string
}

// ExportChat returns the conversation as userID sees it, oldest first, with
// each sender shown by name or, failing that, email.
func (s *MessageService) ExportChat(ctx context.Context, userID, targetID string) ([]ExportLine, error) {
	var rows []exportRow
	err := s.db.WithContext(ctx).Model(&models.Message{}).
		Select("messages.created_at, messages.content, users.name AS sender_name, users.email AS sender_email").
		Joins("JOIN users ON users.id = messages.sender_id").
		Scopes(betweenScope(userID, targetID), visibleTo(userID)).
		Order("messages.created_at asc").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return toExportLines(rows), nil
}

func toExportLines(rows []exportRow) []ExportLine {
	return lo.Map(rows, func(r exportRow, _ int) ExportLine {
		return ExportLine{
			Timestamp: r.CreatedAt,
			Sender:    lo.Ternary(r.SenderName != "", r.SenderName, r.SenderEmail),
			Message:   r.Content,
		}
	})
}
