package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/haftomg96/MVP-chat-app/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestToggleReaction(t *testing.T) {
	tests := []struct {
		name   string
		before map[string][]string
		user   string
		emoji  string
		want   map[string][]string
	}{
		{
			name:  "first reaction",
			user:  "u1",
			emoji: "👍",
			want:  map[string][]string{"👍": {"u1"}},
		},
		{
			name:   "same emoji removes",
			before: map[string][]string{"👍": {"u1"}},
			user:   "u1",
			emoji:  "👍",
			want:   map[string][]string{},
		},
		{
			name:   "other emoji moves",
			before: map[string][]string{"👍": {"u1", "u2"}},
			user:   "u1",
			emoji:  "❤️",
			want:   map[string][]string{"👍": {"u2"}, "❤️": {"u1"}},
		},
		{
			name:   "joins existing emoji",
			before: map[string][]string{"😂": {"u2"}},
			user:   "u1",
			emoji:  "😂",
			want:   map[string][]string{"😂": {"u2", "u1"}},
		},
		{
			name:   "remove keeps other users",
			before: map[string][]string{"😂": {"u2", "u1"}},
			user:   "u1",
			emoji:  "😂",
			want:   map[string][]string{"😂": {"u2"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToggleReaction(tt.before, tt.user, tt.emoji))
		})
	}
}

func TestToggleReaction_DoesNotMutateInput(t *testing.T) {
	before := map[string][]string{"👍": {"u1", "u2"}}
	_ = ToggleReaction(before, "u1", "👍")
	assert.Equal(t, map[string][]string{"👍": {"u1", "u2"}}, before)
}

func TestByPeer(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	rows := []peerMessage{
		{Peer: "a", Message: models.Message{SenderID: "a", ReceiverID: "me", Content: "a-new", CreatedAt: t0, IsRead: true}},
		{Peer: "b", Message: models.Message{SenderID: "me", ReceiverID: "b", Content: "b-only", Type: models.MessageVoice}},
	}

	got := byPeer(rows)

	assert.Len(t, got, 2)
	assert.Equal(t, "a-new", got["a"].Content)
	assert.Equal(t, "a", got["a"].SenderID)
	assert.True(t, got["a"].IsRead)
	assert.Equal(t, t0, got["a"].CreatedAt)
	assert.Equal(t, "me", got["b"].SenderID)
	assert.Equal(t, models.MessageVoice, got["b"].Type)
}

func TestByPeer_Empty(t *testing.T) {
	assert.Empty(t, byPeer(nil))
}

func TestLastMessagesSQL(t *testing.T) {
	assert.Contains(t, lastMessagesSQL, "DISTINCT ON (peer)")
	assert.Contains(t, lastMessagesSQL, "ORDER BY peer, m.created_at DESC")
	assert.Contains(t, lastMessagesSQL, "NOT COALESCE(m.cleared_by, '[]'::jsonb) @> ?::jsonb")
	assert.Contains(t, lastMessagesSQL, "NOT COALESCE(m.deleted_by, '[]'::jsonb) @> ?::jsonb")
	assert.Equal(t, 5, strings.Count(lastMessagesSQL, "?"))
}

func TestUserList(t *testing.T) {
	assert.Equal(t, `["u1"]`, userList("u1"))
	assert.Equal(t, `["a\"b"]`, userList(`a"b`))
}

func TestParseChatAction(t *testing.T) {
	tests := []struct {
		in      string
		want    ChatAction
		wantErr bool
	}{
		{in: "mark-unread", want: ActionMarkUnread},
		{in: "archive", want: ActionArchive},
		{in: "mute", want: ActionMute},
		{in: "clear", want: ActionClear},
		{in: "delete", want: ActionDelete},
		{in: "Delete", wantErr: true},
		{in: "", wantErr: true},
		{in: "pin", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseChatAction(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAction)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplyChatAction_StatelessActions(t *testing.T) {
	svc := NewMessageService(nil)
	ctx := context.Background()

	msg, err := svc.ApplyChatAction(ctx, "me", ActionArchive, "a")
	assert.NoError(t, err)
	assert.Equal(t, "Chat archived", msg)

	msg, err = svc.ApplyChatAction(ctx, "me", ActionMute, "a")
	assert.NoError(t, err)
	assert.Equal(t, "Chat muted", msg)

	_, err = svc.ApplyChatAction(ctx, "me", ChatAction("pin"), "a")
	assert.ErrorIs(t, err, ErrInvalidAction)
}

func TestToExportLines(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	got := toExportLines([]exportRow{
		{CreatedAt: t0, Content: "hi", SenderName: "Alice", SenderEmail: "alice@example.com"},
		{CreatedAt: t0.Add(time.Minute), Content: "yo", SenderEmail: "bob@example.com"},
	})
	assert.Equal(t, []ExportLine{
		{Timestamp: t0, Sender: "Alice", Message: "hi"},
		{Timestamp: t0.Add(time.Minute), Sender: "bob@example.com", Message: "yo"},
	}, got)
}
