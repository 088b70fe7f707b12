package presence

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEvent(t *testing.T) {
	tests := []struct {
		name      string
		kind      string
		data      string
		out       string
		recipient string
		origin    string
		wantErr   error
	}{
		{"message", KindSendMessage, `{"senderId":"a","receiverId":"b","content":"hi"}`, OutReceiveMessage, "b", "a", nil},
		{"typing", KindTyping, `{"senderId":"a","receiverId":"b","isTyping":false}`, OutUserTyping, "b", "a", nil},
		{"read receipt", KindMessageRead, `{"messageId":"m","senderId":"a","receiverId":"b"}`, OutMessageRead, "a", "b", nil},
		{"reaction", KindReaction, `{"messageId":"m","receiverId":"b"}`, OutMessageReaction, "b", "", nil},
		{"reaction with sender", KindReaction, `{"messageId":"m","receiverId":"b","senderId":"a"}`, OutMessageReaction, "b", "a", nil},
		{"unknown kind", "wave", `{}`, "", "", "", ErrUnknownEvent},
		{"authenticate is not routable", KindAuthenticate, `"token"`, "", "", "", ErrUnknownEvent},
		{"missing receiver", KindSendMessage, `{"senderId":"a"}`, "", "", "", ErrInvalidEvent},
		{"receipt without message id", KindMessageRead, `{"senderId":"a","receiverId":"b"}`, "", "", "", ErrInvalidEvent},
		{"not an object", KindTyping, `"x"`, "", "", "", ErrInvalidEvent},
		{"empty data", KindTyping, ``, "", "", "", ErrInvalidEvent},
		{"sender under second spelling", KindSendMessage, `{"senderId":"a","SenderID":"m","receiverId":"b"}`, "", "", "", ErrInvalidEvent},
		{"receiver under second spelling", KindTyping, `{"senderId":"a","receiverId":"b","ReceiverId":"c"}`, "", "", "", ErrInvalidEvent},
		{"lone miscased receiver", KindSendMessage, `{"senderId":"a","RECEIVERID":"b"}`, "", "", "", ErrInvalidEvent},
		{"receipt message id miscased", KindMessageRead, `{"messageID":"m","senderId":"a","receiverId":"b"}`, "", "", "", ErrInvalidEvent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evt, err := DecodeEvent(tt.kind, json.RawMessage(tt.data))
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.out, evt.Name())
			assert.Equal(t, tt.recipient, evt.Recipient())
			assert.Equal(t, tt.origin, evt.Origin())
			assert.JSONEq(t, tt.data, string(evt.Payload()))
		})
	}
}

func TestEncodeFrame(t *testing.T) {
	b, err := EncodeFrame(OutOnlineUsers, OnlineUsers{OnlineUserIDs: []string{"u1", "u2"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"online-users","data":{"onlineUserIds":["u1","u2"]}}`, string(b))

	b, err = EncodeFrame(OutUserStatus, UserStatus{UserID: "u1", Online: false})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"user-status","data":{"userId":"u1","online":false}}`, string(b))
}
