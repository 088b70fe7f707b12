package presence

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Inbound frame names.
const (
	KindAuthenticate = "authenticate"
	KindSendMessage  = "send-message"
	KindTyping       = "typing"
	KindMessageRead  = "message-read"
	KindReaction     = "message-reaction"
)

// Outbound frame names.
const (
	OutReceiveMessage  = "receive-message"
	OutUserTyping      = "user-typing"
	OutMessageRead     = "message-read"
	OutMessageReaction = "message-reaction"
	OutUserStatus      = "user-status"
	OutOnlineUsers     = "online-users"
	OutAuthFailed      = "auth-failed"
)

var (
	ErrUnknownEvent = errors.New("unknown event")
	ErrInvalidEvent = errors.New("invalid event")
)

var validate = validator.New()

// Event is a routable real-time event. Each variant names its single
// recipient and the user allowed to emit it; the payload is forwarded as received.
type Event interface {
	Name() string
	Recipient() string
	Origin() string
	Payload() json.RawMessage
}

type payload struct {
	raw json.RawMessage
}

func (p payload) Payload() json.RawMessage { return p.raw }

func (p *payload) setPayload(raw json.RawMessage) { p.raw = raw }

type NewMessage struct {
	payload
	SenderID   string `json:"senderId" validate:"required"`
	ReceiverID string `json:"receiverId" validate:"required"`
}

func (NewMessage) Name() string        { return OutReceiveMessage }
func (e NewMessage) Recipient() string { return e.ReceiverID }
func (e NewMessage) Origin() string    { return e.SenderID }

type TypingState struct {
	payload
	SenderID   string `json:"senderId" validate:"required"`
	ReceiverID string `json:"receiverId" validate:"required"`
	IsTyping   bool   `json:"isTyping"`
}

func (TypingState) Name() string        { return OutUserTyping }
func (e TypingState) Recipient() string { return e.ReceiverID }
func (e TypingState) Origin() string    { return e.SenderID }

// ReadReceipt acknowledges a message sent by SenderID and read by ReceiverID.
// It travels back to the original sender.
type ReadReceipt struct {
	payload
	MessageID  string `json:"messageId" validate:"required"`
	SenderID   string `json:"senderId" validate:"required"`
	ReceiverID string `json:"receiverId" validate:"required"`
}

func (ReadReceipt) Name() string        { return OutMessageRead }
func (e ReadReceipt) Recipient() string { return e.SenderID }
func (e ReadReceipt) Origin() string    { return e.ReceiverID }

// ReactionUpdate carries no mandatory sender; when SenderID is present it is checked.
type ReactionUpdate struct {
	payload
	MessageID  string `json:"messageId" validate:"required"`
	ReceiverID string `json:"receiverId" validate:"required"`
	SenderID   string `json:"senderId,omitempty"`
}

func (ReactionUpdate) Name() string        { return OutMessageReaction }
func (e ReactionUpdate) Recipient() string { return e.ReceiverID }
func (e ReactionUpdate) Origin() string    { return e.SenderID }

// addressKeys decide who receives an event and who may emit it.
var addressKeys = []string{"senderId", "receiverId", "messageId"}

// checkAddressKeys rejects payloads carrying an address key under another
// spelling. encoding/json matches keys case-insensitively, so {"senderId":"a",
// "SenderID":"b"} would be checked as b while clients read a.
func checkAddressKeys(data json.RawMessage) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	for key := range obj {
		for _, want := range addressKeys {
			if key != want && strings.EqualFold(key, want) {
				return fmt.Errorf("ambiguous key %q", key)
			}
		}
	}
	return nil
}

// DecodeEvent builds the routable event for an inbound frame.
func DecodeEvent(kind string, data json.RawMessage) (Event, error) {
	var evt interface {
		Event
		setPayload(json.RawMessage)
	}
	switch kind {
	case KindSendMessage:
		evt = &NewMessage{}
	case KindTyping:
		evt = &TypingState{}
	case KindMessageRead:
		evt = &ReadReceipt{}
	case KindReaction:
		evt = &ReactionUpdate{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, kind)
	}
	if err := checkAddressKeys(data); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidEvent, kind, err)
	}
	if err := json.Unmarshal(data, evt); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidEvent, kind, err)
	}
	if err := validate.Struct(evt); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidEvent, kind, err)
	}
	evt.setPayload(data)
	return evt, nil
}

// Frame is the wire envelope in both directions.
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type UserStatus struct {
	UserID string `json:"userId"`
	Online bool   `json:"online"`
}

type OnlineUsers struct {
	OnlineUserIDs []string `json:"onlineUserIds"`
}

type AuthFailed struct {
	Reason string `json:"reason"`
}

// EncodeFrame marshals data under the given frame name.
func EncodeFrame(name string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", name, err)
	}
	return encodeRaw(name, raw)
}

func encodeRaw(name string, raw json.RawMessage) ([]byte, error) {
	return json.Marshal(Frame{Type: name, Data: raw})
}
