// Package events defines the JSON wire format exchanged with chat clients.
// Every frame is a flat object whose "type" field names the event.
package events

import (
	"bytes"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/omis-2025/strangerwave-sub000/pkg/errors"
)

// Client to server
const (
	TypeJoinQueue   = "join_queue"
	TypeLeaveQueue  = "leave_queue"
	TypeSendMessage = "send_message"
	TypeTyping      = "typing"
	TypeDisconnect  = "disconnect"
)

// Server to client
const (
	TypeConnected           = "connected"
	TypeQueueJoined         = "queue_joined"
	TypeQueueLeft           = "queue_left"
	TypeMatchFound          = "match_found"
	TypeMessage             = "message"
	TypePartnerDisconnected = "partner_disconnected"
	TypeDisconnected        = "disconnected"
	TypeBanned              = "banned"
	TypePartnerBanned       = "partner_banned"
	TypeError               = "error"
)

// Event is any server to client frame.
type Event interface {
	EventType() string
}

type Connected struct {
	UserID uint `json:"userId"`
}

type QueueJoined struct{}

type QueueLeft struct{}

type MatchFound struct {
	SessionID  uint `json:"sessionId"`
	PartnerID  uint `json:"partnerId"`
	MatchScore int  `json:"matchScore"`
}

type Message struct {
	ID               uint      `json:"id"`
	Content          string    `json:"content"`
	SenderID         uint      `json:"senderId"`
	Timestamp        time.Time `json:"timestamp"`
	IsTranslated     bool      `json:"isTranslated"`
	DetectedLanguage string    `json:"detectedLanguage"`
	OriginalContent  *string   `json:"originalContent"`
}

type Typing struct {
	IsTyping bool `json:"isTyping"`
}

type PartnerDisconnected struct{}

type Disconnected struct{}

type Banned struct {
	Reason string `json:"reason,omitempty"`
}

type PartnerBanned struct {
	Message string `json:"message"`
}

type Error struct {
	Error string `json:"error"`
}

func (Connected) EventType() string           { return TypeConnected }
func (QueueJoined) EventType() string         { return TypeQueueJoined }
func (QueueLeft) EventType() string           { return TypeQueueLeft }
func (MatchFound) EventType() string          { return TypeMatchFound }
func (Message) EventType() string             { return TypeMessage }
func (Typing) EventType() string              { return TypeTyping }
func (PartnerDisconnected) EventType() string { return TypePartnerDisconnected }
func (Disconnected) EventType() string        { return TypeDisconnected }
func (Banned) EventType() string              { return TypeBanned }
func (PartnerBanned) EventType() string       { return TypePartnerBanned }
func (Error) EventType() string               { return TypeError }

// Encode renders e as a flat JSON object with its type as the first key.
func Encode(e Event) ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}

	typeField, err := json.Marshal(e.EventType())
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Grow(len(body) + len(typeField) + 8)
	buf.WriteString(`{"type":`)
	buf.Write(typeField)
	if len(body) > 2 {
		buf.WriteByte(',')
		buf.Write(body[1:])
	} else {
		buf.WriteByte('}')
	}
	return buf.Bytes(), nil
}

// Inbound is a decoded client frame. Only the fields of its type are set.
type Inbound struct {
	Type            string `json:"type"`
	PreferredGender string `json:"preferredGender,omitempty"`
	Country         string `json:"country,omitempty"`
	Content         string `json:"content,omitempty"`
	IsTyping        bool   `json:"isTyping,omitempty"`
}

// Decode parses a client frame and rejects unknown types.
func Decode(data []byte) (*Inbound, error) {
	var in Inbound
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeValidation, "malformed event")
	}

	in.Type = strings.TrimSpace(in.Type)
	switch in.Type {
	case TypeJoinQueue, TypeLeaveQueue, TypeSendMessage, TypeTyping, TypeDisconnect:
		return &in, nil
	case "":
		return nil, errors.New(errors.ErrCodeValidation, "event type is required")
	default:
		return nil, errors.New(errors.ErrCodeValidation, "unknown event type: "+in.Type)
	}
}
