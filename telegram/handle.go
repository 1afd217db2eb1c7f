package telegram

import (
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/omis-2025/strangerwave-sub000/internal/events"
)

const outboxSize = 64

// Sender is the part of the Bot API used to talk to a chat.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// chatHandle is a Telegram chat seen as one chat connection. Events are
// rendered to messages and sent from a dedicated goroutine so callers never
// wait on the Bot API.
type chatHandle struct {
	id     string
	userID uint
	chatID int64
	api    Sender

	outbox    chan tgbotapi.Chattable
	done      chan struct{}
	closeOnce sync.Once
	log       *zap.SugaredLogger
}

func newChatHandle(api Sender, userID uint, chatID int64, log *zap.SugaredLogger) *chatHandle {
	h := &chatHandle{
		id:     uuid.NewString(),
		userID: userID,
		chatID: chatID,
		api:    api,
		outbox: make(chan tgbotapi.Chattable, outboxSize),
		done:   make(chan struct{}),
		log:    log.With("user_id", userID, "chat_id", chatID),
	}
	go h.pump()
	return h
}

func (h *chatHandle) ID() string {
	return h.id
}

func (h *chatHandle) Send(e events.Event) error {
	// The chat already shows what the user typed.
	if m, ok := e.(events.Message); ok && m.SenderID == h.userID {
		return nil
	}
	msg, ok := render(h.chatID, e)
	if !ok {
		return nil
	}

	select {
	case <-h.done:
		return fmt.Errorf("chat handle %s closed", h.id)
	default:
	}

	select {
	case h.outbox <- msg:
		return nil
	default:
		return fmt.Errorf("chat handle %s outbox full", h.id)
	}
}

// Close stops the handle after pending messages are sent.
func (h *chatHandle) Close() error {
	h.closeOnce.Do(func() { close(h.done) })
	return nil
}

func (h *chatHandle) Closed() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

func (h *chatHandle) pump() {
	for {
		select {
		case msg := <-h.outbox:
			h.deliver(msg)
		case <-h.done:
			for {
				select {
				case msg := <-h.outbox:
					h.deliver(msg)
				default:
					return
				}
			}
		}
	}
}

// deliver retries transient network failures a few times.
func (h *chatHandle) deliver(msg tgbotapi.Chattable) {
	const maxRetries = 3
	for i := 0; i < maxRetries; i++ {
		_, err := h.api.Send(msg)
		if err == nil {
			return
		}
		h.log.Warnw("failed to send telegram message", "attempt", i+1, "error", err)
		if !isTransient(err) {
			return
		}
		time.Sleep(time.Duration(i+1) * time.Second)
	}
}

func isTransient(err error) bool {
	s := err.Error()
	return strings.Contains(s, "connection reset") ||
		strings.Contains(s, "timeout") ||
		strings.Contains(s, "network is unreachable")
}

// User-facing texts
const (
	MsgConnected           = "Welcome! Send /find to meet someone. You can add a gender (male, female, any) and a country code, e.g. /find female DE."
	MsgQueueJoined         = "Looking for someone to chat with... Send /leave to stop searching."
	MsgQueueLeft           = "You left the queue."
	MsgPartnerDisconnected = "Your partner left the chat. Send /find to meet someone new."
	MsgDisconnected        = "Chat ended. Send /find to meet someone new."
	MsgHelp                = "/find [gender] [country] - find a partner\n/leave - stop searching\n/stop - end the current chat\n/quit - go offline"
)

// render turns an event into a Telegram message. Events without a chat
// representation report false.
func render(chatID int64, e events.Event) (tgbotapi.Chattable, bool) {
	var text string
	switch ev := e.(type) {
	case events.Connected:
		text = MsgConnected
	case events.QueueJoined:
		text = MsgQueueJoined
	case events.QueueLeft:
		text = MsgQueueLeft
	case events.MatchFound:
		text = fmt.Sprintf("You are now chatting with a stranger (match %d%%). Say hi! Send /stop to end the chat.", ev.MatchScore)
	case events.Message:
		text = ev.Content
		if ev.IsTranslated && ev.OriginalContent != nil {
			text = fmt.Sprintf("%s\n\n(original: %s)", ev.Content, *ev.OriginalContent)
		}
	case events.Typing:
		if !ev.IsTyping {
			return nil, false
		}
		return tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping), true
	case events.PartnerDisconnected:
		text = MsgPartnerDisconnected
	case events.Disconnected:
		text = MsgDisconnected
	case events.Banned:
		text = "You have been banned."
		if ev.Reason != "" {
			text = ev.Reason
		}
	case events.PartnerBanned:
		text = ev.Message
	case events.Error:
		text = "⚠️ " + ev.Error
	default:
		return nil, false
	}
	return tgbotapi.NewMessage(chatID, text), true
}
