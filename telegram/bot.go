// Package telegram exposes the chat service through a Telegram bot. Each
// Telegram chat acts as one chat connection.
package telegram

import (
	"context"
	"fmt"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/omis-2025/strangerwave-sub000/internal/config"
	"github.com/omis-2025/strangerwave-sub000/internal/events"
	"github.com/omis-2025/strangerwave-sub000/internal/models"
	"github.com/omis-2025/strangerwave-sub000/internal/registry"
	"github.com/omis-2025/strangerwave-sub000/internal/store"
	"github.com/omis-2025/strangerwave-sub000/pkg/logger"
)

const (
	workerCount = 10
	workerQueue = 100
)

// API is the subset of *tgbotapi.BotAPI the bot uses.
type API interface {
	Sender
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Dispatcher is the handler layer shared with the websocket transport.
type Dispatcher interface {
	Connect(ctx context.Context, userID uint, handle registry.Handle) error
	Handle(ctx context.Context, userID uint, in *events.Inbound)
	ConnectionClosed(userID uint, handleID string) bool
}

type Bot struct {
	api        API
	dispatcher Dispatcher
	accounts   store.AccountStore

	// current handle per Telegram user
	handles map[int64]*chatHandle
	mu      sync.Mutex

	workerChans []chan tgbotapi.Update
	log         *zap.SugaredLogger
}

// InitBot authorizes against the Bot API with cfg.BotToken.
func InitBot(cfg *config.Config, dispatcher Dispatcher, accounts store.AccountStore) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	if cfg.AppEnv == "development" {
		api.Debug = true
	}

	logger.Info("Authorized on account", "username", api.Self.UserName)
	return NewBot(api, dispatcher, accounts), nil
}

func NewBot(api API, dispatcher Dispatcher, accounts store.AccountStore) *Bot {
	return &Bot{
		api:        api,
		dispatcher: dispatcher,
		accounts:   accounts,
		handles:    make(map[int64]*chatHandle),
		log:        logger.Named("telegram"),
	}
}

// Serve polls for updates and fans them out to workers until ctx is
// cancelled. Updates of one user always go to the same worker, so they are
// processed in order.
func (b *Bot) Serve(ctx context.Context) error {
	b.workerChans = make([]chan tgbotapi.Update, workerCount)
	var wg sync.WaitGroup
	for i := range b.workerChans {
		b.workerChans[i] = make(chan tgbotapi.Update, workerQueue)
		wg.Add(1)
		go func(updates <-chan tgbotapi.Update) {
			defer wg.Done()
			b.startWorker(ctx, updates)
		}(b.workerChans[i])
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)
	b.log.Infow("Starting update listener...")

	defer func() {
		b.api.StopReceivingUpdates()
		for _, ch := range b.workerChans {
			close(ch)
		}
		wg.Wait()
		b.closeAll()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return fmt.Errorf("update channel closed")
			}
			if update.Message == nil || update.Message.From == nil {
				continue
			}
			idx := update.Message.From.ID % int64(len(b.workerChans))
			if idx < 0 {
				idx = -idx
			}
			b.workerChans[idx] <- update
		}
	}
}

func (b *Bot) String() string {
	return "telegram-bot"
}

func (b *Bot) startWorker(ctx context.Context, updates <-chan tgbotapi.Update) {
	for update := range updates {
		b.handleUpdate(ctx, update)
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Errorw("Panic in handleUpdate", "error", r)
		}
	}()

	if update.Message != nil && update.Message.From != nil {
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	tgID := message.From.ID
	b.log.Debugw("Received message", "telegram_id", tgID, "is_command", message.IsCommand())

	if message.IsCommand() {
		switch message.Command() {
		case "help":
			b.reply(message.Chat.ID, MsgHelp)
			return
		case "quit":
			b.quit(tgID)
			return
		}
	}

	h, err := b.connection(ctx, message)
	if err != nil {
		b.log.Infow("telegram user not connected", "telegram_id", tgID, "error", err)
		return
	}

	if !message.IsCommand() {
		if message.Text == "" {
			b.reply(message.Chat.ID, "Only text messages are supported.")
			return
		}
		b.dispatcher.Handle(ctx, h.userID, &events.Inbound{Type: events.TypeSendMessage, Content: message.Text})
		return
	}

	switch message.Command() {
	case "start":
		// connection() already greeted a new connection
	case "find":
		gender, country := parseFind(message.CommandArguments())
		b.dispatcher.Handle(ctx, h.userID, &events.Inbound{Type: events.TypeJoinQueue, PreferredGender: gender, Country: country})
	case "leave":
		b.dispatcher.Handle(ctx, h.userID, &events.Inbound{Type: events.TypeLeaveQueue})
	case "stop":
		b.dispatcher.Handle(ctx, h.userID, &events.Inbound{Type: events.TypeDisconnect})
	default:
		b.reply(message.Chat.ID, MsgHelp)
	}
}

// connection returns the live handle for the sender, connecting them first
// when they have none.
func (b *Bot) connection(ctx context.Context, message *tgbotapi.Message) (*chatHandle, error) {
	tgID := message.From.ID

	b.mu.Lock()
	h, ok := b.handles[tgID]
	b.mu.Unlock()
	if ok && !h.Closed() {
		return h, nil
	}

	user, err := b.accounts.FindOrCreateTelegramUser(ctx, tgID, displayName(message.From))
	if err != nil {
		b.reply(message.Chat.ID, "⚠️ Service unavailable, please try again later.")
		return nil, err
	}

	h = newChatHandle(b.api, user.ID, message.Chat.ID, b.log)
	if err := b.dispatcher.Connect(ctx, user.ID, h); err != nil {
		_ = h.Close()
		return nil, err
	}

	b.mu.Lock()
	b.handles[tgID] = h
	b.mu.Unlock()
	return h, nil
}

// quit takes the user offline as if their connection dropped.
func (b *Bot) quit(tgID int64) {
	b.mu.Lock()
	h, ok := b.handles[tgID]
	delete(b.handles, tgID)
	b.mu.Unlock()
	if !ok {
		return
	}

	b.dispatcher.ConnectionClosed(h.userID, h.id)
	_ = h.Send(events.Disconnected{})
	_ = h.Close()
}

func (b *Bot) closeAll() {
	b.mu.Lock()
	handles := b.handles
	b.handles = make(map[int64]*chatHandle)
	b.mu.Unlock()

	for _, h := range handles {
		b.dispatcher.ConnectionClosed(h.userID, h.id)
		_ = h.Close()
	}
}

func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.log.Warnw("Failed to send message", "chat_id", chatID, "error", err)
	}
}

// parseFind reads "/find [gender] [country]" arguments in any order.
func parseFind(args string) (gender, country string) {
	for _, f := range strings.Fields(args) {
		switch strings.ToLower(f) {
		case models.RequestedGenderMale, models.RequestedGenderFemale, models.RequestedGenderAny:
			gender = strings.ToLower(f)
			continue
		}
		if len(f) == 2 {
			country = models.NormalizeCountry(f)
		}
	}
	return gender, country
}

func displayName(u *tgbotapi.User) string {
	if u.UserName != "" {
		return u.UserName
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
