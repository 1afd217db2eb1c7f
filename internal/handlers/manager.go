// Package handlers turns client events from any transport into calls on the
// matchmaking core.
package handlers

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/omis-2025/strangerwave-sub000/internal/events"
	"github.com/omis-2025/strangerwave-sub000/internal/matching"
	"github.com/omis-2025/strangerwave-sub000/internal/metrics"
	"github.com/omis-2025/strangerwave-sub000/internal/registry"
	"github.com/omis-2025/strangerwave-sub000/internal/relay"
	"github.com/omis-2025/strangerwave-sub000/internal/session"
	"github.com/omis-2025/strangerwave-sub000/internal/store"
	"github.com/omis-2025/strangerwave-sub000/pkg/errors"
	"github.com/omis-2025/strangerwave-sub000/pkg/logger"
)

type HandlerManager struct {
	Registry *registry.Registry
	Engine   *matching.Engine
	Sessions *session.Manager
	Relay    *relay.Relay
	Users    store.UserMetricsStore

	log *zap.SugaredLogger
}

func NewHandlerManager(
	reg *registry.Registry,
	engine *matching.Engine,
	sessions *session.Manager,
	rl *relay.Relay,
	users store.UserMetricsStore,
) *HandlerManager {
	return &HandlerManager{
		Registry: reg,
		Engine:   engine,
		Sessions: sessions,
		Relay:    rl,
		Users:    users,
		log:      logger.Named("dispatcher"),
	}
}

// Connect binds a freshly opened connection to userID. A previous connection
// of the same user is closed. Banned users are told so and disconnected.
func (h *HandlerManager) Connect(ctx context.Context, userID uint, handle registry.Handle) error {
	user, err := h.Users.GetUser(ctx, userID)
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeNotFound) {
			return err
		}
		return errors.Wrap(err, errors.ErrCodeCollaboratorFailure, "failed to load user")
	}
	if user.IsBanned {
		_ = handle.Send(events.Banned{Reason: user.BanReason})
		_ = handle.Close()
		return errors.New(errors.ErrCodePolicyRejection, "you are banned")
	}

	if prev := h.Registry.Register(userID, handle); prev != nil {
		h.log.Infow("replacing existing connection", "user_id", userID, "old_handle", prev.ID(), "new_handle", handle.ID())
		if err := prev.Close(); err != nil {
			h.log.Debugw("closing replaced connection", "user_id", userID, "error", err)
		}
	}
	metrics.ConnectedUsers.Set(float64(h.Registry.Count()))

	h.Registry.Send(userID, events.Connected{UserID: userID})
	h.log.Debugw("user connected", "user_id", userID, "handle", handle.ID())
	return nil
}

// Handle processes one inbound event. Failures are reported to the
// originating user as an error event.
func (h *HandlerManager) Handle(ctx context.Context, userID uint, in *events.Inbound) {
	if in == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			h.log.Errorw("panic while handling event", "user_id", userID, "type", in.Type, "panic", fmt.Sprint(r))
			h.Registry.Send(userID, events.Error{Error: "internal error"})
		}
	}()

	if err := h.dispatch(ctx, userID, in); err != nil {
		if code := errors.CodeOf(err); code == "" || code == errors.ErrCodeInternalError || code == errors.ErrCodeCollaboratorFailure {
			h.log.Warnw("event failed", "user_id", userID, "type", in.Type, "error", err)
		}
		h.Registry.Send(userID, events.Error{Error: errors.ClientMessage(err)})
	}
}

func (h *HandlerManager) dispatch(ctx context.Context, userID uint, in *events.Inbound) error {
	switch in.Type {
	case events.TypeJoinQueue:
		return h.Engine.Join(ctx, userID, matching.Preferences{
			PreferredGender: in.PreferredGender,
			Country:         in.Country,
		})

	case events.TypeLeaveQueue:
		h.Engine.Leave(userID)
		h.Registry.Send(userID, events.QueueLeft{})
		return nil

	case events.TypeSendMessage:
		return h.Relay.Send(ctx, userID, in.Content)

	case events.TypeTyping:
		return h.Relay.Typing(userID, in.IsTyping)

	case events.TypeDisconnect:
		h.Engine.Leave(userID)
		if !h.Sessions.EndForUser(ctx, userID, session.ReasonDisconnect) {
			h.Registry.Send(userID, events.Disconnected{})
		}
		return nil
	}
	return errors.New(errors.ErrCodeValidation, "unknown event type: "+in.Type)
}

// ConnectionClosed releases everything the user held, unless the closing
// connection was already replaced by a newer one.
func (h *HandlerManager) ConnectionClosed(userID uint, handleID string) bool {
	if !h.Registry.UnregisterIf(userID, handleID) {
		return false
	}
	metrics.ConnectedUsers.Set(float64(h.Registry.Count()))

	h.Engine.Leave(userID)
	h.Sessions.EndForUser(context.Background(), userID, session.ReasonConnectionLost)
	h.log.Debugw("user disconnected", "user_id", userID, "handle", handleID)
	return true
}

// Shutdown ends every session, empties the queue and closes all connections
// before the process exits.
func (h *HandlerManager) Shutdown(ctx context.Context) {
	ended := h.Sessions.EndAll(ctx, session.ReasonShutdown)
	drained := h.Engine.Shutdown()

	closed := 0
	for _, userID := range h.Registry.Users() {
		if handle := h.Registry.Unregister(userID); handle != nil {
			_ = handle.Close()
			closed++
		}
	}
	metrics.ConnectedUsers.Set(0)
	h.log.Infow("matchmaking stopped", "sessions_ended", ended, "queue_drained", drained, "connections_closed", closed)
}
