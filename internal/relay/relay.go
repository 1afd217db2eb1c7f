// Package relay moves chat messages and typing signals between the two
// members of an active session.
package relay

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/omis-2025/strangerwave-sub000/internal/events"
	"github.com/omis-2025/strangerwave-sub000/internal/metrics"
	"github.com/omis-2025/strangerwave-sub000/internal/models"
	"github.com/omis-2025/strangerwave-sub000/internal/moderation"
	"github.com/omis-2025/strangerwave-sub000/internal/registry"
	"github.com/omis-2025/strangerwave-sub000/internal/security"
	"github.com/omis-2025/strangerwave-sub000/internal/session"
	"github.com/omis-2025/strangerwave-sub000/internal/store"
	"github.com/omis-2025/strangerwave-sub000/internal/translation"
	"github.com/omis-2025/strangerwave-sub000/pkg/errors"
	"github.com/omis-2025/strangerwave-sub000/pkg/logger"
)

const defaultBanReason = "automatic moderation"

// Limiter decides whether a user may send another message right now.
type Limiter interface {
	CheckUserLimit(userID uint) bool
}

// InterestSink receives message text for asynchronous interest extraction.
type InterestSink interface {
	Enqueue(userID uint, content string) bool
}

type Options struct {
	MaxMessageLength int
	SuppressFlagged  bool
	// GateTimeout bounds each moderation and translation call.
	GateTimeout time.Duration
}

type Relay struct {
	sessions   *session.Manager
	users      store.UserMetricsStore
	messages   store.SessionStore
	registry   *registry.Registry
	moderation moderation.Gate
	translator translation.Gate
	limiter    Limiter
	interests  InterestSink

	opts Options
	log  *zap.SugaredLogger
}

func New(
	sessions *session.Manager,
	users store.UserMetricsStore,
	messages store.SessionStore,
	reg *registry.Registry,
	mod moderation.Gate,
	translator translation.Gate,
	limiter Limiter,
	interests InterestSink,
	opts Options,
) *Relay {
	if mod == nil {
		mod = moderation.Noop{}
	}
	if translator == nil {
		translator = translation.Noop{}
	}
	if opts.MaxMessageLength <= 0 {
		opts.MaxMessageLength = 1000
	}
	if opts.GateTimeout <= 0 {
		opts.GateTimeout = 5 * time.Second
	}
	return &Relay{
		sessions:   sessions,
		users:      users,
		messages:   messages,
		registry:   reg,
		moderation: mod,
		translator: translator,
		limiter:    limiter,
		interests:  interests,
		opts:       opts,
		log:        logger.Named("relay"),
	}
}

// Send delivers content from senderID to their partner. The returned error is
// meant for the sender only.
func (r *Relay) Send(ctx context.Context, senderID uint, content string) error {
	s, ok := r.sessions.ActiveFor(senderID)
	if !ok {
		return errors.New(errors.ErrCodeNoActiveSession, "you are not in a chat")
	}

	sender, err := r.users.GetUser(ctx, senderID)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeCollaboratorFailure, "failed to load your profile")
	}
	if sender.IsBanned {
		return errors.New(errors.ErrCodePolicyRejection, "you are banned")
	}

	if r.limiter != nil && !r.limiter.CheckUserLimit(senderID) {
		metrics.RecordMessage("rate_limited")
		return errors.New(errors.ErrCodeRateLimitExceeded, "you are sending messages too fast")
	}

	content = security.SanitizeMessage(content, r.opts.MaxMessageLength)
	if content == "" {
		return errors.New(errors.ErrCodeValidation, "message is empty")
	}

	verdict := r.moderate(ctx, senderID, content)
	if verdict.ShouldAutoBan {
		metrics.RecordMessage("suppressed")
		r.autoBan(ctx, s, senderID, verdict.Reason)
		return nil
	}
	if verdict.Flagged && r.opts.SuppressFlagged {
		metrics.RecordMessage("suppressed")
		r.log.Infow("flagged message suppressed", "user_id", senderID, "session_id", s.ID, "toxicity", verdict.ToxicityScore)
		return errors.New(errors.ErrCodePolicyRejection, "your message was blocked by moderation")
	}

	partnerID := s.PartnerOf(senderID)
	tr := r.translate(ctx, sender, partnerID, content)

	msg := &models.Message{
		SessionID:        s.ID,
		SenderID:         senderID,
		Content:          content,
		DetectedLanguage: tr.detected,
		IsTranslated:     tr.translated,
	}
	if tr.translated {
		original := content
		translated := tr.text
		msg.OriginalContent = &original
		msg.TranslatedContent = &translated
	}

	err = s.WithRelayLock(func() error {
		if s.Ended() {
			return errors.New(errors.ErrCodeNoActiveSession, "your chat has ended")
		}
		if err := r.messages.SaveMessage(ctx, msg); err != nil {
			metrics.RecordMessage("store_error")
			r.log.Errorw("failed to save message", "session_id", s.ID, "user_id", senderID, "error", err)
			return errors.Wrap(err, errors.ErrCodeCollaboratorFailure, "your message could not be delivered")
		}

		own := events.Message{
			ID:               msg.ID,
			Content:          content,
			SenderID:         senderID,
			Timestamp:        msg.CreatedAt,
			DetectedLanguage: tr.detected,
		}
		r.registry.Send(senderID, own)

		out := own
		if tr.translated {
			out.Content = tr.text
			out.IsTranslated = true
			out.OriginalContent = msg.OriginalContent
		}
		r.registry.Send(partnerID, out)

		r.sessions.RecordMessage(s.ID, senderID)
		return nil
	})
	if err != nil {
		return err
	}

	metrics.RecordMessage("delivered")
	if r.interests != nil {
		r.interests.Enqueue(senderID, content)
	}
	return nil
}

// Typing forwards the typing indicator to the partner only.
func (r *Relay) Typing(senderID uint, isTyping bool) error {
	s, ok := r.sessions.ActiveFor(senderID)
	if !ok {
		return errors.New(errors.ErrCodeNoActiveSession, "you are not in a chat")
	}
	r.registry.Send(s.PartnerOf(senderID), events.Typing{IsTyping: isTyping})
	return nil
}

func (r *Relay) moderate(ctx context.Context, senderID uint, content string) moderation.Verdict {
	gctx, cancel := context.WithTimeout(ctx, r.opts.GateTimeout)
	defer cancel()

	verdict, err := r.moderation.Evaluate(gctx, senderID, content)
	if err != nil {
		metrics.RecordGateFailure("moderation")
		r.log.Warnw("moderation unavailable, passing message through", "user_id", senderID, "error", err)
		return moderation.Verdict{}
	}
	return verdict
}

// autoBan bans the sender, ends their session and drops their connection.
func (r *Relay) autoBan(ctx context.Context, s *session.Session, senderID uint, reason string) {
	if reason == "" {
		reason = defaultBanReason
	}
	if err := r.users.BanUser(ctx, senderID, reason); err != nil {
		r.log.Errorw("failed to persist ban", "user_id", senderID, "error", err)
	}
	metrics.AutoBans.Inc()
	r.log.Warnw("user auto-banned", "user_id", senderID, "session_id", s.ID, "reason", reason)

	r.sessions.End(ctx, s.ID, senderID, session.ReasonBanned)

	if h := r.registry.Unregister(senderID); h != nil {
		if err := h.Close(); err != nil {
			r.log.Debugw("closing banned connection", "user_id", senderID, "error", err)
		}
	}
}

type translationResult struct {
	detected   string
	text       string
	translated bool
}

func (r *Relay) translate(ctx context.Context, sender *models.User, partnerID uint, content string) translationResult {
	gctx, cancel := context.WithTimeout(ctx, r.opts.GateTimeout)
	defer cancel()

	res := translationResult{text: content}

	detected, err := r.translator.DetectLanguage(gctx, content)
	if err != nil {
		metrics.RecordGateFailure("translation")
		r.log.Debugw("language detection failed", "user_id", sender.ID, "error", err)
	}
	res.detected = detected

	recipient, err := r.users.GetUser(ctx, partnerID)
	if err != nil || recipient.PreferredLanguage == "" {
		return res
	}

	from := detected
	if from == "" {
		from = sender.PreferredLanguage
	}
	if from == recipient.PreferredLanguage {
		return res
	}

	text, err := r.translator.Translate(gctx, content, from, recipient.PreferredLanguage)
	if err != nil {
		metrics.RecordGateFailure("translation")
		r.log.Warnw("translation failed, passing message through", "user_id", sender.ID, "error", err)
		return res
	}
	if text != "" && text != content {
		res.text = text
		res.translated = true
	}
	return res
}
