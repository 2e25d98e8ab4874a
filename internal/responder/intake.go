package responder

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/danhigham/autoresponder/internal/domain"
)

// ChatResolver looks up conversation metadata from the messaging platform.
type ChatResolver interface {
	ResolveChat(ctx context.Context, chatID int64) (domain.ChatInfo, error)
}

// Intake receives every inbound event from the Telegram client, arms the
// response timer, acknowledges writable private chats and optionally
// relays traffic to an administrator conversation.
type Intake struct {
	registry    *Registry
	dispatcher  *Dispatcher
	resolver    ChatResolver
	adminChatID int64
	logger      *zap.Logger
}

func NewIntake(registry *Registry, dispatcher *Dispatcher, resolver ChatResolver, adminChatID int64, logger *zap.Logger) *Intake {
	return &Intake{
		registry:    registry,
		dispatcher:  dispatcher,
		resolver:    resolver,
		adminChatID: adminChatID,
		logger:      logger,
	}
}

// OnNewMessage handles one inbound event. A message authored by us or by
// the administrator counts as the operator reply for its conversation;
// anything else is tracked and acknowledged.
func (h *Intake) OnNewMessage(msg domain.Message) {
	ctx := context.Background()

	if msg.Out {
		h.registry.MarkResponded(msg.ChatID)
		return
	}
	if h.adminChatID != 0 && msg.SenderID == h.adminChatID {
		h.registry.MarkResponded(msg.ChatID)
		return
	}

	info, err := h.resolver.ResolveChat(ctx, msg.ChatID)
	if err != nil {
		// Fail open: never silently drop a legitimate private chat.
		h.logger.Warn("could not resolve chat, assuming private with write access",
			zap.Int64("chat_id", msg.ChatID), zap.Error(err))
		info = domain.ChatInfo{Kind: domain.ChatPrivate, CanWrite: true}
	}

	// Diagnostic trigger: arm the timer without the usual ack/forward so
	// the auto-response path can be exercised on demand.
	if strings.TrimSpace(msg.Text) == "/test" {
		h.registry.Track(msg.ChatID, info.Kind)
		if err := h.dispatcher.SendSafe(ctx, msg.ChatID, "Testing auto-response. Stay silent to receive the canned reply."); err != nil {
			h.logger.Error("test trigger reply failed",
				zap.Int64("chat_id", msg.ChatID), zap.Error(err))
		}
		return
	}

	h.logger.Info("new message",
		zap.Int64("chat_id", msg.ChatID),
		zap.Int64("sender_id", msg.SenderID),
		zap.String("kind", string(info.Kind)))

	h.registry.Track(msg.ChatID, info.Kind)

	if info.Kind == domain.ChatPrivate && info.CanWrite {
		if err := h.dispatcher.SendSafe(ctx, msg.ChatID, h.dispatcher.texts.Ack); err != nil {
			h.logger.Error("acknowledgement failed",
				zap.Int64("chat_id", msg.ChatID), zap.Error(err))
		}
	} else if !info.CanWrite {
		h.logger.Info("cannot write to chat, skipping confirmation",
			zap.Int64("chat_id", msg.ChatID), zap.String("kind", string(info.Kind)))
	}

	if h.adminChatID != 0 && msg.ChatID != h.adminChatID {
		forward := fmt.Sprintf("New message from %s %d:\n%s", info.Kind, msg.ChatID, msg.Text)
		if err := h.dispatcher.SendSafe(ctx, h.adminChatID, forward); err != nil {
			h.logger.Error("forwarding to admin failed", zap.Error(err))
		}
	}
}
