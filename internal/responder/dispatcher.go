package responder

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/danhigham/autoresponder/internal/domain"
)

// MessageSender is the slice of the Telegram client the dispatcher needs.
type MessageSender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	ImportContact(ctx context.Context, userID int64) error
}

// ReplyTexts holds the canned messages. Text depends only on the chat
// kind, never on the conversation.
type ReplyTexts struct {
	Private string
	Group   string
	Ack     string
}

// DefaultReplyTexts returns the stock wording.
func DefaultReplyTexts() ReplyTexts {
	return ReplyTexts{
		Private: "Thank you for reaching out! I'll review your message and get back to you as soon as possible. If this is urgent, please call our support line.",
		Group:   "Thank you for your message! Our team will get back to you shortly. We typically respond within 24 hours during business days.",
		Ack:     "Message received! I'll review and respond shortly.",
	}
}

// For returns the canned reply for a chat kind.
func (t ReplyTexts) For(kind domain.ChatKind) string {
	if kind == domain.ChatGroup {
		return t.Group
	}
	return t.Private
}

// Dispatcher sends the canned reply when a response window expires.
// Delivery failures are logged and swallowed; they never escalate.
type Dispatcher struct {
	sender MessageSender
	texts  ReplyTexts
	logger *zap.Logger
}

func NewDispatcher(sender MessageSender, texts ReplyTexts, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{sender: sender, texts: texts, logger: logger}
}

// Dispatch composes and delivers the canned reply for an expired window.
func (d *Dispatcher) Dispatch(ctx context.Context, chatID int64, kind domain.ChatKind) {
	if err := d.SendSafe(ctx, chatID, d.texts.For(kind)); err != nil {
		d.logger.Error("auto-response delivery failed",
			zap.Int64("chat_id", chatID),
			zap.String("kind", string(kind)),
			zap.Error(err))
		return
	}
	d.logger.Info("auto-response sent",
		zap.Int64("chat_id", chatID),
		zap.String("kind", string(kind)))
}

// SendSafe attempts a direct send. When the peer is unknown and the chat
// id denotes a user, it registers the peer as a contact and retries once.
func (d *Dispatcher) SendSafe(ctx context.Context, chatID int64, text string) error {
	err := d.sender.SendMessage(ctx, chatID, text)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrUnknownRecipient) || chatID <= 0 {
		return err
	}

	d.logger.Info("attempting to add user to contacts", zap.Int64("user_id", chatID))
	if impErr := d.sender.ImportContact(ctx, chatID); impErr != nil {
		d.logger.Warn("could not add user to contacts",
			zap.Int64("user_id", chatID), zap.Error(impErr))
		return err
	}
	return d.sender.SendMessage(ctx, chatID, text)
}
