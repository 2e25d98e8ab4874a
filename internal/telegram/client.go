package telegram

import (
	"context"

	"github.com/danhigham/autoresponder/internal/domain"
)

// EventHandler receives inbound events from the Telegram client.
type EventHandler interface {
	OnNewMessage(msg domain.Message)
}

// Client is the interface the responder needs from Telegram.
type Client interface {
	Run(ctx context.Context) error
	SendMessage(ctx context.Context, chatID int64, text string) error
	ResolveChat(ctx context.Context, chatID int64) (domain.ChatInfo, error)
	ImportContact(ctx context.Context, userID int64) error
}
