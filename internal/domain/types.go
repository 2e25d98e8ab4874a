package domain

import (
	"errors"
	"time"
)

// ChatKind classifies a conversation as one-to-one or multi-party.
type ChatKind string

const (
	ChatPrivate ChatKind = "private"
	ChatGroup   ChatKind = "group"
)

// Message is an inbound or outbound Telegram message as seen by the
// responder.
type Message struct {
	ID        int
	ChatID    int64
	SenderID  int64
	Text      string
	Timestamp time.Time
	Out       bool // true if sent by us
}

// ChatInfo carries the metadata the intake handler needs to decide how
// to react to an inbound message.
type ChatInfo struct {
	Kind     ChatKind
	CanWrite bool
}

// Outcome is the result of a control-plane operation, reported to the
// HTTP caller as-is.
type Outcome struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Needs2FA bool   `json:"needs2FA,omitempty"`
}

// ErrUnknownRecipient marks a send failure caused by the peer not being
// resolvable. For one-to-one chats the sender may retry after registering
// the peer as a contact.
var ErrUnknownRecipient = errors.New("unknown recipient")
