package telegram

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/telegram/message"
	"github.com/gotd/td/telegram/query/dialogs"
	"github.com/gotd/td/telegram/updates"
	"github.com/gotd/td/tg"

	"github.com/danhigham/autoresponder/internal/domain"
)

// GotdClient implements the Client interface using gotd/td.
type GotdClient struct {
	apiID   int
	apiHash string
	storage session.Storage
	handler EventHandler
	// authFlow, when set, drives interactive authentication. When nil the
	// client requires an already-authorized session, or a bot token.
	authFlow auth.UserAuthenticator
	botToken string
	logger   *zap.Logger

	client *telegram.Client
	api    *tg.Client
	sender *message.Sender
	gaps   *updates.Manager
	self   *tg.User

	peerCache map[int64]tg.InputPeerClass
	mu        sync.Mutex

	onReady func()
}

func NewGotdClient(apiID int, apiHash string, storage session.Storage, handler EventHandler, authFlow auth.UserAuthenticator, logger *zap.Logger) *GotdClient {
	return &GotdClient{
		apiID:     apiID,
		apiHash:   apiHash,
		storage:   storage,
		handler:   handler,
		authFlow:  authFlow,
		logger:    logger,
		peerCache: make(map[int64]tg.InputPeerClass),
	}
}

// SetOnReady registers a callback invoked once the client is connected
// and authorized.
func (c *GotdClient) SetOnReady(fn func()) {
	c.onReady = fn
}

// SetBotToken makes the client authenticate as a bot instead of relying
// on a stored user session. Used by the diagnostic bot variant.
func (c *GotdClient) SetBotToken(token string) {
	c.botToken = token
}

// Run starts the Telegram client and blocks until ctx is cancelled.
func (c *GotdClient) Run(ctx context.Context) error {
	dispatcher := tg.NewUpdateDispatcher()

	dispatcher.OnNewMessage(func(ctx context.Context, e tg.Entities, update *tg.UpdateNewMessage) error {
		msg, ok := update.Message.(*tg.Message)
		if !ok {
			return nil
		}
		if c.handler != nil {
			c.handler.OnNewMessage(c.convertMessage(msg))
		}
		return nil
	})

	dispatcher.OnNewChannelMessage(func(ctx context.Context, e tg.Entities, update *tg.UpdateNewChannelMessage) error {
		msg, ok := update.Message.(*tg.Message)
		if !ok {
			return nil
		}
		if c.handler != nil {
			c.handler.OnNewMessage(c.convertMessage(msg))
		}
		return nil
	})

	c.gaps = updates.New(updates.Config{
		Handler: dispatcher,
		Logger:  c.logger.Named("gaps"),
	})

	c.client = telegram.NewClient(c.apiID, c.apiHash, telegram.Options{
		Logger:         c.logger,
		UpdateHandler:  c.gaps,
		SessionStorage: c.storage,
	})

	return c.client.Run(ctx, func(ctx context.Context) error {
		if c.authFlow != nil {
			flow := auth.NewFlow(c.authFlow, auth.SendCodeOptions{})
			if err := c.client.Auth().IfNecessary(ctx, flow); err != nil {
				return fmt.Errorf("auth: %w", err)
			}
		} else {
			status, err := c.client.Auth().Status(ctx)
			if err != nil {
				return fmt.Errorf("auth status: %w", err)
			}
			if !status.Authorized {
				if c.botToken == "" {
					return fmt.Errorf("session is not authorized, authenticate first")
				}
				if _, err := c.client.Auth().Bot(ctx, c.botToken); err != nil {
					return fmt.Errorf("bot auth: %w", err)
				}
			}
		}

		self, err := c.client.Self(ctx)
		if err != nil {
			return fmt.Errorf("get self: %w", err)
		}
		c.self = self

		c.api = c.client.API()
		c.sender = message.NewSender(c.api)

		// Populate the peer cache so existing conversations can be
		// answered without a resolve round trip.
		if err := c.loadDialogs(ctx); err != nil {
			c.logger.Warn("failed to load initial dialogs", zap.Error(err))
		}

		if c.onReady != nil {
			c.onReady()
		}

		return c.gaps.Run(ctx, c.api, self.ID, updates.AuthOptions{})
	})
}

// SendMessage sends a text message to the given chat. An unresolvable
// peer yields domain.ErrUnknownRecipient so the caller can attempt the
// contact-registration retry.
func (c *GotdClient) SendMessage(ctx context.Context, chatID int64, text string) error {
	peer := c.findPeer(chatID)
	if peer == nil {
		return fmt.Errorf("chat %d: %w", chatID, domain.ErrUnknownRecipient)
	}
	_, err := c.sender.To(peer).Text(ctx, text)
	return err
}

// ResolveChat classifies a conversation and checks whether we may write
// to it. Callers treat an error as "assume private, assume writable".
func (c *GotdClient) ResolveChat(ctx context.Context, chatID int64) (domain.ChatInfo, error) {
	peer := c.findPeer(chatID)
	if peer == nil {
		return domain.ChatInfo{}, fmt.Errorf("chat %d: %w", chatID, domain.ErrUnknownRecipient)
	}

	switch p := peer.(type) {
	case *tg.InputPeerUser:
		return domain.ChatInfo{Kind: domain.ChatPrivate, CanWrite: true}, nil
	case *tg.InputPeerChat:
		return domain.ChatInfo{Kind: domain.ChatGroup, CanWrite: true}, nil
	case *tg.InputPeerChannel:
		return domain.ChatInfo{Kind: domain.ChatGroup, CanWrite: c.canWriteChannel(ctx, p)}, nil
	default:
		return domain.ChatInfo{Kind: domain.ChatPrivate, CanWrite: true}, nil
	}
}

// canWriteChannel checks our own participant record. Lookup failures are
// treated as writable, matching the fail-open intake policy.
func (c *GotdClient) canWriteChannel(ctx context.Context, peer *tg.InputPeerChannel) bool {
	res, err := c.api.ChannelsGetParticipant(ctx, &tg.ChannelsGetParticipantRequest{
		Channel:     &tg.InputChannel{ChannelID: peer.ChannelID, AccessHash: peer.AccessHash},
		Participant: &tg.InputPeerSelf{},
	})
	if err != nil {
		c.logger.Info("could not check permissions, assuming can write",
			zap.Int64("channel_id", peer.ChannelID), zap.Error(err))
		return true
	}
	if banned, ok := res.Participant.(*tg.ChannelParticipantBanned); ok {
		return !banned.BannedRights.SendMessages
	}
	return true
}

// ImportContact registers a user as a contact so that a send can be
// retried against a now-known peer.
func (c *GotdClient) ImportContact(ctx context.Context, userID int64) error {
	upd, err := c.api.ContactsAddContact(ctx, &tg.ContactsAddContactRequest{
		ID:        &tg.InputUser{UserID: userID},
		FirstName: "User",
		LastName:  fmt.Sprintf("ID%d", userID),
		Phone:     "",
	})
	if err != nil {
		return fmt.Errorf("add contact %d: %w", userID, err)
	}

	// Cache the peer carried in the resulting update so the retry can
	// address it.
	if u, ok := upd.(*tg.Updates); ok {
		for _, uc := range u.Users {
			user, ok := uc.(*tg.User)
			if !ok || user.ID != userID {
				continue
			}
			c.cachePeer(userID, &tg.InputPeerUser{UserID: user.ID, AccessHash: user.AccessHash})
		}
	}
	return nil
}

// loadDialogs walks the dialog list and caches every peer.
func (c *GotdClient) loadDialogs(ctx context.Context) error {
	queryBuilder := dialogs.NewQueryBuilder(c.api)
	iter := queryBuilder.GetDialogs().BatchSize(100).Iter()

	count := 0
	for iter.Next(ctx) {
		elem := iter.Value()
		peerID := peerIDFromInputPeer(elem.Peer)
		if peerID != 0 {
			c.cachePeer(peerID, elem.Peer)
			count++
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("iterate dialogs: %w", err)
	}

	c.logger.Info("peer cache primed", zap.Int("dialogs", count))
	return nil
}

func (c *GotdClient) findPeer(chatID int64) tg.InputPeerClass {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peerCache[chatID]
}

func (c *GotdClient) cachePeer(chatID int64, peer tg.InputPeerClass) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.peerCache[chatID] = peer
}

// convertMessage converts a tg.Message to a domain.Message.
func (c *GotdClient) convertMessage(msg *tg.Message) domain.Message {
	var senderID int64
	if fromID := msg.FromID; fromID != nil {
		switch p := fromID.(type) {
		case *tg.PeerUser:
			senderID = p.UserID
		case *tg.PeerChat:
			senderID = p.ChatID
		case *tg.PeerChannel:
			senderID = p.ChannelID
		}
	}

	var chatID int64
	if peerID := msg.PeerID; peerID != nil {
		switch p := peerID.(type) {
		case *tg.PeerUser:
			chatID = p.UserID
		case *tg.PeerChat:
			chatID = p.ChatID
		case *tg.PeerChannel:
			chatID = p.ChannelID
		}
	}

	// In DMs, FromID is often nil. Derive the sender from PeerID and the
	// Out flag.
	if senderID == 0 {
		if !msg.Out {
			if p, ok := msg.PeerID.(*tg.PeerUser); ok {
				senderID = p.UserID
			}
		} else if c.self != nil {
			senderID = c.self.ID
		}
	}

	return domain.Message{
		ID:        msg.ID,
		ChatID:    chatID,
		SenderID:  senderID,
		Text:      msg.Message,
		Timestamp: time.Unix(int64(msg.Date), 0),
		Out:       msg.Out,
	}
}

// peerIDFromInputPeer extracts a numeric peer ID from an InputPeerClass.
func peerIDFromInputPeer(peer tg.InputPeerClass) int64 {
	switch p := peer.(type) {
	case *tg.InputPeerUser:
		return p.UserID
	case *tg.InputPeerChat:
		return p.ChatID
	case *tg.InputPeerChannel:
		return p.ChannelID
	default:
		return 0
	}
}
