package telegram

import (
	"testing"

	"github.com/gotd/td/tg"
	"go.uber.org/zap"
)

func newTestClient() *GotdClient {
	return NewGotdClient(12345, "abcdef", nil, nil, nil, zap.NewNop())
}

func TestConvertMessage_PrivateInbound(t *testing.T) {
	c := newTestClient()

	msg := c.convertMessage(&tg.Message{
		ID:      7,
		PeerID:  &tg.PeerUser{UserID: 100},
		Message: "hello",
		Date:    1700000000,
	})

	if msg.ChatID != 100 {
		t.Errorf("ChatID = %d, want 100", msg.ChatID)
	}
	// FromID is nil in DMs; the sender is derived from the peer.
	if msg.SenderID != 100 {
		t.Errorf("SenderID = %d, want 100", msg.SenderID)
	}
	if msg.Out {
		t.Error("inbound message flagged Out")
	}
	if msg.Text != "hello" {
		t.Errorf("Text = %q", msg.Text)
	}
}

func TestConvertMessage_Outbound(t *testing.T) {
	c := newTestClient()
	c.self = &tg.User{ID: 555}

	msg := c.convertMessage(&tg.Message{
		ID:      8,
		Out:     true,
		PeerID:  &tg.PeerUser{UserID: 100},
		Message: "on it",
	})

	if !msg.Out {
		t.Error("outbound message not flagged Out")
	}
	if msg.SenderID != 555 {
		t.Errorf("SenderID = %d, want self", msg.SenderID)
	}
	if msg.ChatID != 100 {
		t.Errorf("ChatID = %d, want 100", msg.ChatID)
	}
}

func TestConvertMessage_GroupSender(t *testing.T) {
	c := newTestClient()

	msg := c.convertMessage(&tg.Message{
		ID:      9,
		FromID:  &tg.PeerUser{UserID: 42},
		PeerID:  &tg.PeerChat{ChatID: 900},
		Message: "hey all",
	})

	if msg.ChatID != 900 {
		t.Errorf("ChatID = %d, want 900", msg.ChatID)
	}
	if msg.SenderID != 42 {
		t.Errorf("SenderID = %d, want 42", msg.SenderID)
	}
}

func TestPeerIDFromInputPeer(t *testing.T) {
	tests := []struct {
		peer tg.InputPeerClass
		want int64
	}{
		{&tg.InputPeerUser{UserID: 1}, 1},
		{&tg.InputPeerChat{ChatID: 2}, 2},
		{&tg.InputPeerChannel{ChannelID: 3}, 3},
		{&tg.InputPeerSelf{}, 0},
	}
	for _, tt := range tests {
		if got := peerIDFromInputPeer(tt.peer); got != tt.want {
			t.Errorf("peerIDFromInputPeer(%T) = %d, want %d", tt.peer, got, tt.want)
		}
	}
}
