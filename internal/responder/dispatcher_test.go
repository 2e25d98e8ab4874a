package responder_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/danhigham/autoresponder/internal/domain"
	"github.com/danhigham/autoresponder/internal/responder"
)

// fakeSender records sends and can be scripted to fail.
type fakeSender struct {
	mu       sync.Mutex
	sent     []sentMessage
	imported []int64

	// failFirst makes the first send to a chat fail with this error.
	failFirst map[int64]error
	failAll   error
}

type sentMessage struct {
	chatID int64
	text   string
}

func newFakeSender() *fakeSender {
	return &fakeSender{failFirst: make(map[int64]error)}
}

func (f *fakeSender) SendMessage(ctx context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return f.failAll
	}
	if err, ok := f.failFirst[chatID]; ok {
		delete(f.failFirst, chatID)
		return err
	}
	f.sent = append(f.sent, sentMessage{chatID, text})
	return nil
}

func (f *fakeSender) ImportContact(ctx context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.imported = append(f.imported, userID)
	return nil
}

func (f *fakeSender) sentTo(chatID int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var texts []string
	for _, m := range f.sent {
		if m.chatID == chatID {
			texts = append(texts, m.text)
		}
	}
	return texts
}

func TestReplyTexts_DependOnlyOnKind(t *testing.T) {
	texts := responder.DefaultReplyTexts()

	if texts.For(domain.ChatPrivate) == texts.For(domain.ChatGroup) {
		t.Error("private and group canned texts must differ")
	}
	if texts.For(domain.ChatPrivate) != texts.Private {
		t.Error("For(private) should return the private text")
	}
	if texts.For(domain.ChatGroup) != texts.Group {
		t.Error("For(group) should return the group text")
	}
}

func TestDispatcher_SendsCannedReply(t *testing.T) {
	sender := newFakeSender()
	d := responder.NewDispatcher(sender, responder.DefaultReplyTexts(), zap.NewNop())

	d.Dispatch(context.Background(), 10, domain.ChatPrivate)
	d.Dispatch(context.Background(), 20, domain.ChatGroup)

	if got := sender.sentTo(10); len(got) != 1 || got[0] != responder.DefaultReplyTexts().Private {
		t.Errorf("private dispatch = %q", got)
	}
	if got := sender.sentTo(20); len(got) != 1 || got[0] != responder.DefaultReplyTexts().Group {
		t.Errorf("group dispatch = %q", got)
	}
}

func TestDispatcher_UnknownRecipientRegistersContactAndRetries(t *testing.T) {
	sender := newFakeSender()
	sender.failFirst[55] = fmt.Errorf("chat 55: %w", domain.ErrUnknownRecipient)
	d := responder.NewDispatcher(sender, responder.DefaultReplyTexts(), zap.NewNop())

	if err := d.SendSafe(context.Background(), 55, "hello"); err != nil {
		t.Fatalf("SendSafe() error: %v", err)
	}
	if len(sender.imported) != 1 || sender.imported[0] != 55 {
		t.Errorf("imported = %v, want [55]", sender.imported)
	}
	if got := sender.sentTo(55); len(got) != 1 {
		t.Errorf("sends after retry = %d, want 1", len(got))
	}
}

func TestDispatcher_NoContactRetryForGroups(t *testing.T) {
	sender := newFakeSender()
	sender.failFirst[-100] = fmt.Errorf("chat -100: %w", domain.ErrUnknownRecipient)
	d := responder.NewDispatcher(sender, responder.DefaultReplyTexts(), zap.NewNop())

	if err := d.SendSafe(context.Background(), -100, "hello"); err == nil {
		t.Fatal("SendSafe() for unknown group = nil, want error")
	}
	if len(sender.imported) != 0 {
		t.Errorf("imported = %v, want none for a group chat", sender.imported)
	}
}

func TestDispatcher_DeliveryFailureIsSwallowed(t *testing.T) {
	sender := newFakeSender()
	sender.failAll = errors.New("network down")
	d := responder.NewDispatcher(sender, responder.DefaultReplyTexts(), zap.NewNop())

	// Must not panic or escalate.
	d.Dispatch(context.Background(), 10, domain.ChatPrivate)

	if len(sender.sentTo(10)) != 0 {
		t.Error("unexpected successful send")
	}
}
