// Package responder implements the per-conversation response-timer state
// machine: it arms a countdown when a conversation first sees inbound
// activity and sends a canned reply if no operator answers in time.
package responder

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/danhigham/autoresponder/internal/domain"
)

// ExpireFunc is invoked when a conversation's window elapses without an
// operator reply.
type ExpireFunc func(chatID int64, kind domain.ChatKind)

type entry struct {
	kind      domain.ChatKind
	responded bool
	timer     *time.Timer
}

// Registry tracks, per conversation, whether the operator has responded
// and owns the single pending timer for it. At most one live timer exists
// per conversation id; cancellation and fire are mutually exclusive under
// the lock.
type Registry struct {
	mu      sync.Mutex
	entries map[int64]*entry
	window  time.Duration
	expire  ExpireFunc
	logger  *zap.Logger
}

func NewRegistry(window time.Duration, expire ExpireFunc, logger *zap.Logger) *Registry {
	return &Registry{
		entries: make(map[int64]*entry),
		window:  window,
		expire:  expire,
		logger:  logger,
	}
}

// Track records inbound activity for a conversation. The first call arms
// the response timer; later calls before expiry are scheduling no-ops.
func (r *Registry) Track(chatID int64, kind domain.ChatKind) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[chatID]; ok {
		return
	}

	e := &entry{kind: kind}
	e.timer = time.AfterFunc(r.window, func() { r.fire(chatID) })
	r.entries[chatID] = e

	r.logger.Info("response timer armed",
		zap.Int64("chat_id", chatID),
		zap.String("kind", string(kind)),
		zap.Duration("window", r.window))
}

// MarkResponded records an operator reply, cancelling the pending timer.
// Returns false when the conversation is not tracked (e.g. the timer
// already fired), which is a no-op.
func (r *Registry) MarkResponded(chatID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[chatID]
	if !ok {
		return false
	}
	e.responded = true
	e.timer.Stop()
	delete(r.entries, chatID)

	r.logger.Info("response timer cancelled by operator reply",
		zap.Int64("chat_id", chatID))
	return true
}

// fire runs on the timer goroutine. The entry is removed under the lock
// before dispatching, so a concurrent MarkResponded either wins (timer
// stopped, entry gone) or finds nothing to cancel.
func (r *Registry) fire(chatID int64) {
	r.mu.Lock()
	e, ok := r.entries[chatID]
	if ok {
		delete(r.entries, chatID)
	}
	r.mu.Unlock()

	if !ok || e.responded {
		return
	}
	r.expire(chatID, e.kind)
}

// Len reports the number of tracked conversations.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Tracked reports whether a conversation currently has a pending timer.
func (r *Registry) Tracked(chatID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[chatID]
	return ok
}
