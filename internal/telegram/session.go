package telegram

import (
	"context"

	"github.com/gotd/td/session"

	"github.com/danhigham/autoresponder/internal/config"
)

// RecordSession keeps the gotd session blob in the SESSION field of the
// persisted credential record. The record is read and written wholesale,
// so credentials are preserved across session updates.
type RecordSession struct {
	store *config.RecordStore
}

func NewRecordSession(store *config.RecordStore) *RecordSession {
	return &RecordSession{store: store}
}

func (s *RecordSession) LoadSession(ctx context.Context) ([]byte, error) {
	rec, err := s.store.Load()
	if err != nil {
		return nil, err
	}
	if rec.Session == "" {
		return nil, session.ErrNotFound
	}
	return []byte(rec.Session), nil
}

func (s *RecordSession) StoreSession(ctx context.Context, data []byte) error {
	return s.store.SetSession(string(data))
}
