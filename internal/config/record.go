package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Record is the persisted credential record. It is read and written
// wholesale; SESSION is an opaque session token, empty when the account
// has not been authenticated yet.
type Record struct {
	APIID   string `json:"T_API_ID"`
	APIHash string `json:"T_API_HASH"`
	Session string `json:"SESSION"`
}

// Authenticated reports whether the record carries a usable session token.
func (r Record) Authenticated() bool {
	return r.Session != ""
}

// RecordStore loads and saves the credential record at a fixed path.
// Both the control plane and the handshake child go through this type,
// so access is serialized within a process.
type RecordStore struct {
	mu   sync.Mutex
	path string
}

func NewRecordStore(path string) *RecordStore {
	return &RecordStore{path: path}
}

// Path returns the record's location, handed to child processes via the
// environment so every process reads the same record.
func (s *RecordStore) Path() string {
	return s.path
}

// Load reads the record. A missing file yields an empty record.
func (s *RecordStore) Load() (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rec Record
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return rec, nil
		}
		return rec, fmt.Errorf("read credential record: %w", err)
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("parse credential record: %w", err)
	}
	return rec, nil
}

// Save writes the whole record, replacing whatever was there.
func (s *RecordStore) Save(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credential record: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("write credential record: %w", err)
	}
	return nil
}

// SetCredentials updates the API credentials while preserving the session
// token. Used by the send-code step before spawning the handshake child.
func (s *RecordStore) SetCredentials(apiID, apiHash string) error {
	rec, err := s.Load()
	if err != nil {
		return err
	}
	rec.APIID = apiID
	rec.APIHash = apiHash
	return s.Save(rec)
}

// SetSession overwrites the session token, preserving the credentials.
// Only called after an authentication flow has completed.
func (s *RecordStore) SetSession(session string) error {
	rec, err := s.Load()
	if err != nil {
		return err
	}
	rec.Session = session
	return s.Save(rec)
}
