// Package prefs is the preference store: durable key-value slots for the
// instruction template and the tracker credentials, loaded once at startup
// and written through synchronously on every change.
//
// Values are stored in plain text. The database file is chmod 0600, but
// there is no encryption beyond what the filesystem provides, so the store
// is not suitable for untrusted or shared machines while it holds a
// personal access token.
package prefs

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/yuripa07/itemsmith/internal/errors"
	"github.com/yuripa07/itemsmith/internal/tracker"
)

// Slot keys. Each slot is independent; a missing or corrupt slot yields
// its documented default rather than an error.
const (
	KeyInstructionTemplate = "instruction_template"
	KeyCredentials         = "credentials"
)

// Store reads and writes preference slots.
type Store struct {
	db *sql.DB
}

// New creates a preference store over an initialized database.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// InstructionTemplate returns the persisted system-instruction template,
// or the empty string if the slot is missing.
func (s *Store) InstructionTemplate() (string, error) {
	value, ok, err := s.get(KeyInstructionTemplate)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	return value, nil
}

// SetInstructionTemplate persists the template, replacing any prior value.
func (s *Store) SetInstructionTemplate(template string) error {
	return s.set(KeyInstructionTemplate, template)
}

// Credentials returns the persisted tracker credentials. A missing or
// corrupt slot yields empty-field credentials, never an error: a bad
// stored value should degrade to "not configured", not block startup.
func (s *Store) Credentials() (tracker.Credentials, error) {
	value, ok, err := s.get(KeyCredentials)
	if err != nil {
		return tracker.Credentials{}, err
	}
	if !ok {
		return tracker.Credentials{}, nil
	}

	var creds tracker.Credentials
	if err := json.Unmarshal([]byte(value), &creds); err != nil {
		return tracker.Credentials{}, nil
	}
	return creds, nil
}

// SetCredentials persists the full credentials object, replacing any
// prior value.
func (s *Store) SetCredentials(creds tracker.Credentials) error {
	data, err := json.Marshal(creds)
	if err != nil {
		return errors.NewInternal(err)
	}
	return s.set(KeyCredentials, string(data))
}

func (s *Store) get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM prefs WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.NewInternal(err)
	}
	return value, true, nil
}

func (s *Store) set(key, value string) error {
	query := `
		INSERT INTO prefs (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if _, err := s.db.Exec(query, key, value, time.Now().Unix()); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}
