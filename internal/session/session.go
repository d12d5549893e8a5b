// Package session holds the in-memory working set: the records produced by
// the most recent generation run and each record's submission state. The
// set is replaced wholesale by a new run; records are never deleted
// individually.
package session

import (
	"sync"

	"github.com/yuripa07/itemsmith/internal/errors"
	"github.com/yuripa07/itemsmith/internal/workitem"
)

// Status is the submission lifecycle phase of one record.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusSending   Status = "sending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// SubmissionState is the per-record submission outcome.
type SubmissionState struct {
	Status Status

	// RemoteLink is set only in the succeeded state.
	RemoteLink string

	// Error is the user-displayable failure message, set only in the
	// failed state.
	Error string
}

// Entry pairs a record with its submission state for display.
type Entry struct {
	Record workitem.Record
	State  SubmissionState
}

// Session is safe for concurrent use. Transitions are scoped to one record
// at a time; no cross-record ordering or atomicity is implied, and partial
// success across the set is normal.
type Session struct {
	mu         sync.Mutex
	generating bool
	records    []workitem.Record
	states     map[string]SubmissionState

	// Last generation input, kept so the form survives page reloads.
	notes string
	kind  string
}

// New creates an empty session.
func New() *Session {
	return &Session{states: make(map[string]SubmissionState)}
}

// BeginGeneration claims the process-wide generation flag. While held, a
// second run is refused rather than racing two results.
func (s *Session) BeginGeneration() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generating {
		return errors.NewConflict("a generation run is already in progress")
	}
	s.generating = true
	return nil
}

// FinishGeneration installs the new working set and releases the flag.
// All prior records and their submission states are discarded atomically.
func (s *Session) FinishGeneration(records []workitem.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generating = false
	s.records = records
	s.states = make(map[string]SubmissionState, len(records))
	for _, r := range records {
		s.states[r.ID] = SubmissionState{Status: StatusIdle}
	}
}

// FailGeneration releases the flag without touching the current set.
func (s *Session) FailGeneration() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generating = false
}

// SetInput remembers the last generation form values.
func (s *Session) SetInput(notes, kind string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes = notes
	s.kind = kind
}

// Input returns the last generation form values.
func (s *Session) Input() (notes, kind string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notes, s.kind
}

// Generating reports whether a run is in flight.
func (s *Session) Generating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generating
}

// Entries returns a snapshot of the working set in generation order.
func (s *Session) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]Entry, 0, len(s.records))
	for _, r := range s.records {
		entries = append(entries, Entry{Record: r, State: s.states[r.ID]})
	}
	return entries
}

// Entry returns one record with its state.
func (s *Session) Entry(id string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.find(id)
	if !ok {
		return Entry{}, errors.NewNotFound(id)
	}
	return Entry{Record: r, State: s.states[id]}, nil
}

// UpdateRecord replaces a record's fields wholesale after a user edit and
// resets its submission state to idle. Editing is permitted in any state.
func (s *Session) UpdateRecord(rec workitem.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range s.records {
		if r.ID == rec.ID {
			s.records[i] = rec
			s.states[rec.ID] = SubmissionState{Status: StatusIdle}
			return nil
		}
	}
	return errors.NewNotFound(rec.ID)
}

// BeginSubmit transitions one record to sending and returns it. Permitted
// from idle and failed (retry); a record already sending or succeeded is
// refused. Other records are untouched.
func (s *Session) BeginSubmit(id string) (workitem.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.find(id)
	if !ok {
		return workitem.Record{}, errors.NewNotFound(id)
	}

	switch s.states[id].Status {
	case StatusSending:
		return workitem.Record{}, errors.NewConflict("record is already being submitted")
	case StatusSucceeded:
		return workitem.Record{}, errors.NewConflict("record was already submitted")
	}

	s.states[id] = SubmissionState{Status: StatusSending}
	return r, nil
}

// CompleteSubmit marks a record succeeded with its remote link. Succeeded
// is terminal for the record instance; only an edit-and-save resets it.
func (s *Session) CompleteSubmit(id, remoteLink string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.find(id); !ok {
		// The working set was replaced while the call was in flight.
		return
	}
	s.states[id] = SubmissionState{Status: StatusSucceeded, RemoteLink: remoteLink}
}

// FailSubmit marks a record failed with a user-displayable message.
// The record remains retryable.
func (s *Session) FailSubmit(id, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.find(id); !ok {
		return
	}
	s.states[id] = SubmissionState{Status: StatusFailed, Error: message}
}

// find looks up a record by ID. Callers hold s.mu.
func (s *Session) find(id string) (workitem.Record, bool) {
	for _, r := range s.records {
		if r.ID == id {
			return r, true
		}
	}
	return workitem.Record{}, false
}
