package update

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of an update session.
type State string

const (
	StateIdle        State = "idle"
	StateDownloading State = "downloading"
	StateFinishing   State = "finishing"
	StateFailing     State = "failing"
	StateCancelling  State = "cancelling"
)

// Session is the transient state of one update attempt. It is not safe
// for concurrent use; the coordinator serialises access.
type Session struct {
	id           uuid.UUID
	url          string
	file         string
	retryCount   int
	retryAllowed bool
	state        State
	started      bool
	lastPercent  int
	lastReportAt time.Time
	startedAt    time.Time
}

// NewSession creates a session in the downloading state.
func NewSession(url string, retryCount int, retryAllowed bool) *Session {
	return NewSessionWithID(uuid.New(), url, retryCount, retryAllowed)
}

// NewSessionWithID creates a downloading session with a caller-chosen id.
func NewSessionWithID(id uuid.UUID, url string, retryCount int, retryAllowed bool) *Session {
	return &Session{
		id:           id,
		url:          url,
		retryCount:   retryCount,
		retryAllowed: retryAllowed,
		state:        StateDownloading,
		startedAt:    time.Now().UTC(),
	}
}

// Getters
func (s *Session) ID() uuid.UUID           { return s.id }
func (s *Session) URL() string             { return s.url }
func (s *Session) File() string            { return s.file }
func (s *Session) RetryCount() int         { return s.retryCount }
func (s *Session) RetryAllowed() bool      { return s.retryAllowed }
func (s *Session) State() State            { return s.state }
func (s *Session) Started() bool           { return s.started }
func (s *Session) LastPercent() int        { return s.lastPercent }
func (s *Session) LastReportAt() time.Time { return s.lastReportAt }
func (s *Session) StartedAt() time.Time    { return s.startedAt }

// SetFile records the resolved target file.
func (s *Session) SetFile(file string) {
	s.file = file
}

// MarkStarted records that the transport reported its start and resets
// the percent tracking.
func (s *Session) MarkStarted() {
	s.started = true
	s.lastPercent = 0
}

// Terminated reports whether the session has left the downloading state.
func (s *Session) Terminated() bool {
	return s.state != StateDownloading
}

// RecordProgress stores the percentage for a processed progress tick and
// reports whether it differs from the previous one.
func (s *Session) RecordProgress(progress, total int64, at time.Time) (percent int, changed bool) {
	s.lastReportAt = at
	percent = Percent(progress, total)
	if percent == s.lastPercent {
		return percent, false
	}
	s.lastPercent = percent
	return percent, true
}

// Finish moves the session to finishing.
func (s *Session) Finish() error {
	return s.transition(StateFinishing)
}

// Fail moves the session to failing.
func (s *Session) Fail() error {
	return s.transition(StateFailing)
}

// Cancel moves the session to cancelling.
func (s *Session) Cancel() error {
	return s.transition(StateCancelling)
}

// Close returns a terminated session to idle.
func (s *Session) Close() error {
	if s.state == StateDownloading || s.state == StateIdle {
		return fmt.Errorf("%w: cannot close session in state %s", ErrInvalidTransition, s.state)
	}
	s.state = StateIdle
	return nil
}

func (s *Session) transition(to State) error {
	if s.state != StateDownloading {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, s.state, to)
	}
	s.state = to
	return nil
}

// Percent returns progress as a whole percentage of total, rounding half
// away from zero. It returns 0 when total is unknown.
func Percent(progress, total int64) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(progress) / float64(total) * 100))
}

// OutcomeKind identifies how a session ended.
type OutcomeKind string

const (
	OutcomeFinished  OutcomeKind = "finished"
	OutcomeFailed    OutcomeKind = "failed"
	OutcomeCancelled OutcomeKind = "cancelled"
)

// Outcome is the terminal result of a session.
type Outcome struct {
	Kind         OutcomeKind
	File         string
	Err          error
	RetryAllowed bool
}

// SessionRecord is the stored history entry of a finished session.
type SessionRecord struct {
	ID           uuid.UUID   `json:"id"`
	URL          string      `json:"url"`
	File         string      `json:"file,omitempty"`
	Outcome      OutcomeKind `json:"outcome"`
	Error        string      `json:"error,omitempty"`
	RetryCount   int         `json:"retryCount"`
	RetryAllowed bool        `json:"retryAllowed"`
	FromCache    bool        `json:"fromCache"`
	StartedAt    time.Time   `json:"startedAt"`
	EndedAt      time.Time   `json:"endedAt"`
}
