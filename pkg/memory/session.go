package memory

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Exchange is one user/assistant turn pair recorded for later reflection.
type Exchange struct {
	Time      time.Time
	User      string
	Assistant string
}

// Session accumulates the conversation since the last reflective synthesis.
// It is append-only between synthesis passes; only a fully successful pass
// clears it, so a failed pass loses nothing.
type Session struct {
	mu           sync.Mutex
	exchanges    []Exchange
	pendingUser  string
	lastActivity time.Time
}

// NewSession returns an empty accumulator.
func NewSession() *Session {
	return &Session{}
}

// RecordUser notes an incoming user message. The exchange is held open until
// the assistant reply arrives.
func (s *Session) RecordUser(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingUser = text
	s.lastActivity = time.Now()
}

// RecordAssistant closes the open exchange with the assistant's reply. A reply
// with no pending user message is recorded with an empty user side.
func (s *Session) RecordAssistant(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exchanges = append(s.exchanges, Exchange{
		Time:      time.Now(),
		User:      s.pendingUser,
		Assistant: text,
	})
	s.pendingUser = ""
	s.lastActivity = time.Now()
}

// Len returns the number of completed exchanges.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.exchanges)
}

// LastActivity returns the time of the most recent recorded message, or the
// zero time when nothing has been recorded.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// IdleFor reports whether at least d has passed since the last activity and
// there is something to reflect on.
func (s *Session) IdleFor(d time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.exchanges) == 0 {
		return false
	}
	return time.Since(s.lastActivity) >= d
}

// Snapshot returns a copy of the accumulated exchanges without clearing them.
func (s *Session) Snapshot() []Exchange {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Exchange(nil), s.exchanges...)
}

// Clear drops all accumulated exchanges. Called only after a synthesis pass
// has fully succeeded.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exchanges = nil
	s.pendingUser = ""
}

// Transcript renders exchanges as a plain conversation log using the given
// speaker names.
func Transcript(exchanges []Exchange, userName, assistantName string) string {
	var b strings.Builder
	for _, ex := range exchanges {
		if ex.User != "" {
			fmt.Fprintf(&b, "%s: %s\n", userName, ex.User)
		}
		if ex.Assistant != "" {
			fmt.Fprintf(&b, "%s: %s\n", assistantName, ex.Assistant)
		}
	}
	return b.String()
}
