package survey

import (
	"sort"
	"sync"
	"time"
)

// SessionRecord is a finished session plus where its artifacts went
type SessionRecord struct {
	Session     *Session
	Artifacts   map[string]string // format -> path
	ProcessedAt time.Time
}

// StateTracker is the append-only registry of finished sessions shared with
// the HTTP viewer
type StateTracker struct {
	mu       sync.RWMutex
	order    []string
	sessions map[string]*SessionRecord
	failures map[string]string // source path -> error
}

// NewStateTracker creates an empty registry
func NewStateTracker() *StateTracker {
	return &StateTracker{
		sessions: make(map[string]*SessionRecord),
		failures: make(map[string]string),
	}
}

// AddSession records a finished session. A session id seen before replaces
// the earlier record but keeps its position.
func (st *StateTracker) AddSession(s *Session, artifacts map[string]string) {
	st.mu.Lock()
	defer st.mu.Unlock()

	id := s.Info.ID
	if _, ok := st.sessions[id]; !ok {
		st.order = append(st.order, id)
	}
	copied := make(map[string]string, len(artifacts))
	for k, v := range artifacts {
		copied[k] = v
	}
	st.sessions[id] = &SessionRecord{
		Session:     s,
		Artifacts:   copied,
		ProcessedAt: time.Now(),
	}
}

// AddFailure records a session file that could not be processed
func (st *StateTracker) AddFailure(path string, err error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.failures[path] = err.Error()
}

// GetSession returns the record for a session id
func (st *StateTracker) GetSession(id string) (*SessionRecord, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	r, ok := st.sessions[id]
	return r, ok
}

// Sessions returns the finished sessions in processing order
func (st *StateTracker) Sessions() []*Session {
	st.mu.RLock()
	defer st.mu.RUnlock()

	result := make([]*Session, 0, len(st.order))
	for _, id := range st.order {
		result = append(result, st.sessions[id].Session)
	}
	return result
}

// Summaries returns the summary of every finished session in processing order
func (st *StateTracker) Summaries() []Summary {
	sessions := st.Sessions()
	result := make([]Summary, len(sessions))
	for i, s := range sessions {
		result[i] = s.Summarize()
	}
	return result
}

// Failures returns a copy of the failed source paths with their error
func (st *StateTracker) Failures() map[string]string {
	st.mu.RLock()
	defer st.mu.RUnlock()

	result := make(map[string]string, len(st.failures))
	for k, v := range st.failures {
		result[k] = v
	}
	return result
}

// FailedPaths returns the failed source paths sorted
func (st *StateTracker) FailedPaths() []string {
	failures := st.Failures()
	paths := make([]string, 0, len(failures))
	for p := range failures {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// HasSessions returns true if at least one session finished
func (st *StateTracker) HasSessions() bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.order) > 0
}
