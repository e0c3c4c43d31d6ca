// Package state holds the broker's shared mutable state: the current worker
// handle, the pending request table, and the advisory session cache. A single
// mutex guards all three and is only held across check/mutate steps.
package state

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/PriNova/graphone/internal/protocol"
)

var (
	// ErrChildRunning is returned by SetChild when a worker is already attached.
	ErrChildRunning = errors.New("worker already running")
	// ErrDuplicateID is returned by Register when the id already has a waiter.
	ErrDuplicateID = errors.New("duplicate request id")
)

// Child is the part of a running worker the broker writes through.
type Child interface {
	Write(p []byte) error
	Kill() error
	PID() int
}

// Reply is what a pending request receives: a response or a release error.
type Reply struct {
	Response *protocol.Response
	Err      error
}

// SessionInfo is one cached session.
type SessionInfo struct {
	SessionID string `json:"sessionId"`
	Cwd       string `json:"cwd"`
}

type Store struct {
	mu         sync.Mutex
	child      Child
	generation uint64
	pending    map[string]chan Reply
	sessions   map[string]string
}

func NewStore() *Store {
	return &Store{
		pending:  make(map[string]chan Reply),
		sessions: make(map[string]string),
	}
}

// SetChild attaches a new worker and returns its generation.
func (s *Store) SetChild(c Child) (uint64, error) {
	if c == nil {
		return 0, fmt.Errorf("child is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.child != nil {
		return 0, ErrChildRunning
	}
	s.generation++
	s.child = c
	return s.generation, nil
}

// Child returns the attached worker and its generation.
func (s *Store) Child() (Child, uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.child, s.generation, s.child != nil
}

// HasChild reports whether a worker is attached.
func (s *Store) HasChild() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.child != nil
}

// Detach clears the worker of generation gen and releases every pending
// waiter with err, in one step so no request can slip in between. It is a
// no-op for stale generations.
func (s *Store) Detach(gen uint64, err error) (detached bool, released int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.child == nil || s.generation != gen {
		return false, 0
	}
	s.child = nil
	return true, s.failAllLocked(err)
}

// Register adds a single-use waiter for id. It must be called before the
// request is written.
func (s *Store) Register(id string) (<-chan Reply, error) {
	if id == "" {
		return nil, fmt.Errorf("request id is empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}
	ch := make(chan Reply, 1)
	s.pending[id] = ch
	return ch, nil
}

// Resolve hands resp to the waiter registered for resp.ID. It reports false
// when no waiter exists, e.g. after a timeout removed it.
func (s *Store) Resolve(resp *protocol.Response) bool {
	if resp == nil || resp.ID == "" {
		return false
	}
	s.mu.Lock()
	ch, ok := s.pending[resp.ID]
	if ok {
		delete(s.pending, resp.ID)
	}
	s.mu.Unlock()
	if !ok {
		return false
	}
	// Buffered with capacity 1 and removed from the table above, so this
	// never blocks.
	ch <- Reply{Response: resp}
	return true
}

// Remove drops the waiter for id without delivering anything.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[id]; !ok {
		return false
	}
	delete(s.pending, id)
	return true
}

func (s *Store) failAllLocked(err error) int {
	n := 0
	for id, ch := range s.pending {
		delete(s.pending, id)
		ch <- Reply{Err: err}
		n++
	}
	return n
}

// Pending returns the number of outstanding waiters.
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// CacheSession records a session created by the worker.
func (s *Store) CacheSession(id, cwd string) {
	if id == "" {
		return
	}
	s.mu.Lock()
	s.sessions[id] = cwd
	s.mu.Unlock()
}

// ReplaceSessions swaps the whole cache for the worker's authoritative list.
func (s *Store) ReplaceSessions(list []SessionInfo) {
	next := make(map[string]string, len(list))
	for _, si := range list {
		if si.SessionID != "" {
			next[si.SessionID] = si.Cwd
		}
	}
	s.mu.Lock()
	s.sessions = next
	s.mu.Unlock()
}

// ForgetSession evicts a closed session.
func (s *Store) ForgetSession(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// SessionCwd returns the cached working directory of a session.
func (s *Store) SessionCwd(id string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cwd, ok := s.sessions[id]
	return cwd, ok
}

// Sessions returns the cached sessions ordered by id.
func (s *Store) Sessions() []SessionInfo {
	s.mu.Lock()
	out := make([]SessionInfo, 0, len(s.sessions))
	for id, cwd := range s.sessions {
		out = append(out, SessionInfo{SessionID: id, Cwd: cwd})
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out
}
