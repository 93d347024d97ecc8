package repositories

import (
	"context"
	"sync"

	"github.com/ekaya-inc/ekaya-askdata/pkg/models"
)

// SessionStore checkpoints conversation state per thread.
// Writes are last-write-wins; concurrent invocations on the same thread are not serialized.
type SessionStore interface {
	// Load returns the stored state, or nil with no error when the thread has none.
	Load(ctx context.Context, threadID string) (*models.SessionState, error)
	Save(ctx context.Context, threadID string, state *models.SessionState) error
	// Delete forgets a thread. Deleting an unknown thread is not an error.
	Delete(ctx context.Context, threadID string) error
}

// MemorySessionStore keeps sessions in process memory. State is lost on restart.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]models.SessionState
}

// NewMemorySessionStore creates an empty in-memory store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]models.SessionState)}
}

func (s *MemorySessionStore) Load(ctx context.Context, threadID string) (*models.SessionState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.sessions[threadID]
	if !ok {
		return nil, nil
	}
	out := state.Clone()
	return &out, nil
}

func (s *MemorySessionStore) Save(ctx context.Context, threadID string, state *models.SessionState) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[threadID] = state.Clone()
	return nil
}

func (s *MemorySessionStore) Delete(ctx context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, threadID)
	return nil
}

// Len returns the number of stored threads.
func (s *MemorySessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

var _ SessionStore = (*MemorySessionStore)(nil)
