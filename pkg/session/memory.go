package session

import (
	"context"
	"sync"
	"time"

	"comitebot/pkg/action"
)

const memoryShards = 32

type memoryShard struct {
	mu       sync.Mutex
	sessions map[int64]Session
}

// MemoryStore keeps sessions in process memory, split across shards so that
// unrelated users rarely contend on the same lock. Sessions are lost on restart.
type MemoryStore struct {
	shards [memoryShards]*memoryShard
	opts   options
}

func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{opts: buildOptions(opts)}
	for i := range s.shards {
		s.shards[i] = &memoryShard{sessions: make(map[int64]Session)}
	}
	return s
}

func (s *MemoryStore) shard(userID int64) *memoryShard {
	idx := uint64(userID) % memoryShards
	return s.shards[idx]
}

func (s *MemoryStore) Open(_ context.Context, userID int64, typ action.Type) (Session, error) {
	sess := Session{UserID: userID, Action: typ, CreatedAt: s.opts.now()}

	sh := s.shard(userID)
	sh.mu.Lock()
	sh.sessions[userID] = sess
	sh.mu.Unlock()

	return sess, nil
}

func (s *MemoryStore) Take(_ context.Context, userID int64) (Session, bool, error) {
	sh := s.shard(userID)
	sh.mu.Lock()
	sess, ok := sh.sessions[userID]
	if ok {
		delete(sh.sessions, userID)
	}
	sh.mu.Unlock()

	if !ok || sess.Expired(s.opts.now(), s.opts.ttl) {
		return Session{}, false, nil
	}
	return sess, true, nil
}

func (s *MemoryStore) Clear(_ context.Context, userID int64) (bool, error) {
	sh := s.shard(userID)
	sh.mu.Lock()
	sess, ok := sh.sessions[userID]
	if ok {
		delete(sh.sessions, userID)
	}
	sh.mu.Unlock()

	return ok && !sess.Expired(s.opts.now(), s.opts.ttl), nil
}

// Sweep drops every session that expired before now.
func (s *MemoryStore) Sweep(_ context.Context, now time.Time) (int, error) {
	if s.opts.ttl <= 0 {
		return 0, nil
	}

	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for userID, sess := range sh.sessions {
			if sess.Expired(now, s.opts.ttl) {
				delete(sh.sessions, userID)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed, nil
}

// Len returns the number of stored sessions, expired ones included.
func (s *MemoryStore) Len() int {
	total := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		total += len(sh.sessions)
		sh.mu.Unlock()
	}
	return total
}

func (s *MemoryStore) Close() error {
	return nil
}
