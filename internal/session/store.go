package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/dbdemo/showcase/internal/config"
	"github.com/dbdemo/showcase/internal/model"
)

// ErrNotFound is returned when no session is stored under an id
var ErrNotFound = errors.New("session not found")

// Store persists sessions between the submission and the result view.
// Implementations must be safe for concurrent use.
type Store interface {
	Load(ctx context.Context, id string) (*model.Session, error)
	Save(ctx context.Context, sess *model.Session) error
	Delete(ctx context.Context, id string) error
}

// LoadOrNew returns the stored session or an empty one carrying id
func LoadOrNew(ctx context.Context, store Store, id string) (*model.Session, error) {
	sess, err := store.Load(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return &model.Session{ID: id}, nil
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// NewStore builds the store selected by cfg.Backend
func NewStore(cfg *config.SessionConfig, redisClient *redis.Client) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		if redisClient == nil {
			return nil, fmt.Errorf("redis session backend needs a redis client")
		}
		return NewRedisStore(redisClient, cfg.TTL), nil
	case "file":
		return NewFileStore(cfg.File), nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
	}
}

// MemoryStore keeps sessions in process memory
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]model.Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]model.Session)}
}

func (s *MemoryStore) Load(ctx context.Context, id string) (*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &sess, nil
}

func (s *MemoryStore) Save(ctx context.Context, sess *model.Session) error {
	if sess == nil || sess.ID == "" {
		return fmt.Errorf("session id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = *sess
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}
