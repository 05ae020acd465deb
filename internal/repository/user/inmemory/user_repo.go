package inmemory

import (
	"context"
	"strings"
	"sync"
	"time"

	"taskPrioritizer/internal/models/user"
	repo "taskPrioritizer/internal/repository"
)

// UserStorage индексирует пользователей по email в нижнем регистре
type UserStorage struct {
	mtx     sync.RWMutex
	byEmail map[string]user.User
}

func NewUserStorage() *UserStorage {
	return &UserStorage{byEmail: make(map[string]user.User)}
}

func (s *UserStorage) Create(ctx context.Context, u *user.User) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	key := strings.ToLower(u.Email)
	if _, ok := s.byEmail[key]; ok {
		return repo.ErrDuplicate
	}
	for _, existing := range s.byEmail {
		if existing.ID == u.ID {
			return repo.ErrDuplicate
		}
	}

	u.Email = key
	u.CreatedAt = time.Now()
	s.byEmail[key] = *u
	return nil
}

func (s *UserStorage) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	u, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &u, nil
}
