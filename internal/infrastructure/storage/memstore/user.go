package memstore

import (
	"context"

	"columbarium/internal/core/apperror"
	"columbarium/internal/core/id"
	"columbarium/internal/domain/auth"
)

// UserRepo implements auth.UserRepository.
type UserRepo struct{ s *Store }

var _ auth.UserRepository = (*UserRepo)(nil)

func (r *UserRepo) Create(_ context.Context, u *auth.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.st.users {
		if existing.Username == u.Username {
			return apperror.NewDuplicate("user", "username", u.Username)
		}
	}
	r.s.st.users[u.ID] = *u
	return nil
}

func (r *UserRepo) GetByID(_ context.Context, userID id.ID) (*auth.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.st.users[userID]
	if !ok {
		return nil, apperror.NewNotFound("user", userID)
	}
	return &u, nil
}

func (r *UserRepo) GetByUsername(_ context.Context, username string) (*auth.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.st.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, apperror.NewNotFound("user", username)
}

func (r *UserRepo) Update(_ context.Context, u *auth.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.st.users[u.ID]
	if !ok {
		return apperror.NewNotFound("user", u.ID)
	}
	if current.Version != u.Version {
		return apperror.NewConcurrentModification("users", u.ID)
	}
	u.Version++
	r.s.st.users[u.ID] = *u
	return nil
}
