package testutil

import (
	"context"

	"github.com/assistly/billing/internal/domain/user"
	ierr "github.com/assistly/billing/internal/errors"
)

// InMemoryUserStore implements user.Repository
type InMemoryUserStore struct {
	*InMemoryStore[*user.Profile]
}

func NewInMemoryUserStore() *InMemoryUserStore {
	return &InMemoryUserStore{
		InMemoryStore: NewInMemoryStore[*user.Profile](),
	}
}

// CreateProfile seeds a profile
func (s *InMemoryUserStore) CreateProfile(ctx context.Context, p *user.Profile) error {
	return s.InMemoryStore.Create(ctx, p.ID, p)
}

func (s *InMemoryUserStore) GetProfile(ctx context.Context, userID string) (*user.Profile, error) {
	p, err := s.InMemoryStore.Get(ctx, userID)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("User %s not found", userID).
			Mark(ierr.ErrNotFound)
	}
	return p, nil
}
