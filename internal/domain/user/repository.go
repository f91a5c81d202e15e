package user

import "context"

type Repository interface {
	// GetProfile returns ErrNotFound when the user is unknown
	GetProfile(ctx context.Context, userID string) (*Profile, error)
}
