package repo

import (
	"context"

	"github.com/clipstream/account-service/internal/account/model"
	"github.com/google/uuid"
)

// UserRepo is the credential store. Username lookups are case-insensitive.
type UserRepo interface {
	CreateUser(ctx context.Context, u model.User) (uuid.UUID, error)

	GetUserByID(ctx context.Context, id uuid.UUID) (model.User, error)

	GetUserByUsername(ctx context.Context, username string) (model.User, error)

	GetUserByUsernameOrEmail(ctx context.Context, identifier string) (model.User, error)

	// SetRefreshToken unconditionally overwrites the stored refresh token.
	// An empty token clears it (logout).
	SetRefreshToken(ctx context.Context, id uuid.UUID, token string) error

	// RotateRefreshToken replaces current with next in a single conditional
	// update. When the stored value no longer equals current the update
	// matches no row and ErrTokenReuse is returned; concurrent refreshes with
	// the same token therefore succeed at most once.
	RotateRefreshToken(ctx context.Context, id uuid.UUID, current, next string) error

	UpdatePasswordHash(ctx context.Context, id uuid.UUID, passwordHash string) error

	UpdateProfileFields(ctx context.Context, id uuid.UUID, fullName, email string) error

	UpdateAvatarURL(ctx context.Context, id uuid.UUID, url string) error

	UpdateCoverImageURL(ctx context.Context, id uuid.UUID, url string) error
}
