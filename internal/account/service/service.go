package service

import (
	"context"

	"github.com/clipstream/account-service/internal/account/dto"
	"github.com/clipstream/account-service/internal/account/jwt"
	"github.com/clipstream/account-service/internal/account/model"
	"github.com/clipstream/account-service/internal/account/password"
	"github.com/clipstream/account-service/internal/config"
	"github.com/clipstream/account-service/internal/media"
	"github.com/clipstream/account-service/internal/repo"

	validate "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type AccountService interface {
	// Register creates a user after uploading the required avatar (and the
	// optional cover image) to the media store. It never issues tokens.
	Register(ctx context.Context, d dto.RegisterDTO, avatar media.Upload, cover *media.Upload) (model.PublicUser, error)

	// Login verifies credentials against either username or email and opens a
	// session, overwriting any refresh token issued to another device.
	Login(ctx context.Context, d dto.LoginDTO) (model.LoginResult, error)

	// Refresh rotates the refresh token: the presented token must equal the
	// stored one and is replaced in the same conditional write.
	Refresh(ctx context.Context, d dto.RefreshDTO) (model.TokenPair, error)

	// Logout clears the stored refresh token. Idempotent.
	Logout(ctx context.Context, userID uuid.UUID) error

	ChangePassword(ctx context.Context, userID uuid.UUID, d dto.ChangePasswordDTO) error

	// Authenticate resolves an access token to its user. It deliberately does
	// not consult the stored refresh token: access tokens stay valid until
	// expiry even after logout.
	Authenticate(ctx context.Context, accessToken string) (model.PublicUser, error)

	UpdateProfileFields(ctx context.Context, userID uuid.UUID, d dto.UpdateProfileDTO) (model.PublicUser, error)

	UpdateAvatar(ctx context.Context, userID uuid.UUID, avatar media.Upload) (model.PublicUser, error)

	UpdateCoverImage(ctx context.Context, userID uuid.UUID, cover media.Upload) (model.PublicUser, error)

	// GetChannelProfile builds the public channel view for username. A nil
	// viewerID means an anonymous viewer.
	GetChannelProfile(ctx context.Context, viewerID *uuid.UUID, username string) (model.ChannelProfile, error)
}

func NewAccountService(
	userRepo repo.UserRepo,
	subRepo repo.SubscriptionRepo,
	tokens jwt.TokenIssuer,
	hasher *password.Hasher,
	mediaStore media.Store,
	cfg *config.Config,
	v *validate.Validate,
) AccountService {
	return &accountService{
		userRepo:   userRepo,
		subRepo:    subRepo,
		tokens:     tokens,
		hasher:     hasher,
		mediaStore: mediaStore,
		cfg:        cfg,
		v:          v,
	}
}
