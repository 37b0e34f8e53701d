package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/clipstream/account-service/internal/account/dto"
	customErrors "github.com/clipstream/account-service/internal/account/errors"
	"github.com/clipstream/account-service/internal/account/jwt"
	"github.com/clipstream/account-service/internal/account/model"
	"github.com/clipstream/account-service/internal/account/password"
	"github.com/clipstream/account-service/internal/config"
	"github.com/clipstream/account-service/internal/media"
	"github.com/clipstream/account-service/internal/repo"

	validate "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type accountService struct {
	userRepo   repo.UserRepo
	subRepo    repo.SubscriptionRepo
	tokens     jwt.TokenIssuer
	hasher     *password.Hasher
	mediaStore media.Store
	cfg        *config.Config
	v          *validate.Validate
}

func (a *accountService) Register(ctx context.Context, d dto.RegisterDTO, avatar media.Upload, cover *media.Upload) (model.PublicUser, error) {
	if err := a.v.Struct(d); err != nil {
		return model.PublicUser{}, customErrors.NewInvalidArgument(err.Error())
	}
	if avatar.Body == nil {
		return model.PublicUser{}, customErrors.NewInvalidArgument("avatar image is required")
	}

	avatarObj, err := a.mediaStore.Put(ctx, avatar)
	if err != nil {
		if customErrors.IsUploadFailed(err) {
			return model.PublicUser{}, err
		}
		return model.PublicUser{}, customErrors.WrapUpload(err, "avatar")
	}

	// The cover image is optional end to end: a failed upload degrades to no
	// cover rather than failing registration.
	coverURL := ""
	if cover != nil && cover.Body != nil {
		if coverObj, err := a.mediaStore.Put(ctx, *cover); err == nil {
			coverURL = coverObj.URL
		}
	}

	passwordHash, err := a.hasher.Hash(d.Password)
	if err != nil {
		return model.PublicUser{}, customErrors.WrapInternal(err, "Register")
	}

	user := model.User{
		ID:            uuid.New(),
		Username:      strings.ToLower(d.Username),
		Email:         d.Email,
		FullName:      d.FullName,
		PasswordHash:  passwordHash,
		AvatarURL:     avatarObj.URL,
		CoverImageURL: coverURL,
	}

	if _, err := a.userRepo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, customErrors.ErrAlreadyExists) {
			return model.PublicUser{}, customErrors.ErrAlreadyExists
		}
		return model.PublicUser{}, customErrors.WrapInternal(err, "Register")
	}

	return a.reload(ctx, user.ID)
}

func (a *accountService) Login(ctx context.Context, d dto.LoginDTO) (model.LoginResult, error) {
	if err := a.v.Struct(d); err != nil {
		return model.LoginResult{}, customErrors.NewInvalidArgument(err.Error())
	}

	// An unknown identifier and a wrong password must be indistinguishable to
	// the caller.
	user, err := a.userRepo.GetUserByUsernameOrEmail(ctx, d.Identifier)
	if errors.Is(err, customErrors.ErrNotFound) {
		return model.LoginResult{}, customErrors.ErrInvalidCredentials
	}
	if err != nil {
		return model.LoginResult{}, customErrors.WrapInternal(err, "Login")
	}

	ok, err := a.hasher.Verify(d.Password, user.PasswordHash)
	if err != nil {
		return model.LoginResult{}, customErrors.WrapInternal(err, "Login")
	}
	if !ok {
		return model.LoginResult{}, customErrors.ErrInvalidCredentials
	}

	pair, err := a.issueTokens(user.ID)
	if err != nil {
		return model.LoginResult{}, err
	}

	// Tokens and the stored refresh token are one logical unit: if the write
	// fails the generated pair is discarded and never reaches the caller.
	if err := a.userRepo.SetRefreshToken(ctx, user.ID, pair.RefreshToken); err != nil {
		return model.LoginResult{}, customErrors.WrapInternal(err, "Login")
	}

	return model.LoginResult{User: user.Public(), Tokens: pair}, nil
}

func (a *accountService) Refresh(ctx context.Context, d dto.RefreshDTO) (model.TokenPair, error) {
	if d.RefreshToken == "" {
		return model.TokenPair{}, customErrors.ErrUnauthorized
	}

	claims, err := a.tokens.ValidateRefreshToken(d.RefreshToken)
	if err != nil {
		return model.TokenPair{}, err
	}

	uid, err := uuid.Parse(claims.Subject)
	if err != nil {
		return model.TokenPair{}, customErrors.ErrInvalidToken
	}

	user, err := a.userRepo.GetUserByID(ctx, uid)
	if errors.Is(err, customErrors.ErrNotFound) {
		return model.TokenPair{}, customErrors.ErrInvalidCredentials
	}
	if err != nil {
		return model.TokenPair{}, customErrors.WrapInternal(err, "Refresh")
	}

	pair, err := a.issueTokens(user.ID)
	if err != nil {
		return model.TokenPair{}, err
	}

	// Equality with the stored token is checked inside the rotation write
	// itself, so a superseded token loses the race and surfaces as reuse.
	if err := a.userRepo.RotateRefreshToken(ctx, user.ID, d.RefreshToken, pair.RefreshToken); err != nil {
		if errors.Is(err, customErrors.ErrTokenReuse) {
			return model.TokenPair{}, customErrors.ErrTokenReuse
		}
		return model.TokenPair{}, customErrors.WrapInternal(err, "Refresh")
	}

	return pair, nil
}

func (a *accountService) Logout(ctx context.Context, userID uuid.UUID) error {
	err := a.userRepo.SetRefreshToken(ctx, userID, "")
	if errors.Is(err, customErrors.ErrNotFound) {
		// Logging out a vanished user is not an error.
		return nil
	}
	if err != nil {
		return customErrors.WrapInternal(err, "Logout")
	}
	return nil
}

func (a *accountService) ChangePassword(ctx context.Context, userID uuid.UUID, d dto.ChangePasswordDTO) error {
	if err := a.v.Struct(d); err != nil {
		return customErrors.NewInvalidArgument(err.Error())
	}

	user, err := a.userRepo.GetUserByID(ctx, userID)
	if errors.Is(err, customErrors.ErrNotFound) {
		return customErrors.ErrInvalidCredentials
	}
	if err != nil {
		return customErrors.WrapInternal(err, "ChangePassword")
	}

	ok, err := a.hasher.Verify(d.OldPassword, user.PasswordHash)
	if err != nil {
		return customErrors.WrapInternal(err, "ChangePassword")
	}
	if !ok {
		return customErrors.ErrInvalidCredentials
	}

	newHash, err := a.hasher.Hash(d.NewPassword)
	if err != nil {
		return customErrors.WrapInternal(err, "ChangePassword")
	}

	// The open session survives a password change; only logout or rotation
	// touches the refresh token.
	if err := a.userRepo.UpdatePasswordHash(ctx, userID, newHash); err != nil {
		return customErrors.WrapInternal(err, "ChangePassword")
	}

	return nil
}

func (a *accountService) Authenticate(ctx context.Context, accessToken string) (model.PublicUser, error) {
	if accessToken == "" {
		return model.PublicUser{}, customErrors.ErrUnauthorized
	}

	claims, err := a.tokens.ValidateAccessToken(accessToken)
	if err != nil {
		return model.PublicUser{}, err
	}

	uid, err := uuid.Parse(claims.Subject)
	if err != nil {
		return model.PublicUser{}, customErrors.ErrInvalidToken
	}

	user, err := a.userRepo.GetUserByID(ctx, uid)
	if errors.Is(err, customErrors.ErrNotFound) {
		return model.PublicUser{}, customErrors.ErrUnauthorized
	}
	if err != nil {
		return model.PublicUser{}, customErrors.WrapInternal(err, "Authenticate")
	}

	return user.Public(), nil
}

func (a *accountService) UpdateProfileFields(ctx context.Context, userID uuid.UUID, d dto.UpdateProfileDTO) (model.PublicUser, error) {
	if err := a.v.Struct(d); err != nil {
		return model.PublicUser{}, customErrors.NewInvalidArgument(err.Error())
	}

	err := a.userRepo.UpdateProfileFields(ctx, userID, d.FullName, d.Email)
	if errors.Is(err, customErrors.ErrAlreadyExists) {
		return model.PublicUser{}, customErrors.ErrAlreadyExists
	}
	if errors.Is(err, customErrors.ErrNotFound) {
		return model.PublicUser{}, customErrors.ErrUnauthorized
	}
	if err != nil {
		return model.PublicUser{}, customErrors.WrapInternal(err, "UpdateProfileFields")
	}

	return a.reload(ctx, userID)
}

func (a *accountService) UpdateAvatar(ctx context.Context, userID uuid.UUID, avatar media.Upload) (model.PublicUser, error) {
	if avatar.Body == nil {
		return model.PublicUser{}, customErrors.NewInvalidArgument("avatar image is required")
	}

	obj, err := a.mediaStore.Put(ctx, avatar)
	if err != nil {
		if customErrors.IsUploadFailed(err) {
			return model.PublicUser{}, err
		}
		return model.PublicUser{}, customErrors.WrapUpload(err, "avatar")
	}

	if err := a.userRepo.UpdateAvatarURL(ctx, userID, obj.URL); err != nil {
		return model.PublicUser{}, customErrors.WrapInternal(err, "UpdateAvatar")
	}

	return a.reload(ctx, userID)
}

func (a *accountService) UpdateCoverImage(ctx context.Context, userID uuid.UUID, cover media.Upload) (model.PublicUser, error) {
	if cover.Body == nil {
		return model.PublicUser{}, customErrors.NewInvalidArgument("cover image is required")
	}

	obj, err := a.mediaStore.Put(ctx, cover)
	if err != nil {
		if customErrors.IsUploadFailed(err) {
			return model.PublicUser{}, err
		}
		return model.PublicUser{}, customErrors.WrapUpload(err, "cover image")
	}

	if err := a.userRepo.UpdateCoverImageURL(ctx, userID, obj.URL); err != nil {
		return model.PublicUser{}, customErrors.WrapInternal(err, "UpdateCoverImage")
	}

	return a.reload(ctx, userID)
}

func (a *accountService) GetChannelProfile(ctx context.Context, viewerID *uuid.UUID, username string) (model.ChannelProfile, error) {
	if strings.TrimSpace(username) == "" {
		return model.ChannelProfile{}, customErrors.NewInvalidArgument("username is required")
	}

	channel, err := a.userRepo.GetUserByUsername(ctx, username)
	if errors.Is(err, customErrors.ErrNotFound) {
		return model.ChannelProfile{}, customErrors.ErrNotFound
	}
	if err != nil {
		return model.ChannelProfile{}, customErrors.WrapInternal(err, "GetChannelProfile")
	}

	subscribers, err := a.subRepo.CountSubscribers(ctx, channel.ID)
	if err != nil {
		return model.ChannelProfile{}, customErrors.WrapInternal(err, "GetChannelProfile")
	}
	subscribedTo, err := a.subRepo.CountSubscribedTo(ctx, channel.ID)
	if err != nil {
		return model.ChannelProfile{}, customErrors.WrapInternal(err, "GetChannelProfile")
	}

	isSubscribed := false
	if viewerID != nil {
		isSubscribed, err = a.subRepo.IsSubscribed(ctx, *viewerID, channel.ID)
		if err != nil {
			return model.ChannelProfile{}, customErrors.WrapInternal(err, "GetChannelProfile")
		}
	}

	return model.ChannelProfile{
		Username:          channel.Username,
		FullName:          channel.FullName,
		Email:             channel.Email,
		AvatarURL:         channel.AvatarURL,
		CoverImageURL:     channel.CoverImageURL,
		SubscribersCount:  subscribers,
		SubscribedToCount: subscribedTo,
		IsSubscribed:      isSubscribed,
	}, nil
}

func (a *accountService) issueTokens(userID uuid.UUID) (model.TokenPair, error) {
	accessToken, atExp, err := a.tokens.GenerateAccessToken(userID)
	if err != nil {
		return model.TokenPair{}, customErrors.WrapInternal(err, "issue access token")
	}
	refreshToken, rtExp, err := a.tokens.GenerateRefreshToken(userID)
	if err != nil {
		return model.TokenPair{}, customErrors.WrapInternal(err, "issue refresh token")
	}
	now := time.Now()

	return model.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		AccessTTL:    atExp.Sub(now),
		RefreshTTL:   rtExp.Sub(now),
		UserID:       userID,
	}, nil
}

func (a *accountService) reload(ctx context.Context, userID uuid.UUID) (model.PublicUser, error) {
	user, err := a.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return model.PublicUser{}, customErrors.WrapInternal(err, "reload user")
	}
	return user.Public(), nil
}
