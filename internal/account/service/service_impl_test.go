package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/clipstream/account-service/internal/account/dto"
	accountErrors "github.com/clipstream/account-service/internal/account/errors"
	"github.com/clipstream/account-service/internal/account/jwt"
	"github.com/clipstream/account-service/internal/account/model"
	"github.com/clipstream/account-service/internal/account/password"
	"github.com/clipstream/account-service/internal/config"
	"github.com/clipstream/account-service/internal/media"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type userRepoStub struct{ users map[uuid.UUID]model.User }

func newUserRepoStub() *userRepoStub {
	return &userRepoStub{users: make(map[uuid.UUID]model.User)}
}

func (u *userRepoStub) CreateUser(ctx context.Context, m model.User) (uuid.UUID, error) {
	for _, v := range u.users {
		if strings.EqualFold(v.Username, m.Username) || v.Email == m.Email {
			return uuid.Nil, accountErrors.ErrAlreadyExists
		}
	}
	u.users[m.ID] = m
	return m.ID, nil
}

func (u *userRepoStub) GetUserByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	v, ok := u.users[id]
	if !ok {
		return model.User{}, accountErrors.ErrNotFound
	}
	return v, nil
}

func (u *userRepoStub) GetUserByUsername(ctx context.Context, username string) (model.User, error) {
	for _, v := range u.users {
		if strings.EqualFold(v.Username, username) {
			return v, nil
		}
	}
	return model.User{}, accountErrors.ErrNotFound
}

func (u *userRepoStub) GetUserByUsernameOrEmail(ctx context.Context, identifier string) (model.User, error) {
	for _, v := range u.users {
		if strings.EqualFold(v.Username, identifier) || v.Email == identifier {
			return v, nil
		}
	}
	return model.User{}, accountErrors.ErrNotFound
}

func (u *userRepoStub) SetRefreshToken(ctx context.Context, id uuid.UUID, token string) error {
	v, ok := u.users[id]
	if !ok {
		return accountErrors.ErrNotFound
	}
	v.RefreshToken = token
	u.users[id] = v
	return nil
}

func (u *userRepoStub) RotateRefreshToken(ctx context.Context, id uuid.UUID, current, next string) error {
	v, ok := u.users[id]
	if !ok || v.RefreshToken != current {
		return accountErrors.ErrTokenReuse
	}
	v.RefreshToken = next
	u.users[id] = v
	return nil
}

func (u *userRepoStub) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	v, ok := u.users[id]
	if !ok {
		return accountErrors.ErrNotFound
	}
	v.PasswordHash = hash
	u.users[id] = v
	return nil
}

func (u *userRepoStub) UpdateProfileFields(ctx context.Context, id uuid.UUID, fullName, email string) error {
	v, ok := u.users[id]
	if !ok {
		return accountErrors.ErrNotFound
	}
	v.FullName = fullName
	v.Email = email
	u.users[id] = v
	return nil
}

func (u *userRepoStub) UpdateAvatarURL(ctx context.Context, id uuid.UUID, url string) error {
	v, ok := u.users[id]
	if !ok {
		return accountErrors.ErrNotFound
	}
	v.AvatarURL = url
	u.users[id] = v
	return nil
}

func (u *userRepoStub) UpdateCoverImageURL(ctx context.Context, id uuid.UUID, url string) error {
	v, ok := u.users[id]
	if !ok {
		return accountErrors.ErrNotFound
	}
	v.CoverImageURL = url
	u.users[id] = v
	return nil
}

type subRepoStub struct{ edges map[[2]uuid.UUID]bool }

func newSubRepoStub() *subRepoStub {
	return &subRepoStub{edges: make(map[[2]uuid.UUID]bool)}
}

func (s *subRepoStub) CountSubscribers(ctx context.Context, channelID uuid.UUID) (int64, error) {
	var n int64
	for edge := range s.edges {
		if edge[1] == channelID {
			n++
		}
	}
	return n, nil
}

func (s *subRepoStub) CountSubscribedTo(ctx context.Context, subscriberID uuid.UUID) (int64, error) {
	var n int64
	for edge := range s.edges {
		if edge[0] == subscriberID {
			n++
		}
	}
	return n, nil
}

func (s *subRepoStub) IsSubscribed(ctx context.Context, subscriberID, channelID uuid.UUID) (bool, error) {
	return s.edges[[2]uuid.UUID{subscriberID, channelID}], nil
}

type mediaStoreStub struct {
	fail bool
	puts int
}

func (m *mediaStoreStub) Put(ctx context.Context, up media.Upload) (media.Object, error) {
	if m.fail {
		return media.Object{}, accountErrors.WrapUpload(context.DeadlineExceeded, "put object")
	}
	m.puts++
	return media.Object{URL: "https://cdn.example.com/media/obj", Bytes: up.Size}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		AccessTokenSecret:  "access-secret",
		RefreshTokenSecret: "refresh-secret",
		AccessTokenTTL:     time.Minute,
		RefreshTokenTTL:    time.Hour,
		PasswordPepper:     "pepper",
	}
}

type fixture struct {
	svc    AccountService
	users  *userRepoStub
	subs   *subRepoStub
	store  *mediaStoreStub
	tokens jwt.TokenIssuer
}

func newFixture() *fixture {
	cfg := testConfig()
	users := newUserRepoStub()
	subs := newSubRepoStub()
	store := &mediaStoreStub{}
	tokens := jwt.NewTokenIssuer(cfg)
	svc := NewAccountService(users, subs, tokens, password.New(cfg.PasswordPepper), store, cfg, validator.New())
	return &fixture{svc: svc, users: users, subs: subs, store: store, tokens: tokens}
}

func avatarUpload() media.Upload {
	return media.Upload{Body: strings.NewReader("img"), Size: 3, ContentType: "image/png"}
}

func registerUser(t *testing.T, f *fixture, username, email string) model.PublicUser {
	t.Helper()
	user, err := f.svc.Register(context.Background(), dto.RegisterDTO{
		Username: username,
		Email:    email,
		Password: "Sup3rSecret",
		FullName: "Test User",
	}, avatarUpload(), nil)
	require.NoError(t, err)
	return user
}

func TestRegister_Sanitized(t *testing.T) {
	f := newFixture()
	user := registerUser(t, f, "Channel1", "c1@example.com")

	require.Equal(t, "channel1", user.Username)
	require.Equal(t, "c1@example.com", user.Email)
	require.NotEmpty(t, user.AvatarURL)

	stored, err := f.users.GetUserByID(context.Background(), user.ID)
	require.NoError(t, err)
	require.Empty(t, stored.RefreshToken)
	require.NotEqual(t, "Sup3rSecret", stored.PasswordHash)
}

func TestRegister_DuplicateUsernameCaseInsensitive(t *testing.T) {
	f := newFixture()
	first := registerUser(t, f, "channel1", "c1@example.com")

	_, err := f.svc.Register(context.Background(), dto.RegisterDTO{
		Username: "CHANNEL1",
		Email:    "other@example.com",
		Password: "Sup3rSecret",
		FullName: "Other",
	}, avatarUpload(), nil)
	require.True(t, accountErrors.IsAlreadyExists(err))

	// first registration persists unchanged
	stored, err := f.users.GetUserByID(context.Background(), first.ID)
	require.NoError(t, err)
	require.Equal(t, "c1@example.com", stored.Email)
	require.Len(t, f.users.users, 1)
}

func TestRegister_MissingFields(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Register(context.Background(), dto.RegisterDTO{Username: "x"}, avatarUpload(), nil)
	require.True(t, accountErrors.IsInvalidArgument(err))
}

func TestRegister_MissingAvatar(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Register(context.Background(), dto.RegisterDTO{
		Username: "channel1",
		Email:    "c1@example.com",
		Password: "Sup3rSecret",
		FullName: "Test User",
	}, media.Upload{}, nil)
	require.True(t, accountErrors.IsInvalidArgument(err))
}

func TestRegister_AvatarUploadFailure(t *testing.T) {
	f := newFixture()
	f.store.fail = true
	_, err := f.svc.Register(context.Background(), dto.RegisterDTO{
		Username: "channel1",
		Email:    "c1@example.com",
		Password: "Sup3rSecret",
		FullName: "Test User",
	}, avatarUpload(), nil)
	require.True(t, accountErrors.IsUploadFailed(err))
}

func TestLogin_UsernameOrEmail(t *testing.T) {
	f := newFixture()
	registerUser(t, f, "channel1", "c1@example.com")
	ctx := context.Background()

	byName, err := f.svc.Login(ctx, dto.LoginDTO{Identifier: "channel1", Password: "Sup3rSecret"})
	require.NoError(t, err)
	require.NotEmpty(t, byName.Tokens.AccessToken)
	require.NotEmpty(t, byName.Tokens.RefreshToken)

	byEmail, err := f.svc.Login(ctx, dto.LoginDTO{Identifier: "c1@example.com", Password: "Sup3rSecret"})
	require.NoError(t, err)
	require.Equal(t, byName.User.ID, byEmail.User.ID)
}

func TestLogin_FailuresIndistinguishable(t *testing.T) {
	f := newFixture()
	registerUser(t, f, "channel1", "c1@example.com")
	ctx := context.Background()

	_, errNoUser := f.svc.Login(ctx, dto.LoginDTO{Identifier: "nobody", Password: "Sup3rSecret"})
	_, errBadPwd := f.svc.Login(ctx, dto.LoginDTO{Identifier: "channel1", Password: "WrongSecret"})

	require.True(t, accountErrors.IsInvalidCredentials(errNoUser))
	require.True(t, accountErrors.IsInvalidCredentials(errBadPwd))
	require.Equal(t, errNoUser.Error(), errBadPwd.Error())
}

func TestLogin_OverwritesPriorSession(t *testing.T) {
	f := newFixture()
	user := registerUser(t, f, "channel1", "c1@example.com")
	ctx := context.Background()

	first, err := f.svc.Login(ctx, dto.LoginDTO{Identifier: "channel1", Password: "Sup3rSecret"})
	require.NoError(t, err)
	second, err := f.svc.Login(ctx, dto.LoginDTO{Identifier: "channel1", Password: "Sup3rSecret"})
	require.NoError(t, err)

	stored, _ := f.users.GetUserByID(ctx, user.ID)
	require.Equal(t, second.Tokens.RefreshToken, stored.RefreshToken)

	// the first device's refresh token is silently invalidated
	_, err = f.svc.Refresh(ctx, dto.RefreshDTO{RefreshToken: first.Tokens.RefreshToken})
	require.True(t, accountErrors.IsTokenReuse(err))
}

func TestRefresh_RotationAndReuse(t *testing.T) {
	f := newFixture()
	registerUser(t, f, "channel1", "c1@example.com")
	ctx := context.Background()

	login, err := f.svc.Login(ctx, dto.LoginDTO{Identifier: "channel1", Password: "Sup3rSecret"})
	require.NoError(t, err)

	rotated, err := f.svc.Refresh(ctx, dto.RefreshDTO{RefreshToken: login.Tokens.RefreshToken})
	require.NoError(t, err)
	require.NotEqual(t, login.Tokens.RefreshToken, rotated.RefreshToken)

	// replaying the consumed token must fail even though it has not expired
	_, err = f.svc.Refresh(ctx, dto.RefreshDTO{RefreshToken: login.Tokens.RefreshToken})
	require.True(t, accountErrors.IsTokenReuse(err))

	// the rotated token works exactly once more
	_, err = f.svc.Refresh(ctx, dto.RefreshDTO{RefreshToken: rotated.RefreshToken})
	require.NoError(t, err)
}

func TestRefresh_MissingToken(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Refresh(context.Background(), dto.RefreshDTO{})
	require.True(t, accountErrors.IsUnauthorized(err))
}

func TestRefresh_UnknownSubject(t *testing.T) {
	f := newFixture()
	tok, _, err := f.tokens.GenerateRefreshToken(uuid.New())
	require.NoError(t, err)
	_, err = f.svc.Refresh(context.Background(), dto.RefreshDTO{RefreshToken: tok})
	require.True(t, accountErrors.IsInvalidCredentials(err))
}

func TestLogout_RevokesRefreshButNotAccess(t *testing.T) {
	f := newFixture()
	registerUser(t, f, "channel1", "c1@example.com")
	ctx := context.Background()

	login, err := f.svc.Login(ctx, dto.LoginDTO{Identifier: "channel1", Password: "Sup3rSecret"})
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, login.User.ID))
	// idempotent
	require.NoError(t, f.svc.Logout(ctx, login.User.ID))

	// the unexpired refresh token no longer matches the stored value
	_, err = f.svc.Refresh(ctx, dto.RefreshDTO{RefreshToken: login.Tokens.RefreshToken})
	require.Error(t, err)

	// but the access token keeps resolving until it expires on its own
	user, err := f.svc.Authenticate(ctx, login.Tokens.AccessToken)
	require.NoError(t, err)
	require.Equal(t, login.User.ID, user.ID)
}

func TestAuthenticate_TokenErrors(t *testing.T) {
	f := newFixture()
	user := registerUser(t, f, "channel1", "c1@example.com")
	ctx := context.Background()

	_, err := f.svc.Authenticate(ctx, "")
	require.True(t, accountErrors.IsUnauthorized(err))

	// signed under a different secret
	otherCfg := testConfig()
	otherCfg.AccessTokenSecret = "other-secret"
	foreign, _, err := jwt.NewTokenIssuer(otherCfg).GenerateAccessToken(user.ID)
	require.NoError(t, err)
	_, err = f.svc.Authenticate(ctx, foreign)
	require.True(t, accountErrors.IsInvalidToken(err))

	// tampered payload
	login, err := f.svc.Login(ctx, dto.LoginDTO{Identifier: "channel1", Password: "Sup3rSecret"})
	require.NoError(t, err)
	parts := strings.Split(login.Tokens.AccessToken, ".")
	tampered := parts[0] + ".eyJzdWIiOiJ4In0." + parts[2]
	_, err = f.svc.Authenticate(ctx, tampered)
	require.True(t, accountErrors.IsInvalidToken(err))

	// expired
	expiredCfg := testConfig()
	expiredCfg.AccessTokenTTL = -time.Minute
	expired, _, err := jwt.NewTokenIssuer(expiredCfg).GenerateAccessToken(user.ID)
	require.NoError(t, err)
	_, err = f.svc.Authenticate(ctx, expired)
	require.True(t, accountErrors.IsTokenExpired(err))
}

func TestAuthenticate_DeletedUser(t *testing.T) {
	f := newFixture()
	user := registerUser(t, f, "channel1", "c1@example.com")
	ctx := context.Background()

	login, err := f.svc.Login(ctx, dto.LoginDTO{Identifier: "channel1", Password: "Sup3rSecret"})
	require.NoError(t, err)

	delete(f.users.users, user.ID)
	_, err = f.svc.Authenticate(ctx, login.Tokens.AccessToken)
	require.True(t, accountErrors.IsUnauthorized(err))
}

func TestChangePassword(t *testing.T) {
	f := newFixture()
	user := registerUser(t, f, "channel1", "c1@example.com")
	ctx := context.Background()

	login, err := f.svc.Login(ctx, dto.LoginDTO{Identifier: "channel1", Password: "Sup3rSecret"})
	require.NoError(t, err)

	err = f.svc.ChangePassword(ctx, user.ID, dto.ChangePasswordDTO{OldPassword: "WrongSecret", NewPassword: "An0therSecret"})
	require.True(t, accountErrors.IsInvalidCredentials(err))

	err = f.svc.ChangePassword(ctx, user.ID, dto.ChangePasswordDTO{OldPassword: "Sup3rSecret", NewPassword: "An0therSecret"})
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, dto.LoginDTO{Identifier: "channel1", Password: "An0therSecret"})
	require.NoError(t, err)

	// the open session survives the password change
	_, err = f.svc.Refresh(ctx, dto.RefreshDTO{RefreshToken: login.Tokens.RefreshToken})
	require.NoError(t, err)
}

func TestGetChannelProfile(t *testing.T) {
	f := newFixture()
	channel := registerUser(t, f, "channel1", "c1@example.com")
	viewer := registerUser(t, f, "viewer", "v@example.com")
	ctx := context.Background()

	_, err := f.svc.GetChannelProfile(ctx, nil, "ghost")
	require.True(t, accountErrors.IsNotFound(err))

	// zero subscribers, anonymous viewer
	profile, err := f.svc.GetChannelProfile(ctx, nil, "CHANNEL1")
	require.NoError(t, err)
	require.Equal(t, int64(0), profile.SubscribersCount)
	require.False(t, profile.IsSubscribed)

	f.subs.edges[[2]uuid.UUID{viewer.ID, channel.ID}] = true

	profile, err = f.svc.GetChannelProfile(ctx, &viewer.ID, "channel1")
	require.NoError(t, err)
	require.Equal(t, int64(1), profile.SubscribersCount)
	require.True(t, profile.IsSubscribed)

	// a different authenticated viewer is not subscribed
	otherID := uuid.New()
	profile, err = f.svc.GetChannelProfile(ctx, &otherID, "channel1")
	require.NoError(t, err)
	require.False(t, profile.IsSubscribed)
}

func TestUpdateProfileAndImages(t *testing.T) {
	f := newFixture()
	user := registerUser(t, f, "channel1", "c1@example.com")
	ctx := context.Background()

	updated, err := f.svc.UpdateProfileFields(ctx, user.ID, dto.UpdateProfileDTO{FullName: "New Name", Email: "new@example.com"})
	require.NoError(t, err)
	require.Equal(t, "New Name", updated.FullName)
	require.Equal(t, "new@example.com", updated.Email)

	updated, err = f.svc.UpdateAvatar(ctx, user.ID, avatarUpload())
	require.NoError(t, err)
	require.NotEmpty(t, updated.AvatarURL)

	updated, err = f.svc.UpdateCoverImage(ctx, user.ID, avatarUpload())
	require.NoError(t, err)
	require.NotEmpty(t, updated.CoverImageURL)

	_, err = f.svc.UpdateAvatar(ctx, user.ID, media.Upload{})
	require.True(t, accountErrors.IsInvalidArgument(err))
}
