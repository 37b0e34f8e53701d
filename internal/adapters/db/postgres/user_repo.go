package postgres

import (
	"context"
	"errors"

	customErrors "github.com/clipstream/account-service/internal/account/errors"
	"github.com/clipstream/account-service/internal/account/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// translateError maps driver errors onto the service sentinels. The pgx/v5
// error type is the one gorm's postgres driver actually surfaces.
func translateError(err error, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return customErrors.ErrAlreadyExists
	}
	return customErrors.WrapInternal(err, op)
}

type UserRepo struct {
	db *gorm.DB
}

func NewUserRepo(db *gorm.DB) *UserRepo {
	return &UserRepo{db: db}
}

func (p *UserRepo) CreateUser(ctx context.Context, user model.User) (uuid.UUID, error) {
	res := p.db.WithContext(ctx).Create(&user)
	if err := res.Error; err != nil {
		return uuid.Nil, translateError(err, "CreateUser")
	}
	return user.ID, nil
}

func (p *UserRepo) GetUserByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	var u model.User
	res := p.db.WithContext(ctx).Where("id = ?", id).First(&u)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return model.User{}, customErrors.ErrNotFound
	}
	if err := res.Error; err != nil {
		return model.User{}, customErrors.WrapInternal(err, "GetUserByID")
	}

	return u, nil
}

func (p *UserRepo) GetUserByUsername(ctx context.Context, username string) (model.User, error) {
	var u model.User
	res := p.db.WithContext(ctx).Where("LOWER(username) = LOWER(?)", username).First(&u)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return model.User{}, customErrors.ErrNotFound
	}
	if err := res.Error; err != nil {
		return model.User{}, customErrors.WrapInternal(err, "GetUserByUsername")
	}

	return u, nil
}

func (p *UserRepo) GetUserByUsernameOrEmail(ctx context.Context, identifier string) (model.User, error) {
	var u model.User
	res := p.db.WithContext(ctx).
		Where("LOWER(username) = LOWER(?) OR email = ?", identifier, identifier).
		First(&u)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return model.User{}, customErrors.ErrNotFound
	}
	if err := res.Error; err != nil {
		return model.User{}, customErrors.WrapInternal(err, "GetUserByUsernameOrEmail")
	}

	return u, nil
}

func (p *UserRepo) SetRefreshToken(ctx context.Context, id uuid.UUID, token string) error {
	res := p.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", id).
		Update("refresh_token", token)
	if err := res.Error; err != nil {
		return customErrors.WrapInternal(err, "SetRefreshToken")
	}
	if res.RowsAffected == 0 {
		return customErrors.ErrNotFound
	}

	return nil
}

func (p *UserRepo) RotateRefreshToken(ctx context.Context, id uuid.UUID, current, next string) error {
	// Conditional update keyed on the current token value: of two concurrent
	// refreshes with the same token only one can match the row.
	res := p.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ? AND refresh_token = ?", id, current).
		Update("refresh_token", next)
	if err := res.Error; err != nil {
		return customErrors.WrapInternal(err, "RotateRefreshToken")
	}
	if res.RowsAffected == 0 {
		return customErrors.ErrTokenReuse
	}

	return nil
}

func (p *UserRepo) UpdatePasswordHash(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return p.updateColumn(ctx, id, "password_hash", passwordHash, "UpdatePasswordHash")
}

func (p *UserRepo) UpdateProfileFields(ctx context.Context, id uuid.UUID, fullName, email string) error {
	res := p.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"full_name": fullName, "email": email})
	if err := res.Error; err != nil {
		return translateError(err, "UpdateProfileFields")
	}
	if res.RowsAffected == 0 {
		return customErrors.ErrNotFound
	}

	return nil
}

func (p *UserRepo) UpdateAvatarURL(ctx context.Context, id uuid.UUID, url string) error {
	return p.updateColumn(ctx, id, "avatar_url", url, "UpdateAvatarURL")
}

func (p *UserRepo) UpdateCoverImageURL(ctx context.Context, id uuid.UUID, url string) error {
	return p.updateColumn(ctx, id, "cover_image_url", url, "UpdateCoverImageURL")
}

func (p *UserRepo) updateColumn(ctx context.Context, id uuid.UUID, column, value, op string) error {
	res := p.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", id).
		Update(column, value)
	if err := res.Error; err != nil {
		return customErrors.WrapInternal(err, op)
	}
	if res.RowsAffected == 0 {
		return customErrors.ErrNotFound
	}

	return nil
}
