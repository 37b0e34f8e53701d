package model

import (
	"time"

	"github.com/google/uuid"
)

// User is the persisted identity record. Username is stored lowercased so the
// unique index doubles as the case-insensitive uniqueness check.
type User struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	Username      string    `gorm:"uniqueIndex;not null"`
	Email         string    `gorm:"uniqueIndex;not null"`
	FullName      string
	PasswordHash  string
	AvatarURL     string
	CoverImageURL string
	// RefreshToken holds the single currently valid refresh token for this
	// user, or "" when no session is open. Rotation replaces it atomically.
	RefreshToken string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (User) TableName() string { return "users" }

// Public strips passwordHash and refreshToken.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		FullName:      u.FullName,
		AvatarURL:     u.AvatarURL,
		CoverImageURL: u.CoverImageURL,
		CreatedAt:     u.CreatedAt,
	}
}

// PublicUser is the only user projection that leaves the service.
type PublicUser struct {
	ID            uuid.UUID `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	FullName      string    `json:"fullName"`
	AvatarURL     string    `json:"avatarUrl"`
	CoverImageURL string    `json:"coverImageUrl,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Subscription is a directed edge: subscriber follows channel.
type Subscription struct {
	ID           uint      `gorm:"primaryKey"`
	SubscriberID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_sub_edge"`
	ChannelID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_sub_edge"`
	CreatedAt    time.Time
}

func (Subscription) TableName() string { return "subscriptions" }

type TokenPair struct {
	AccessToken  string
	RefreshToken string
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	UserID       uuid.UUID
}

type LoginResult struct {
	User   PublicUser
	Tokens TokenPair
}

// ChannelProfile is the public view of a user as a channel.
type ChannelProfile struct {
	Username          string `json:"username"`
	FullName          string `json:"fullName"`
	Email             string `json:"email"`
	AvatarURL         string `json:"avatarUrl"`
	CoverImageURL     string `json:"coverImageUrl,omitempty"`
	SubscribersCount  int64  `json:"subscribersCount"`
	SubscribedToCount int64  `json:"subscribedToCount"`
	IsSubscribed      bool   `json:"isSubscribed"`
}
