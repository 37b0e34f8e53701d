package postgres

import (
	"context"

	customErrors "github.com/clipstream/account-service/internal/account/errors"
	"github.com/clipstream/account-service/internal/account/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SubscriptionRepo struct {
	db *gorm.DB
}

func NewSubscriptionRepo(db *gorm.DB) *SubscriptionRepo {
	return &SubscriptionRepo{db: db}
}

func (p *SubscriptionRepo) CountSubscribers(ctx context.Context, channelID uuid.UUID) (int64, error) {
	var n int64
	res := p.db.WithContext(ctx).Model(&model.Subscription{}).
		Where("channel_id = ?", channelID).
		Count(&n)
	if err := res.Error; err != nil {
		return 0, customErrors.WrapInternal(err, "CountSubscribers")
	}
	return n, nil
}

func (p *SubscriptionRepo) CountSubscribedTo(ctx context.Context, subscriberID uuid.UUID) (int64, error) {
	var n int64
	res := p.db.WithContext(ctx).Model(&model.Subscription{}).
		Where("subscriber_id = ?", subscriberID).
		Count(&n)
	if err := res.Error; err != nil {
		return 0, customErrors.WrapInternal(err, "CountSubscribedTo")
	}
	return n, nil
}

func (p *SubscriptionRepo) IsSubscribed(ctx context.Context, subscriberID, channelID uuid.UUID) (bool, error) {
	var n int64
	res := p.db.WithContext(ctx).Model(&model.Subscription{}).
		Where("subscriber_id = ? AND channel_id = ?", subscriberID, channelID).
		Count(&n)
	if err := res.Error; err != nil {
		return false, customErrors.WrapInternal(err, "IsSubscribed")
	}
	return n > 0, nil
}
