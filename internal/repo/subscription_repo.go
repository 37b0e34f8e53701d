package repo

import (
	"context"

	"github.com/google/uuid"
)

// SubscriptionRepo reads the subscription graph. The edges are written by
// another service; this one only aggregates them for channel profiles.
type SubscriptionRepo interface {
	CountSubscribers(ctx context.Context, channelID uuid.UUID) (int64, error)

	CountSubscribedTo(ctx context.Context, subscriberID uuid.UUID) (int64, error)

	IsSubscribed(ctx context.Context, subscriberID, channelID uuid.UUID) (bool, error)
}
