// Package notifications records a per-user activity feed for membership and
// assignment changes. Delivery is best-effort: callers log failures and carry
// on.
package notifications

import (
	"context"

	"trello-project/microservices/taskgraph-service/models"
)

type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
	ListForUser(ctx context.Context, userID string) ([]models.Notification, error)
}

// Nop discards everything. Used when no Cassandra hosts are configured.
type Nop struct{}

func (Nop) Notify(ctx context.Context, n models.Notification) error {
	return nil
}

func (Nop) ListForUser(ctx context.Context, userID string) ([]models.Notification, error) {
	return []models.Notification{}, nil
}
