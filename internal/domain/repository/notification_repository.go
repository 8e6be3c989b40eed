package repository

import (
	"context"

	"flight-alert-service/internal/domain/entity"
)

// NotificationRepository pushes a formatted message to the user.
// Send never returns an error: failures are logged and reported as false.
type NotificationRepository interface {
	Send(ctx context.Context, title, message string) bool
}

// AlertLogRepository records dispatched notification batches
type AlertLogRepository interface {
	Record(ctx context.Context, dispatch *entity.AlertDispatch) error
	Recent(ctx context.Context, limit int) ([]*entity.AlertDispatch, error)
}
