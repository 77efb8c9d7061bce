// Package notification stores user notifications and delivers them as web
// push messages.
package notification

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"dorm-allocation-backend/internal/model"
)

// Notifier records notifications inside a business transaction and hands
// them to delivery once that transaction has committed.
type Notifier interface {
	Enqueue(tx *gorm.DB, userID int64, title, description string) (int64, error)
	Dispatch(ids ...int64)
}

// Outbox is the Notifier backed by the notifications table.
type Outbox struct {
	pool *WorkerPool
	log  *zap.Logger
}

// NewOutbox creates an outbox. A nil pool leaves rows pending; they are
// still readable and RedeliverPending picks them up once a pool runs.
func NewOutbox(pool *WorkerPool, log *zap.Logger) *Outbox {
	if log == nil {
		log = zap.NewNop()
	}
	return &Outbox{pool: pool, log: log.Named("outbox")}
}

// Enqueue writes a pending notification through tx.
func (o *Outbox) Enqueue(tx *gorm.DB, userID int64, title, description string) (int64, error) {
	n := model.Notification{
		UserID:      userID,
		Title:       title,
		Description: description,
		Status:      model.NotificationPending,
		CreatedAt:   time.Now().UTC(),
	}
	if err := tx.Create(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to enqueue notification for user %d: %w", userID, err)
	}
	return n.ID, nil
}

// Dispatch passes committed notification ids to the worker pool. It never
// blocks the caller.
func (o *Outbox) Dispatch(ids ...int64) {
	if o.pool == nil {
		return
	}
	for _, id := range ids {
		if !o.pool.Dispatch(id) {
			o.log.Warn("delivery queue full, notification left pending", zap.Int64("notification_id", id))
		}
	}
}
