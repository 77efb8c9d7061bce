package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"dorm-allocation-backend/internal/model"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// DefaultMaxAttempts is how many delivery rounds a notification gets before
// it is marked failed.
const DefaultMaxAttempts = 3

// DefaultRetryDelay is the wait before the second delivery round; later
// rounds wait proportionally longer.
const DefaultRetryDelay = 30 * time.Second

// pushPayload is the JSON body the service worker receives.
type pushPayload struct {
	NotificationID int64  `json:"notification_id"`
	Title          string `json:"title"`
	Body           string `json:"body"`
}

// WorkerPool delivers notification rows to the owner's push subscriptions.
type WorkerPool struct {
	size        int
	maxAttempts int
	retryDelay  time.Duration
	jobs        chan int64
	db          *gorm.DB
	webpush     *webpush.Options
	sender      NotificationSender
	log         *zap.Logger
}

// NewWorkerPool creates a new worker pool. queueSize bounds the number of
// notification ids waiting for a worker.
func NewWorkerPool(size, queueSize int, db *gorm.DB, webpushOptions *webpush.Options, log *zap.Logger) *WorkerPool {
	if size < 1 {
		size = 1
	}
	if queueSize < size {
		queueSize = size
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &WorkerPool{
		size:        size,
		maxAttempts: DefaultMaxAttempts,
		retryDelay:  DefaultRetryDelay,
		jobs:        make(chan int64, queueSize),
		db:          db,
		webpush:     webpushOptions,
		sender:      &WebPushSender{},
		log:         log.Named("notification"),
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	wp.log.Debug("worker started", zap.Int("worker", id))
	for {
		select {
		case notificationID := <-wp.jobs:
			wp.deliver(ctx, notificationID)
		case <-ctx.Done():
			wp.log.Debug("worker shutting down", zap.Int("worker", id))
			return
		}
	}
}

// Dispatch queues a notification id without blocking. It reports false when
// the queue is full; the row stays pending for RedeliverPending.
func (wp *WorkerPool) Dispatch(notificationID int64) bool {
	select {
	case wp.jobs <- notificationID:
		return true
	default:
		return false
	}
}

// RedeliverPending queues every notification still pending, oldest first,
// until the queue fills up. It returns how many ids were queued.
func (wp *WorkerPool) RedeliverPending(ctx context.Context) (int, error) {
	var ids []int64
	if err := wp.db.WithContext(ctx).
		Model(&model.Notification{}).
		Where("status = ?", model.NotificationPending).
		Order("id ASC").
		Pluck("id", &ids).Error; err != nil {
		return 0, err
	}

	queued := 0
	for _, id := range ids {
		if !wp.Dispatch(id) {
			break
		}
		queued++
	}
	if queued > 0 {
		wp.log.Info("requeued pending notifications", zap.Int("queued", queued), zap.Int("pending", len(ids)))
	}
	return queued, nil
}

// deliver pushes one notification to every subscription of its user and
// records the outcome on the row.
func (wp *WorkerPool) deliver(ctx context.Context, notificationID int64) {
	log := wp.log.With(zap.Int64("notification_id", notificationID))

	var n model.Notification
	if err := wp.db.WithContext(ctx).First(&n, notificationID).Error; err != nil {
		log.Error("failed to load notification", zap.Error(err))
		return
	}
	if n.Status != model.NotificationPending {
		return
	}

	var subscriptions []model.PushSubscription
	if err := wp.db.WithContext(ctx).Where("user_id = ?", n.UserID).Find(&subscriptions).Error; err != nil {
		log.Error("failed to load subscriptions", zap.Int64("user_id", n.UserID), zap.Error(err))
		return
	}

	payload, err := json.Marshal(pushPayload{NotificationID: n.ID, Title: n.Title, Body: n.Description})
	if err != nil {
		log.Error("failed to encode payload", zap.Error(err))
		return
	}

	delivered := 0
	for _, sub := range subscriptions {
		if wp.sendNotification(ctx, sub, payload) {
			delivered++
		}
	}

	wp.finish(ctx, n, len(subscriptions), delivered)
}

// finish marks the row sent when there was nothing to deliver or at least one
// push succeeded. Otherwise it counts the attempt, schedules another round and
// gives up after maxAttempts.
func (wp *WorkerPool) finish(ctx context.Context, n model.Notification, subscriptions, delivered int) {
	attempts := n.Attempts + 1
	updates := map[string]any{"attempts": attempts}
	retry := false

	switch {
	case subscriptions == 0 || delivered > 0:
		now := time.Now().UTC()
		updates["status"] = model.NotificationSent
		updates["sent_at"] = &now
	case attempts >= wp.maxAttempts:
		updates["status"] = model.NotificationFailed
	default:
		retry = true
	}

	if err := wp.db.WithContext(ctx).Model(&model.Notification{ID: n.ID}).Updates(updates).Error; err != nil {
		wp.log.Error("failed to record delivery", zap.Int64("notification_id", n.ID), zap.Error(err))
		return
	}
	wp.log.Debug("notification processed",
		zap.Int64("notification_id", n.ID),
		zap.Int64("user_id", n.UserID),
		zap.Int("subscriptions", subscriptions),
		zap.Int("delivered", delivered))

	if retry {
		wp.retryLater(ctx, n.ID, attempts)
	}
}

// retryLater queues the notification again after attempts*retryDelay. A row
// that cannot be queued stays pending for RedeliverPending.
func (wp *WorkerPool) retryLater(ctx context.Context, notificationID int64, attempts int) {
	time.AfterFunc(time.Duration(attempts)*wp.retryDelay, func() {
		if ctx.Err() != nil {
			return
		}
		if !wp.Dispatch(notificationID) {
			wp.log.Warn("delivery queue full, retry deferred", zap.Int64("notification_id", notificationID))
		}
	})
}

// sendNotification sends a single web push notification and reports whether
// the push service accepted it.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) bool {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		wp.log.Warn("failed to send push", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		return false
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		wp.log.Info("subscription expired, deleting", zap.String("endpoint", sub.Endpoint))
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			wp.log.Error("failed to delete expired subscription", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		}
		return false
	}
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
