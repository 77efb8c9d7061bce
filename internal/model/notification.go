package model

import "time"

// NotificationStatus tracks delivery of a notification record.
type NotificationStatus string

const (
	NotificationPending NotificationStatus = "pending"
	NotificationSent    NotificationStatus = "sent"
	NotificationFailed  NotificationStatus = "failed"
)

// Notification is a fire-and-forget message for a user, written in the same
// transaction as the change it announces.
type Notification struct {
	ID          int64              `gorm:"primaryKey"`
	UserID      int64              `gorm:"index;not null"`
	Title       string             `gorm:"size:256;not null"`
	Description string             `gorm:"type:text;not null"`
	Status      NotificationStatus `gorm:"size:16;not null;index"`
	Attempts    int                `gorm:"not null"`
	SentAt      *time.Time
	CreatedAt   time.Time `gorm:"not null"`
}
