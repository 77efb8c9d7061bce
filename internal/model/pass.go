package model

import "time"

// PassSourceType names what produced a dormitory pass.
type PassSourceType string

const (
	PassSourceApplication PassSourceType = "application"
	PassSourceReservation PassSourceType = "reservation"
	PassSourceContract    PassSourceType = "contract"
)

// PassStatus is the stored state of a dormitory pass.
type PassStatus string

const (
	PassActive  PassStatus = "active"
	PassRevoked PassStatus = "revoked"
	PassExpired PassStatus = "expired"
)

// DormitoryPass is the publicly verifiable proof of a live room assignment.
type DormitoryPass struct {
	ID             int64          `gorm:"primaryKey"`
	UserID         int64          `gorm:"not null;index"`
	DormitoryID    int64          `gorm:"not null;index"`
	RoomID         *int64         `gorm:"index"`
	RoomNumberText string         `gorm:"size:32"`
	ValidFrom      time.Time      `gorm:"not null"`
	ValidUntil     time.Time      `gorm:"not null"`
	PassIdentifier string         `gorm:"size:64;not null;uniqueIndex"`
	SourceType     PassSourceType `gorm:"size:16;not null;index:idx_dormitory_passes_source"`
	SourceID       int64          `gorm:"not null;index:idx_dormitory_passes_source"`
	Status         PassStatus     `gorm:"size:16;not null;index"`
	IssuedBy       int64
	RevokedAt      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
