package model

import "time"

// RoomHistory records which room a student lived in for an academic year.
type RoomHistory struct {
	ID           int64  `gorm:"primaryKey"`
	UserID       int64  `gorm:"not null;uniqueIndex:idx_room_histories_user_year"`
	AcademicYear string `gorm:"size:9;not null;uniqueIndex:idx_room_histories_user_year"`
	DormitoryID  int64  `gorm:"not null;index"`
	RoomID       int64  `gorm:"not null;index"`
	RoomNumber   string `gorm:"size:32;not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
