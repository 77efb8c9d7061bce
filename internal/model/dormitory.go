package model

import "time"

// Dormitory represents a dormitory building.
type Dormitory struct {
	ID        int64     `gorm:"primaryKey"`
	Name      string    `gorm:"uniqueIndex;size:128;not null"`
	Address   string    `gorm:"size:256"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	// Associations
	Rooms []Room `gorm:"foreignKey:DormitoryID"`
}

// Faculty is the academic unit a student belongs to.
type Faculty struct {
	ID        int64  `gorm:"primaryKey"`
	Name      string `gorm:"uniqueIndex;size:256;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
