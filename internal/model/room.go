package model

import (
	"time"

	"gorm.io/gorm"

	"dorm-allocation-backend/internal/parse"
)

// RoomGenderType restricts who may live in a room.
type RoomGenderType string

const (
	RoomGenderMale   RoomGenderType = "male"
	RoomGenderFemale RoomGenderType = "female"
	RoomGenderMixed  RoomGenderType = "mixed"
	RoomGenderAny    RoomGenderType = "any"
)

// GenderOccupancy is the gender of the first occupant of a flexible room.
type GenderOccupancy string

const (
	OccupancyEmpty  GenderOccupancy = "empty"
	OccupancyMale   GenderOccupancy = "male"
	OccupancyFemale GenderOccupancy = "female"
)

// OccupancyFor maps a binary gender onto the occupancy marker.
func OccupancyFor(g Gender) GenderOccupancy {
	switch g {
	case GenderMale:
		return OccupancyMale
	case GenderFemale:
		return OccupancyFemale
	default:
		return OccupancyEmpty
	}
}

// Room is a physical room inside a dormitory.
type Room struct {
	ID                     int64           `gorm:"primaryKey"`
	DormitoryID            int64           `gorm:"not null;uniqueIndex:idx_rooms_dormitory_number"`
	Number                 string          `gorm:"size:32;not null;uniqueIndex:idx_rooms_dormitory_number"`
	Floor                  int             `gorm:"not null;index"`
	Capacity               int             `gorm:"not null;check:chk_rooms_capacity,capacity >= 1"`
	OccupiedPlaces         int             `gorm:"not null;check:chk_rooms_occupied_places,occupied_places >= 0 AND occupied_places <= capacity"`
	GenderType             RoomGenderType  `gorm:"size:16;not null"`
	CurrentGenderOccupancy GenderOccupancy `gorm:"size:16;not null"`
	IsReservable           bool            `gorm:"not null"`
	CreatedAt              time.Time
	UpdatedAt              time.Time

	// Associations
	Dormitory Dormitory `gorm:"constraint:OnDelete:RESTRICT"`
}

// BeforeCreate fills the defaults a room is created with.
func (r *Room) BeforeCreate(tx *gorm.DB) error {
	if r.GenderType == "" {
		r.GenderType = RoomGenderAny
	}
	if r.CurrentGenderOccupancy == "" {
		r.CurrentGenderOccupancy = OccupancyEmpty
	}
	if r.Floor == 0 {
		if parsed, err := parse.ParseRoomNumber(r.Number); err == nil {
			r.Floor = parsed.Floor
		}
	}
	return nil
}

// FreePlaces is the number of places not yet taken.
func (r Room) FreePlaces() int {
	return r.Capacity - r.OccupiedPlaces
}

// TracksGenderOccupancy reports whether the first occupant decides the
// room's gender occupancy marker.
func (r Room) TracksGenderOccupancy() bool {
	return r.GenderType == RoomGenderAny || r.GenderType == RoomGenderMixed
}
