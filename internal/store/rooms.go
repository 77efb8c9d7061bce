package store

import (
	"fmt"

	"gorm.io/gorm"

	"dorm-allocation-backend/internal/apperr"
	"dorm-allocation-backend/internal/model"
)

// CompatibleForGender reports whether an occupant of gender g may join room.
// Fixed-gender rooms must match; mixed rooms take anyone; "any" rooms follow
// whoever moved in first until they are empty again.
func CompatibleForGender(room model.Room, g model.Gender) bool {
	switch room.GenderType {
	case model.RoomGenderMale:
		return g == model.GenderMale
	case model.RoomGenderFemale:
		return g == model.GenderFemale
	case model.RoomGenderMixed:
		return true
	case model.RoomGenderAny:
		if room.OccupiedPlaces == 0 || room.CurrentGenderOccupancy == model.OccupancyEmpty {
			return true
		}
		return room.CurrentGenderOccupancy == model.OccupancyFor(g)
	default:
		return false
	}
}

// AdjustOccupancy applies a +1/-1 occupancy change to room in memory,
// validating capacity and gender first. On error the room is unchanged.
func AdjustOccupancy(room *model.Room, delta int, gender model.Gender) error {
	switch delta {
	case 1:
		g, ok := gender.Binary()
		if !ok {
			return apperr.Newf(apperr.CodeGenderUndetermined, "occupant of room %d has no binary gender", room.ID)
		}
		if room.OccupiedPlaces >= room.Capacity {
			return apperr.WithMetadata(apperr.CodeCapacityExceeded,
				fmt.Sprintf("room %s has no free places", room.Number),
				map[string]string{"room_id": fmt.Sprint(room.ID), "capacity": fmt.Sprint(room.Capacity)})
		}
		if !CompatibleForGender(*room, g) {
			return apperr.WithMetadata(apperr.CodeGenderConflict,
				fmt.Sprintf("room %s does not accept %s occupants", room.Number, g),
				map[string]string{"room_id": fmt.Sprint(room.ID), "gender_occupancy": string(room.CurrentGenderOccupancy)})
		}
		room.OccupiedPlaces++
		if room.TracksGenderOccupancy() && room.CurrentGenderOccupancy == model.OccupancyEmpty {
			room.CurrentGenderOccupancy = model.OccupancyFor(g)
		}
	case -1:
		if room.OccupiedPlaces <= 0 {
			return apperr.Newf(apperr.CodeInvalidArgument, "room %s has no occupants to release", room.Number)
		}
		room.OccupiedPlaces--
		if room.OccupiedPlaces == 0 && room.TracksGenderOccupancy() {
			room.CurrentGenderOccupancy = model.OccupancyEmpty
		}
	default:
		return apperr.Newf(apperr.CodeInvalidArgument, "occupancy delta must be +1 or -1, got %d", delta)
	}
	return nil
}

// checkRoomInvariants is the last guard before a locked room is written back.
func checkRoomInvariants(room model.Room) error {
	if room.OccupiedPlaces < 0 || room.OccupiedPlaces > room.Capacity {
		return apperr.Newf(apperr.CodeCapacityExceeded,
			"room %s would hold %d of %d places", room.Number, room.OccupiedPlaces, room.Capacity)
	}
	if room.TracksGenderOccupancy() && room.OccupiedPlaces == 0 && room.CurrentGenderOccupancy != model.OccupancyEmpty {
		return apperr.Newf(apperr.CodeGenderConflict, "empty room %s still carries gender occupancy", room.Number)
	}
	return nil
}

// WithLockedRoom locks the room row, hands a copy to fn, re-checks the room
// invariants and writes back the occupancy columns if fn changed them.
// Either the whole update lands or the room is left as it was.
func (s *gormStore) WithLockedRoom(tx *gorm.DB, roomID int64, fn func(room *model.Room) error) (*model.Room, error) {
	locked, err := lockRoom(tx, roomID)
	if err != nil {
		return nil, err
	}

	updated := *locked
	if err := fn(&updated); err != nil {
		return nil, err
	}
	if err := checkRoomInvariants(updated); err != nil {
		return nil, err
	}

	if updated.OccupiedPlaces == locked.OccupiedPlaces && updated.CurrentGenderOccupancy == locked.CurrentGenderOccupancy {
		return &updated, nil
	}

	if err := tx.Model(&model.Room{ID: roomID}).Updates(map[string]any{
		"occupied_places":          updated.OccupiedPlaces,
		"current_gender_occupancy": updated.CurrentGenderOccupancy,
	}).Error; err != nil {
		return nil, fmt.Errorf("failed to update occupancy of room %d: %w", roomID, err)
	}
	return &updated, nil
}

// ReserveCapacity adds (+1) or releases (-1) one place in a room under its row
// lock. gender is the incoming occupant's and is ignored on release.
func (s *gormStore) ReserveCapacity(tx *gorm.DB, roomID int64, delta int, gender model.Gender) (*model.Room, error) {
	return s.WithLockedRoom(tx, roomID, func(room *model.Room) error {
		return AdjustOccupancy(room, delta, gender)
	})
}
