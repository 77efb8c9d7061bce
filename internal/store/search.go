package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"dorm-allocation-backend/internal/model"
)

// RoomAvailability is a room with the places still free for one academic year.
type RoomAvailability struct {
	Room       model.Room
	HeldPlaces int
	FreePlaces int
}

// OpenRooms returns the reservable rooms of a dormitory that still have a
// free place, ordered by floor then id.
func (s *gormStore) OpenRooms(tx *gorm.DB, dormitoryID int64) ([]model.Room, error) {
	var rooms []model.Room
	if err := tx.
		Where("dormitory_id = ? AND is_reservable = ? AND occupied_places < capacity", dormitoryID, true).
		Order("floor ASC, id ASC").
		Find(&rooms).Error; err != nil {
		return nil, fmt.Errorf("failed to search rooms of dormitory %d: %w", dormitoryID, err)
	}
	return rooms, nil
}

// RoomsHousingPeers returns the ids of rooms in a dormitory where someone
// other than userID with an active pass shares the given course or group.
func (s *gormStore) RoomsHousingPeers(tx *gorm.DB, dormitoryID, userID int64, course int, groupID *int64) (map[int64]bool, error) {
	peers := make(map[int64]bool)
	if course <= 0 && groupID == nil {
		return peers, nil
	}

	q := tx.Model(&model.DormitoryPass{}).
		Joins("JOIN students ON students.id = dormitory_passes.user_id").
		Where("dormitory_passes.status = ? AND dormitory_passes.dormitory_id = ? AND dormitory_passes.room_id IS NOT NULL",
			model.PassActive, dormitoryID).
		Where("dormitory_passes.user_id <> ?", userID)

	switch {
	case course > 0 && groupID != nil:
		q = q.Where("students.course = ? OR students.group_id = ?", course, *groupID)
	case course > 0:
		q = q.Where("students.course = ?", course)
	default:
		q = q.Where("students.group_id = ?", *groupID)
	}

	var roomIDs []int64
	if err := q.Distinct().Pluck("dormitory_passes.room_id", &roomIDs).Error; err != nil {
		return nil, fmt.Errorf("failed to look up roommates in dormitory %d: %w", dormitoryID, err)
	}
	for _, id := range roomIDs {
		peers[id] = true
	}
	return peers, nil
}

// HeldPlaces counts the reservations that hold a place in a room for an
// academic year. Pending reservations do not hold a place.
func (s *gormStore) HeldPlaces(tx *gorm.DB, roomID int64, academicYear string) (int, error) {
	var count int64
	if err := tx.Model(&model.RoomReservation{}).
		Where("room_id = ? AND academic_year = ? AND status IN ?", roomID, academicYear,
			[]model.ReservationStatus{model.ReservationConfirmed, model.ReservationCheckedIn}).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count reservations of room %d: %w", roomID, err)
	}
	return int(count), nil
}

// AvailableForAcademicYear lists the reservable rooms of a dormitory with
// places left once confirmed and checked-in reservations are counted.
func (s *gormStore) AvailableForAcademicYear(ctx context.Context, dormitoryID int64, academicYear string) ([]RoomAvailability, error) {
	db := s.db.WithContext(ctx)

	var rooms []model.Room
	if err := db.Where("dormitory_id = ? AND is_reservable = ?", dormitoryID, true).
		Order("floor ASC, id ASC").
		Find(&rooms).Error; err != nil {
		return nil, fmt.Errorf("failed to list rooms of dormitory %d: %w", dormitoryID, err)
	}
	if len(rooms) == 0 {
		return nil, nil
	}

	roomIDs := make([]int64, len(rooms))
	for i, r := range rooms {
		roomIDs[i] = r.ID
	}

	type heldRow struct {
		RoomID int64
		Held   int
	}
	var rows []heldRow
	if err := db.Model(&model.RoomReservation{}).
		Select("room_id AS room_id, COUNT(*) AS held").
		Where("room_id IN ? AND academic_year = ? AND status IN ?", roomIDs, academicYear,
			[]model.ReservationStatus{model.ReservationConfirmed, model.ReservationCheckedIn}).
		Group("room_id").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to aggregate reservations: %w", err)
	}

	heldMap := make(map[int64]int, len(rows))
	for _, r := range rows {
		heldMap[r.RoomID] = r.Held
	}

	var available []RoomAvailability
	for _, room := range rooms {
		held := heldMap[room.ID] // zero when absent
		if free := room.Capacity - held; free > 0 {
			available = append(available, RoomAvailability{Room: room, HeldPlaces: held, FreePlaces: free})
		}
	}
	return available, nil
}
