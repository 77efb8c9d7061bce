package store

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"dorm-allocation-backend/internal/model"
)

// FindRoomHistory returns the room a user lived in for an academic year, or
// nil when there is no record.
func (s *gormStore) FindRoomHistory(tx *gorm.DB, userID int64, academicYear string) (*model.RoomHistory, error) {
	var entry model.RoomHistory
	err := tx.Where("user_id = ? AND academic_year = ?", userID, academicYear).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load room history of user %d for %s: %w", userID, academicYear, err)
	}
	return &entry, nil
}

// UpsertRoomHistory records the room of a user for an academic year,
// replacing any earlier record for the same year.
func (s *gormStore) UpsertRoomHistory(tx *gorm.DB, entry model.RoomHistory) error {
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "academic_year"}},
		DoUpdates: clause.AssignmentColumns([]string{"dormitory_id", "room_id", "room_number", "updated_at"}),
	}).Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to upsert room history of user %d for %s: %w", entry.UserID, entry.AcademicYear, err)
	}
	return nil
}
