package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"dorm-allocation-backend/internal/apperr"
	"dorm-allocation-backend/internal/model"
)

// Store defines the room-level database operations the allocation core
// builds on. Methods taking a *gorm.DB run inside the caller's transaction.
type Store interface {
	DB() *gorm.DB
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error

	GetRoom(tx *gorm.DB, roomID int64) (*model.Room, error)
	ListRooms(ctx context.Context, dormitoryID int64) ([]model.Room, error)
	WithLockedRoom(tx *gorm.DB, roomID int64, fn func(room *model.Room) error) (*model.Room, error)
	ReserveCapacity(tx *gorm.DB, roomID int64, delta int, gender model.Gender) (*model.Room, error)

	OpenRooms(tx *gorm.DB, dormitoryID int64) ([]model.Room, error)
	RoomsHousingPeers(tx *gorm.DB, dormitoryID, userID int64, course int, groupID *int64) (map[int64]bool, error)
	HeldPlaces(tx *gorm.DB, roomID int64, academicYear string) (int, error)
	AvailableForAcademicYear(ctx context.Context, dormitoryID int64, academicYear string) ([]RoomAvailability, error)

	FindRoomHistory(tx *gorm.DB, userID int64, academicYear string) (*model.RoomHistory, error)
	UpsertRoomHistory(tx *gorm.DB, entry model.RoomHistory) error
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// DB exposes the underlying handle for read paths outside the core.
func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// InTx runs fn in one transaction. Any error rolls back every write made
// through tx.
func (s *gormStore) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(fn)
}

// GetRoom reads a room without locking it.
func (s *gormStore) GetRoom(tx *gorm.DB, roomID int64) (*model.Room, error) {
	var room model.Room
	if err := tx.First(&room, roomID).Error; err != nil {
		return nil, NotFound(err, "room %d", roomID)
	}
	return &room, nil
}

// ListRooms returns every room of a dormitory ordered by floor and number.
func (s *gormStore) ListRooms(ctx context.Context, dormitoryID int64) ([]model.Room, error) {
	var rooms []model.Room
	if err := s.db.WithContext(ctx).
		Where("dormitory_id = ?", dormitoryID).
		Order("floor ASC, number ASC").
		Find(&rooms).Error; err != nil {
		return nil, fmt.Errorf("failed to list rooms of dormitory %d: %w", dormitoryID, err)
	}
	return rooms, nil
}

// lockRoom reads a room under a row lock. SQLite has no row locks; it
// serialises writers on the whole database instead.
func lockRoom(tx *gorm.DB, roomID int64) (*model.Room, error) {
	q := tx
	if tx.Dialector.Name() != "sqlite" {
		q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var room model.Room
	if err := q.First(&room, roomID).Error; err != nil {
		return nil, NotFound(err, "room %d", roomID)
	}
	return &room, nil
}

// NotFound turns gorm.ErrRecordNotFound into apperr.ErrNotFound and wraps
// anything else as a storage failure.
func NotFound(err error, format string, args ...any) error {
	what := fmt.Sprintf(format, args...)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.Newf(apperr.CodeNotFound, "%s not found", what)
	}
	return fmt.Errorf("failed to load %s: %w", what, err)
}
