// Package testutil provides SQLite-backed databases and fixtures for tests.
package testutil

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"dorm-allocation-backend/internal/db"
	"dorm-allocation-backend/internal/model"
)

// OpenDB creates a migrated SQLite database in a temp dir. The pool holds a
// single connection so concurrent transactions serialise the way row locks
// serialise them on PostgreSQL.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "dorm.db")
	gormDB, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, gormDB.AutoMigrate(db.Models()...))
	require.NoError(t, db.ApplyConstraints(gormDB))
	return gormDB
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

// Date builds a UTC midnight date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// CreateDormitory inserts a dormitory.
func CreateDormitory(t *testing.T, gormDB *gorm.DB, name string) model.Dormitory {
	t.Helper()
	d := model.Dormitory{Name: name}
	require.NoError(t, gormDB.Create(&d).Error)
	return d
}

// CreateFaculty inserts a faculty.
func CreateFaculty(t *testing.T, gormDB *gorm.DB, name string) model.Faculty {
	t.Helper()
	f := model.Faculty{Name: name}
	require.NoError(t, gormDB.Create(&f).Error)
	return f
}

// CreateRoom inserts a room. Zero values fall back to the model defaults.
func CreateRoom(t *testing.T, gormDB *gorm.DB, room model.Room) model.Room {
	t.Helper()
	require.NoError(t, gormDB.Create(&room).Error)
	return room
}

// CreateStudent inserts a student profile.
func CreateStudent(t *testing.T, gormDB *gorm.DB, student model.Student) model.Student {
	t.Helper()
	if student.FullName == "" {
		student.FullName = "Student"
	}
	require.NoError(t, gormDB.Create(&student).Error)
	return student
}

// ReloadRoom reads a room back from storage.
func ReloadRoom(t *testing.T, gormDB *gorm.DB, id int64) model.Room {
	t.Helper()
	var room model.Room
	require.NoError(t, gormDB.First(&room, id).Error)
	return room
}
