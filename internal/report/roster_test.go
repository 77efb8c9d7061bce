package report

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"dorm-allocation-backend/internal/apperr"
	"dorm-allocation-backend/internal/auth"
	"dorm-allocation-backend/internal/model"
	"dorm-allocation-backend/internal/store"
	"dorm-allocation-backend/internal/testutil"
)

func TestOccupancyRoster(t *testing.T) {
	rooms := []model.Room{
		{ID: 1, Number: "101", Floor: 1, Capacity: 2, OccupiedPlaces: 1, GenderType: model.RoomGenderAny, CurrentGenderOccupancy: model.OccupancyFemale, IsReservable: true},
		{ID: 2, Number: "102", Floor: 1, Capacity: 3, GenderType: model.RoomGenderMale, CurrentGenderOccupancy: model.OccupancyEmpty},
	}
	data, err := OccupancyRoster(rooms, map[int64][]string{1: {"Ada Byron", "Mary Somerville"}})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{rosterSheet}, f.GetSheetList())
	rows, err := f.GetRows(rosterSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, RosterHeader, rows[0])
	assert.Equal(t, []string{"101", "1", "any", "female", "2", "1", "1", "Yes", "Ada Byron, Mary Somerville"}, rows[1])
	require.GreaterOrEqual(t, len(rows[2]), 8)
	assert.Equal(t, []string{"102", "1", "male", "-", "3", "0", "3", "No"}, rows[2][:8])
}

func TestRosterExport(t *testing.T) {
	db := testutil.OpenDB(t)
	dorm := testutil.CreateDormitory(t, db, "North Hall")
	room := testutil.CreateRoom(t, db, model.Room{DormitoryID: dorm.ID, Number: "305", Capacity: 2, OccupiedPlaces: 1, IsReservable: true})
	s := testutil.CreateStudent(t, db, model.Student{FullName: "Ada Byron", Gender: model.GenderFemale})
	require.NoError(t, db.Create(&model.DormitoryPass{
		UserID: s.ID, DormitoryID: dorm.ID, RoomID: &room.ID, RoomNumberText: "305",
		ValidFrom: testutil.Date(2024, time.September, 1), ValidUntil: testutil.Date(2025, time.June, 30),
		PassIdentifier: "t1", SourceType: model.PassSourceApplication, SourceID: 1, Status: model.PassActive,
	}).Error)

	roster := NewRoster(store.NewGormStore(db))

	_, _, err := roster.Export(context.Background(), auth.RequestContext{UserID: s.ID, Role: auth.RoleStudent}, dorm.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, _, err = roster.Export(context.Background(), auth.RequestContext{Role: auth.RoleSuperAdmin}, dorm.ID+1)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	data, name, err := roster.Export(context.Background(), auth.RequestContext{UserID: 1, Role: auth.RoleDormAdmin, DormitoryID: &dorm.ID}, dorm.ID)
	require.NoError(t, err)
	assert.Equal(t, "roster-1.xlsx", name)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	residents, err := f.GetCellValue(rosterSheet, "I2")
	require.NoError(t, err)
	assert.Equal(t, "Ada Byron", residents)
	floor, err := f.GetCellValue(rosterSheet, "B2")
	require.NoError(t, err)
	assert.Equal(t, "3", floor)
}
