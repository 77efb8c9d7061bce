package allocation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"dorm-allocation-backend/internal/application"
	"dorm-allocation-backend/internal/apperr"
	"dorm-allocation-backend/internal/auth"
	"dorm-allocation-backend/internal/model"
	"dorm-allocation-backend/internal/notification"
	"dorm-allocation-backend/internal/parse"
	"dorm-allocation-backend/internal/pass"
	"dorm-allocation-backend/internal/reservation"
	"dorm-allocation-backend/internal/store"
	"dorm-allocation-backend/internal/testutil"
)

type env struct {
	db           *gorm.DB
	engine       *Engine
	reservations *reservation.Ledger
	dorm         model.Dormitory
	admin        auth.RequestContext
	seq          int
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.OpenDB(t)
	st := store.NewGormStore(db)
	outbox := notification.NewOutbox(nil, nil)
	passes := pass.NewIssuer(db, nil)
	reservations := reservation.NewLedger(st, passes, outbox, parse.DefaultYearBoundary, nil)
	applications := application.NewLedger(st, reservations, outbox, parse.DefaultYearBoundary, nil)
	dorm := testutil.CreateDormitory(t, db, "North Hall")

	return &env{
		db:           db,
		engine:       NewEngine(st, applications, reservations, passes, outbox, nil),
		reservations: reservations,
		dorm:         dorm,
		admin:        auth.RequestContext{UserID: 900, Role: auth.RoleDormAdmin, DormitoryID: &dorm.ID},
	}
}

func (e *env) room(t *testing.T, r model.Room) model.Room {
	t.Helper()
	if r.DormitoryID == 0 {
		r.DormitoryID = e.dorm.ID
	}
	if r.Capacity == 0 {
		r.Capacity = 2
	}
	r.IsReservable = true
	return testutil.CreateRoom(t, e.db, r)
}

func (e *env) student(t *testing.T, gender model.Gender, course int, groupID *int64) model.Student {
	t.Helper()
	e.seq++
	return testutil.CreateStudent(t, e.db, model.Student{
		FullName: fmt.Sprintf("Student %d", e.seq),
		Gender:   gender,
		Course:   course,
		GroupID:  groupID,
	})
}

// approved files an application already approved by the dormitory for the
// 2024-2025 academic year.
func (e *env) approved(t *testing.T, s model.Student) model.AccommodationApplication {
	t.Helper()
	app := model.AccommodationApplication{
		UserID:       s.ID,
		DormitoryID:  e.dorm.ID,
		GroupID:      s.GroupID,
		Course:       s.Course,
		StartDate:    testutil.Date(2024, time.September, 1),
		EndDate:      testutil.Date(2025, time.June, 30),
		AcademicYear: "2024-2025",
		Status:       model.ApplicationApprovedByDorm,
	}
	require.NoError(t, e.db.Create(&app).Error)
	return app
}

// resident gives an existing student an active pass in a room, as an
// earlier allocation would have.
func (e *env) resident(t *testing.T, s model.Student, room model.Room) {
	t.Helper()
	require.NoError(t, e.db.Create(&model.DormitoryPass{
		UserID:         s.ID,
		DormitoryID:    room.DormitoryID,
		RoomID:         &room.ID,
		RoomNumberText: room.Number,
		ValidFrom:      testutil.Date(2024, time.September, 1),
		ValidUntil:     testutil.Date(2025, time.June, 30),
		PassIdentifier: fmt.Sprintf("resident-%d", s.ID),
		SourceType:     model.PassSourceApplication,
		SourceID:       s.ID,
		Status:         model.PassActive,
	}).Error)
}

func (e *env) status(t *testing.T, appID int64) model.ApplicationStatus {
	t.Helper()
	var app model.AccommodationApplication
	require.NoError(t, e.db.First(&app, appID).Error)
	return app.Status
}

func TestAllocate_FirstOccupantSetsRoomGender(t *testing.T) {
	e := newEnv(t)
	room := e.room(t, model.Room{Number: "101", Capacity: 2, GenderType: model.RoomGenderAny})
	female := e.approved(t, e.student(t, model.GenderFemale, 1, nil))

	result, err := e.engine.Allocate(context.Background(), e.admin, female.ID)
	require.NoError(t, err)
	assert.Equal(t, room.ID, result.RoomID)
	assert.Equal(t, MethodNewEmptyRoom, result.Method)

	stored := testutil.ReloadRoom(t, e.db, room.ID)
	assert.Equal(t, 1, stored.OccupiedPlaces)
	assert.Equal(t, model.OccupancyFemale, stored.CurrentGenderOccupancy)

	male := e.approved(t, e.student(t, model.GenderMale, 1, nil))
	_, err = e.engine.AllocateToRoom(context.Background(), e.admin, male.ID, room.ID)
	assert.ErrorIs(t, err, apperr.ErrGenderConflict)

	assert.Equal(t, 1, testutil.ReloadRoom(t, e.db, room.ID).OccupiedPlaces)
	assert.Equal(t, model.ApplicationApprovedByDorm, e.status(t, male.ID), "a failed allocation leaves the application approved")
}

func TestAllocate_PreviousRoom(t *testing.T) {
	e := newEnv(t)
	e.room(t, model.Room{Number: "101", GenderType: model.RoomGenderAny})
	previous := e.room(t, model.Room{Number: "412", Capacity: 3, GenderType: model.RoomGenderMale})
	s := e.student(t, model.GenderMale, 2, nil)
	require.NoError(t, e.db.Create(&model.RoomHistory{
		UserID:       s.ID,
		AcademicYear: "2023-2024",
		DormitoryID:  e.dorm.ID,
		RoomID:       previous.ID,
		RoomNumber:   previous.Number,
	}).Error)
	app := e.approved(t, s)

	result, err := e.engine.Allocate(context.Background(), e.admin, app.ID)
	require.NoError(t, err)
	assert.Equal(t, previous.ID, result.RoomID)
	assert.Equal(t, MethodPreviousRoom, result.Method)
	assert.Equal(t, "2024-2025", result.AcademicYear)

	var history model.RoomHistory
	require.NoError(t, e.db.Where("user_id = ? AND academic_year = ?", s.ID, "2024-2025").First(&history).Error)
	assert.Equal(t, previous.ID, history.RoomID)
}

func TestAllocate_PreviousRoomSkippedWhenUnfit(t *testing.T) {
	testCases := []struct {
		name     string
		previous model.Room
	}{
		{"room is full", model.Room{Number: "412", Capacity: 1, OccupiedPlaces: 1, GenderType: model.RoomGenderMale}},
		{"room now houses the other gender", model.Room{Number: "412", Capacity: 2, OccupiedPlaces: 1, GenderType: model.RoomGenderAny, CurrentGenderOccupancy: model.OccupancyFemale}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			e := newEnv(t)
			previous := e.room(t, tc.previous)
			fresh := e.room(t, model.Room{Number: "501", GenderType: model.RoomGenderAny})
			s := e.student(t, model.GenderMale, 2, nil)
			require.NoError(t, e.db.Create(&model.RoomHistory{
				UserID: s.ID, AcademicYear: "2023-2024", DormitoryID: e.dorm.ID, RoomID: previous.ID, RoomNumber: previous.Number,
			}).Error)
			app := e.approved(t, s)

			result, err := e.engine.Allocate(context.Background(), e.admin, app.ID)
			require.NoError(t, err)
			assert.Equal(t, fresh.ID, result.RoomID)
			assert.Equal(t, MethodNewEmptyRoom, result.Method)
		})
	}
}

func TestAllocate_ConfirmedReservation(t *testing.T) {
	e := newEnv(t)
	e.room(t, model.Room{Number: "101", GenderType: model.RoomGenderAny})
	// confirmation already took the place
	reserved := e.room(t, model.Room{Number: "220", Capacity: 2, OccupiedPlaces: 1, GenderType: model.RoomGenderAny, CurrentGenderOccupancy: model.OccupancyFemale})
	s := e.student(t, model.GenderFemale, 1, nil)
	res := model.RoomReservation{RoomID: reserved.ID, UserID: s.ID, AcademicYear: "2024-2025", Status: model.ReservationConfirmed}
	require.NoError(t, e.db.Create(&res).Error)
	app := e.approved(t, s)

	result, err := e.engine.Allocate(context.Background(), e.admin, app.ID)
	require.NoError(t, err)
	assert.Equal(t, reserved.ID, result.RoomID)
	assert.Equal(t, MethodReservation, result.Method)
	assert.Equal(t, 1, testutil.ReloadRoom(t, e.db, reserved.ID).OccupiedPlaces)

	var stored model.RoomReservation
	require.NoError(t, e.db.First(&stored, res.ID).Error)
	assert.Equal(t, model.ReservationCheckedIn, stored.Status)
	require.NotNil(t, stored.AccommodationApplicationID)
	assert.Equal(t, app.ID, *stored.AccommodationApplicationID)

	t.Run("manual placement elsewhere is refused", func(t *testing.T) {
		other := e.student(t, model.GenderMale, 1, nil)
		held := model.RoomReservation{RoomID: reserved.ID, UserID: other.ID, AcademicYear: "2024-2025", Status: model.ReservationConfirmed}
		require.NoError(t, e.db.Create(&held).Error)
		app := e.approved(t, other)

		_, err := e.engine.AllocateToRoom(context.Background(), e.admin, app.ID, reserved.ID+100)
		assert.ErrorIs(t, err, apperr.ErrNotFound)

		fresh := e.room(t, model.Room{Number: "330", GenderType: model.RoomGenderAny})
		_, err = e.engine.AllocateToRoom(context.Background(), e.admin, app.ID, fresh.ID)
		assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
	})
}

func TestAllocate_HeldPlaceIsNotCountedTwice(t *testing.T) {
	type fixture struct {
		e       *env
		held    model.Room
		other   model.Room
		res     model.RoomReservation
		student model.Student
	}
	// setup houses a female student's reservation in room 220; its place is
	// already counted in occupied_places.
	setup := func(t *testing.T, status model.ReservationStatus) fixture {
		e := newEnv(t)
		other := e.room(t, model.Room{Number: "101", Capacity: 3, GenderType: model.RoomGenderAny})
		held := e.room(t, model.Room{Number: "220", Capacity: 2, OccupiedPlaces: 1, GenderType: model.RoomGenderAny, CurrentGenderOccupancy: model.OccupancyFemale})
		s := e.student(t, model.GenderFemale, 2, nil)
		res := model.RoomReservation{RoomID: held.ID, UserID: s.ID, AcademicYear: "2024-2025", Status: status}
		require.NoError(t, e.db.Create(&res).Error)
		if status == model.ReservationCheckedIn {
			e.resident(t, s, held)
		}
		return fixture{e: e, held: held, other: other, res: res, student: s}
	}
	history := func(t *testing.T, f fixture, room model.Room) {
		require.NoError(t, f.e.db.Create(&model.RoomHistory{
			UserID: f.student.ID, AcademicYear: "2023-2024", DormitoryID: f.e.dorm.ID, RoomID: room.ID, RoomNumber: room.Number,
		}).Error)
	}
	reload := func(t *testing.T, f fixture) model.RoomReservation {
		var stored model.RoomReservation
		require.NoError(t, f.e.db.First(&stored, f.res.ID).Error)
		return stored
	}

	t.Run("previous room is the reserved room", func(t *testing.T) {
		f := setup(t, model.ReservationConfirmed)
		history(t, f, f.held)
		app := f.e.approved(t, f.student)

		result, err := f.e.engine.Allocate(context.Background(), f.e.admin, app.ID)
		require.NoError(t, err)
		assert.Equal(t, f.held.ID, result.RoomID)
		assert.Equal(t, MethodPreviousRoom, result.Method)
		assert.Equal(t, 1, testutil.ReloadRoom(t, f.e.db, f.held.ID).OccupiedPlaces)

		stored := reload(t, f)
		assert.Equal(t, model.ReservationCheckedIn, stored.Status)
		require.NotNil(t, stored.AccommodationApplicationID)
		assert.Equal(t, app.ID, *stored.AccommodationApplicationID)
	})

	t.Run("previous room differs from the reserved room", func(t *testing.T) {
		f := setup(t, model.ReservationConfirmed)
		history(t, f, f.other)
		app := f.e.approved(t, f.student)

		_, err := f.e.engine.Allocate(context.Background(), f.e.admin, app.ID)
		assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
		assert.Equal(t, 0, testutil.ReloadRoom(t, f.e.db, f.other.ID).OccupiedPlaces)
		assert.Equal(t, 1, testutil.ReloadRoom(t, f.e.db, f.held.ID).OccupiedPlaces)
		assert.Equal(t, model.ReservationConfirmed, reload(t, f).Status)
		assert.Equal(t, model.ApplicationApprovedByDorm, f.e.status(t, app.ID))
	})

	t.Run("checked-in reservation is used instead of searching", func(t *testing.T) {
		f := setup(t, model.ReservationCheckedIn)
		app := f.e.approved(t, f.student)

		result, err := f.e.engine.Allocate(context.Background(), f.e.admin, app.ID)
		require.NoError(t, err)
		assert.Equal(t, f.held.ID, result.RoomID)
		assert.Equal(t, MethodReservation, result.Method)
		assert.Equal(t, 1, testutil.ReloadRoom(t, f.e.db, f.held.ID).OccupiedPlaces)
		assert.Equal(t, 0, testutil.ReloadRoom(t, f.e.db, f.other.ID).OccupiedPlaces)

		stored := reload(t, f)
		assert.Equal(t, model.ReservationCheckedIn, stored.Status)
		require.NotNil(t, stored.AccommodationApplicationID)
		assert.Equal(t, app.ID, *stored.AccommodationApplicationID)

		var active int64
		require.NoError(t, f.e.db.Model(&model.DormitoryPass{}).
			Where("user_id = ? AND status = ?", f.student.ID, model.PassActive).Count(&active).Error)
		assert.Equal(t, int64(1), active)
	})

	t.Run("manual placement elsewhere while checked in", func(t *testing.T) {
		f := setup(t, model.ReservationCheckedIn)
		app := f.e.approved(t, f.student)

		_, err := f.e.engine.AllocateToRoom(context.Background(), f.e.admin, app.ID, f.other.ID)
		assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
		assert.Equal(t, 0, testutil.ReloadRoom(t, f.e.db, f.other.ID).OccupiedPlaces)
	})

	t.Run("manual placement into the reserved room", func(t *testing.T) {
		f := setup(t, model.ReservationConfirmed)
		app := f.e.approved(t, f.student)

		result, err := f.e.engine.AllocateToRoom(context.Background(), f.e.admin, app.ID, f.held.ID)
		require.NoError(t, err)
		assert.Equal(t, MethodManual, result.Method)
		assert.Equal(t, 1, testutil.ReloadRoom(t, f.e.db, f.held.ID).OccupiedPlaces)
		assert.Equal(t, model.ReservationCheckedIn, reload(t, f).Status)
	})
}

func TestAllocate_SmartSearch(t *testing.T) {
	group := int64(31)

	t.Run("prefers a room housing the same course", func(t *testing.T) {
		e := newEnv(t)
		e.room(t, model.Room{Number: "101", GenderType: model.RoomGenderAny})
		stranger := e.room(t, model.Room{Number: "201", OccupiedPlaces: 1, GenderType: model.RoomGenderAny, CurrentGenderOccupancy: model.OccupancyMale})
		peerRoom := e.room(t, model.Room{Number: "301", OccupiedPlaces: 1, GenderType: model.RoomGenderMale})
		e.resident(t, e.student(t, model.GenderMale, 4, nil), stranger)
		e.resident(t, e.student(t, model.GenderMale, 2, nil), peerRoom)
		app := e.approved(t, e.student(t, model.GenderMale, 2, nil))

		result, err := e.engine.Allocate(context.Background(), e.admin, app.ID)
		require.NoError(t, err)
		assert.Equal(t, peerRoom.ID, result.RoomID)
		assert.Equal(t, MethodGroupingSimilar, result.Method)
	})

	t.Run("matches on group as well as course", func(t *testing.T) {
		e := newEnv(t)
		peerRoom := e.room(t, model.Room{Number: "301", OccupiedPlaces: 1, GenderType: model.RoomGenderFemale})
		e.resident(t, e.student(t, model.GenderFemale, 5, &group), peerRoom)
		app := e.approved(t, e.student(t, model.GenderFemale, 1, &group))

		result, err := e.engine.Allocate(context.Background(), e.admin, app.ID)
		require.NoError(t, err)
		assert.Equal(t, MethodGroupingSimilar, result.Method)
	})

	t.Run("fills an occupied compatible room before opening an empty one", func(t *testing.T) {
		e := newEnv(t)
		e.room(t, model.Room{Number: "101", GenderType: model.RoomGenderAny})
		occupied := e.room(t, model.Room{Number: "201", OccupiedPlaces: 1, GenderType: model.RoomGenderMixed, CurrentGenderOccupancy: model.OccupancyFemale})
		app := e.approved(t, e.student(t, model.GenderMale, 2, nil))

		result, err := e.engine.Allocate(context.Background(), e.admin, app.ID)
		require.NoError(t, err)
		assert.Equal(t, occupied.ID, result.RoomID)
		assert.Equal(t, MethodGroupingCompatible, result.Method)
	})

	t.Run("opens an empty room when nothing else fits", func(t *testing.T) {
		e := newEnv(t)
		e.room(t, model.Room{Number: "101", OccupiedPlaces: 1, GenderType: model.RoomGenderAny, CurrentGenderOccupancy: model.OccupancyFemale})
		e.room(t, model.Room{Number: "102", GenderType: model.RoomGenderFemale})
		empty := e.room(t, model.Room{Number: "201", GenderType: model.RoomGenderAny})
		app := e.approved(t, e.student(t, model.GenderMale, 2, nil))

		result, err := e.engine.Allocate(context.Background(), e.admin, app.ID)
		require.NoError(t, err)
		assert.Equal(t, empty.ID, result.RoomID)
		assert.Equal(t, MethodNewEmptyRoom, result.Method)
		assert.Equal(t, model.OccupancyMale, testutil.ReloadRoom(t, e.db, empty.ID).CurrentGenderOccupancy)
	})
}

func TestAllocate_NoRoomAvailable(t *testing.T) {
	e := newEnv(t)
	e.room(t, model.Room{Number: "101", Capacity: 1, OccupiedPlaces: 1, GenderType: model.RoomGenderMale})
	e.room(t, model.Room{Number: "102", GenderType: model.RoomGenderFemale})
	e.room(t, model.Room{Number: "103", OccupiedPlaces: 1, GenderType: model.RoomGenderAny, CurrentGenderOccupancy: model.OccupancyFemale})
	app := e.approved(t, e.student(t, model.GenderMale, 2, nil))

	_, err := e.engine.Allocate(context.Background(), e.admin, app.ID)
	assert.ErrorIs(t, err, apperr.ErrNoRoomAvailable)
	assert.Equal(t, model.ApplicationApprovedByDorm, e.status(t, app.ID))
}

func TestAllocate_Preconditions(t *testing.T) {
	e := newEnv(t)
	e.room(t, model.Room{Number: "101", GenderType: model.RoomGenderAny})

	t.Run("gender not on file", func(t *testing.T) {
		app := e.approved(t, e.student(t, model.GenderNotSpecified, 1, nil))
		_, err := e.engine.Allocate(context.Background(), e.admin, app.ID)
		assert.ErrorIs(t, err, apperr.ErrGenderUndetermined)
	})

	t.Run("application not yet approved by the dormitory", func(t *testing.T) {
		app := e.approved(t, e.student(t, model.GenderMale, 1, nil))
		require.NoError(t, e.db.Model(&app).Update("status", model.ApplicationApprovedByFaculty).Error)
		_, err := e.engine.Allocate(context.Background(), e.admin, app.ID)
		assert.ErrorIs(t, err, apperr.ErrInvalidApplicationState)
	})

	t.Run("administrator of another dormitory", func(t *testing.T) {
		app := e.approved(t, e.student(t, model.GenderMale, 1, nil))
		other := e.dorm.ID + 1
		_, err := e.engine.Allocate(context.Background(), auth.RequestContext{UserID: 1, Role: auth.RoleDormAdmin, DormitoryID: &other}, app.ID)
		assert.ErrorIs(t, err, apperr.ErrForbidden)
	})

	t.Run("unknown application", func(t *testing.T) {
		_, err := e.engine.Allocate(context.Background(), e.admin, 98765)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})
}

func TestAllocate_SecondCallIsRejected(t *testing.T) {
	e := newEnv(t)
	room := e.room(t, model.Room{Number: "101", Capacity: 3, GenderType: model.RoomGenderAny})
	s := e.student(t, model.GenderFemale, 1, nil)
	app := e.approved(t, s)

	first, err := e.engine.Allocate(context.Background(), e.admin, app.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, first.PassIdentifier)

	_, err = e.engine.Allocate(context.Background(), e.admin, app.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidApplicationState)

	assert.Equal(t, 1, testutil.ReloadRoom(t, e.db, room.ID).OccupiedPlaces)
	assert.Equal(t, model.ApplicationSettled, e.status(t, app.ID))

	var stored model.AccommodationApplication
	require.NoError(t, e.db.First(&stored, app.ID).Error)
	assert.Contains(t, stored.Comments, "method: new_empty_room")

	var passes []model.DormitoryPass
	require.NoError(t, e.db.Where("user_id = ?", s.ID).Find(&passes).Error)
	require.Len(t, passes, 1)
	assert.Equal(t, model.PassActive, passes[0].Status)
	assert.Equal(t, model.PassSourceApplication, passes[0].SourceType)
	assert.Equal(t, app.ID, passes[0].SourceID)

	var titles []string
	require.NoError(t, e.db.Model(&model.Notification{}).Where("user_id = ?", s.ID).Pluck("title", &titles).Error)
	assert.Equal(t, []string{"You have been housed"}, titles)
}

func TestAllocate_ConcurrentCallsOnSameApplication(t *testing.T) {
	e := newEnv(t)
	room := e.room(t, model.Room{Number: "101", Capacity: 4, GenderType: model.RoomGenderAny})
	app := e.approved(t, e.student(t, model.GenderMale, 1, nil))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.engine.Allocate(context.Background(), e.admin, app.ID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else if !errors.Is(err, apperr.ErrInvalidApplicationState) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, testutil.ReloadRoom(t, e.db, room.ID).OccupiedPlaces)
}

func TestAllocate_ConcurrentApplicantsNeverOvercommit(t *testing.T) {
	e := newEnv(t)
	room := e.room(t, model.Room{Number: "101", Capacity: 2, GenderType: model.RoomGenderMale})

	var apps []model.AccommodationApplication
	for i := 0; i < 6; i++ {
		apps = append(apps, e.approved(t, e.student(t, model.GenderMale, 1, nil)))
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for _, app := range apps {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, err := e.engine.Allocate(context.Background(), e.admin, id)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, apperr.ErrNoRoomAvailable), errors.Is(err, apperr.ErrCapacityExceeded):
			default:
				t.Errorf("application %d: unexpected error %v", id, err)
			}
		}(app.ID)
	}
	wg.Wait()

	assert.Equal(t, 2, succeeded)
	assert.Equal(t, 2, testutil.ReloadRoom(t, e.db, room.ID).OccupiedPlaces)
}

func TestAllocateToRoom(t *testing.T) {
	e := newEnv(t)
	e.room(t, model.Room{Number: "101", GenderType: model.RoomGenderAny})
	target := e.room(t, model.Room{Number: "512", Capacity: 2, GenderType: model.RoomGenderFemale})

	t.Run("manual placement skips the cascade", func(t *testing.T) {
		app := e.approved(t, e.student(t, model.GenderFemale, 1, nil))
		result, err := e.engine.AllocateToRoom(context.Background(), e.admin, app.ID, target.ID)
		require.NoError(t, err)
		assert.Equal(t, target.ID, result.RoomID)
		assert.Equal(t, MethodManual, result.Method)
	})

	t.Run("room of another dormitory", func(t *testing.T) {
		otherDorm := testutil.CreateDormitory(t, e.db, "South Hall")
		elsewhere := e.room(t, model.Room{DormitoryID: otherDorm.ID, Number: "101", GenderType: model.RoomGenderAny})
		app := e.approved(t, e.student(t, model.GenderFemale, 1, nil))
		_, err := e.engine.AllocateToRoom(context.Background(), e.admin, app.ID, elsewhere.ID)
		assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
	})

	t.Run("full room", func(t *testing.T) {
		app := e.approved(t, e.student(t, model.GenderFemale, 1, nil))
		_, err := e.engine.AllocateToRoom(context.Background(), e.admin, app.ID, target.ID)
		require.NoError(t, err)

		late := e.approved(t, e.student(t, model.GenderFemale, 1, nil))
		_, err = e.engine.AllocateToRoom(context.Background(), e.admin, late.ID, target.ID)
		assert.ErrorIs(t, err, apperr.ErrCapacityExceeded)
		assert.Equal(t, 2, testutil.ReloadRoom(t, e.db, target.ID).OccupiedPlaces)
	})
}
