// Package allocation picks a room for an application approved by the
// dormitory and settles it in one transaction.
package allocation

import (
	"context"
	"fmt"

	"go.uber.org/zap"
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
)

// Method records which step of the cascade produced an allocation.
type Method string

const (
	MethodPreviousRoom       Method = "previous_room"
	MethodReservation        Method = "reservation"
	MethodGroupingSimilar    Method = "grouping_similar"
	MethodGroupingCompatible Method = "grouping_compatible"
	MethodNewEmptyRoom       Method = "new_empty_room"
	MethodManual             Method = "manual"
)

// Result describes a completed allocation.
type Result struct {
	ApplicationID  int64  `json:"application_id"`
	RoomID         int64  `json:"room_id"`
	RoomNumber     string `json:"room_number"`
	Method         Method `json:"method"`
	AcademicYear   string `json:"academic_year"`
	PassIdentifier string `json:"pass_identifier"`
}

// Engine runs allocations. It holds no state of its own; all mutual
// exclusion comes from the room row lock taken during finalization.
type Engine struct {
	store        store.Store
	applications *application.Ledger
	reservations *reservation.Ledger
	passes       *pass.Issuer
	notifier     notification.Notifier
	log          *zap.Logger
}

// NewEngine creates an allocation engine.
func NewEngine(st store.Store, applications *application.Ledger, reservations *reservation.Ledger, passes *pass.Issuer, notifier notification.Notifier, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		store:        st,
		applications: applications,
		reservations: reservations,
		passes:       passes,
		notifier:     notifier,
		log:          log.Named("allocation"),
	}
}

// choice is the room picked for an application. A non-nil reservation
// already holds the place in room.
type choice struct {
	room        *model.Room
	method      Method
	reservation *model.RoomReservation
}

// subject is an application that passed the allocation preconditions.
// holding is the applicant's confirmed or checked-in reservation for the
// year, if any.
type subject struct {
	app     *model.AccommodationApplication
	gender  model.Gender
	year    parse.AcademicYear
	holding *model.RoomReservation
}

// claimHeldPlace makes a choice reuse the place the applicant's reservation
// already holds. A reservation holding a place in another room is refused;
// taking both would count the student twice.
func claimHeldPlace(s subject, c *choice) (*choice, error) {
	if s.holding == nil {
		return c, nil
	}
	if s.holding.RoomID != c.room.ID {
		return nil, apperr.WithMetadata(apperr.CodeInvalidArgument,
			fmt.Sprintf("student holds a place in another room through reservation %d; release it first", s.holding.ID),
			map[string]string{"reservation_id": fmt.Sprint(s.holding.ID), "room_id": fmt.Sprint(s.holding.RoomID)})
	}
	c.reservation = s.holding
	return c, nil
}

// Allocate picks a room for the application through the cascade previous
// room, confirmed reservation, smart search, and settles it.
func (e *Engine) Allocate(ctx context.Context, rc auth.RequestContext, applicationID int64) (*Result, error) {
	return e.run(ctx, rc, applicationID, func(tx *gorm.DB, s subject) (*choice, error) {
		return e.choose(tx, s)
	})
}

// AllocateToRoom places the application in the given room, skipping the
// cascade. The locked re-check during finalization still applies.
func (e *Engine) AllocateToRoom(ctx context.Context, rc auth.RequestContext, applicationID, roomID int64) (*Result, error) {
	return e.run(ctx, rc, applicationID, func(tx *gorm.DB, s subject) (*choice, error) {
		room, err := e.store.GetRoom(tx, roomID)
		if err != nil {
			return nil, err
		}
		if room.DormitoryID != s.app.DormitoryID {
			return nil, apperr.Newf(apperr.CodeInvalidArgument,
				"room %s belongs to another dormitory than application %d", room.Number, s.app.ID)
		}

		return claimHeldPlace(s, &choice{room: room, method: MethodManual})
	})
}

func (e *Engine) run(ctx context.Context, rc auth.RequestContext, applicationID int64, pick func(tx *gorm.DB, s subject) (*choice, error)) (*Result, error) {
	var (
		result         *Result
		notificationID int64
	)
	err := e.store.InTx(ctx, func(tx *gorm.DB) error {
		s, err := e.prepare(tx, rc, applicationID)
		if err != nil {
			return err
		}
		c, err := pick(tx, s)
		if err != nil {
			return err
		}
		result, notificationID, err = e.finalize(tx, rc, s, c)
		return err
	})
	if err != nil {
		e.log.Warn("allocation rolled back",
			zap.Int64("application_id", applicationID),
			zap.Int64("initiator_id", rc.UserID),
			zap.String("code", string(apperr.CodeOf(err))),
			zap.Error(err))
		return nil, err
	}

	if notificationID != 0 && e.notifier != nil {
		e.notifier.Dispatch(notificationID)
	}
	e.log.Info("allocation completed",
		zap.Int64("application_id", result.ApplicationID),
		zap.Int64("room_id", result.RoomID),
		zap.String("method", string(result.Method)),
		zap.String("academic_year", result.AcademicYear),
		zap.Int64("initiator_id", rc.UserID))
	return result, nil
}

// prepare loads the application and checks that it may be allocated.
func (e *Engine) prepare(tx *gorm.DB, rc auth.RequestContext, applicationID int64) (subject, error) {
	app, err := e.applications.Load(tx, applicationID)
	if err != nil {
		return subject{}, err
	}
	if !rc.CanManageDormitory(app.DormitoryID) {
		return subject{}, apperr.Newf(apperr.CodeForbidden, "caller cannot allocate rooms in dormitory %d", app.DormitoryID)
	}
	if app.Status != model.ApplicationApprovedByDorm {
		return subject{}, apperr.WithMetadata(apperr.CodeInvalidApplicationState,
			fmt.Sprintf("application %d is %s, not %s", app.ID, app.Status, model.ApplicationApprovedByDorm),
			map[string]string{"status": string(app.Status)})
	}

	var student model.Student
	if err := tx.Select("id", "gender").First(&student, app.UserID).Error; err != nil {
		return subject{}, store.NotFound(err, "student %d", app.UserID)
	}
	gender, ok := student.Gender.Binary()
	if !ok {
		return subject{}, apperr.Newf(apperr.CodeGenderUndetermined, "applicant %d has no binary gender on file", app.UserID)
	}

	year := parse.AcademicYearFromDates(app.StartDate, app.EndDate)
	holding, err := e.reservations.FindHolding(tx, app.UserID, year.String())
	if err != nil {
		return subject{}, err
	}

	return subject{
		app:     app,
		gender:  gender,
		year:    year,
		holding: holding,
	}, nil
}

// choose evaluates the cascade; the first step that yields a room wins.
func (e *Engine) choose(tx *gorm.DB, s subject) (*choice, error) {
	c, err := e.previousRoom(tx, s)
	if err != nil {
		return nil, err
	}
	if c != nil {
		return claimHeldPlace(s, c)
	}

	if s.holding != nil {
		room, err := e.store.GetRoom(tx, s.holding.RoomID)
		if err != nil {
			return nil, err
		}
		return &choice{room: room, method: MethodReservation, reservation: s.holding}, nil
	}

	return e.search(tx, s)
}

// previousRoom offers the room the student lived in the year before when it
// is in the same dormitory and can still take them.
func (e *Engine) previousRoom(tx *gorm.DB, s subject) (*choice, error) {
	history, err := e.store.FindRoomHistory(tx, s.app.UserID, s.year.Previous().String())
	if err != nil || history == nil {
		return nil, err
	}
	if history.DormitoryID != s.app.DormitoryID {
		return nil, nil
	}

	room, err := e.store.GetRoom(tx, history.RoomID)
	if apperr.CodeOf(err) == apperr.CodeNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	// a reservation in this room already counts the student in it
	ownPlace := s.holding != nil && s.holding.RoomID == room.ID
	if room.DormitoryID != s.app.DormitoryID || (room.FreePlaces() <= 0 && !ownPlace) || !store.CompatibleForGender(*room, s.gender) {
		return nil, nil
	}
	return &choice{room: room, method: MethodPreviousRoom}, nil
}

// search scans the open rooms of the dormitory, ordered by floor then id:
// first an occupied compatible room housing someone of the same course or
// group, then any occupied compatible room, then an empty one.
func (e *Engine) search(tx *gorm.DB, s subject) (*choice, error) {
	rooms, err := e.store.OpenRooms(tx, s.app.DormitoryID)
	if err != nil {
		return nil, err
	}
	peers, err := e.store.RoomsHousingPeers(tx, s.app.DormitoryID, s.app.UserID, s.app.Course, s.app.GroupID)
	if err != nil {
		return nil, err
	}

	var compatible, empty *model.Room
	for i := range rooms {
		room := &rooms[i]
		if !store.CompatibleForGender(*room, s.gender) {
			continue
		}
		if room.OccupiedPlaces == 0 {
			if empty == nil {
				empty = room
			}
			continue
		}
		if peers[room.ID] {
			return &choice{room: room, method: MethodGroupingSimilar}, nil
		}
		if compatible == nil {
			compatible = room
		}
	}

	switch {
	case compatible != nil:
		return &choice{room: compatible, method: MethodGroupingCompatible}, nil
	case empty != nil:
		return &choice{room: empty, method: MethodNewEmptyRoom}, nil
	}
	return nil, apperr.WithMetadata(apperr.CodeNoRoomAvailable,
		fmt.Sprintf("no room in dormitory %d can take a %s applicant", s.app.DormitoryID, s.gender),
		map[string]string{"dormitory_id": fmt.Sprint(s.app.DormitoryID), "gender": string(s.gender)})
}

// finalize settles the application, takes the place under the room lock,
// records history, issues the pass and queues the notification. Any error
// rolls all of it back.
func (e *Engine) finalize(tx *gorm.DB, rc auth.RequestContext, s subject, c *choice) (*Result, int64, error) {
	app, room := s.app, c.room
	note := fmt.Sprintf("Allocated room %s (method: %s)", room.Number, c.method)
	if err := e.applications.Settle(tx, app, note); err != nil {
		return nil, 0, err
	}

	if c.reservation != nil {
		// the place was taken when the reservation was confirmed
		if err := e.reservations.Consume(tx, c.reservation, app.ID); err != nil {
			return nil, 0, err
		}
	} else {
		locked, err := e.store.ReserveCapacity(tx, room.ID, 1, s.gender)
		if err != nil {
			return nil, 0, err
		}
		room = locked
	}

	academicYear := s.year.String()
	if err := e.store.UpsertRoomHistory(tx, model.RoomHistory{
		UserID:       app.UserID,
		AcademicYear: academicYear,
		DormitoryID:  room.DormitoryID,
		RoomID:       room.ID,
		RoomNumber:   room.Number,
	}); err != nil {
		return nil, 0, err
	}

	p, err := e.passes.EnsurePassFor(tx, pass.EnsureRequest{
		SourceType:     model.PassSourceApplication,
		SourceID:       app.ID,
		UserID:         app.UserID,
		DormitoryID:    room.DormitoryID,
		RoomID:         &room.ID,
		RoomNumberText: room.Number,
		ValidFrom:      app.StartDate,
		ValidUntil:     app.EndDate,
		IssuedBy:       rc.UserID,
	})
	if err != nil {
		return nil, 0, err
	}

	var notificationID int64
	if e.notifier != nil {
		notificationID, err = e.notifier.Enqueue(tx, app.UserID,
			"You have been housed",
			fmt.Sprintf("Your accommodation for %s is settled: room %s.", academicYear, room.Number))
		if err != nil {
			return nil, 0, err
		}
	}

	return &Result{
		ApplicationID:  app.ID,
		RoomID:         room.ID,
		RoomNumber:     room.Number,
		Method:         c.method,
		AcademicYear:   academicYear,
		PassIdentifier: p.PassIdentifier,
	}, notificationID, nil
}
