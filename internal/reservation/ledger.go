// Package reservation manages room reservations: a student's advance claim
// on one room for one academic year.
package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"dorm-allocation-backend/internal/apperr"
	"dorm-allocation-backend/internal/auth"
	"dorm-allocation-backend/internal/model"
	"dorm-allocation-backend/internal/notification"
	"dorm-allocation-backend/internal/parse"
	"dorm-allocation-backend/internal/pass"
	"dorm-allocation-backend/internal/store"
)

// Ledger owns the reservation lifecycle. Every transition that moves a
// place in or out of a room runs in the same transaction as the room update.
type Ledger struct {
	store    store.Store
	passes   *pass.Issuer
	notifier notification.Notifier
	boundary parse.YearBoundary
	log      *zap.Logger
	now      func() time.Time
}

// NewLedger creates a reservation ledger.
func NewLedger(st store.Store, passes *pass.Issuer, notifier notification.Notifier, boundary parse.YearBoundary, log *zap.Logger) *Ledger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ledger{
		store:    st,
		passes:   passes,
		notifier: notifier,
		boundary: boundary,
		log:      log.Named("reservation"),
		now:      time.Now,
	}
}

// CreateRequest is a student's reservation payload.
type CreateRequest struct {
	RoomID       int64  `json:"room_id" binding:"required"`
	AcademicYear string `json:"academic_year" binding:"required"`
	Notes        string `json:"notes"`
}

// Create records a pending reservation for the calling student. Pending
// reservations do not take a place in the room; confirmation does.
func (l *Ledger) Create(ctx context.Context, rc auth.RequestContext, req CreateRequest) (*model.RoomReservation, error) {
	if !rc.IsStudent() {
		return nil, apperr.New(apperr.CodeForbidden, "only students can reserve rooms")
	}
	year, err := parse.ParseAcademicYear(req.AcademicYear)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInvalidArgument, "invalid academic year", err)
	}
	academicYear := year.String()

	res := model.RoomReservation{
		RoomID:       req.RoomID,
		UserID:       rc.UserID,
		AcademicYear: academicYear,
		Status:       model.ReservationPendingConfirmation,
		Notes:        req.Notes,
	}

	err = l.store.InTx(ctx, func(tx *gorm.DB) error {
		gender, err := binaryGender(tx, rc.UserID)
		if err != nil {
			return err
		}

		room, err := l.store.GetRoom(tx, req.RoomID)
		if err != nil {
			return err
		}
		if !room.IsReservable {
			return apperr.Newf(apperr.CodeRoomNotReservable, "room %s is not open for reservations", room.Number)
		}
		held, err := l.store.HeldPlaces(tx, room.ID, academicYear)
		if err != nil {
			return err
		}
		if room.Capacity-held <= 0 {
			return apperr.WithMetadata(apperr.CodeCapacityExceeded,
				fmt.Sprintf("room %s is fully reserved for %s", room.Number, academicYear),
				map[string]string{"room_id": fmt.Sprint(room.ID), "academic_year": academicYear})
		}
		if !store.CompatibleForGender(*room, gender) {
			return apperr.Newf(apperr.CodeGenderConflict, "room %s does not accept %s occupants", room.Number, gender)
		}

		if err := ensureNoActiveClaim(tx, rc.UserID, academicYear); err != nil {
			return err
		}

		if err := tx.Create(&res).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.Wrap(apperr.CodeDuplicateActiveClaim, "an active reservation already exists for this academic year", err)
			}
			return fmt.Errorf("failed to create reservation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.log.Info("reservation created",
		zap.Int64("reservation_id", res.ID),
		zap.Int64("room_id", res.RoomID),
		zap.Int64("user_id", res.UserID),
		zap.String("academic_year", res.AcademicYear))
	return &res, nil
}

// ensureNoActiveClaim fails when the user already holds an active
// reservation or a live application for the academic year.
func ensureNoActiveClaim(tx *gorm.DB, userID int64, academicYear string) error {
	var reservations int64
	if err := tx.Model(&model.RoomReservation{}).
		Where("user_id = ? AND academic_year = ? AND status IN ?", userID, academicYear, model.ActiveReservationStatuses()).
		Count(&reservations).Error; err != nil {
		return fmt.Errorf("failed to check active reservations: %w", err)
	}
	if reservations > 0 {
		return apperr.Newf(apperr.CodeDuplicateActiveClaim, "user %d already holds a reservation for %s", userID, academicYear)
	}

	var applications int64
	if err := tx.Model(&model.AccommodationApplication{}).
		Where("user_id = ? AND academic_year = ? AND status NOT IN ?", userID, academicYear, model.InactiveApplicationStatuses()).
		Count(&applications).Error; err != nil {
		return fmt.Errorf("failed to check active applications: %w", err)
	}
	if applications > 0 {
		return apperr.Newf(apperr.CodeDuplicateActiveClaim, "user %d already has an application for %s", userID, academicYear)
	}
	return nil
}

// binaryGender reads the student's gender as allocation understands it.
func binaryGender(tx *gorm.DB, userID int64) (model.Gender, error) {
	var student model.Student
	if err := tx.Select("id", "gender").First(&student, userID).Error; err != nil {
		return "", store.NotFound(err, "student %d", userID)
	}
	g, ok := student.Gender.Binary()
	if !ok {
		return "", apperr.Newf(apperr.CodeGenderUndetermined, "student %d has no binary gender on file", userID)
	}
	return g, nil
}

// Get returns a reservation visible to the caller.
func (l *Ledger) Get(ctx context.Context, rc auth.RequestContext, id int64) (*model.RoomReservation, error) {
	tx := l.store.DB().WithContext(ctx)
	res, room, err := l.load(tx, id)
	if err != nil {
		return nil, err
	}
	if !rc.Owns(res.UserID) && !rc.CanManageDormitory(room.DormitoryID) {
		return nil, apperr.Newf(apperr.CodeForbidden, "reservation %d is not visible to the caller", id)
	}
	return res, nil
}

func (l *Ledger) load(tx *gorm.DB, id int64) (*model.RoomReservation, *model.Room, error) {
	var res model.RoomReservation
	if err := tx.First(&res, id).Error; err != nil {
		return nil, nil, store.NotFound(err, "reservation %d", id)
	}
	room, err := l.store.GetRoom(tx, res.RoomID)
	if err != nil {
		return nil, nil, err
	}
	return &res, room, nil
}

// FindHolding returns the user's reservation that holds a place for the
// academic year, confirmed or checked in, or nil when there is none.
func (l *Ledger) FindHolding(tx *gorm.DB, userID int64, academicYear string) (*model.RoomReservation, error) {
	var res model.RoomReservation
	err := tx.Where("user_id = ? AND academic_year = ? AND status IN ?", userID, academicYear,
		[]model.ReservationStatus{model.ReservationConfirmed, model.ReservationCheckedIn}).
		Order("id DESC").
		First(&res).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up reservation of user %d: %w", userID, err)
	}
	return &res, nil
}

// LinkApplication points the user's active reservation for the academic
// year at the application. It reports whether a reservation was linked.
func (l *Ledger) LinkApplication(tx *gorm.DB, userID int64, academicYear string, applicationID int64) (bool, error) {
	result := tx.Model(&model.RoomReservation{}).
		Where("user_id = ? AND academic_year = ? AND status IN ?", userID, academicYear, model.ActiveReservationStatuses()).
		Update("accommodation_application_id", applicationID)
	if result.Error != nil {
		return false, fmt.Errorf("failed to link reservation to application %d: %w", applicationID, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// EffectiveStatus reports expired for a pending or confirmed reservation
// whose academic year has ended. Storage is not touched; Expire persists it.
func (l *Ledger) EffectiveStatus(res model.RoomReservation, now time.Time) model.ReservationStatus {
	return EffectiveStatus(res, now, l.boundary)
}

// EffectiveStatus is the ledger-independent form of Ledger.EffectiveStatus.
func EffectiveStatus(res model.RoomReservation, now time.Time, boundary parse.YearBoundary) model.ReservationStatus {
	if res.Status != model.ReservationPendingConfirmation && res.Status != model.ReservationConfirmed {
		return res.Status
	}
	year, err := parse.ParseAcademicYear(res.AcademicYear)
	if err != nil {
		return res.Status
	}
	if parse.Date(now).After(year.EndsOn(boundary)) {
		return model.ReservationExpired
	}
	return res.Status
}

// AvailableForAcademicYear lists reservable rooms of a dormitory with places
// left for the year. Only confirmed and checked-in reservations count. A
// non-nil gender keeps the rooms that person could move into.
func (l *Ledger) AvailableForAcademicYear(ctx context.Context, dormitoryID int64, academicYear string, gender *model.Gender) ([]store.RoomAvailability, error) {
	year, err := parse.ParseAcademicYear(academicYear)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInvalidArgument, "invalid academic year", err)
	}

	var g model.Gender
	if gender != nil {
		var ok bool
		if g, ok = gender.Binary(); !ok {
			return nil, apperr.Newf(apperr.CodeInvalidArgument, "gender filter must be male or female, got %q", *gender)
		}
	}

	rooms, err := l.store.AvailableForAcademicYear(ctx, dormitoryID, year.String())
	if err != nil {
		return nil, err
	}
	if gender == nil {
		return rooms, nil
	}

	filtered := rooms[:0]
	for _, r := range rooms {
		if store.CompatibleForGender(r.Room, g) {
			filtered = append(filtered, r)
		}
	}
	return filtered, nil
}
