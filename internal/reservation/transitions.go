package reservation

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"dorm-allocation-backend/internal/apperr"
	"dorm-allocation-backend/internal/auth"
	"dorm-allocation-backend/internal/model"
	"dorm-allocation-backend/internal/parse"
	"dorm-allocation-backend/internal/pass"
)

type message struct {
	title       string
	description string
}

// step is one status change applied inside a transaction. It returns the
// notification the reservation holder should receive, if any.
type step func(tx *gorm.DB, res *model.RoomReservation, room *model.Room) (*message, error)

// setStatus moves the reservation from its current status to next. The
// update is conditional on the status read earlier, so two concurrent
// transitions of the same row cannot both apply.
func setStatus(tx *gorm.DB, res *model.RoomReservation, next model.ReservationStatus, extra map[string]any) error {
	if !res.Status.CanTransitionTo(next) {
		return apperr.WithMetadata(apperr.CodeInvalidTransition,
			fmt.Sprintf("reservation %d cannot move from %s to %s", res.ID, res.Status, next),
			map[string]string{"from": string(res.Status), "to": string(next)})
	}

	updates := map[string]any{"status": next}
	for k, v := range extra {
		updates[k] = v
	}
	result := tx.Model(&model.RoomReservation{}).
		Where("id = ? AND status = ?", res.ID, res.Status).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update reservation %d: %w", res.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.Newf(apperr.CodeInvalidTransition, "reservation %d changed concurrently", res.ID)
	}
	res.Status = next
	return nil
}

// notExpired refuses to move a reservation forward once its academic year
// is over.
func (l *Ledger) notExpired(res *model.RoomReservation) error {
	if l.EffectiveStatus(*res, l.now()) == model.ReservationExpired {
		return apperr.Newf(apperr.CodeInvalidTransition, "reservation %d has expired", res.ID)
	}
	return nil
}

func (l *Ledger) adminOf(rc auth.RequestContext, room *model.Room) error {
	if !rc.CanManageDormitory(room.DormitoryID) {
		return apperr.Newf(apperr.CodeForbidden, "caller cannot manage dormitory %d", room.DormitoryID)
	}
	return nil
}

// apply runs one transition in a transaction and dispatches the resulting
// notification after commit.
func (l *Ledger) apply(ctx context.Context, rc auth.RequestContext, id int64, action string,
	authorize func(rc auth.RequestContext, res *model.RoomReservation, room *model.Room) error, fn step) (*model.RoomReservation, error) {
	var (
		res            *model.RoomReservation
		notificationID int64
	)
	err := l.store.InTx(ctx, func(tx *gorm.DB) error {
		var (
			room *model.Room
			err  error
		)
		res, room, err = l.load(tx, id)
		if err != nil {
			return err
		}
		if err := authorize(rc, res, room); err != nil {
			return err
		}

		msg, err := fn(tx, res, room)
		if err != nil {
			return err
		}
		if msg != nil && l.notifier != nil {
			notificationID, err = l.notifier.Enqueue(tx, res.UserID, msg.title, msg.description)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		l.log.Warn("reservation transition rolled back",
			zap.String("action", action),
			zap.Int64("reservation_id", id),
			zap.Int64("initiator_id", rc.UserID),
			zap.Error(err))
		return nil, err
	}

	if notificationID != 0 {
		l.notifier.Dispatch(notificationID)
	}
	l.log.Info("reservation "+action,
		zap.Int64("reservation_id", res.ID),
		zap.Int64("room_id", res.RoomID),
		zap.Int64("user_id", res.UserID),
		zap.String("status", string(res.Status)))
	return res, nil
}

// release gives the reservation's place back to the room when it holds one.
func (l *Ledger) release(tx *gorm.DB, res *model.RoomReservation, wasHolding bool) error {
	if !wasHolding {
		return nil
	}
	_, err := l.store.ReserveCapacity(tx, res.RoomID, -1, "")
	return err
}

// Confirm accepts a pending reservation and takes a place in the room under
// its row lock. A full or incompatible room leaves the reservation pending.
func (l *Ledger) Confirm(ctx context.Context, rc auth.RequestContext, id int64) (*model.RoomReservation, error) {
	return l.apply(ctx, rc, id, "confirmed", l.authorizeAdmin, func(tx *gorm.DB, res *model.RoomReservation, room *model.Room) (*message, error) {
		if err := l.notExpired(res); err != nil {
			return nil, err
		}
		gender, err := binaryGender(tx, res.UserID)
		if err != nil {
			return nil, err
		}
		if err := setStatus(tx, res, model.ReservationConfirmed, nil); err != nil {
			return nil, err
		}
		if _, err := l.store.ReserveCapacity(tx, res.RoomID, 1, gender); err != nil {
			return nil, err
		}
		return &message{
			title:       "Reservation confirmed",
			description: fmt.Sprintf("Your reservation of room %s for %s has been confirmed.", room.Number, res.AcademicYear),
		}, nil
	})
}

// Reject turns a pending or confirmed reservation down.
func (l *Ledger) Reject(ctx context.Context, rc auth.RequestContext, id int64, reason string) (*model.RoomReservation, error) {
	return l.apply(ctx, rc, id, "rejected", l.authorizeAdmin, func(tx *gorm.DB, res *model.RoomReservation, room *model.Room) (*message, error) {
		holding := res.Status.HoldsPlace()
		extra := map[string]any{}
		if reason != "" {
			extra["notes"] = appendNote(res.Notes, "Rejected: "+reason)
		}
		if err := setStatus(tx, res, model.ReservationRejectedByAdmin, extra); err != nil {
			return nil, err
		}
		if err := l.release(tx, res, holding); err != nil {
			return nil, err
		}
		description := fmt.Sprintf("Your reservation of room %s for %s has been rejected.", room.Number, res.AcademicYear)
		if reason != "" {
			description += " Reason: " + reason
		}
		return &message{title: "Reservation rejected", description: description}, nil
	})
}

// Cancel withdraws the caller's own pending or confirmed reservation.
func (l *Ledger) Cancel(ctx context.Context, rc auth.RequestContext, id int64) (*model.RoomReservation, error) {
	authorize := func(rc auth.RequestContext, res *model.RoomReservation, _ *model.Room) error {
		if !rc.Owns(res.UserID) {
			return apperr.Newf(apperr.CodeForbidden, "reservation %d belongs to another user", res.ID)
		}
		return nil
	}
	return l.apply(ctx, rc, id, "cancelled", authorize, func(tx *gorm.DB, res *model.RoomReservation, _ *model.Room) (*message, error) {
		holding := res.Status.HoldsPlace()
		if err := setStatus(tx, res, model.ReservationCancelledByUser, nil); err != nil {
			return nil, err
		}
		return nil, l.release(tx, res, holding)
	})
}

// CheckIn records the physical move-in of a confirmed reservation. The place
// was taken at confirmation; check-in issues the pass and the room history.
func (l *Ledger) CheckIn(ctx context.Context, rc auth.RequestContext, id int64) (*model.RoomReservation, error) {
	return l.apply(ctx, rc, id, "checked in", l.authorizeAdmin, func(tx *gorm.DB, res *model.RoomReservation, room *model.Room) (*message, error) {
		if err := l.notExpired(res); err != nil {
			return nil, err
		}
		if err := setStatus(tx, res, model.ReservationCheckedIn, nil); err != nil {
			return nil, err
		}
		if err := l.settleOccupant(tx, res, room, rc.UserID); err != nil {
			return nil, err
		}
		return &message{
			title:       "Checked in",
			description: fmt.Sprintf("Welcome to room %s. Your dormitory pass is ready.", room.Number),
		}, nil
	})
}

// settleOccupant writes the room history and the reservation-sourced pass
// for a checked-in reservation.
func (l *Ledger) settleOccupant(tx *gorm.DB, res *model.RoomReservation, room *model.Room, issuedBy int64) error {
	year, err := parse.ParseAcademicYear(res.AcademicYear)
	if err != nil {
		return apperr.Wrap(apperr.CodeInvalidArgument, "reservation has an invalid academic year", err)
	}
	if err := l.store.UpsertRoomHistory(tx, model.RoomHistory{
		UserID:       res.UserID,
		AcademicYear: res.AcademicYear,
		DormitoryID:  room.DormitoryID,
		RoomID:       room.ID,
		RoomNumber:   room.Number,
	}); err != nil {
		return err
	}
	if l.passes == nil {
		return nil
	}

	validFrom := parse.Date(l.now())
	if start := year.StartsOn(l.boundary); validFrom.Before(start) {
		validFrom = start
	}
	_, err = l.passes.EnsurePassFor(tx, pass.EnsureRequest{
		SourceType:     model.PassSourceReservation,
		SourceID:       res.ID,
		UserID:         res.UserID,
		DormitoryID:    room.DormitoryID,
		RoomID:         &room.ID,
		RoomNumberText: room.Number,
		ValidFrom:      validFrom,
		ValidUntil:     year.EndsOn(l.boundary),
		IssuedBy:       issuedBy,
	})
	return err
}

// CheckOut records the move-out, frees the place and revokes the pass the
// check-in produced.
func (l *Ledger) CheckOut(ctx context.Context, rc auth.RequestContext, id int64) (*model.RoomReservation, error) {
	return l.apply(ctx, rc, id, "checked out", l.authorizeAdmin, func(tx *gorm.DB, res *model.RoomReservation, room *model.Room) (*message, error) {
		if err := setStatus(tx, res, model.ReservationCheckedOut, nil); err != nil {
			return nil, err
		}
		if err := l.release(tx, res, true); err != nil {
			return nil, err
		}
		if l.passes != nil {
			if _, err := l.passes.RevokeForSource(tx, model.PassSourceReservation, res.ID); err != nil {
				return nil, err
			}
		}
		return &message{
			title:       "Checked out",
			description: fmt.Sprintf("You have checked out of room %s.", room.Number),
		}, nil
	})
}

// Expire persists the expiry of a pending or confirmed reservation whose
// academic year is over, releasing its place.
func (l *Ledger) Expire(ctx context.Context, rc auth.RequestContext, id int64) (*model.RoomReservation, error) {
	return l.apply(ctx, rc, id, "expired", l.authorizeAdmin, func(tx *gorm.DB, res *model.RoomReservation, room *model.Room) (*message, error) {
		if l.EffectiveStatus(*res, l.now()) != model.ReservationExpired {
			return nil, apperr.Newf(apperr.CodeInvalidTransition, "reservation %d is still within its academic year", res.ID)
		}
		holding := res.Status.HoldsPlace()
		if err := setStatus(tx, res, model.ReservationExpired, nil); err != nil {
			return nil, err
		}
		if err := l.release(tx, res, holding); err != nil {
			return nil, err
		}
		return &message{
			title:       "Reservation expired",
			description: fmt.Sprintf("Your reservation of room %s for %s has expired.", room.Number, res.AcademicYear),
		}, nil
	})
}

// MarkCheckedIn moves a confirmed reservation to checked_in on behalf of an
// allocation and links the application that consumed it. The room place was
// taken at confirmation and is not touched.
func (l *Ledger) MarkCheckedIn(tx *gorm.DB, res *model.RoomReservation, applicationID int64) error {
	if err := setStatus(tx, res, model.ReservationCheckedIn, map[string]any{"accommodation_application_id": applicationID}); err != nil {
		return err
	}
	res.AccommodationApplicationID = &applicationID
	return nil
}

// Consume hands the place a holding reservation already takes over to an
// allocation. A confirmed reservation is checked in; a checked-in one is only
// linked to the application.
func (l *Ledger) Consume(tx *gorm.DB, res *model.RoomReservation, applicationID int64) error {
	if res.Status != model.ReservationCheckedIn {
		return l.MarkCheckedIn(tx, res, applicationID)
	}
	result := tx.Model(&model.RoomReservation{}).
		Where("id = ? AND status = ?", res.ID, model.ReservationCheckedIn).
		Update("accommodation_application_id", applicationID)
	if result.Error != nil {
		return fmt.Errorf("failed to link reservation %d: %w", res.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.Newf(apperr.CodeInvalidTransition, "reservation %d is no longer checked in", res.ID)
	}
	res.AccommodationApplicationID = &applicationID
	return nil
}

func (l *Ledger) authorizeAdmin(rc auth.RequestContext, _ *model.RoomReservation, room *model.Room) error {
	return l.adminOf(rc, room)
}

func appendNote(notes, line string) string {
	if notes == "" {
		return line
	}
	return notes + "\n" + line
}
