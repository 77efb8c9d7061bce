package model

import "time"

// ReservationStatus is the lifecycle state of a room reservation.
type ReservationStatus string

const (
	ReservationPendingConfirmation ReservationStatus = "pending_confirmation"
	ReservationConfirmed           ReservationStatus = "confirmed"
	ReservationCheckedIn           ReservationStatus = "checked_in"
	ReservationCheckedOut          ReservationStatus = "checked_out"
	ReservationCancelledByUser     ReservationStatus = "cancelled_by_user"
	ReservationRejectedByAdmin     ReservationStatus = "rejected_by_admin"
	ReservationExpired             ReservationStatus = "expired"
)

var reservationTransitions = map[ReservationStatus][]ReservationStatus{
	ReservationPendingConfirmation: {
		ReservationConfirmed,
		ReservationCancelledByUser,
		ReservationRejectedByAdmin,
		ReservationExpired,
	},
	ReservationConfirmed: {
		ReservationCheckedIn,
		ReservationCancelledByUser,
		ReservationRejectedByAdmin,
		ReservationExpired,
	},
	ReservationCheckedIn: {
		ReservationCheckedOut,
	},
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s ReservationStatus) CanTransitionTo(next ReservationStatus) bool {
	for _, allowed := range reservationTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsActive reports whether the reservation still claims the academic year.
func (s ReservationStatus) IsActive() bool {
	switch s {
	case ReservationPendingConfirmation, ReservationConfirmed, ReservationCheckedIn:
		return true
	}
	return false
}

// HoldsPlace reports whether the reservation is counted in room occupancy.
func (s ReservationStatus) HoldsPlace() bool {
	return s == ReservationConfirmed || s == ReservationCheckedIn
}

// ActiveReservationStatuses lists the statuses that count as an active claim.
func ActiveReservationStatuses() []ReservationStatus {
	return []ReservationStatus{ReservationPendingConfirmation, ReservationConfirmed, ReservationCheckedIn}
}

// RoomReservation is a student's advance claim on a room for one academic year.
type RoomReservation struct {
	ID                         int64             `gorm:"primaryKey"`
	RoomID                     int64             `gorm:"index;not null"`
	UserID                     int64             `gorm:"not null;index:idx_room_reservations_user_year"`
	AcademicYear               string            `gorm:"size:9;not null;index:idx_room_reservations_user_year"`
	Status                     ReservationStatus `gorm:"size:32;not null;index"`
	Notes                      string            `gorm:"type:text"`
	AccommodationApplicationID *int64            `gorm:"index"`
	CreatedAt                  time.Time
	UpdatedAt                  time.Time
}
