package apperr

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Allocation errors
	CodeInvalidApplicationState Code = "INVALID_APPLICATION_STATE"
	CodeGenderUndetermined      Code = "GENDER_UNDETERMINED"
	CodeNoRoomAvailable         Code = "NO_ROOM_AVAILABLE"

	// Room errors
	CodeCapacityExceeded  Code = "CAPACITY_EXCEEDED"
	CodeGenderConflict    Code = "GENDER_CONFLICT"
	CodeRoomNotReservable Code = "ROOM_NOT_RESERVABLE"

	// Ledger errors
	CodeDuplicateActiveClaim Code = "DUPLICATE_ACTIVE_CLAIM"
	CodeInvalidTransition    Code = "INVALID_TRANSITION"

	// Request errors
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeNotFound        Code = "NOT_FOUND"
	CodeForbidden       Code = "FORBIDDEN"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeDuplicateActiveClaim,
		CodeCapacityExceeded,
		CodeGenderConflict:
		return http.StatusConflict
	case CodeInvalidApplicationState,
		CodeInvalidTransition,
		CodeGenderUndetermined,
		CodeNoRoomAvailable,
		CodeRoomNotReservable:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether re-running the whole operation may succeed. A
// room conflict can clear once another room is picked; everything else
// reproduces with the same input.
func (c Code) Retryable() bool {
	return c == CodeCapacityExceeded || c == CodeGenderConflict
}
