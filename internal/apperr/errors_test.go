package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	err := Newf(CodeCapacityExceeded, "room %d is full", 12)
	wrapped := fmt.Errorf("confirm reservation 3: %w", err)

	assert.True(t, errors.Is(wrapped, ErrCapacityExceeded))
	assert.False(t, errors.Is(wrapped, ErrGenderConflict))
	assert.Equal(t, CodeCapacityExceeded, CodeOf(wrapped))
	assert.Equal(t, "confirm reservation 3: room 12 is full", wrapped.Error())
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(CodeUnknown, "load room", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "load room: connection reset", err.Error())
}

func TestCodeOfPlainError(t *testing.T) {
	assert.Equal(t, CodeUnknown, CodeOf(errors.New("boom")))
}

func TestHTTPStatus(t *testing.T) {
	testCases := []struct {
		code     Code
		expected int
	}{
		{CodeInvalidArgument, http.StatusBadRequest},
		{CodeForbidden, http.StatusForbidden},
		{CodeNotFound, http.StatusNotFound},
		{CodeCapacityExceeded, http.StatusConflict},
		{CodeDuplicateActiveClaim, http.StatusConflict},
		{CodeInvalidApplicationState, http.StatusUnprocessableEntity},
		{CodeNoRoomAvailable, http.StatusUnprocessableEntity},
		{CodeUnknown, http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(string(tc.code), func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.code.HTTPStatus())
		})
	}

	assert.True(t, CodeGenderConflict.Retryable())
	assert.False(t, CodeNoRoomAvailable.Retryable())
}
