package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"dorm-allocation-backend/internal/auth"
	"dorm-allocation-backend/internal/model"
	"dorm-allocation-backend/internal/reservation"
)

// CreateReservation handles POST /api/reservations.
func (h *Handler) CreateReservation(c *gin.Context) {
	rc, ok := caller(c)
	if !ok {
		return
	}
	var req reservation.CreateRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.Reservations.Create(c.Request.Context(), rc, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// GetReservation handles GET /api/reservations/:id.
func (h *Handler) GetReservation(c *gin.Context) {
	rc, ok := caller(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	res, err := h.Reservations.Get(c.Request.Context(), rc, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type reservationTransition func(ctx context.Context, rc auth.RequestContext, id int64) (*model.RoomReservation, error)

// TransitionReservation adapts a body-less reservation transition to
// POST /api/reservations/:id/<action>.
func (h *Handler) TransitionReservation(transition reservationTransition) gin.HandlerFunc {
	return func(c *gin.Context) {
		rc, ok := caller(c)
		if !ok {
			return
		}
		id, ok := idParam(c, "id")
		if !ok {
			return
		}

		res, err := transition(c.Request.Context(), rc, id)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

type rejectReservationRequest struct {
	Reason string `json:"reason"`
}

// RejectReservation handles POST /api/reservations/:id/reject.
func (h *Handler) RejectReservation(c *gin.Context) {
	rc, ok := caller(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req rejectReservationRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	res, err := h.Reservations.Reject(c.Request.Context(), rc, id, req.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetAvailableRooms handles
// GET /api/dormitories/:id/available-rooms?academic_year=&gender=.
func (h *Handler) GetAvailableRooms(c *gin.Context) {
	dormitoryID, ok := idParam(c, "id")
	if !ok {
		return
	}
	year := c.Query("academic_year")
	if year == "" {
		badRequest(c, "academic_year is required")
		return
	}
	var gender *model.Gender
	if g := c.Query("gender"); g != "" {
		v := model.Gender(g)
		gender = &v
	}

	rooms, err := h.Reservations.AvailableForAcademicYear(c.Request.Context(), dormitoryID, year, gender)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rooms)
}
