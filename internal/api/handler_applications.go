package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"dorm-allocation-backend/internal/application"
	"dorm-allocation-backend/internal/auth"
	"dorm-allocation-backend/internal/model"
)

// CreateApplication handles POST /api/applications.
func (h *Handler) CreateApplication(c *gin.Context) {
	rc, ok := caller(c)
	if !ok {
		return
	}
	var req application.CreateRequest
	if !bindJSON(c, &req) {
		return
	}

	app, err := h.Applications.Create(c.Request.Context(), rc, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, app)
}

// GetApplication handles GET /api/applications/:id.
func (h *Handler) GetApplication(c *gin.Context) {
	rc, ok := caller(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	app, err := h.Applications.Get(c.Request.Context(), rc, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

type applicationReview func(ctx context.Context, rc auth.RequestContext, id int64, comment string) (*model.AccommodationApplication, error)

// ReviewApplication adapts one review transition to POST
// /api/applications/:id/<action> with an optional {"comment"} body.
func (h *Handler) ReviewApplication(review applicationReview) gin.HandlerFunc {
	return func(c *gin.Context) {
		rc, ok := caller(c)
		if !ok {
			return
		}
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var req commentRequest
		if !bindOptionalJSON(c, &req) {
			return
		}

		app, err := review(c.Request.Context(), rc, id, req.Comment)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, app)
	}
}

// CancelApplication handles POST /api/applications/:id/cancel.
func (h *Handler) CancelApplication(c *gin.Context) {
	rc, ok := caller(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	app, err := h.Applications.Cancel(c.Request.Context(), rc, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

// AllocateApplication handles POST /api/applications/:id/allocate, and
// /api/applications/:id/allocate/:room_id for a manual placement.
func (h *Handler) AllocateApplication(c *gin.Context) {
	rc, ok := caller(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	if c.Param("room_id") == "" {
		result, err := h.Engine.Allocate(c.Request.Context(), rc, id)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
		return
	}

	roomID, ok := idParam(c, "room_id")
	if !ok {
		return
	}
	result, err := h.Engine.AllocateToRoom(c.Request.Context(), rc, id, roomID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
