package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"dorm-allocation-backend/internal/model"
	"dorm-allocation-backend/internal/pass"
)

type issuePassRequest struct {
	UserID      int64     `json:"user_id" binding:"required"`
	DormitoryID int64     `json:"dormitory_id" binding:"required"`
	RoomID      *int64    `json:"room_id"`
	RoomNumber  string    `json:"room_number"`
	ContractID  int64     `json:"contract_id" binding:"required"`
	ValidFrom   time.Time `json:"valid_from" binding:"required"`
	ValidUntil  time.Time `json:"valid_until" binding:"required"`
}

// IssuePass handles POST /api/admin/passes for contract-sourced passes.
func (h *Handler) IssuePass(c *gin.Context) {
	rc, ok := caller(c)
	if !ok {
		return
	}
	var req issuePassRequest
	if !bindJSON(c, &req) {
		return
	}

	p, err := h.Passes.Ensure(c.Request.Context(), rc, pass.EnsureRequest{
		SourceType:     model.PassSourceContract,
		SourceID:       req.ContractID,
		UserID:         req.UserID,
		DormitoryID:    req.DormitoryID,
		RoomID:         req.RoomID,
		RoomNumberText: strings.TrimSpace(req.RoomNumber),
		ValidFrom:      req.ValidFrom,
		ValidUntil:     req.ValidUntil,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// RevokePass handles POST /api/admin/passes/:id/revoke.
func (h *Handler) RevokePass(c *gin.Context) {
	rc, ok := caller(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	p, err := h.Passes.Revoke(c.Request.Context(), rc, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if h.verifyCache != nil {
		h.verifyCache.Invalidate(verifyPath(p.PassIdentifier))
	}
	c.JSON(http.StatusOK, p)
}

type passResponse struct {
	model.DormitoryPass
	EffectiveStatus model.PassStatus `json:"effective_status"`
}

// GetMyPass handles GET /api/passes/me.
func (h *Handler) GetMyPass(c *gin.Context) {
	rc, ok := caller(c)
	if !ok {
		return
	}

	p, err := h.Passes.ActiveForUser(c.Request.Context(), rc.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, passResponse{DormitoryPass: *p, EffectiveStatus: pass.EffectiveStatus(*p, time.Now())})
}

func verifyPath(identifier string) string {
	return "/api/passes/verify/" + identifier
}

// VerifyPass handles GET /api/passes/verify/:identifier. An unknown
// identifier is a negative verification, not an error.
func (h *Handler) VerifyPass(c *gin.Context) {
	identifier := strings.TrimSpace(c.Param("identifier"))
	if identifier == "" {
		badRequest(c, "identifier is required")
		return
	}

	v, err := h.Passes.FindByIdentifierPublic(c.Request.Context(), identifier)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}
