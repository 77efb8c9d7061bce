package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"dorm-allocation-backend/internal/model"
)

// DormitoryResponse represents the API response for a single dormitory.
type DormitoryResponse struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Address        string `json:"address"`
	MaxFloor       int    `json:"max_floor"`
	TotalRooms     int64  `json:"total_rooms"`
	TotalPlaces    int64  `json:"total_places"`
	OccupiedPlaces int64  `json:"occupied_places"`
}

// GetDormitories handles GET /api/dormitories.
func (h *Handler) GetDormitories(c *gin.Context) {
	db := h.Store.DB().WithContext(c.Request.Context())

	var dorms []model.Dormitory
	if err := db.Order("id ASC").Find(&dorms).Error; err != nil {
		h.respondError(c, fmt.Errorf("failed to list dormitories: %w", err))
		return
	}

	type aggRow struct {
		DormitoryID    int64
		TotalRooms     int64
		TotalPlaces    int64
		OccupiedPlaces int64
		MaxFloor       int
	}
	var aggs []aggRow
	if err := db.
		Model(&model.Room{}).
		Select("dormitory_id, COUNT(*) AS total_rooms, COALESCE(SUM(capacity), 0) AS total_places, " +
			"COALESCE(SUM(occupied_places), 0) AS occupied_places, COALESCE(MAX(floor), 0) AS max_floor").
		Group("dormitory_id").
		Scan(&aggs).Error; err != nil {
		h.respondError(c, fmt.Errorf("failed to aggregate rooms: %w", err))
		return
	}

	aggMap := make(map[int64]aggRow, len(aggs))
	for _, a := range aggs {
		aggMap[a.DormitoryID] = a
	}

	responses := make([]DormitoryResponse, 0, len(dorms))
	for _, d := range dorms {
		a := aggMap[d.ID]
		responses = append(responses, DormitoryResponse{
			ID:             d.ID,
			Name:           d.Name,
			Address:        d.Address,
			MaxFloor:       a.MaxFloor,
			TotalRooms:     a.TotalRooms,
			TotalPlaces:    a.TotalPlaces,
			OccupiedPlaces: a.OccupiedPlaces,
		})
	}
	c.JSON(http.StatusOK, responses)
}

// GetRoster handles GET /api/admin/dormitories/:id/roster.xlsx.
func (h *Handler) GetRoster(c *gin.Context) {
	rc, ok := caller(c)
	if !ok {
		return
	}
	dormitoryID, ok := idParam(c, "id")
	if !ok {
		return
	}

	data, filename, err := h.Roster.Export(c.Request.Context(), rc, dormitoryID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}
