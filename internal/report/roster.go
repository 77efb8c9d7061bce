// Package report renders spreadsheet exports for dormitory administrators.
package report

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"dorm-allocation-backend/internal/apperr"
	"dorm-allocation-backend/internal/auth"
	"dorm-allocation-backend/internal/model"
	"dorm-allocation-backend/internal/store"
)

// RosterHeader is the column order of the occupancy roster.
var RosterHeader = []string{
	"Room",
	"Floor",
	"Gender Type",
	"Gender Occupancy",
	"Capacity",
	"Occupied",
	"Free",
	"Reservable",
	"Residents",
}

var rosterColumnWidths = []float64{10, 8, 14, 18, 10, 10, 8, 12, 48}

const rosterSheet = "Occupancy"

// Roster builds the occupancy roster of a dormitory.
type Roster struct {
	store store.Store
}

// NewRoster creates a roster exporter.
func NewRoster(st store.Store) *Roster {
	return &Roster{store: st}
}

// Export renders the roster of one dormitory and returns the workbook bytes
// and a file name for it.
func (r *Roster) Export(ctx context.Context, rc auth.RequestContext, dormitoryID int64) ([]byte, string, error) {
	if !rc.CanManageDormitory(dormitoryID) {
		return nil, "", apperr.Newf(apperr.CodeForbidden, "caller cannot export dormitory %d", dormitoryID)
	}

	db := r.store.DB().WithContext(ctx)
	var dorm model.Dormitory
	if err := db.First(&dorm, dormitoryID).Error; err != nil {
		return nil, "", store.NotFound(err, "dormitory %d", dormitoryID)
	}

	rooms, err := r.store.ListRooms(ctx, dormitoryID)
	if err != nil {
		return nil, "", err
	}
	residents, err := residentsByRoom(db, dormitoryID)
	if err != nil {
		return nil, "", err
	}

	data, err := OccupancyRoster(rooms, residents)
	if err != nil {
		return nil, "", err
	}
	return data, fmt.Sprintf("roster-%d.xlsx", dorm.ID), nil
}

// residentsByRoom lists the holders of active passes per room.
func residentsByRoom(db *gorm.DB, dormitoryID int64) (map[int64][]string, error) {
	type row struct {
		RoomID   int64
		FullName string
	}
	var rows []row
	if err := db.Model(&model.DormitoryPass{}).
		Select("dormitory_passes.room_id AS room_id, students.full_name AS full_name").
		Joins("JOIN students ON students.id = dormitory_passes.user_id").
		Where("dormitory_passes.dormitory_id = ? AND dormitory_passes.status = ? AND dormitory_passes.room_id IS NOT NULL",
			dormitoryID, model.PassActive).
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list residents of dormitory %d: %w", dormitoryID, err)
	}

	residents := make(map[int64][]string)
	for _, r := range rows {
		residents[r.RoomID] = append(residents[r.RoomID], r.FullName)
	}
	for id := range residents {
		sort.Strings(residents[id])
	}
	return residents, nil
}

// OccupancyRoster writes one row per room under a frozen header row.
func OccupancyRoster(rooms []model.Room, residents map[int64][]string) ([]byte, error) {
	f := excelize.NewFile()
	// WriteTo needs the file open, so every path closes it explicitly

	index, err := f.NewSheet(rosterSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range RosterHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(rosterSheet, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(rosterSheet, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}

		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(rosterSheet, name, name, rosterColumnWidths[col]); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, room := range rooms {
		occupancy := string(room.CurrentGenderOccupancy)
		if !room.TracksGenderOccupancy() {
			occupancy = "-"
		}
		reservable := "No"
		if room.IsReservable {
			reservable = "Yes"
		}
		values := []any{
			room.Number,
			room.Floor,
			string(room.GenderType),
			occupancy,
			room.Capacity,
			room.OccupiedPlaces,
			room.FreePlaces(),
			reservable,
			strings.Join(residents[room.ID], ", "),
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetSheetRow(rosterSheet, cell, &values); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write row for room %s: %w", room.Number, err)
		}
	}

	if err := f.SetPanes(rosterSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}
	return buf.Bytes(), nil
}
