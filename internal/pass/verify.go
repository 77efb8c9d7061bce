package pass

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"dorm-allocation-backend/internal/model"
)

// Verification is the public answer for a pass identifier. It never carries
// internal ids or contact details.
type Verification struct {
	IsValid           bool       `json:"is_valid"`
	StudentName       string     `json:"student_name,omitempty"`
	StudentAvatar     string     `json:"student_avatar,omitempty"`
	FacultyName       string     `json:"faculty_name,omitempty"`
	DormitoryName     string     `json:"dormitory_name,omitempty"`
	RoomDisplayNumber string     `json:"room_display_number,omitempty"`
	ValidFrom         *time.Time `json:"valid_from,omitempty"`
	ValidUntil        *time.Time `json:"valid_until,omitempty"`
	Message           string     `json:"message"`
}

const (
	msgValid    = "Pass is valid"
	msgNotFound = "Pass not found"
	msgRevoked  = "Pass has been revoked"
	msgExpired  = "Pass has expired"
)

// FindByIdentifierPublic looks a pass up by its public token. Validity is
// decided here from the status and the end date, so an active row past its
// last day reports invalid without any background job.
func (i *Issuer) FindByIdentifierPublic(ctx context.Context, identifier string) (Verification, error) {
	db := i.db.WithContext(ctx)

	var p model.DormitoryPass
	if err := db.Where("pass_identifier = ?", identifier).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Verification{Message: msgNotFound}, nil
		}
		return Verification{}, fmt.Errorf("failed to look up pass: %w", err)
	}

	v := Verification{
		RoomDisplayNumber: p.RoomNumberText,
		ValidFrom:         &p.ValidFrom,
		ValidUntil:        &p.ValidUntil,
	}

	var student model.Student
	if err := db.Preload("Faculty").First(&student, p.UserID).Error; err == nil {
		v.StudentName = student.FullName
		v.StudentAvatar = student.AvatarURL
		if student.Faculty != nil {
			v.FacultyName = student.Faculty.Name
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return Verification{}, fmt.Errorf("failed to load pass holder: %w", err)
	}

	var dorm model.Dormitory
	if err := db.Select("id", "name").First(&dorm, p.DormitoryID).Error; err == nil {
		v.DormitoryName = dorm.Name
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return Verification{}, fmt.Errorf("failed to load pass dormitory: %w", err)
	}

	switch EffectiveStatus(p, i.now()) {
	case model.PassActive:
		v.IsValid = true
		v.Message = msgValid
	case model.PassExpired:
		v.Message = msgExpired
	default:
		v.Message = msgRevoked
	}
	return v, nil
}
