package model

import "time"

// Gender is the gender recorded on a student profile.
type Gender string

const (
	GenderMale         Gender = "male"
	GenderFemale       Gender = "female"
	GenderOther        Gender = "other"
	GenderNotSpecified Gender = "not_specified"
)

// Binary returns the gender usable for room allocation. Allocation only
// understands male and female; anything else reports false.
func (g Gender) Binary() (Gender, bool) {
	switch g {
	case GenderMale, GenderFemale:
		return g, true
	default:
		return "", false
	}
}

// Student is the read model of a user profile owned by the identity service.
type Student struct {
	ID        int64  `gorm:"primaryKey"`
	FullName  string `gorm:"size:256;not null"`
	AvatarURL string `gorm:"size:512"`
	Email     string `gorm:"size:256"`
	Gender    Gender `gorm:"size:16;not null"`
	FacultyID *int64 `gorm:"index"`
	GroupID   *int64 `gorm:"index"`
	Course    int
	CreatedAt time.Time
	UpdatedAt time.Time

	// Associations
	Faculty *Faculty
}
