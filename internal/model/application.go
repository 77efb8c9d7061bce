package model

import "time"

// ApplicationStatus is the lifecycle state of an accommodation application.
type ApplicationStatus string

const (
	ApplicationPending           ApplicationStatus = "pending"
	ApplicationApprovedByFaculty ApplicationStatus = "approved_by_faculty"
	ApplicationApprovedByDorm    ApplicationStatus = "approved_by_dorm"
	ApplicationSettled           ApplicationStatus = "settled"
	ApplicationRejected          ApplicationStatus = "rejected"
	ApplicationRejectedByFaculty ApplicationStatus = "rejected_by_faculty"
	ApplicationRejectedByDorm    ApplicationStatus = "rejected_by_dorm"
	ApplicationCancelledByUser   ApplicationStatus = "cancelled_by_user"
)

var applicationTransitions = map[ApplicationStatus][]ApplicationStatus{
	ApplicationPending: {
		ApplicationApprovedByFaculty,
		ApplicationRejectedByFaculty,
		ApplicationRejected,
		ApplicationCancelledByUser,
	},
	ApplicationApprovedByFaculty: {
		ApplicationApprovedByDorm,
		ApplicationRejectedByDorm,
		ApplicationRejected,
	},
	ApplicationApprovedByDorm: {
		ApplicationSettled,
		ApplicationRejectedByDorm,
		ApplicationRejected,
	},
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s ApplicationStatus) CanTransitionTo(next ApplicationStatus) bool {
	for _, allowed := range applicationTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsActive reports whether the application still claims its academic year.
func (s ApplicationStatus) IsActive() bool {
	switch s {
	case ApplicationRejected, ApplicationRejectedByFaculty, ApplicationRejectedByDorm, ApplicationCancelledByUser:
		return false
	}
	return true
}

// InactiveApplicationStatuses lists the terminal statuses that release a claim.
func InactiveApplicationStatuses() []ApplicationStatus {
	return []ApplicationStatus{
		ApplicationRejected,
		ApplicationRejectedByFaculty,
		ApplicationRejectedByDorm,
		ApplicationCancelledByUser,
	}
}

// AccommodationApplication is the formal request that drives allocation.
type AccommodationApplication struct {
	ID            int64             `gorm:"primaryKey"`
	UserID        int64             `gorm:"not null;index:idx_applications_user_year"`
	DormitoryID   int64             `gorm:"not null;index"`
	FacultyID     *int64            `gorm:"index"`
	GroupID       *int64            `gorm:"index"`
	Course        int               `gorm:"not null"`
	StartDate     time.Time         `gorm:"not null"`
	EndDate       time.Time         `gorm:"not null"`
	AcademicYear  string            `gorm:"size:9;not null;index:idx_applications_user_year"`
	PreferredRoom string            `gorm:"size:64"`
	Status        ApplicationStatus `gorm:"size:32;not null;index"`
	Comments      string            `gorm:"type:text"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TableName keeps the table name short.
func (AccommodationApplication) TableName() string {
	return "accommodation_applications"
}
