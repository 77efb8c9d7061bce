// Package application manages accommodation applications, the formal
// request that must be approved by faculty and dormitory before a room is
// allocated.
package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"dorm-allocation-backend/internal/apperr"
	"dorm-allocation-backend/internal/auth"
	"dorm-allocation-backend/internal/model"
	"dorm-allocation-backend/internal/notification"
	"dorm-allocation-backend/internal/parse"
	"dorm-allocation-backend/internal/reservation"
	"dorm-allocation-backend/internal/store"
)

// Ledger owns the application lifecycle.
type Ledger struct {
	store        store.Store
	reservations *reservation.Ledger
	notifier     notification.Notifier
	boundary     parse.YearBoundary
	log          *zap.Logger
	now          func() time.Time
}

// NewLedger creates an application ledger. reservations may be nil, in
// which case new applications are not linked to reservations.
func NewLedger(st store.Store, reservations *reservation.Ledger, notifier notification.Notifier, boundary parse.YearBoundary, log *zap.Logger) *Ledger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ledger{
		store:        st,
		reservations: reservations,
		notifier:     notifier,
		boundary:     boundary,
		log:          log.Named("application"),
		now:          time.Now,
	}
}

// CreateRequest is a student's application payload. Either both dates or
// the academic year must be given; dates win when both are present.
type CreateRequest struct {
	DormitoryID   int64      `json:"dormitory_id" binding:"required"`
	StartDate     *time.Time `json:"start_date"`
	EndDate       *time.Time `json:"end_date"`
	AcademicYear  string     `json:"academic_year"`
	PreferredRoom string     `json:"preferred_room"`
	Comments      string     `json:"comments"`
}

// stay resolves the dates and the academic year of a request.
func (r CreateRequest) stay(boundary parse.YearBoundary) (start, end time.Time, year parse.AcademicYear, err error) {
	switch {
	case r.StartDate != nil && r.EndDate != nil:
		start, end = parse.Date(*r.StartDate), parse.Date(*r.EndDate)
		if !end.After(start) {
			return start, end, year, apperr.New(apperr.CodeInvalidArgument, "end date must be after start date")
		}
		year = parse.AcademicYearFromDates(start, end)
	case strings.TrimSpace(r.AcademicYear) != "":
		year, err = parse.ParseAcademicYear(r.AcademicYear)
		if err != nil {
			return start, end, year, apperr.Wrap(apperr.CodeInvalidArgument, "invalid academic year", err)
		}
		start, end = year.StartsOn(boundary), year.EndsOn(boundary)
	default:
		err = apperr.New(apperr.CodeInvalidArgument, "start and end dates or an academic year are required")
	}
	return start, end, year, err
}

// Create files a pending application for the calling student. Faculty,
// group and course are copied from the student's profile. An active
// reservation for the same academic year is linked to the new application.
func (l *Ledger) Create(ctx context.Context, rc auth.RequestContext, req CreateRequest) (*model.AccommodationApplication, error) {
	if !rc.IsStudent() {
		return nil, apperr.New(apperr.CodeForbidden, "only students can apply for accommodation")
	}
	start, end, year, err := req.stay(l.boundary)
	if err != nil {
		return nil, err
	}

	app := model.AccommodationApplication{
		UserID:        rc.UserID,
		DormitoryID:   req.DormitoryID,
		StartDate:     start,
		EndDate:       end,
		AcademicYear:  year.String(),
		PreferredRoom: strings.TrimSpace(req.PreferredRoom),
		Status:        model.ApplicationPending,
		Comments:      req.Comments,
	}

	var linked bool
	err = l.store.InTx(ctx, func(tx *gorm.DB) error {
		var student model.Student
		if err := tx.First(&student, rc.UserID).Error; err != nil {
			return store.NotFound(err, "student %d", rc.UserID)
		}
		var dorm model.Dormitory
		if err := tx.Select("id").First(&dorm, req.DormitoryID).Error; err != nil {
			return store.NotFound(err, "dormitory %d", req.DormitoryID)
		}

		var live int64
		if err := tx.Model(&model.AccommodationApplication{}).
			Where("user_id = ? AND academic_year = ? AND status NOT IN ?", rc.UserID, app.AcademicYear, model.InactiveApplicationStatuses()).
			Count(&live).Error; err != nil {
			return fmt.Errorf("failed to check live applications: %w", err)
		}
		if live > 0 {
			return apperr.Newf(apperr.CodeDuplicateActiveClaim, "user %d already has an application for %s", rc.UserID, app.AcademicYear)
		}

		app.FacultyID = student.FacultyID
		app.GroupID = student.GroupID
		app.Course = student.Course
		if err := tx.Create(&app).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.Wrap(apperr.CodeDuplicateActiveClaim, "an application already exists for this academic year", err)
			}
			return fmt.Errorf("failed to create application: %w", err)
		}

		if l.reservations != nil {
			var err error
			if linked, err = l.reservations.LinkApplication(tx, rc.UserID, app.AcademicYear, app.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.log.Info("application created",
		zap.Int64("application_id", app.ID),
		zap.Int64("user_id", app.UserID),
		zap.Int64("dormitory_id", app.DormitoryID),
		zap.String("academic_year", app.AcademicYear),
		zap.Bool("reservation_linked", linked))
	return &app, nil
}

// Get returns an application visible to the caller.
func (l *Ledger) Get(ctx context.Context, rc auth.RequestContext, id int64) (*model.AccommodationApplication, error) {
	app, err := l.Load(l.store.DB().WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	if !rc.Owns(app.UserID) && !rc.CanReviewFaculty(app.FacultyID) && !rc.CanManageDormitory(app.DormitoryID) {
		return nil, apperr.Newf(apperr.CodeForbidden, "application %d is not visible to the caller", id)
	}
	return app, nil
}

// Load reads an application through tx.
func (l *Ledger) Load(tx *gorm.DB, id int64) (*model.AccommodationApplication, error) {
	var app model.AccommodationApplication
	if err := tx.First(&app, id).Error; err != nil {
		return nil, store.NotFound(err, "application %d", id)
	}
	return &app, nil
}

// Settle marks an application approved by the dormitory as settled and
// appends the audit note. The update only matches approved_by_dorm rows, so
// a second settlement of the same application fails with
// ErrInvalidApplicationState.
func (l *Ledger) Settle(tx *gorm.DB, app *model.AccommodationApplication, note string) error {
	comments := appendComment(app.Comments, note)
	result := tx.Model(&model.AccommodationApplication{}).
		Where("id = ? AND status = ?", app.ID, model.ApplicationApprovedByDorm).
		Updates(map[string]any{"status": model.ApplicationSettled, "comments": comments})
	if result.Error != nil {
		return fmt.Errorf("failed to settle application %d: %w", app.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.WithMetadata(apperr.CodeInvalidApplicationState,
			fmt.Sprintf("application %d is no longer approved by the dormitory", app.ID),
			map[string]string{"status": string(app.Status)})
	}
	app.Status = model.ApplicationSettled
	app.Comments = comments
	return nil
}

func appendComment(comments, line string) string {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return comments
	case comments == "":
		return line
	default:
		return comments + "\n" + line
	}
}
