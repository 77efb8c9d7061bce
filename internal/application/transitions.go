package application

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"dorm-allocation-backend/internal/apperr"
	"dorm-allocation-backend/internal/auth"
	"dorm-allocation-backend/internal/model"
)

type reviewer func(rc auth.RequestContext, app *model.AccommodationApplication) error

func facultyReviewer(rc auth.RequestContext, app *model.AccommodationApplication) error {
	if !rc.CanReviewFaculty(app.FacultyID) {
		return apperr.New(apperr.CodeForbidden, "caller cannot review applications of this faculty")
	}
	return nil
}

func dormitoryReviewer(rc auth.RequestContext, app *model.AccommodationApplication) error {
	if !rc.CanManageDormitory(app.DormitoryID) {
		return apperr.Newf(apperr.CodeForbidden, "caller cannot manage dormitory %d", app.DormitoryID)
	}
	return nil
}

func anyReviewer(rc auth.RequestContext, app *model.AccommodationApplication) error {
	if rc.CanReviewFaculty(app.FacultyID) || rc.CanManageDormitory(app.DormitoryID) {
		return nil
	}
	return apperr.New(apperr.CodeForbidden, "caller cannot review this application")
}

func owner(rc auth.RequestContext, app *model.AccommodationApplication) error {
	if !rc.Owns(app.UserID) {
		return apperr.Newf(apperr.CodeForbidden, "application %d belongs to another user", app.ID)
	}
	return nil
}

var statusTitles = map[model.ApplicationStatus]string{
	model.ApplicationApprovedByFaculty: "Application approved by your faculty",
	model.ApplicationRejectedByFaculty: "Application rejected by your faculty",
	model.ApplicationApprovedByDorm:    "Application approved by the dormitory",
	model.ApplicationRejectedByDorm:    "Application rejected by the dormitory",
	model.ApplicationRejected:          "Application rejected",
}

// transition moves an application to next after the caller passes check.
// The update matches the status read in the same transaction.
func (l *Ledger) transition(ctx context.Context, rc auth.RequestContext, id int64, next model.ApplicationStatus, comment string, check reviewer) (*model.AccommodationApplication, error) {
	var (
		app            *model.AccommodationApplication
		notificationID int64
	)
	err := l.store.InTx(ctx, func(tx *gorm.DB) error {
		var err error
		if app, err = l.Load(tx, id); err != nil {
			return err
		}
		if err := check(rc, app); err != nil {
			return err
		}
		if !app.Status.CanTransitionTo(next) {
			return apperr.WithMetadata(apperr.CodeInvalidTransition,
				fmt.Sprintf("application %d cannot move from %s to %s", app.ID, app.Status, next),
				map[string]string{"from": string(app.Status), "to": string(next)})
		}

		comments := app.Comments
		if comment != "" {
			comments = appendComment(comments, fmt.Sprintf("%s: %s", next, comment))
		}
		result := tx.Model(&model.AccommodationApplication{}).
			Where("id = ? AND status = ?", app.ID, app.Status).
			Updates(map[string]any{"status": next, "comments": comments})
		if result.Error != nil {
			return fmt.Errorf("failed to update application %d: %w", app.ID, result.Error)
		}
		if result.RowsAffected == 0 {
			return apperr.Newf(apperr.CodeInvalidTransition, "application %d changed concurrently", app.ID)
		}
		app.Status = next
		app.Comments = comments

		if title, ok := statusTitles[next]; ok && l.notifier != nil {
			description := fmt.Sprintf("Your accommodation application for %s is now %s.", app.AcademicYear, next)
			if comment != "" {
				description += " " + comment
			}
			if notificationID, err = l.notifier.Enqueue(tx, app.UserID, title, description); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if notificationID != 0 {
		l.notifier.Dispatch(notificationID)
	}
	l.log.Info("application status changed",
		zap.Int64("application_id", app.ID),
		zap.Int64("user_id", app.UserID),
		zap.Int64("initiator_id", rc.UserID),
		zap.String("status", string(app.Status)))
	return app, nil
}

// ApproveByFaculty records the faculty office's approval.
func (l *Ledger) ApproveByFaculty(ctx context.Context, rc auth.RequestContext, id int64, comment string) (*model.AccommodationApplication, error) {
	return l.transition(ctx, rc, id, model.ApplicationApprovedByFaculty, comment, facultyReviewer)
}

// RejectByFaculty records the faculty office's rejection.
func (l *Ledger) RejectByFaculty(ctx context.Context, rc auth.RequestContext, id int64, comment string) (*model.AccommodationApplication, error) {
	return l.transition(ctx, rc, id, model.ApplicationRejectedByFaculty, comment, facultyReviewer)
}

// ApproveByDorm makes the application eligible for allocation.
func (l *Ledger) ApproveByDorm(ctx context.Context, rc auth.RequestContext, id int64, comment string) (*model.AccommodationApplication, error) {
	return l.transition(ctx, rc, id, model.ApplicationApprovedByDorm, comment, dormitoryReviewer)
}

// RejectByDorm records the dormitory's rejection.
func (l *Ledger) RejectByDorm(ctx context.Context, rc auth.RequestContext, id int64, comment string) (*model.AccommodationApplication, error) {
	return l.transition(ctx, rc, id, model.ApplicationRejectedByDorm, comment, dormitoryReviewer)
}

// Reject is the generic rejection available to any reviewer.
func (l *Ledger) Reject(ctx context.Context, rc auth.RequestContext, id int64, comment string) (*model.AccommodationApplication, error) {
	return l.transition(ctx, rc, id, model.ApplicationRejected, comment, anyReviewer)
}

// Cancel withdraws the caller's own application while it is still pending.
func (l *Ledger) Cancel(ctx context.Context, rc auth.RequestContext, id int64) (*model.AccommodationApplication, error) {
	return l.transition(ctx, rc, id, model.ApplicationCancelledByUser, "", owner)
}
