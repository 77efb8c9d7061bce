// Package pass issues, refreshes, revokes and publicly verifies dormitory
// passes. A user holds at most one active pass at a time.
package pass

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"dorm-allocation-backend/internal/apperr"
	"dorm-allocation-backend/internal/auth"
	"dorm-allocation-backend/internal/model"
	"dorm-allocation-backend/internal/parse"
)

// EnsureRequest describes the assignment a pass must reflect.
type EnsureRequest struct {
	SourceType     model.PassSourceType
	SourceID       int64
	UserID         int64
	DormitoryID    int64
	RoomID         *int64
	RoomNumberText string
	ValidFrom      time.Time
	ValidUntil     time.Time
	IssuedBy       int64
}

func (r EnsureRequest) validate() error {
	switch r.SourceType {
	case model.PassSourceApplication, model.PassSourceReservation, model.PassSourceContract:
	default:
		return apperr.Newf(apperr.CodeInvalidArgument, "unknown pass source %q", r.SourceType)
	}
	if r.UserID <= 0 || r.DormitoryID <= 0 {
		return apperr.New(apperr.CodeInvalidArgument, "pass needs a user and a dormitory")
	}
	if r.RoomID == nil && strings.TrimSpace(r.RoomNumberText) == "" {
		return apperr.New(apperr.CodeInvalidArgument, "pass needs a room or a room number")
	}
	if r.ValidUntil.IsZero() || parse.Date(r.ValidUntil).Before(parse.Date(r.ValidFrom)) {
		return apperr.New(apperr.CodeInvalidArgument, "pass validity must end on or after its start")
	}
	return nil
}

// Issuer owns the dormitory_passes table.
type Issuer struct {
	db            *gorm.DB
	log           *zap.Logger
	now           func() time.Time
	newIdentifier func() string
}

// NewIssuer creates a pass issuer.
func NewIssuer(db *gorm.DB, log *zap.Logger) *Issuer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Issuer{
		db:            db,
		log:           log.Named("pass"),
		now:           time.Now,
		newIdentifier: newIdentifier,
	}
}

// newIdentifier returns a 32-character random token.
func newIdentifier() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// EnsurePassFor issues or refreshes the pass for an assignment inside tx.
// An active pass of the same user, dormitory, room and end date is updated
// in place. Otherwise every other active pass of the user is revoked and a
// new one is created.
func (i *Issuer) EnsurePassFor(tx *gorm.DB, req EnsureRequest) (*model.DormitoryPass, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	req.ValidFrom = parse.Date(req.ValidFrom)
	req.ValidUntil = parse.Date(req.ValidUntil)

	if req.RoomID != nil && strings.TrimSpace(req.RoomNumberText) == "" {
		var room model.Room
		if err := tx.Select("id", "number").First(&room, *req.RoomID).Error; err != nil {
			return nil, fmt.Errorf("failed to load room %d for pass: %w", *req.RoomID, err)
		}
		req.RoomNumberText = room.Number
	}

	q := tx.Where("user_id = ? AND dormitory_id = ? AND valid_until = ? AND status = ?",
		req.UserID, req.DormitoryID, req.ValidUntil, model.PassActive)
	if req.RoomID != nil {
		q = q.Where("room_id = ?", *req.RoomID)
	} else {
		q = q.Where("room_id IS NULL AND room_number_text = ?", req.RoomNumberText)
	}

	var existing model.DormitoryPass
	err := q.First(&existing).Error
	switch {
	case err == nil:
		return i.refresh(tx, existing, req)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("failed to look up active pass of user %d: %w", req.UserID, err)
	}

	if _, err := i.revokeActive(tx, "user_id = ?", req.UserID); err != nil {
		return nil, err
	}

	p := model.DormitoryPass{
		UserID:         req.UserID,
		DormitoryID:    req.DormitoryID,
		RoomID:         req.RoomID,
		RoomNumberText: req.RoomNumberText,
		ValidFrom:      req.ValidFrom,
		ValidUntil:     req.ValidUntil,
		PassIdentifier: i.newIdentifier(),
		SourceType:     req.SourceType,
		SourceID:       req.SourceID,
		Status:         model.PassActive,
		IssuedBy:       req.IssuedBy,
	}
	if err := tx.Create(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Wrap(apperr.CodeDuplicateActiveClaim, "user already holds an active pass", err)
		}
		return nil, fmt.Errorf("failed to create pass for user %d: %w", req.UserID, err)
	}

	i.log.Info("pass issued",
		zap.Int64("pass_id", p.ID),
		zap.Int64("user_id", p.UserID),
		zap.Int64("dormitory_id", p.DormitoryID),
		zap.String("source_type", string(p.SourceType)),
		zap.Int64("source_id", p.SourceID))
	return &p, nil
}

func (i *Issuer) refresh(tx *gorm.DB, p model.DormitoryPass, req EnsureRequest) (*model.DormitoryPass, error) {
	p.SourceType = req.SourceType
	p.SourceID = req.SourceID
	p.ValidFrom = req.ValidFrom
	p.RoomNumberText = req.RoomNumberText
	p.IssuedBy = req.IssuedBy
	if err := tx.Model(&p).Updates(map[string]any{
		"source_type":      p.SourceType,
		"source_id":        p.SourceID,
		"valid_from":       p.ValidFrom,
		"room_number_text": p.RoomNumberText,
		"issued_by":        p.IssuedBy,
	}).Error; err != nil {
		return nil, fmt.Errorf("failed to refresh pass %d: %w", p.ID, err)
	}
	i.log.Info("pass refreshed", zap.Int64("pass_id", p.ID), zap.Int64("user_id", p.UserID))
	return &p, nil
}

// revokeActive flips every active pass matching the condition to revoked.
func (i *Issuer) revokeActive(tx *gorm.DB, query string, args ...any) (int64, error) {
	now := i.now().UTC()
	res := tx.Model(&model.DormitoryPass{}).
		Where(query, args...).
		Where("status = ?", model.PassActive).
		Updates(map[string]any{"status": model.PassRevoked, "revoked_at": &now})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to revoke passes: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// RevokeForSource revokes the active passes produced by one source record.
func (i *Issuer) RevokeForSource(tx *gorm.DB, sourceType model.PassSourceType, sourceID int64) (int64, error) {
	n, err := i.revokeActive(tx, "source_type = ? AND source_id = ?", sourceType, sourceID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		i.log.Info("passes revoked for source",
			zap.String("source_type", string(sourceType)),
			zap.Int64("source_id", sourceID),
			zap.Int64("revoked", n))
	}
	return n, nil
}

// Ensure issues a pass outside any other business transaction. It is the
// administrator path for contract-sourced passes.
func (i *Issuer) Ensure(ctx context.Context, rc auth.RequestContext, req EnsureRequest) (*model.DormitoryPass, error) {
	if !rc.CanManageDormitory(req.DormitoryID) {
		return nil, apperr.Newf(apperr.CodeForbidden, "caller cannot issue passes for dormitory %d", req.DormitoryID)
	}
	if req.IssuedBy == 0 {
		req.IssuedBy = rc.UserID
	}

	var p *model.DormitoryPass
	err := i.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		p, err = i.EnsurePassFor(tx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Revoke revokes one pass. Revoking is the only way a pass leaves active
// apart from being superseded; the row is kept.
func (i *Issuer) Revoke(ctx context.Context, rc auth.RequestContext, passID int64) (*model.DormitoryPass, error) {
	var p model.DormitoryPass
	err := i.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&p, passID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.Newf(apperr.CodeNotFound, "pass %d not found", passID)
			}
			return fmt.Errorf("failed to load pass %d: %w", passID, err)
		}
		if !rc.CanManageDormitory(p.DormitoryID) {
			return apperr.Newf(apperr.CodeForbidden, "caller cannot revoke passes of dormitory %d", p.DormitoryID)
		}
		if p.Status != model.PassActive {
			return apperr.Newf(apperr.CodeInvalidTransition, "pass %d is %s", p.ID, p.Status)
		}

		now := i.now().UTC()
		p.Status = model.PassRevoked
		p.RevokedAt = &now
		if err := tx.Model(&p).Updates(map[string]any{"status": p.Status, "revoked_at": p.RevokedAt}).Error; err != nil {
			return fmt.Errorf("failed to revoke pass %d: %w", p.ID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	i.log.Info("pass revoked", zap.Int64("pass_id", p.ID), zap.Int64("user_id", p.UserID), zap.Int64("revoked_by", rc.UserID))
	return &p, nil
}

// ActiveForUser returns the user's active pass.
func (i *Issuer) ActiveForUser(ctx context.Context, userID int64) (*model.DormitoryPass, error) {
	var p model.DormitoryPass
	err := i.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, model.PassActive).
		Order("id DESC").
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Newf(apperr.CodeNotFound, "user %d has no active pass", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load active pass of user %d: %w", userID, err)
	}
	return &p, nil
}

// EffectiveStatus reports expired for an active pass whose last valid day
// is before now. Storage is not touched.
func EffectiveStatus(p model.DormitoryPass, now time.Time) model.PassStatus {
	if p.Status == model.PassActive && parse.Date(now).After(parse.Date(p.ValidUntil)) {
		return model.PassExpired
	}
	return p.Status
}
