package pass

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"dorm-allocation-backend/internal/apperr"
	"dorm-allocation-backend/internal/auth"
	"dorm-allocation-backend/internal/model"
	"dorm-allocation-backend/internal/testutil"
)

type fixture struct {
	db      *gorm.DB
	issuer  *Issuer
	dorm    model.Dormitory
	room    model.Room
	student model.Student
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := testutil.OpenDB(t)
	faculty := testutil.CreateFaculty(t, db, "Physics")
	dorm := testutil.CreateDormitory(t, db, "North Hall")
	room := testutil.CreateRoom(t, db, model.Room{DormitoryID: dorm.ID, Number: "214", Capacity: 2, IsReservable: true})
	student := testutil.CreateStudent(t, db, model.Student{
		FullName:  "Ada Byron",
		AvatarURL: "https://cdn.example.com/ada.png",
		Email:     "ada@example.com",
		Gender:    model.GenderFemale,
		FacultyID: &faculty.ID,
	})

	issuer := NewIssuer(db, nil)
	seq := 0
	issuer.newIdentifier = func() string {
		seq++
		return fmt.Sprintf("token-%d", seq)
	}
	issuer.now = func() time.Time { return time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC) }

	return fixture{db: db, issuer: issuer, dorm: dorm, room: room, student: student}
}

func (f fixture) request(sourceID int64, validUntil time.Time) EnsureRequest {
	return EnsureRequest{
		SourceType:  model.PassSourceApplication,
		SourceID:    sourceID,
		UserID:      f.student.ID,
		DormitoryID: f.dorm.ID,
		RoomID:      &f.room.ID,
		ValidFrom:   testutil.Date(2024, time.September, 1),
		ValidUntil:  validUntil,
		IssuedBy:    99,
	}
}

func (f fixture) ensure(t *testing.T, req EnsureRequest) *model.DormitoryPass {
	t.Helper()
	var p *model.DormitoryPass
	require.NoError(t, f.db.Transaction(func(tx *gorm.DB) error {
		var err error
		p, err = f.issuer.EnsurePassFor(tx, req)
		return err
	}))
	return p
}

func (f fixture) activeCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&model.DormitoryPass{}).
		Where("user_id = ? AND status = ?", f.student.ID, model.PassActive).
		Count(&n).Error)
	return n
}

func TestEnsurePassFor_RefreshesMatchingPass(t *testing.T) {
	f := newFixture(t)

	first := f.ensure(t, f.request(1, testutil.Date(2025, time.June, 30)))
	assert.Equal(t, "214", first.RoomNumberText, "room number is filled from the room")
	assert.Equal(t, "token-1", first.PassIdentifier)

	// same user, dormitory, room and end date, possibly a later time of day
	again := f.request(2, time.Date(2025, time.June, 30, 18, 30, 0, 0, time.UTC))
	second := f.ensure(t, again)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "token-1", second.PassIdentifier, "refresh keeps the public token")
	assert.Equal(t, int64(2), second.SourceID)
	assert.Equal(t, int64(1), f.activeCount(t))
}

func TestEnsurePassFor_AtMostOneActivePass(t *testing.T) {
	f := newFixture(t)
	other := testutil.CreateRoom(t, f.db, model.Room{DormitoryID: f.dorm.ID, Number: "215", Capacity: 2, IsReservable: true})

	requests := []EnsureRequest{
		f.request(1, testutil.Date(2025, time.June, 30)),
		f.request(1, testutil.Date(2026, time.June, 30)),
		func() EnsureRequest {
			r := f.request(3, testutil.Date(2026, time.June, 30))
			r.RoomID = &other.ID
			return r
		}(),
		{
			SourceType:     model.PassSourceContract,
			SourceID:       10,
			UserID:         f.student.ID,
			DormitoryID:    f.dorm.ID,
			RoomNumberText: "215",
			ValidFrom:      testutil.Date(2025, time.September, 1),
			ValidUntil:     testutil.Date(2026, time.June, 30),
		},
	}

	var last *model.DormitoryPass
	for _, req := range requests {
		last = f.ensure(t, req)
		assert.Equal(t, int64(1), f.activeCount(t))
	}

	var passes []model.DormitoryPass
	require.NoError(t, f.db.Order("id").Find(&passes).Error)
	require.Len(t, passes, 4)
	for _, p := range passes[:3] {
		assert.Equal(t, model.PassRevoked, p.Status)
		assert.NotNil(t, p.RevokedAt)
	}
	assert.Equal(t, last.ID, passes[3].ID)
	assert.Nil(t, passes[3].RoomID)
}

func TestEnsurePassFor_Validation(t *testing.T) {
	f := newFixture(t)

	testCases := []struct {
		name   string
		mutate func(r *EnsureRequest)
	}{
		{"unknown source", func(r *EnsureRequest) { r.SourceType = "lottery" }},
		{"missing user", func(r *EnsureRequest) { r.UserID = 0 }},
		{"missing room", func(r *EnsureRequest) { r.RoomID = nil; r.RoomNumberText = " " }},
		{"ends before start", func(r *EnsureRequest) { r.ValidUntil = testutil.Date(2024, time.August, 1) }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := f.request(1, testutil.Date(2025, time.June, 30))
			tc.mutate(&req)
			_, err := f.issuer.EnsurePassFor(f.db, req)
			assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
		})
	}
}

func TestRevokeForSource(t *testing.T) {
	f := newFixture(t)
	req := f.request(42, testutil.Date(2025, time.June, 30))
	req.SourceType = model.PassSourceReservation
	f.ensure(t, req)

	n, err := f.issuer.RevokeForSource(f.db, model.PassSourceApplication, 42)
	require.NoError(t, err)
	assert.Zero(t, n, "a different source type is untouched")

	n, err = f.issuer.RevokeForSource(f.db, model.PassSourceReservation, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Zero(t, f.activeCount(t))
}

func TestRevoke(t *testing.T) {
	f := newFixture(t)
	p := f.ensure(t, f.request(1, testutil.Date(2025, time.June, 30)))
	otherDorm := int64(999)

	_, err := f.issuer.Revoke(context.Background(), auth.RequestContext{UserID: 5, Role: auth.RoleDormAdmin, DormitoryID: &otherDorm}, p.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	admin := auth.RequestContext{UserID: 5, Role: auth.RoleDormAdmin, DormitoryID: &f.dorm.ID}
	revoked, err := f.issuer.Revoke(context.Background(), admin, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PassRevoked, revoked.Status)

	_, err = f.issuer.Revoke(context.Background(), admin, p.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

	_, err = f.issuer.Revoke(context.Background(), admin, 12345)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.issuer.ActiveForUser(context.Background(), f.student.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestEnsure_AdministratorPath(t *testing.T) {
	f := newFixture(t)
	req := f.request(7, testutil.Date(2025, time.June, 30))
	req.SourceType = model.PassSourceContract
	req.IssuedBy = 0

	_, err := f.issuer.Ensure(context.Background(), auth.RequestContext{UserID: f.student.ID, Role: auth.RoleStudent}, req)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	p, err := f.issuer.Ensure(context.Background(), auth.RequestContext{UserID: 1, Role: auth.RoleSuperAdmin}, req)
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.IssuedBy)

	active, err := f.issuer.ActiveForUser(context.Background(), f.student.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, active.ID)
}

func TestEffectiveStatus(t *testing.T) {
	p := model.DormitoryPass{Status: model.PassActive, ValidUntil: testutil.Date(2025, time.June, 30)}

	assert.Equal(t, model.PassActive, EffectiveStatus(p, time.Date(2025, time.June, 30, 23, 59, 0, 0, time.UTC)))
	assert.Equal(t, model.PassExpired, EffectiveStatus(p, testutil.Date(2025, time.July, 1)))

	p.Status = model.PassRevoked
	assert.Equal(t, model.PassRevoked, EffectiveStatus(p, testutil.Date(2025, time.July, 1)))
}
