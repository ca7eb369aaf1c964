package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-api/internal/models"
	appErrors "github.com/noah-isme/attendance-api/pkg/errors"
)

type fakeAttendanceRepo struct {
	existing    *models.AttendanceRecord
	findErr     error
	byID        *models.AttendanceRecord
	byIDErr     error
	created     *models.AttendanceRecord
	createErr   error
	checkOutErr error
	checkedOut  *time.Time
	listed      []models.AttendanceRecord
	listTotal   int
	upserted    *models.AttendanceRecord
}

func (f *fakeAttendanceRepo) Create(_ context.Context, record *models.AttendanceRecord) error {
	if f.createErr != nil {
		return f.createErr
	}
	record.ID = "rec-1"
	f.created = record
	return nil
}

func (f *fakeAttendanceRepo) FindByID(context.Context, string) (*models.AttendanceRecord, error) {
	if f.byIDErr != nil {
		return nil, f.byIDErr
	}
	return f.byID, nil
}

func (f *fakeAttendanceRepo) FindByUserAndDate(context.Context, string, time.Time) (*models.AttendanceRecord, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	if f.existing == nil {
		return nil, sql.ErrNoRows
	}
	return f.existing, nil
}

func (f *fakeAttendanceRepo) SetCheckOut(_ context.Context, _ string, checkOut time.Time, _ *string) error {
	if f.checkOutErr != nil {
		return f.checkOutErr
	}
	f.checkedOut = &checkOut
	return nil
}

func (f *fakeAttendanceRepo) List(context.Context, models.AttendanceFilter) ([]models.AttendanceRecord, int, error) {
	return f.listed, f.listTotal, nil
}

func (f *fakeAttendanceRepo) Upsert(_ context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error) {
	record.ID = "rec-managed"
	f.upserted = record
	return record, nil
}

func newTestAttendanceService(repo *fakeAttendanceRepo, at time.Time) *AttendanceService {
	svc := NewAttendanceService(repo, nil, zap.NewNop(), AttendanceServiceConfig{LateCutoffHour: 9})
	svc.now = func() time.Time { return at }
	return svc
}

func TestCheckInBeforeCutoffIsPresent(t *testing.T) {
	repo := &fakeAttendanceRepo{}
	svc := newTestAttendanceService(repo, time.Date(2026, 3, 2, 8, 59, 0, 0, time.UTC))

	record, err := svc.CheckIn(context.Background(), "user-1", nil)
	require.NoError(t, err)

	assert.Equal(t, models.StatusPresent, record.Status)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), record.Date)
	require.NotNil(t, record.CheckIn)
}

func TestCheckInAtCutoffIsLate(t *testing.T) {
	repo := &fakeAttendanceRepo{}
	svc := newTestAttendanceService(repo, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))

	record, err := svc.CheckIn(context.Background(), "user-1", nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusLate, record.Status)
}

func TestCheckInAfterCutoffIsLate(t *testing.T) {
	repo := &fakeAttendanceRepo{}
	svc := newTestAttendanceService(repo, time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC))

	record, err := svc.CheckIn(context.Background(), "user-1", nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusLate, record.Status)
}

func TestCheckInTwiceSameDayRejected(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	repo := &fakeAttendanceRepo{existing: &models.AttendanceRecord{ID: "rec-1", UserID: "user-1"}}
	svc := newTestAttendanceService(repo, now)

	_, err := svc.CheckIn(context.Background(), "user-1", nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicateCheckIn.Code, appErrors.FromError(err).Code)
}

func TestCheckInSurfacesConstraintRace(t *testing.T) {
	repo := &fakeAttendanceRepo{createErr: appErrors.ErrDuplicateCheckIn}
	svc := newTestAttendanceService(repo, time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC))

	_, err := svc.CheckIn(context.Background(), "user-1", nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicateCheckIn.Code, appErrors.FromError(err).Code)
}

func TestCheckOutHappyPath(t *testing.T) {
	checkIn := time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC)
	repo := &fakeAttendanceRepo{byID: &models.AttendanceRecord{
		ID:      "rec-1",
		UserID:  "user-1",
		CheckIn: &checkIn,
	}}
	now := time.Date(2026, 3, 2, 17, 0, 0, 0, time.UTC)
	svc := newTestAttendanceService(repo, now)

	record, err := svc.CheckOut(context.Background(), "user-1", "rec-1", nil)
	require.NoError(t, err)
	require.NotNil(t, record.CheckOut)
	assert.Equal(t, now, *record.CheckOut)
	require.NotNil(t, repo.checkedOut)
}

func TestCheckOutUnknownRecord(t *testing.T) {
	repo := &fakeAttendanceRepo{byIDErr: sql.ErrNoRows}
	svc := newTestAttendanceService(repo, time.Now().UTC())

	_, err := svc.CheckOut(context.Background(), "user-1", "missing", nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotCheckedIn.Code, appErrors.FromError(err).Code)
}

func TestCheckOutForeignRecordForbidden(t *testing.T) {
	checkIn := time.Now().UTC()
	repo := &fakeAttendanceRepo{byID: &models.AttendanceRecord{ID: "rec-1", UserID: "someone-else", CheckIn: &checkIn}}
	svc := newTestAttendanceService(repo, time.Now().UTC())

	_, err := svc.CheckOut(context.Background(), "user-1", "rec-1", nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestCheckOutWithoutCheckInRejected(t *testing.T) {
	repo := &fakeAttendanceRepo{byID: &models.AttendanceRecord{ID: "rec-1", UserID: "user-1"}}
	svc := newTestAttendanceService(repo, time.Now().UTC())

	_, err := svc.CheckOut(context.Background(), "user-1", "rec-1", nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotCheckedIn.Code, appErrors.FromError(err).Code)
}

func TestCheckOutTwiceRejected(t *testing.T) {
	checkIn := time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC)
	checkOut := time.Date(2026, 3, 2, 17, 0, 0, 0, time.UTC)
	repo := &fakeAttendanceRepo{byID: &models.AttendanceRecord{
		ID:       "rec-1",
		UserID:   "user-1",
		CheckIn:  &checkIn,
		CheckOut: &checkOut,
	}}
	svc := newTestAttendanceService(repo, time.Now().UTC())

	_, err := svc.CheckOut(context.Background(), "user-1", "rec-1", nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAlreadyCheckedOut.Code, appErrors.FromError(err).Code)
}

func TestTodayUnmarkedReturnsNil(t *testing.T) {
	repo := &fakeAttendanceRepo{}
	svc := newTestAttendanceService(repo, time.Now().UTC())

	record, err := svc.Today(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestManageRejectsUnknownStatus(t *testing.T) {
	svc := newTestAttendanceService(&fakeAttendanceRepo{}, time.Now().UTC())

	_, err := svc.Manage(context.Background(), ManageRecordRequest{
		UserID: "user-1",
		Date:   "2026-03-02",
		Status: "vacationing",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestManageUpsertsExplicitStatus(t *testing.T) {
	repo := &fakeAttendanceRepo{}
	svc := newTestAttendanceService(repo, time.Now().UTC())

	record, err := svc.Manage(context.Background(), ManageRecordRequest{
		UserID: "user-1",
		Date:   "2026-03-02",
		Status: "leave",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusLeave, record.Status)
	require.NotNil(t, repo.upserted)
}

func TestWorkDuration(t *testing.T) {
	checkIn := time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC)
	checkOut := checkIn.Add(8*time.Hour + 30*time.Minute + 59*time.Second)
	record := &models.AttendanceRecord{CheckIn: &checkIn, CheckOut: &checkOut}

	duration := WorkDuration(record)
	require.NotNil(t, duration)
	assert.Equal(t, 8, duration.Hours)
	// Seconds floor away, no rounding up.
	assert.Equal(t, 30, duration.Minutes)
}

func TestWorkDurationRequiresBothStamps(t *testing.T) {
	checkIn := time.Now().UTC()

	assert.Nil(t, WorkDuration(nil))
	assert.Nil(t, WorkDuration(&models.AttendanceRecord{}))
	assert.Nil(t, WorkDuration(&models.AttendanceRecord{CheckIn: &checkIn}))
}

func TestCheckInPropagatesRepositoryFailure(t *testing.T) {
	repo := &fakeAttendanceRepo{findErr: errors.New("connection reset")}
	svc := newTestAttendanceService(repo, time.Now().UTC())

	_, err := svc.CheckIn(context.Background(), "user-1", nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}
