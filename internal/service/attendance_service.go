package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-api/internal/models"
	appErrors "github.com/noah-isme/attendance-api/pkg/errors"
)

type attendanceRepository interface {
	Create(ctx context.Context, record *models.AttendanceRecord) error
	FindByID(ctx context.Context, id string) (*models.AttendanceRecord, error)
	FindByUserAndDate(ctx context.Context, userID string, date time.Time) (*models.AttendanceRecord, error)
	SetCheckOut(ctx context.Context, id string, checkOut time.Time, notes *string) error
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error)
	Upsert(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error)
}

// AttendanceServiceConfig tunes the state machine.
type AttendanceServiceConfig struct {
	LateCutoffHour int
}

// AttendanceService governs how a day's record moves through
// unmarked -> checked in -> checked out. Checked out is terminal for the
// day; there is no transition back.
type AttendanceService struct {
	repo      attendanceRepository
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
	cfg       AttendanceServiceConfig
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(repo attendanceRepository, validate *validator.Validate, logger *zap.Logger, cfg AttendanceServiceConfig) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.LateCutoffHour <= 0 {
		cfg.LateCutoffHour = 9
	}
	svc := &AttendanceService{repo: repo, validator: validate, logger: logger, now: func() time.Time { return time.Now().UTC() }, cfg: cfg}
	svc.validator.RegisterValidation("attendance_status", func(fl validator.FieldLevel) bool {
		return models.AttendanceStatus(fl.Field().String()).Valid()
	})
	return svc
}

// CheckIn creates today's record for the user. The status is decided once,
// here, from the time of day: at or after the late cutoff hour the record is
// late, otherwise present. It is never recomputed afterwards.
func (s *AttendanceService) CheckIn(ctx context.Context, userID string, notes *string) (*models.AttendanceRecord, error) {
	now := s.now()
	today := DateOf(now)

	if _, err := s.repo.FindByUserAndDate(ctx, userID, today); err == nil {
		return nil, appErrors.ErrDuplicateCheckIn
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read today's record")
	}

	status := models.StatusPresent
	if now.Hour() >= s.cfg.LateCutoffHour {
		status = models.StatusLate
	}

	record := &models.AttendanceRecord{
		UserID:  userID,
		Date:    today,
		Status:  status,
		CheckIn: &now,
		Notes:   notes,
	}

	// The unique constraint on (user_id, date) decides the winner when two
	// check-ins race past the read above.
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, appErrors.FromError(err)
	}

	s.logger.Info("checked in",
		zap.String("user_id", userID),
		zap.String("status", string(status)),
	)
	return record, nil
}

// CheckOut stamps the record's check-out time and optional notes. It fails
// when the record does not exist, is not owned by the caller, has no
// check-in, or was already checked out.
func (s *AttendanceService) CheckOut(ctx context.Context, userID, recordID string, notes *string) (*models.AttendanceRecord, error) {
	record, err := s.repo.FindByID(ctx, recordID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotCheckedIn
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read record")
	}

	if record.UserID != userID {
		return nil, appErrors.ErrForbidden
	}
	if record.CheckIn == nil {
		return nil, appErrors.ErrNotCheckedIn
	}
	if record.CheckOut != nil {
		return nil, appErrors.ErrAlreadyCheckedOut
	}

	now := s.now()
	if err := s.repo.SetCheckOut(ctx, record.ID, now, notes); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record check-out")
	}

	record.CheckOut = &now
	if notes != nil {
		record.Notes = notes
	}

	s.logger.Info("checked out", zap.String("user_id", userID), zap.String("record_id", record.ID))
	return record, nil
}

// Today returns the caller's record for the current date, or nil when the
// day is still unmarked.
func (s *AttendanceService) Today(ctx context.Context, userID string) (*models.AttendanceRecord, error) {
	record, err := s.repo.FindByUserAndDate(ctx, userID, DateOf(s.now()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read today's record")
	}
	return record, nil
}

// AttendanceListRequest scopes the administrative listing endpoint.
type AttendanceListRequest struct {
	UserID    string  `json:"user_id"`
	Status    *string `json:"status" validate:"omitempty,attendance_status"`
	DateFrom  *string `json:"date_from"`
	DateTo    *string `json:"date_to"`
	Page      int     `json:"page"`
	PageSize  int     `json:"page_size"`
	SortBy    string  `json:"sort_by"`
	SortOrder string  `json:"sort_order"`
}

// List returns records matching the request with pagination metadata.
func (s *AttendanceService) List(ctx context.Context, req AttendanceListRequest) ([]models.AttendanceRecord, *models.Pagination, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid list request")
	}

	filter := models.AttendanceFilter{
		UserID:    req.UserID,
		Page:      req.Page,
		PageSize:  req.PageSize,
		SortBy:    req.SortBy,
		SortOrder: req.SortOrder,
	}
	if req.Status != nil {
		status := models.AttendanceStatus(*req.Status)
		filter.Status = &status
	}
	var err error
	if filter.DateFrom, err = parseDatePtr(req.DateFrom); err != nil {
		return nil, nil, err
	}
	if filter.DateTo, err = parseDatePtr(req.DateTo); err != nil {
		return nil, nil, err
	}

	records, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list records")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 50
	}

	return records, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// ManageRecordRequest is the administrative overwrite payload.
type ManageRecordRequest struct {
	UserID   string  `json:"user_id" validate:"required"`
	Date     string  `json:"date" validate:"required"`
	Status   string  `json:"status" validate:"required,attendance_status"`
	CheckIn  *string `json:"check_in"`
	CheckOut *string `json:"check_out"`
	Notes    *string `json:"notes"`
}

// Manage lets an administrator create or overwrite any user's record,
// including an explicit status overwrite.
func (s *AttendanceService) Manage(ctx context.Context, req ManageRecordRequest) (*models.AttendanceRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid record payload")
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date, expected YYYY-MM-DD")
	}

	record := &models.AttendanceRecord{
		UserID: req.UserID,
		Date:   date,
		Status: models.AttendanceStatus(req.Status),
		Notes:  req.Notes,
	}
	if record.CheckIn, err = parseTimePtr(req.CheckIn); err != nil {
		return nil, err
	}
	if record.CheckOut, err = parseTimePtr(req.CheckOut); err != nil {
		return nil, err
	}

	stored, err := s.repo.Upsert(ctx, record)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store record")
	}
	return stored, nil
}

// WorkDuration derives the whole-hour/minute span between check-in and
// check-out. It returns nil unless both stamps are present. The millisecond
// delta is floor-divided, no rounding; the caller guarantees
// check_out >= check_in.
func WorkDuration(record *models.AttendanceRecord) *models.WorkDuration {
	if record == nil || record.CheckIn == nil || record.CheckOut == nil {
		return nil
	}
	deltaMs := record.CheckOut.Sub(*record.CheckIn).Milliseconds()
	hours := deltaMs / (1000 * 60 * 60)
	minutes := (deltaMs % (1000 * 60 * 60)) / (1000 * 60)
	return &models.WorkDuration{Hours: int(hours), Minutes: int(minutes)}
}

// DateOf truncates a timestamp to its UTC calendar date.
func DateOf(ts time.Time) time.Time {
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
}

func parseDatePtr(raw *string) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse("2006-01-02", *raw)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", *raw))
	}
	return &parsed, nil
}

func parseTimePtr(raw *string) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, *raw)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("invalid timestamp %q, expected RFC3339", *raw))
	}
	return &parsed, nil
}
