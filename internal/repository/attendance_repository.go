package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/attendance-api/internal/models"
	appErrors "github.com/noah-isme/attendance-api/pkg/errors"
)

const uniqueViolation = "23505"

const attendanceColumns = `id, user_id, date, status, check_in, check_out, notes, created_at, updated_at`

// AttendanceRepository handles persistence for attendance records.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Create inserts a new record. A unique-constraint violation on
// (user_id, date) is surfaced as ErrDuplicateCheckIn so racing check-ins
// resolve to exactly one winner.
func (r *AttendanceRepository) Create(ctx context.Context, record *models.AttendanceRecord) error {
	now := time.Now().UTC()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	record.CreatedAt = now
	record.UpdatedAt = now

	const query = `INSERT INTO attendance_records (id, user_id, date, status, check_in, check_out, notes, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := r.db.ExecContext(ctx, query, record.ID, record.UserID, record.Date, record.Status, record.CheckIn, record.CheckOut, record.Notes, record.CreatedAt, record.UpdatedAt); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return appErrors.Wrap(err, appErrors.ErrDuplicateCheckIn.Code, appErrors.ErrDuplicateCheckIn.Status, appErrors.ErrDuplicateCheckIn.Message)
		}
		return fmt.Errorf("insert attendance record: %w", err)
	}
	return nil
}

// FindByID returns a single record.
func (r *AttendanceRepository) FindByID(ctx context.Context, id string) (*models.AttendanceRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM attendance_records WHERE id = $1 LIMIT 1`, attendanceColumns)
	var record models.AttendanceRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find attendance by id: %w", err)
	}
	return &record, nil
}

// FindByUserAndDate returns the user's record for a calendar date.
func (r *AttendanceRepository) FindByUserAndDate(ctx context.Context, userID string, date time.Time) (*models.AttendanceRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM attendance_records WHERE user_id = $1 AND date = $2 LIMIT 1`, attendanceColumns)
	var record models.AttendanceRecord
	if err := r.db.GetContext(ctx, &record, query, userID, date); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find attendance by user and date: %w", err)
	}
	return &record, nil
}

// SetCheckOut records the check-out stamp and optional notes.
func (r *AttendanceRepository) SetCheckOut(ctx context.Context, id string, checkOut time.Time, notes *string) error {
	const query = `UPDATE attendance_records SET check_out = $2, notes = COALESCE($3, notes), updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, checkOut, notes, time.Now().UTC()); err != nil {
		return fmt.Errorf("set check-out: %w", err)
	}
	return nil
}

// RecentByUser returns the user's most recent records, newest first.
func (r *AttendanceRepository) RecentByUser(ctx context.Context, userID string, limit int) ([]models.AttendanceRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`SELECT %s FROM attendance_records WHERE user_id = $1 ORDER BY date DESC LIMIT %d`, attendanceColumns, limit)
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, userID); err != nil {
		return nil, fmt.Errorf("recent attendance for user: %w", err)
	}
	return records, nil
}

// RangeByUser returns the user's records within an inclusive date range,
// oldest first, for report aggregation.
func (r *AttendanceRepository) RangeByUser(ctx context.Context, userID string, from, to time.Time) ([]models.AttendanceRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM attendance_records WHERE user_id = $1 AND date >= $2 AND date <= $3 ORDER BY date ASC`, attendanceColumns)
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, userID, from, to); err != nil {
		return nil, fmt.Errorf("range attendance for user: %w", err)
	}
	return records, nil
}

// List returns records matching the filter with a total count, for the
// administrative management surface.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error) {
	baseQuery := `FROM attendance_records WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)+1))
		args = append(args, filter.UserID)
	}
	if filter.Status != nil && filter.Status.Valid() {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"date":       true,
		"status":     true,
		"created_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "date"
	}

	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 50
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", attendanceColumns, baseQuery, sortBy, sortOrder, pageSize, offset)

	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list attendance: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count attendance: %w", err)
	}

	return records, total, nil
}

// Upsert inserts or overwrites a record keyed on (user_id, date). Used by
// administrators bulk-managing records; explicit status overwrites are the
// only path that revises a stored status.
func (r *AttendanceRepository) Upsert(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error) {
	now := time.Now().UTC()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	query := fmt.Sprintf(`INSERT INTO attendance_records (id, user_id, date, status, check_in, check_out, notes, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (user_id, date)
DO UPDATE SET status = EXCLUDED.status, check_in = EXCLUDED.check_in, check_out = EXCLUDED.check_out, notes = EXCLUDED.notes, updated_at = EXCLUDED.updated_at
RETURNING %s`, attendanceColumns)
	var stored models.AttendanceRecord
	if err := r.db.GetContext(ctx, &stored, query, record.ID, record.UserID, record.Date, record.Status, record.CheckIn, record.CheckOut, record.Notes, record.CreatedAt, record.UpdatedAt); err != nil {
		return nil, fmt.Errorf("upsert attendance record: %w", err)
	}
	return &stored, nil
}
