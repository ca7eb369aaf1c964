package models

import "time"

// AttendanceStatus enumerates the outcome recorded for a day.
type AttendanceStatus string

const (
	StatusPresent AttendanceStatus = "present"
	StatusAbsent  AttendanceStatus = "absent"
	StatusLate    AttendanceStatus = "late"
	StatusHalfDay AttendanceStatus = "half_day"
	StatusLeave   AttendanceStatus = "leave"
)

// AllStatuses lists every status in a stable order, used for zero-filled
// aggregation maps.
var AllStatuses = []AttendanceStatus{
	StatusPresent,
	StatusAbsent,
	StatusLate,
	StatusHalfDay,
	StatusLeave,
}

// Valid reports whether the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate, StatusHalfDay, StatusLeave:
		return true
	default:
		return false
	}
}

// AttendanceRecord is one attendance entry for a user on a specific date.
// At most one record exists per (user, date); the database enforces the
// uniqueness. Status is assigned at check-in and never recomputed.
type AttendanceRecord struct {
	ID        string           `db:"id" json:"id"`
	UserID    string           `db:"user_id" json:"user_id"`
	Date      time.Time        `db:"date" json:"date"`
	Status    AttendanceStatus `db:"status" json:"status"`
	CheckIn   *time.Time       `db:"check_in" json:"check_in,omitempty"`
	CheckOut  *time.Time       `db:"check_out" json:"check_out,omitempty"`
	Notes     *string          `db:"notes" json:"notes,omitempty"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
}

// WorkDuration is the whole-hour/minute breakdown of a completed day.
type WorkDuration struct {
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
}

// AttendanceFilter scopes listing queries.
type AttendanceFilter struct {
	UserID    string
	Status    *AttendanceStatus
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// StatusCounts maps each status to its occurrence count within a record set.
type StatusCounts map[AttendanceStatus]int

// WeeklyBucket groups records of one calendar week of the month, counting
// the present/late/absent statuses only.
type WeeklyBucket struct {
	Week    string `json:"week"`
	Present int    `json:"present"`
	Late    int    `json:"late"`
	Absent  int    `json:"absent"`
}

// AttendanceSummary is the aggregate payload for a reporting period.
type AttendanceSummary struct {
	Total  int            `json:"total"`
	Counts StatusCounts   `json:"counts"`
	Rate   float64        `json:"rate"`
	Weekly []WeeklyBucket `json:"weekly"`
	From   time.Time      `json:"from"`
	To     time.Time      `json:"to"`
	UserID string         `json:"user_id"`
}
