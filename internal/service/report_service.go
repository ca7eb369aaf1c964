package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/attendance-api/internal/models"
	appErrors "github.com/noah-isme/attendance-api/pkg/errors"
	"github.com/noah-isme/attendance-api/pkg/export"
)

type reportAttendanceRepository interface {
	RangeByUser(ctx context.Context, userID string, from, to time.Time) ([]models.AttendanceRecord, error)
}

// ReportService derives per-period statistics from attendance records. All
// aggregation functions are pure and tolerate empty input.
type ReportService struct {
	repo     reportAttendanceRepository
	cache    *CacheService
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
	logger   *zap.Logger
	cacheTTL time.Duration
}

// NewReportService constructs the report service.
func NewReportService(repo reportAttendanceRepository, cache *CacheService, logger *zap.Logger, cacheTTL time.Duration) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &ReportService{
		repo:     repo,
		cache:    cache,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		logger:   logger,
		cacheTTL: cacheTTL,
	}
}

// StatusCounts maps every status to its occurrence count within the set.
// Statuses absent from the input count as zero.
func StatusCounts(records []models.AttendanceRecord) models.StatusCounts {
	counts := make(models.StatusCounts, len(models.AllStatuses))
	for _, status := range models.AllStatuses {
		counts[status] = 0
	}
	for _, record := range records {
		counts[record.Status]++
	}
	return counts
}

// AttendanceRate returns (present + late) / total * 100, or 0 for an empty
// set.
func AttendanceRate(records []models.AttendanceRecord) float64 {
	if len(records) == 0 {
		return 0
	}
	attended := 0
	for _, record := range records {
		if record.Status == models.StatusPresent || record.Status == models.StatusLate {
			attended++
		}
	}
	return float64(attended) / float64(len(records)) * 100
}

// WeeklyBuckets groups records by ceil(day_of_month / 7). Only present,
// late and absent are counted in this breakdown.
func WeeklyBuckets(records []models.AttendanceRecord) []models.WeeklyBucket {
	byWeek := make(map[int]*models.WeeklyBucket)
	for _, record := range records {
		week := (record.Date.Day() + 6) / 7
		bucket, ok := byWeek[week]
		if !ok {
			bucket = &models.WeeklyBucket{Week: fmt.Sprintf("Week %d", week)}
			byWeek[week] = bucket
		}
		switch record.Status {
		case models.StatusPresent:
			bucket.Present++
		case models.StatusLate:
			bucket.Late++
		case models.StatusAbsent:
			bucket.Absent++
		}
	}

	weeks := make([]int, 0, len(byWeek))
	for week := range byWeek {
		weeks = append(weeks, week)
	}
	sort.Ints(weeks)

	buckets := make([]models.WeeklyBucket, 0, len(weeks))
	for _, week := range weeks {
		buckets = append(buckets, *byWeek[week])
	}
	return buckets
}

// Summary aggregates the user's records over an inclusive date range. The
// result is cached per user and range with a short TTL.
func (s *ReportService) Summary(ctx context.Context, userID string, from, to time.Time) (*models.AttendanceSummary, error) {
	key := summaryCacheKey(userID, from, to)

	var cached models.AttendanceSummary
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}

	records, err := s.repo.RangeByUser(ctx, userID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch records")
	}

	summary := &models.AttendanceSummary{
		Total:  len(records),
		Counts: StatusCounts(records),
		Rate:   AttendanceRate(records),
		Weekly: WeeklyBuckets(records),
		From:   from,
		To:     to,
		UserID: userID,
	}

	if err := s.cache.Set(ctx, key, summary, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache summary", zap.Error(err))
	}

	return summary, nil
}

// InvalidateUser drops cached summaries for a user after their records
// change.
func (s *ReportService) InvalidateUser(ctx context.Context, userID string) {
	if err := s.cache.Invalidate(ctx, fmt.Sprintf("report:%s:*", userID)); err != nil {
		s.logger.Warn("failed to invalidate report cache", zap.String("user_id", userID), zap.Error(err))
	}
}

// ExportCSV renders the range report as CSV bytes.
func (s *ReportService) ExportCSV(ctx context.Context, userID string, from, to time.Time) ([]byte, error) {
	records, err := s.repo.RangeByUser(ctx, userID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch records")
	}
	return s.csv.Render(reportDataset(records))
}

// ExportPDF renders the range report as a tabular PDF.
func (s *ReportService) ExportPDF(ctx context.Context, userID string, from, to time.Time) ([]byte, error) {
	records, err := s.repo.RangeByUser(ctx, userID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch records")
	}
	subtitle := fmt.Sprintf("%s to %s", from.Format("2006-01-02"), to.Format("2006-01-02"))
	return s.pdf.Render(reportDataset(records), "Attendance Report", subtitle)
}

func reportDataset(records []models.AttendanceRecord) export.Dataset {
	headers := []string{"Date", "Status", "Check In", "Check Out", "Hours", "Notes"}
	rows := make([]map[string]string, 0, len(records))
	for i := range records {
		record := &records[i]
		row := map[string]string{
			"Date":   record.Date.Format("2006-01-02"),
			"Status": string(record.Status),
		}
		if record.CheckIn != nil {
			row["Check In"] = record.CheckIn.Format("15:04")
		}
		if record.CheckOut != nil {
			row["Check Out"] = record.CheckOut.Format("15:04")
		}
		if duration := WorkDuration(record); duration != nil {
			row["Hours"] = fmt.Sprintf("%dh %02dm", duration.Hours, duration.Minutes)
		}
		if record.Notes != nil {
			row["Notes"] = *record.Notes
		}
		rows = append(rows, row)
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

func summaryCacheKey(userID string, from, to time.Time) string {
	return fmt.Sprintf("report:%s:%s:%s", userID, from.Format("2006-01-02"), to.Format("2006-01-02"))
}
