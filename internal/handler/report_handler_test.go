package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-api/internal/middleware"
	"github.com/noah-isme/attendance-api/internal/models"
	"github.com/noah-isme/attendance-api/internal/service"
)

type fakeReportStore struct {
	records []models.AttendanceRecord
	userID  string
}

func (f *fakeReportStore) RangeByUser(_ context.Context, userID string, _, _ time.Time) ([]models.AttendanceRecord, error) {
	f.userID = userID
	return f.records, nil
}

func newReportTestHandler(store *fakeReportStore) *ReportHandler {
	svc := service.NewReportService(store, nil, zap.NewNop(), time.Minute)
	return NewReportHandler(svc)
}

func TestReportSummaryRequiresDateRange(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newReportTestHandler(&fakeReportStore{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/reports/summary", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleUser})

	handler.Summary(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReportSummaryScopesToCaller(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &fakeReportStore{records: []models.AttendanceRecord{{
		UserID: "user-1",
		Date:   time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		Status: models.StatusPresent,
	}}}
	handler := newReportTestHandler(store)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/reports/summary?from=2026-03-01&to=2026-03-31", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleUser})

	handler.Summary(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", store.userID)

	var envelope struct {
		Data models.AttendanceSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, 1, envelope.Data.Total)
	assert.InDelta(t, 100.0, envelope.Data.Rate, 0.001)
}

func TestReportSummaryForbidsCrossUserForNonAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newReportTestHandler(&fakeReportStore{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/reports/summary?from=2026-03-01&to=2026-03-31&user_id=someone-else", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleUser})

	handler.Summary(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestReportSummaryAdminCanTargetAnyUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &fakeReportStore{}
	handler := newReportTestHandler(store)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/reports/summary?from=2026-03-01&to=2026-03-31&user_id=user-2", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})

	handler.Summary(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-2", store.userID)
}

func TestReportExportCSVSetsAttachmentHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newReportTestHandler(&fakeReportStore{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/reports/export.csv?from=2026-03-01&to=2026-03-31", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleUser})

	handler.ExportCSV(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attendance_20260301_20260331.csv")
}

func TestReportSummaryRejectsInvertedRange(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newReportTestHandler(&fakeReportStore{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/reports/summary?from=2026-03-31&to=2026-03-01", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleUser})

	handler.Summary(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
