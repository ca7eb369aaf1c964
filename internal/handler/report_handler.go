package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/attendance-api/internal/models"
	"github.com/noah-isme/attendance-api/internal/service"
	appErrors "github.com/noah-isme/attendance-api/pkg/errors"
	"github.com/noah-isme/attendance-api/pkg/response"
)

// ReportHandler exposes attendance report endpoints.
type ReportHandler struct {
	service *service.ReportService
}

// NewReportHandler creates a new report handler.
func NewReportHandler(svc *service.ReportService) *ReportHandler {
	return &ReportHandler{service: svc}
}

// Summary godoc
// @Summary Attendance summary
// @Description Aggregates status counts, attendance rate and weekly buckets over a date range
// @Tags Reports
// @Produce json
// @Param from query string true "Range start (YYYY-MM-DD)"
// @Param to query string true "Range end (YYYY-MM-DD)"
// @Param user_id query string false "Target user (admin only)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /reports/summary [get]
func (h *ReportHandler) Summary(c *gin.Context) {
	userID, from, to, err := h.reportScope(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	summary, err := h.service.Summary(c.Request.Context(), userID, from, to)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, summary, nil)
}

// ExportCSV godoc
// @Summary Export report as CSV
// @Tags Reports
// @Produce text/csv
// @Param from query string true "Range start (YYYY-MM-DD)"
// @Param to query string true "Range end (YYYY-MM-DD)"
// @Param user_id query string false "Target user (admin only)"
// @Success 200 {string} string "CSV content"
// @Router /reports/export.csv [get]
func (h *ReportHandler) ExportCSV(c *gin.Context) {
	userID, from, to, err := h.reportScope(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	payload, err := h.service.ExportCSV(c.Request.Context(), userID, from, to)
	if err != nil {
		response.Error(c, err)
		return
	}

	filename := fmt.Sprintf("attendance_%s_%s.csv", from.Format("20060102"), to.Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv", payload)
}

// ExportPDF godoc
// @Summary Export report as PDF
// @Tags Reports
// @Produce application/pdf
// @Param from query string true "Range start (YYYY-MM-DD)"
// @Param to query string true "Range end (YYYY-MM-DD)"
// @Param user_id query string false "Target user (admin only)"
// @Success 200 {string} string "PDF content"
// @Router /reports/export.pdf [get]
func (h *ReportHandler) ExportPDF(c *gin.Context) {
	userID, from, to, err := h.reportScope(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	payload, err := h.service.ExportPDF(c.Request.Context(), userID, from, to)
	if err != nil {
		response.Error(c, err)
		return
	}

	filename := fmt.Sprintf("attendance_%s_%s.pdf", from.Format("20060102"), to.Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/pdf", payload)
}

// reportScope resolves the target user and date range. Non-admin callers
// may only report on themselves.
func (h *ReportHandler) reportScope(c *gin.Context) (string, time.Time, time.Time, error) {
	claims := claimsFromContext(c)
	if claims == nil {
		return "", time.Time{}, time.Time{}, appErrors.ErrUnauthorized
	}

	userID := claims.UserID
	if target := c.Query("user_id"); target != "" && target != claims.UserID {
		if claims.Role != models.RoleAdmin {
			return "", time.Time{}, time.Time{}, appErrors.ErrForbidden
		}
		userID = target
	}

	from, err := time.Parse("2006-01-02", c.Query("from"))
	if err != nil {
		return "", time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "invalid or missing from date, expected YYYY-MM-DD")
	}
	to, err := time.Parse("2006-01-02", c.Query("to"))
	if err != nil {
		return "", time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "invalid or missing to date, expected YYYY-MM-DD")
	}
	if to.Before(from) {
		return "", time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "to date precedes from date")
	}

	return userID, from, to, nil
}
