package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/attendance-api/internal/service"
	appErrors "github.com/noah-isme/attendance-api/pkg/errors"
	"github.com/noah-isme/attendance-api/pkg/response"
)

// AttendanceHandler handles check-in/check-out and record endpoints.
type AttendanceHandler struct {
	service *service.AttendanceService
	reports *service.ReportService
}

// NewAttendanceHandler creates a new attendance handler.
func NewAttendanceHandler(svc *service.AttendanceService, reports *service.ReportService) *AttendanceHandler {
	return &AttendanceHandler{service: svc, reports: reports}
}

type notesPayload struct {
	Notes *string `json:"notes"`
}

// CheckIn godoc
// @Summary Check in for today
// @Description Creates today's attendance record; status is decided by the late cutoff
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body notesPayload false "Optional notes"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /attendance/check-in [post]
func (h *AttendanceHandler) CheckIn(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload notesPayload
	_ = c.ShouldBindJSON(&payload)

	record, err := h.service.CheckIn(c.Request.Context(), claims.UserID, payload.Notes)
	if err != nil {
		response.Error(c, err)
		return
	}

	if h.reports != nil {
		h.reports.InvalidateUser(c.Request.Context(), claims.UserID)
	}

	response.Created(c, record)
}

// CheckOut godoc
// @Summary Check out
// @Description Stamps the check-out time on an open record
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Record ID"
// @Param payload body notesPayload false "Optional notes"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /attendance/{id}/check-out [post]
func (h *AttendanceHandler) CheckOut(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload notesPayload
	_ = c.ShouldBindJSON(&payload)

	record, err := h.service.CheckOut(c.Request.Context(), claims.UserID, c.Param("id"), payload.Notes)
	if err != nil {
		response.Error(c, err)
		return
	}

	if h.reports != nil {
		h.reports.InvalidateUser(c.Request.Context(), claims.UserID)
	}

	response.JSON(c, http.StatusOK, record, nil)
}

// Today godoc
// @Summary Today's record
// @Description Returns the caller's record for the current date with its work duration
// @Tags Attendance
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /attendance/today [get]
func (h *AttendanceHandler) Today(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	record, err := h.service.Today(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	if record == nil {
		response.JSON(c, http.StatusOK, nil, nil)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{
		"record":   record,
		"duration": service.WorkDuration(record),
	}, nil)
}

// List godoc
// @Summary List attendance records
// @Description Administrative listing across users with filtering and pagination
// @Tags Attendance
// @Produce json
// @Param user_id query string false "User filter"
// @Param status query string false "Status filter"
// @Param date_from query string false "Range start (YYYY-MM-DD)"
// @Param date_to query string false "Range end (YYYY-MM-DD)"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /attendance [get]
func (h *AttendanceHandler) List(c *gin.Context) {
	var req service.AttendanceListRequest

	req.UserID = c.Query("user_id")
	if status := c.Query("status"); status != "" {
		req.Status = &status
	}
	if from := c.Query("date_from"); from != "" {
		req.DateFrom = &from
	}
	if to := c.Query("date_to"); to != "" {
		req.DateTo = &to
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		req.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "50")); err == nil {
		req.PageSize = size
	}
	req.SortBy = c.Query("sort_by")
	req.SortOrder = c.Query("sort_order")

	records, pagination, err := h.service.List(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, records, pagination)
}

// Manage godoc
// @Summary Create or overwrite a record
// @Description Administrative upsert of any user's record for a date
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body service.ManageRecordRequest true "Record payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /attendance [put]
func (h *AttendanceHandler) Manage(c *gin.Context) {
	var req service.ManageRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	record, err := h.service.Manage(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	if h.reports != nil {
		h.reports.InvalidateUser(c.Request.Context(), req.UserID)
	}

	response.JSON(c, http.StatusOK, record, nil)
}

// MyRecords godoc
// @Summary List own records
// @Description Returns the caller's records, optionally scoped to a date range
// @Tags Attendance
// @Produce json
// @Param date_from query string false "Range start (YYYY-MM-DD)"
// @Param date_to query string false "Range end (YYYY-MM-DD)"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /attendance/me [get]
func (h *AttendanceHandler) MyRecords(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.AttendanceListRequest
	req.UserID = claims.UserID
	if from := c.Query("date_from"); from != "" {
		req.DateFrom = &from
	}
	if to := c.Query("date_to"); to != "" {
		req.DateTo = &to
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		req.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "50")); err == nil {
		req.PageSize = size
	}

	records, pagination, err := h.service.List(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, records, pagination)
}
