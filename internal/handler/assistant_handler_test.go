package handler

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-api/internal/middleware"
	"github.com/noah-isme/attendance-api/internal/models"
	"github.com/noah-isme/attendance-api/internal/service"
	"github.com/noah-isme/attendance-api/pkg/ai"
	appErrors "github.com/noah-isme/attendance-api/pkg/errors"
)

type fakeChatAttendance struct {
	records []models.AttendanceRecord
}

func (f *fakeChatAttendance) RecentByUser(context.Context, string, int) ([]models.AttendanceRecord, error) {
	return f.records, nil
}

type fakeChatProfiles struct {
	profile *models.Profile
}

func (f *fakeChatProfiles) FindByUserID(context.Context, string) (*models.Profile, error) {
	return f.profile, nil
}

type fakeChatStreamer struct {
	body string
	err  error
}

func (f *fakeChatStreamer) StreamChatCompletion(context.Context, []ai.Message) (io.ReadCloser, error) {
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(strings.NewReader(f.body)), nil
}

func newChatHandler(streamer *fakeChatStreamer, records []models.AttendanceRecord) *AssistantHandler {
	metrics := service.NewMetricsService()
	svc := service.NewAssistantService(
		&fakeChatAttendance{records: records},
		&fakeChatProfiles{},
		streamer,
		metrics,
		nil,
		zap.NewNop(),
		100,
	)
	return NewAssistantHandler(svc, metrics, zap.NewNop())
}

func chatRequest(t *testing.T, c *gin.Context, withClaims bool) {
	t.Helper()
	body := `{"messages":[{"role":"user","content":"was I late this week?"}]}`
	c.Request = httptest.NewRequest(http.MethodPost, "/assistant/chat", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	if withClaims {
		c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleUser})
	}
}

func TestAssistantChatRequiresAuthentication(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newChatHandler(&fakeChatStreamer{}, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	chatRequest(t, c, false)

	handler.Chat(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "UNAUTHORIZED")
}

func TestAssistantChatStreamsUpstreamBytesVerbatim(t *testing.T) {
	gin.SetMode(gin.TestMode)
	raw := `data: {"choices":[{"delta":{"content":"You were late twice."}}]}` + "\ndata: [DONE]\n"
	handler := newChatHandler(&fakeChatStreamer{body: raw}, []models.AttendanceRecord{{
		UserID: "user-1",
		Date:   time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		Status: models.StatusLate,
	}})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	chatRequest(t, c, true)

	handler.Chat(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, raw, rec.Body.String())
}

func TestAssistantChatEmptyHistoryStillStreams(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newChatHandler(&fakeChatStreamer{body: "data: [DONE]\n"}, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	chatRequest(t, c, true)

	handler.Chat(c)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAssistantChatSurfacesRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newChatHandler(&fakeChatStreamer{err: appErrors.ErrRateLimited}, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	chatRequest(t, c, true)

	handler.Chat(c)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "RATE_LIMIT_EXCEEDED")
}

func TestAssistantChatSurfacesPaymentRequired(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newChatHandler(&fakeChatStreamer{err: appErrors.ErrPaymentRequired}, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	chatRequest(t, c, true)

	handler.Chat(c)

	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
}

func TestAssistantChatRejectsEmptyPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newChatHandler(&fakeChatStreamer{}, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/assistant/chat", strings.NewReader(`{"messages":[]}`))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1"})

	handler.Chat(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "VALIDATION_ERROR")
}
