package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-api/internal/service"
	appErrors "github.com/noah-isme/attendance-api/pkg/errors"
	"github.com/noah-isme/attendance-api/pkg/response"
)

// AssistantHandler exposes the AI assistant chat endpoint.
type AssistantHandler struct {
	service *service.AssistantService
	metrics *service.MetricsService
	logger  *zap.Logger
}

// NewAssistantHandler creates a new assistant handler.
func NewAssistantHandler(svc *service.AssistantService, metrics *service.MetricsService, logger *zap.Logger) *AssistantHandler {
	return &AssistantHandler{service: svc, metrics: metrics, logger: logger}
}

// Chat godoc
// @Summary Chat with the attendance assistant
// @Description Streams the upstream model response back verbatim as server-sent events
// @Tags Assistant
// @Accept json
// @Produce text/event-stream
// @Param payload body service.ChatRequest true "Conversation messages"
// @Success 200 {string} string "SSE stream"
// @Failure 401 {object} response.Envelope
// @Failure 402 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /assistant/chat [post]
func (h *AssistantHandler) Chat(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}

	stream, err := h.service.Chat(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer stream.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	h.relay(c, stream)
}

// relay copies upstream bytes to the client chunk by chunk, flushing after
// each write so tokens reach the client as they arrive.
func (h *AssistantHandler) relay(c *gin.Context, stream io.Reader) {
	flusher, _ := c.Writer.(http.Flusher)
	buf := make([]byte, 4096)

	for {
		n, err := stream.Read(buf)
		if n > 0 {
			if _, werr := c.Writer.Write(buf[:n]); werr != nil {
				h.logger.Warn("assistant stream client write failed", zap.Error(werr))
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
			h.metrics.RecordStreamedChunk()
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				h.logger.Warn("assistant stream upstream read failed", zap.Error(err))
			}
			return
		}
	}
}
