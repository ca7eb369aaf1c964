package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-api/internal/models"
	"github.com/noah-isme/attendance-api/pkg/ai"
	appErrors "github.com/noah-isme/attendance-api/pkg/errors"
)

type assistantAttendanceRepository interface {
	RecentByUser(ctx context.Context, userID string, limit int) ([]models.AttendanceRecord, error)
}

type assistantProfileRepository interface {
	FindByUserID(ctx context.Context, userID string) (*models.Profile, error)
}

type completionStreamer interface {
	StreamChatCompletion(ctx context.Context, messages []ai.Message) (io.ReadCloser, error)
}

// ChatRequest carries the caller's prior conversation turns.
type ChatRequest struct {
	Messages []ai.Message `json:"messages" validate:"required,min=1,dive"`
}

// AssistantService brokers chat requests to the upstream completion
// service, augmenting them with the caller's attendance history. It holds
// no state between invocations and only reads.
type AssistantService struct {
	attendance  assistantAttendanceRepository
	profiles    assistantProfileRepository
	upstream    completionStreamer
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
	recordLimit int
}

// NewAssistantService constructs the assistant service.
func NewAssistantService(attendance assistantAttendanceRepository, profiles assistantProfileRepository, upstream completionStreamer, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, recordLimit int) *AssistantService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if recordLimit <= 0 {
		recordLimit = 100
	}
	return &AssistantService{
		attendance:  attendance,
		profiles:    profiles,
		upstream:    upstream,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
		recordLimit: recordLimit,
	}
}

// Chat validates the request, prepends the attendance context as a system
// instruction and returns the upstream event stream for pass-through. The
// caller owns the returned reader.
func (s *AssistantService) Chat(ctx context.Context, userID string, req ChatRequest) (io.ReadCloser, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid chat payload")
	}

	system := ai.Message{Role: "system", Content: s.buildSystemPrompt(ctx, userID)}
	messages := append([]ai.Message{system}, req.Messages...)

	s.metrics.RecordAssistantRequest()

	stream, err := s.upstream.StreamChatCompletion(ctx, messages)
	if err != nil {
		appErr := appErrors.FromError(err)
		s.metrics.RecordAssistantFailure(appErr.Code)
		return nil, appErr
	}
	return stream, nil
}

// buildSystemPrompt embeds the current date, a profile summary and a
// transcript of the caller's recent records. A missing profile or an empty
// record set degrades to placeholder text, never a failure.
func (s *AssistantService) buildSystemPrompt(ctx context.Context, userID string) string {
	var b strings.Builder
	b.WriteString("You are a helpful assistant answering questions about an employee's attendance history. ")
	b.WriteString("Answer only from the context below and keep responses concise.\n\n")
	fmt.Fprintf(&b, "Current date: %s\n\n", s.now().Format("2006-01-02"))

	b.WriteString("Employee profile:\n")
	profile, err := s.profiles.FindByUserID(ctx, userID)
	if err != nil || profile == nil {
		if err != nil {
			s.logger.Warn("profile unavailable for chat context", zap.String("user_id", userID), zap.Error(err))
		}
		b.WriteString("No profile information available.\n")
	} else {
		fmt.Fprintf(&b, "Name: %s\nEmail: %s\n", profile.FullName, profile.Email)
		if profile.Department != nil && *profile.Department != "" {
			fmt.Fprintf(&b, "Department: %s\n", *profile.Department)
		}
	}

	b.WriteString("\nRecent attendance records (most recent first):\n")
	records, err := s.attendance.RecentByUser(ctx, userID, s.recordLimit)
	if err != nil {
		s.logger.Warn("attendance unavailable for chat context", zap.String("user_id", userID), zap.Error(err))
		records = nil
	}
	if len(records) == 0 {
		b.WriteString("No attendance records found.\n")
		return b.String()
	}
	for i := range records {
		b.WriteString(formatRecordLine(&records[i]))
		b.WriteByte('\n')
	}
	return b.String()
}

// formatRecordLine renders one transcript line: date, status, optional
// check-in/out, optional notes.
func formatRecordLine(record *models.AttendanceRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", record.Date.Format("2006-01-02"), record.Status)
	if record.CheckIn != nil {
		fmt.Fprintf(&b, ", in %s", record.CheckIn.Format("15:04"))
	}
	if record.CheckOut != nil {
		fmt.Fprintf(&b, ", out %s", record.CheckOut.Format("15:04"))
	}
	if record.Notes != nil && *record.Notes != "" {
		fmt.Fprintf(&b, ", notes: %s", *record.Notes)
	}
	return b.String()
}
