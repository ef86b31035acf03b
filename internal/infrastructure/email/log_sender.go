package email

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/baechuer/real-time-ressys/services/webinar-service/internal/domain"
	"github.com/rs/zerolog"
)

// LogSender is a development sender that only logs.
// It can simulate failures via env var.
//
// FAKE_FAIL_MODE:
// - "none" (default): always succeed
// - "transient": return Temporary() error (retriable)
// - "permanent": return Permanent() error (non-retriable)
type LogSender struct {
	lg zerolog.Logger
}

func NewLogSender(lg zerolog.Logger) *LogSender {
	return &LogSender{
		lg: lg.With().Str("component", "log_sender").Logger(),
	}
}

func (s *LogSender) Send(ctx context.Context, msg domain.Message) error {
	s.lg.Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Msg("FAKE send organizer notification")

	return maybeFail(os.Getenv("FAKE_FAIL_MODE"))
}

func maybeFail(mode string) error {
	switch strings.TrimSpace(strings.ToLower(mode)) {
	case "transient":
		return TemporaryError{msg: fmt.Sprintf("fake transient failure (%s)", "notify")}
	case "permanent":
		return PermanentError{msg: fmt.Sprintf("fake permanent failure (%s)", "notify")}
	default:
		return nil
	}
}
