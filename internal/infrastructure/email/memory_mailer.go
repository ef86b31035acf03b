package email

import (
	"context"
	"sync"

	"github.com/baechuer/real-time-ressys/services/webinar-service/internal/domain"
)

// MemoryMailer records every message it is asked to send. FailWith makes
// subsequent sends fail without recording.
type MemoryMailer struct {
	mu      sync.Mutex
	sent    []domain.Message
	failErr error
}

func NewMemoryMailer() *MemoryMailer {
	return &MemoryMailer{}
}

func (m *MemoryMailer) Send(ctx context.Context, msg domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failErr != nil {
		return m.failErr
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *MemoryMailer) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
}

func (m *MemoryMailer) Sent() []domain.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.Message, len(m.sent))
	copy(out, m.sent)
	return out
}
