package notify

import (
	"context"
	"errors"
	"sync"
)

// SentEmail records one delivery made through the MemoryMailer.
type SentEmail struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
}

// MemoryMailer collects emails in memory for tests. Set FailNext (or
// FailAll) to simulate provider outages.
type MemoryMailer struct {
	mu       sync.Mutex
	sent     []SentEmail
	FailNext bool
	FailAll  bool
}

var errMailerDown = errors.New("email provider unavailable")

func NewMemoryMailer() *MemoryMailer {
	return &MemoryMailer{}
}

func (m *MemoryMailer) SendEmail(_ context.Context, to, subject, htmlBody, textBody string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailAll {
		return errMailerDown
	}
	if m.FailNext {
		m.FailNext = false
		return errMailerDown
	}

	m.sent = append(m.sent, SentEmail{To: to, Subject: subject, HTMLBody: htmlBody, TextBody: textBody})
	return nil
}

// Sent returns a copy of all recorded emails.
func (m *MemoryMailer) Sent() []SentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentEmail{}, m.sent...)
}
