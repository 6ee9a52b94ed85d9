package mail

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendGrid_Prepare(t *testing.T) {
	s := NewSendGrid(SendGridConfig{Key: "k", FromName: "LMS", FromEmail: "noreply@lms.test"})

	m := s.prepare(EnrollmentApproved("ana@lms.test", "Ana", "Go 101", "d5c63-go-101-ana"))

	assert.Equal(t, "noreply@lms.test", m.From.Address)
	require.Len(t, m.Personalizations, 1)
	assert.Equal(t, "Enrollment approved: Go 101", m.Personalizations[0].Subject)
	require.Len(t, m.Personalizations[0].To, 1)
	assert.Equal(t, "ana@lms.test", m.Personalizations[0].To[0].Address)

	require.Len(t, m.Content, 2)
	assert.Equal(t, "text/plain", m.Content[0].Type)
	assert.Contains(t, m.Content[0].Value, "enrolled in Go 101")
	assert.Equal(t, "text/html", m.Content[1].Type)
}

func TestSendGrid_PrepareTextOnly(t *testing.T) {
	s := NewSendGrid(SendGridConfig{Key: "k", FromEmail: "noreply@lms.test"})

	m := s.prepare(EnrollmentRejected("ana@lms.test", "Ana", "Go 101", "UTR123"))

	require.Len(t, m.Content, 1)
	assert.Contains(t, m.Content[0].Value, "UTR123")
}

func TestLog_Send(t *testing.T) {
	var buf bytes.Buffer
	l := Log{Logger: slog.New(slog.NewTextHandler(&buf, nil))}

	require.NoError(t, l.Send(context.Background(), Message{To: "ana@lms.test", Subject: "hello"}))

	assert.Contains(t, buf.String(), "to=ana@lms.test")
	assert.Contains(t, buf.String(), "subject=hello")
}
