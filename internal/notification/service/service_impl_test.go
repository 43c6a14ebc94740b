package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smallbiznis/atelier/internal/clock"
	"github.com/smallbiznis/atelier/internal/notification/domain"
)

type recordedMail struct {
	to      []string
	subject string
	body    string
}

type recordingMailer struct {
	sent []recordedMail
}

func (m *recordingMailer) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	m.sent = append(m.sent, recordedMail{to: to, subject: subject, body: htmlBody})
	return nil
}

func TestNotify_WithoutRedisFallsBackToLog(t *testing.T) {
	svc := New(Params{
		Log:   zap.NewNop(),
		Clock: clock.NewFakeClock(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)),
	})

	err := svc.Notify(context.Background(), domain.EventOrderApproved, "ORD-1", map[string]any{"total": int64(100)})
	require.NoError(t, err)
}

func TestNotify_EmailsCustomerFacingEvents(t *testing.T) {
	mailer := &recordingMailer{}
	svc := New(Params{
		Log:    zap.NewNop(),
		Clock:  clock.NewFakeClock(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)),
		Mailer: mailer,
	})

	err := svc.Notify(context.Background(), domain.EventOrderApproved, "ORD-1", map[string]any{
		"customer_email": "ada@example.com",
	})
	require.NoError(t, err)
	require.Len(t, mailer.sent, 1)
	require.Equal(t, []string{"ada@example.com"}, mailer.sent[0].to)
	require.Equal(t, "Your order has been approved", mailer.sent[0].subject)
	require.Contains(t, mailer.sent[0].body, "ORD-1")
}

func TestNotify_SkipsEmailWithoutRecipient(t *testing.T) {
	mailer := &recordingMailer{}
	svc := New(Params{
		Log:    zap.NewNop(),
		Clock:  clock.NewFakeClock(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)),
		Mailer: mailer,
	})

	require.NoError(t, svc.Notify(context.Background(), domain.EventOrderApproved, "ORD-2", nil))
	require.NoError(t, svc.Notify(context.Background(), domain.EventOrderHandoff, "ORD-2", map[string]any{
		"customer_email": "ada@example.com",
	}))
	require.Empty(t, mailer.sent)
}
