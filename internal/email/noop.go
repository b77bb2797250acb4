package email

import "context"

// NoopSender discards every message; used when SES credentials are absent
// and for tests that don't care about notification delivery.
type NoopSender struct{}

func (NoopSender) Send(ctx context.Context, toEmail, subject, htmlBody string) bool { return true }
