// Package email sends the completion notification that closes out a poll
// run. The pipeline only ever needs to know whether delivery succeeded, so
// the Sender contract collapses AWS SES's error surface to a bool.
package email

import "context"

// Sender delivers a single HTML email and reports success. A failed send
// never aborts a poll job — RunPoll ignores the result and moves on.
type Sender interface {
	Send(ctx context.Context, toEmail, subject, htmlBody string) bool
}
