package mailer

import "context"

// Mailer delivers a single HTML email. Implementations must be safe for
// concurrent use; the reminder job fans sends out across goroutines.
type Mailer interface {
	Deliver(ctx context.Context, fromName, to, subject, html string) error
}
