// Package mailer defines the contract between callers and the delivery
// backends, the classification of delivery failures, and the SES control
// headers shared by the backends.
package mailer

import (
	"context"

	"github.com/shineum/ses-mailer/internal/mail"
)

// HeaderMessageID is the header a backend writes the provider-assigned
// message identifier to after a successful delivery. It is a delivery
// receipt on the original message, not part of the transmitted content.
const HeaderMessageID = "X-SES-Message-ID"

// Result is the outcome of a successful delivery.
type Result struct {
	// MessageID is the identifier the provider assigned to the accepted
	// message. The same value is written back to the message as the
	// HeaderMessageID header.
	MessageID string
}

// Mailer is the interface delivery backends implement. A single Deliver
// call is one synchronous request/response cycle: it either returns a
// Result with the provider message id or a classified *Error. Backends
// never retry; retry policy belongs to the caller.
//
// Implementations are safe for concurrent use. The same *mail.Message
// must not be delivered concurrently, because the success write-back
// mutates its header set; Clone the message instead.
type Mailer interface {
	// Deliver submits the finalized message to the backend's service.
	Deliver(ctx context.Context, msg *mail.Message) (*Result, error)

	// Name returns the backend identifier.
	Name() string
}
