// Package stdout implements a Mailer that prints messages to standard
// output instead of calling a remote service. Intended for development
// and testing.
package stdout

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/shineum/ses-mailer/internal/mail"
	"github.com/shineum/ses-mailer/internal/mailer"
)

const separator = "========================================\n"

// Mailer prints messages in a human-readable format and reports a
// synthetic message id for each one.
type Mailer struct {
	// writer is the output destination, defaulting to os.Stdout.
	writer io.Writer
}

// New creates a Mailer that writes to os.Stdout.
func New() *Mailer {
	return &Mailer{writer: os.Stdout}
}

// NewWithWriter creates a Mailer that writes to the given writer.
// This is useful for testing.
func NewWithWriter(w io.Writer) *Mailer {
	return &Mailer{writer: w}
}

// Deliver prints the rendered message between separators, preceded by
// any envelope overrides, and writes a generated message id back to msg.
// Only a render failure can fail the delivery.
func (m *Mailer) Deliver(_ context.Context, msg *mail.Message) (*mailer.Result, error) {
	raw, err := msg.Bytes()
	if err != nil {
		return nil, mailer.WrapSerialization(err)
	}

	var b strings.Builder
	b.WriteString(separator)

	if from := msg.EnvelopeFrom(); from != "" {
		b.WriteString(fmt.Sprintf("Envelope-From: %s\n", from))
	}
	if to := msg.EnvelopeTo(); to != "" {
		b.WriteString(fmt.Sprintf("Envelope-To: %s\n", to))
	}

	b.Write(raw)
	if len(raw) > 0 && raw[len(raw)-1] != '\n' {
		b.WriteString("\n")
	}
	b.WriteString(separator)

	// The printout is best effort; a write failure does not fail the send.
	fmt.Fprint(m.writer, b.String())

	id := uuid.NewString()
	msg.Header().Set(mailer.HeaderMessageID, id)

	return &mailer.Result{MessageID: id}, nil
}

// Name returns the backend identifier.
func (m *Mailer) Name() string {
	return "stdout"
}
