// Package mail defines the message model handed to delivery backends.
//
// A Message owns a finalized RFC 5322 header set, the body bytes, and the
// transport-layer envelope overrides. The header set is ordered,
// case-insensitive and keeps duplicate fields, so a message read with
// ReadMessage renders back byte for byte.
package mail

import (
	"bytes"
	"fmt"
	"io"
	"net/mail"
	"strings"
	"time"

	"github.com/emersion/go-message/textproto"
	"github.com/google/uuid"
)

// Message is an outbound email. The zero value is an empty message ready
// for the Set* builders. Messages are not safe for concurrent mutation;
// use Clone when the same message is handed to several deliveries.
type Message struct {
	header textproto.Header
	body   []byte

	// Envelope overrides. Empty means "not declared": the delivery
	// backend then derives the transmission addresses from the headers.
	envelopeFrom string
	envelopeTo   string
}

// New returns an empty message.
func New() *Message {
	return &Message{}
}

// Header exposes the header set. Callers may mutate it; delivery backends
// only read it, except for the delivery-receipt write-back.
func (m *Message) Header() *textproto.Header {
	return &m.header
}

// Body returns the body bytes as assembled by the caller.
func (m *Message) Body() []byte {
	return m.body
}

// SetBody replaces the body bytes.
func (m *Message) SetBody(body []byte) {
	m.body = body
}

// EnvelopeFrom returns the transport-level sender override, or "" when the
// message declares none.
func (m *Message) EnvelopeFrom() string {
	return m.envelopeFrom
}

// SetEnvelopeFrom declares a transport-level sender distinct from the
// visible From header (bounce address handling).
func (m *Message) SetEnvelopeFrom(addr string) {
	m.envelopeFrom = addr
}

// EnvelopeTo returns the transport-level recipient override, or "" when
// the message declares none.
func (m *Message) EnvelopeTo() string {
	return m.envelopeTo
}

// SetEnvelopeTo declares a transport-level recipient that replaces the
// header-derived To list during transmission. Cc and Bcc recipients are
// unaffected.
func (m *Message) SetEnvelopeTo(addr string) {
	m.envelopeTo = addr
}

// From returns the raw From header value, which may include a display
// name. Empty when the header is absent.
func (m *Message) From() string {
	return m.header.Get("From")
}

// Subject returns the Subject header value.
func (m *Message) Subject() string {
	return m.header.Get("Subject")
}

// To returns the addresses of the To header. Only the first occurrence of
// the header is consulted.
func (m *Message) To() []string {
	return parseAddressList(m.header.Get("To"))
}

// Cc returns the addresses of the Cc header.
func (m *Message) Cc() []string {
	return parseAddressList(m.header.Get("Cc"))
}

// Bcc returns the addresses of the Bcc header.
func (m *Message) Bcc() []string {
	return parseAddressList(m.header.Get("Bcc"))
}

// SetFrom sets the visible From header. This does not affect the envelope
// sender.
func (m *Message) SetFrom(addr string) {
	m.header.Set("From", addr)
}

// SetTo sets the To header from the given addresses.
func (m *Message) SetTo(addrs ...string) {
	m.header.Set("To", strings.Join(addrs, ", "))
}

// SetCc sets the Cc header from the given addresses.
func (m *Message) SetCc(addrs ...string) {
	m.header.Set("Cc", strings.Join(addrs, ", "))
}

// SetBcc sets the Bcc header from the given addresses.
func (m *Message) SetBcc(addrs ...string) {
	m.header.Set("Bcc", strings.Join(addrs, ", "))
}

// SetSubject sets the Subject header.
func (m *Message) SetSubject(subject string) {
	m.header.Set("Subject", subject)
}

// SetDate sets the Date header in RFC 5322 format.
func (m *Message) SetDate(t time.Time) {
	m.header.Set("Date", t.Format(time.RFC1123Z))
}

// SetMessageID stamps a fresh "<uuid@domain>" Message-ID header, replacing
// any existing one. An empty domain falls back to "localhost".
func (m *Message) SetMessageID(domain string) {
	if domain == "" {
		domain = "localhost"
	}
	m.header.Set("Message-ID", fmt.Sprintf("<%s@%s>", uuid.NewString(), domain))
}

// MessageID returns the Message-ID header value, if any.
func (m *Message) MessageID() string {
	return m.header.Get("Message-ID")
}

// Clone returns an independent copy of the message: mutating the clone's
// headers, body or envelope leaves the original untouched.
func (m *Message) Clone() *Message {
	clone := &Message{
		header:       m.header.Copy(),
		envelopeFrom: m.envelopeFrom,
		envelopeTo:   m.envelopeTo,
	}
	if m.body != nil {
		clone.body = make([]byte, len(m.body))
		copy(clone.body, m.body)
	}
	return clone
}

// WriteTo renders the full message (headers, blank separator, body) to w.
// Headers read by ReadMessage are written back unmodified, so a parsed
// message round-trips byte for byte. Implements io.WriterTo.
func (m *Message) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	if err := textproto.WriteHeader(cw, m.header); err != nil {
		return cw.n, fmt.Errorf("failed to write header: %w", err)
	}
	if len(m.body) > 0 {
		if _, err := cw.Write(m.body); err != nil {
			return cw.n, fmt.Errorf("failed to write body: %w", err)
		}
	}
	return cw.n, nil
}

// Bytes renders the full message into a fresh buffer.
func (m *Message) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// countingWriter tracks the number of bytes written for WriteTo's return.
type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

// parseAddressList splits a comma-separated address list into individual
// addresses. RFC 5322 parsing is attempted first; on failure the list is
// split on commas so that loosely formatted input still yields addresses.
func parseAddressList(raw string) []string {
	if raw == "" {
		return nil
	}

	addresses, err := mail.ParseAddressList(raw)
	if err != nil {
		parts := strings.Split(raw, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}

	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		result = append(result, addr.Address)
	}
	return result
}
