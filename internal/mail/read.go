package mail

import (
	"bufio"
	"fmt"
	"io"

	"github.com/emersion/go-message/textproto"
)

// ReadMessage parses a finalized RFC 5322 message from r. The header set
// is kept as-is, field order and duplicates included, which is what makes
// the later rendering loss-free. No MIME decoding happens here: the body
// is carried as opaque bytes in whatever transfer encoding the sender
// chose.
func ReadMessage(r io.Reader) (*Message, error) {
	br := bufio.NewReader(r)

	header, err := textproto.ReadHeader(br)
	if err != nil {
		return nil, fmt.Errorf("failed to parse message header: %w", err)
	}

	body, err := io.ReadAll(br)
	if err != nil {
		return nil, fmt.Errorf("failed to read message body: %w", err)
	}

	return &Message{header: header, body: body}, nil
}
