package mailer

import (
	"github.com/shineum/ses-mailer/internal/mail"
)

// Control headers recognized by SES. The service reads them from the
// transmitted content, so extraction leaves them in place; their values
// additionally steer the request parameters.
const (
	// HeaderConfigurationSet overrides the configuration set for a single
	// message.
	HeaderConfigurationSet = "X-SES-CONFIGURATION-SET"

	// HeaderListManagementOptions carries contact-list options. It has no
	// request field: SES picks it up from the raw content.
	HeaderListManagementOptions = "X-SES-LIST-MANAGEMENT-OPTIONS"
)

// ControlValues are the per-message send options read from the control
// headers. A nil pointer means the header is absent, which is not the
// same as a header present with an empty value.
type ControlValues struct {
	ConfigurationSet      *string
	ListManagementOptions *string
}

// ExtractControls reads the control headers from the message without
// modifying it. Lookup is case-insensitive; when a control header occurs
// more than once, the first one wins.
func ExtractControls(msg *mail.Message) ControlValues {
	return ControlValues{
		ConfigurationSet:      headerValue(msg, HeaderConfigurationSet),
		ListManagementOptions: headerValue(msg, HeaderListManagementOptions),
	}
}

func headerValue(msg *mail.Message, key string) *string {
	h := msg.Header()
	if !h.Has(key) {
		return nil
	}
	v := h.Get(key)
	return &v
}
