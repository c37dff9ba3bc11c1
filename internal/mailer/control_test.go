package mailer

import (
	"strings"
	"testing"

	"github.com/shineum/ses-mailer/internal/mail"
)

func testMessage(t *testing.T, raw string) *mail.Message {
	t.Helper()
	msg, err := mail.ReadMessage(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	return msg
}

func TestExtractControls(t *testing.T) {
	t.Parallel()

	raw := strings.Join([]string{
		"X-SES-CONFIGURATION-SET: my-config-set",
		"X-SES-LIST-MANAGEMENT-OPTIONS: contactListName=list; topicName=news",
		"From: sender@example.com",
		"To: recipient@example.com",
		"",
		"Body",
	}, "\r\n")

	controls := ExtractControls(testMessage(t, raw))

	if controls.ConfigurationSet == nil {
		t.Fatal("ConfigurationSet: got nil, want value")
	}
	if *controls.ConfigurationSet != "my-config-set" {
		t.Errorf("ConfigurationSet: got %q, want %q", *controls.ConfigurationSet, "my-config-set")
	}
	if controls.ListManagementOptions == nil {
		t.Fatal("ListManagementOptions: got nil, want value")
	}
	if *controls.ListManagementOptions != "contactListName=list; topicName=news" {
		t.Errorf("ListManagementOptions: got %q", *controls.ListManagementOptions)
	}
}

func TestExtractControls_Absent(t *testing.T) {
	t.Parallel()

	raw := strings.Join([]string{
		"From: sender@example.com",
		"To: recipient@example.com",
		"",
		"Body",
	}, "\r\n")

	controls := ExtractControls(testMessage(t, raw))

	if controls.ConfigurationSet != nil {
		t.Errorf("ConfigurationSet: got %q, want nil", *controls.ConfigurationSet)
	}
	if controls.ListManagementOptions != nil {
		t.Errorf("ListManagementOptions: got %q, want nil", *controls.ListManagementOptions)
	}
}

func TestExtractControls_EmptyValueIsPresent(t *testing.T) {
	t.Parallel()

	raw := strings.Join([]string{
		"X-SES-CONFIGURATION-SET:",
		"From: sender@example.com",
		"",
		"Body",
	}, "\r\n")

	controls := ExtractControls(testMessage(t, raw))

	if controls.ConfigurationSet == nil {
		t.Fatal("ConfigurationSet: got nil, want empty value (present)")
	}
	if *controls.ConfigurationSet != "" {
		t.Errorf("ConfigurationSet: got %q, want empty", *controls.ConfigurationSet)
	}
}

func TestExtractControls_CaseInsensitive(t *testing.T) {
	t.Parallel()

	raw := strings.Join([]string{
		"x-ses-configuration-set: lower-case-set",
		"From: sender@example.com",
		"",
		"Body",
	}, "\r\n")

	controls := ExtractControls(testMessage(t, raw))

	if controls.ConfigurationSet == nil || *controls.ConfigurationSet != "lower-case-set" {
		t.Errorf("ConfigurationSet: got %v, want lower-case-set", controls.ConfigurationSet)
	}
}

func TestExtractControls_FirstOccurrenceWins(t *testing.T) {
	t.Parallel()

	raw := strings.Join([]string{
		"X-SES-CONFIGURATION-SET: first",
		"X-SES-CONFIGURATION-SET: second",
		"From: sender@example.com",
		"",
		"Body",
	}, "\r\n")

	controls := ExtractControls(testMessage(t, raw))

	if controls.ConfigurationSet == nil || *controls.ConfigurationSet != "first" {
		t.Errorf("ConfigurationSet: got %v, want first", controls.ConfigurationSet)
	}
}

func TestExtractControls_DoesNotModifyMessage(t *testing.T) {
	t.Parallel()

	raw := strings.Join([]string{
		"X-SES-CONFIGURATION-SET: keep-me",
		"X-SES-LIST-MANAGEMENT-OPTIONS: contactListName=list",
		"From: sender@example.com",
		"",
		"Body",
	}, "\r\n")

	msg := testMessage(t, raw)
	before, err := msg.Bytes()
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}

	ExtractControls(msg)

	after, err := msg.Bytes()
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}
	if string(before) != string(after) {
		t.Error("extraction must not change the rendered message")
	}
	if !msg.Header().Has(HeaderConfigurationSet) {
		t.Error("control header was stripped")
	}
}
