// Package sesv2 implements a Mailer that submits finalized messages to
// the Amazon SES v2 SendEmail API as raw content.
package sesv2

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/shineum/ses-mailer/internal/mail"
	"github.com/shineum/ses-mailer/internal/mailer"
)

// appID identifies this module in the SDK user agent.
const appID = "ses-mailer"

// Config holds the settings for creating a Mailer. Region and the
// optional static credentials are handed to the AWS client unchanged;
// whether they are sufficient is the client's concern, not validated
// here.
type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string

	// ConfigurationSetName is the default configuration set, applied when
	// a message carries no per-message override header.
	ConfigurationSetName string

	// MessageTags are attached to every send.
	MessageTags map[string]string
}

// SendEmailAPI is the interface for the SES v2 SendEmail operation.
// Used for testing with mock implementations.
type SendEmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// Mailer sends finalized messages via the SES v2 API. It holds no
// per-delivery state and is safe for concurrent use.
type Mailer struct {
	cfg    Config
	client SendEmailAPI
}

// New creates a Mailer with the given configuration.
func New(ctx context.Context, cfg Config) (*Mailer, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithAppID(appID),
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &Mailer{
		cfg:    cfg,
		client: sesv2.NewFromConfig(awsCfg),
	}, nil
}

// NewWithClient creates a Mailer with a custom client, used for testing.
func NewWithClient(cfg Config, client SendEmailAPI) *Mailer {
	return &Mailer{
		cfg:    cfg,
		client: client,
	}
}

// Settings returns the configuration the mailer was constructed with,
// unchanged.
func (m *Mailer) Settings() Config {
	return m.cfg
}

// Name returns the backend identifier.
func (m *Mailer) Name() string {
	return "sesv2"
}

// Deliver renders msg, assembles the SendEmail request and submits it in
// a single attempt. On success the provider message id is written back to
// msg as the receipt header and returned. Failures come back classified;
// nothing is retried or swallowed.
func (m *Mailer) Deliver(ctx context.Context, msg *mail.Message) (*mailer.Result, error) {
	raw, err := msg.Bytes()
	if err != nil {
		return nil, mailer.WrapSerialization(err)
	}

	controls := mailer.ExtractControls(msg)
	input := buildInput(m.cfg, msg, raw, controls)

	out, err := m.client.SendEmail(ctx, input)
	if err != nil {
		return nil, mailer.Classify(err)
	}

	id := aws.ToString(out.MessageId)
	msg.Header().Set(mailer.HeaderMessageID, id)

	slog.Debug("message accepted",
		"backend", m.Name(),
		"message_id", id,
	)

	return &mailer.Result{MessageID: id}, nil
}

// buildInput assembles the SendEmail parameters: the rendered bytes
// verbatim (control headers included), the resolved envelope, the
// configuration set by precedence, and the configured tags.
func buildInput(cfg Config, msg *mail.Message, raw []byte, controls mailer.ControlValues) *sesv2.SendEmailInput {
	input := &sesv2.SendEmailInput{
		Content: &types.EmailContent{
			Raw: &types.RawMessage{
				Data: raw,
			},
		},
		Destination:          resolveDestination(msg),
		ConfigurationSetName: configurationSetName(controls, cfg.ConfigurationSetName),
		EmailTags:            messageTags(cfg.MessageTags),
	}

	// The explicit sender field is reserved for the transport-level
	// override; without one the service derives the sender from the raw
	// content's From header.
	if from := msg.EnvelopeFrom(); from != "" {
		input.FromEmailAddress = aws.String(from)
	}

	return input
}

// resolveDestination computes the three destination lists. An envelope-to
// override replaces the To list with exactly that one address; Cc and Bcc
// always follow the headers. A list is set only when non-empty, and when
// all three are empty no Destination is sent at all: the service then
// takes the recipients from the raw content.
func resolveDestination(msg *mail.Message) *types.Destination {
	dest := &types.Destination{}
	populated := false

	if envTo := msg.EnvelopeTo(); envTo != "" {
		dest.ToAddresses = []string{envTo}
		populated = true
	} else if to := msg.To(); len(to) > 0 {
		dest.ToAddresses = to
		populated = true
	}

	if cc := msg.Cc(); len(cc) > 0 {
		dest.CcAddresses = cc
		populated = true
	}
	if bcc := msg.Bcc(); len(bcc) > 0 {
		dest.BccAddresses = bcc
		populated = true
	}

	if !populated {
		return nil
	}
	return dest
}

// configurationSetName picks the per-message header value over the
// adapter default. A nil return omits the field from the request.
func configurationSetName(controls mailer.ControlValues, fallback string) *string {
	if controls.ConfigurationSet != nil {
		return controls.ConfigurationSet
	}
	if fallback != "" {
		return aws.String(fallback)
	}
	return nil
}

// messageTags converts the configured tag map into message tags in a
// stable name order.
func messageTags(tags map[string]string) []types.MessageTag {
	if len(tags) == 0 {
		return nil
	}

	out := make([]types.MessageTag, 0, len(tags))
	for name, value := range tags {
		out = append(out, types.MessageTag{
			Name:  aws.String(name),
			Value: aws.String(value),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return aws.ToString(out[i].Name) < aws.ToString(out[j].Name)
	})
	return out
}
