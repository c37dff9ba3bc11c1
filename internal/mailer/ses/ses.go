// Package ses implements a Mailer backed by the classic Amazon SES
// SendRawEmail API. Accounts restricted to the v1 operations can use it
// as a drop-in alternative to the v2 backend.
package ses

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awsses "github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"github.com/shineum/ses-mailer/internal/mail"
	"github.com/shineum/ses-mailer/internal/mailer"
)

const appID = "ses-mailer"

// Config holds the settings for creating a Mailer.
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

// SendRawEmailAPI is the interface for the SES SendRawEmail operation.
// Used for testing with mock implementations.
type SendRawEmailAPI interface {
	SendRawEmail(ctx context.Context, params *awsses.SendRawEmailInput, optFns ...func(*awsses.Options)) (*awsses.SendRawEmailOutput, error)
}

// Mailer sends finalized messages via the classic SES API. It holds no
// per-delivery state and is safe for concurrent use.
type Mailer struct {
	cfg    Config
	client SendRawEmailAPI
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
		client: awsses.NewFromConfig(awsCfg),
	}, nil
}

// NewWithClient creates a Mailer with a custom client, used for testing.
func NewWithClient(cfg Config, client SendRawEmailAPI) *Mailer {
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
	return "ses"
}

// Deliver renders msg, assembles the SendRawEmail request and submits it
// in a single attempt. On success the provider message id is written back
// to msg as the receipt header and returned.
func (m *Mailer) Deliver(ctx context.Context, msg *mail.Message) (*mailer.Result, error) {
	raw, err := msg.Bytes()
	if err != nil {
		return nil, mailer.WrapSerialization(err)
	}

	controls := mailer.ExtractControls(msg)
	input := buildInput(m.cfg, msg, raw, controls)

	out, err := m.client.SendRawEmail(ctx, input)
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

func buildInput(cfg Config, msg *mail.Message, raw []byte, controls mailer.ControlValues) *awsses.SendRawEmailInput {
	input := &awsses.SendRawEmailInput{
		RawMessage: &types.RawMessage{
			Data: raw,
		},
		Destinations:         resolveDestinations(msg),
		ConfigurationSetName: configurationSetName(controls, cfg.ConfigurationSetName),
		Tags:                 messageTags(cfg.MessageTags),
	}

	if from := msg.EnvelopeFrom(); from != "" {
		input.Source = aws.String(from)
	}

	return input
}

// resolveDestinations computes the flat recipient list the classic API
// expects. An envelope-to override is the complete recipient set on its
// own; otherwise To, Cc and Bcc headers are concatenated. A nil return
// lets the service extract the recipients from the raw content.
func resolveDestinations(msg *mail.Message) []string {
	if envTo := msg.EnvelopeTo(); envTo != "" {
		return []string{envTo}
	}

	var dests []string
	dests = append(dests, msg.To()...)
	dests = append(dests, msg.Cc()...)
	dests = append(dests, msg.Bcc()...)
	return dests
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
