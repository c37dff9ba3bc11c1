// Package main is the command-line sender: it reads a finalized RFC 5322
// message, hands it to the configured delivery backend and prints the
// provider-assigned message id.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/shineum/ses-mailer/internal/config"
	"github.com/shineum/ses-mailer/internal/mail"
	"github.com/shineum/ses-mailer/internal/mailer"
	"github.com/shineum/ses-mailer/internal/mailer/ses"
	"github.com/shineum/ses-mailer/internal/mailer/sesv2"
	"github.com/shineum/ses-mailer/internal/mailer/stdout"
)

// defaultRetries is the default retry count for transient failures.
const defaultRetries = 3

// baseRetryDelay is the initial delay for exponential backoff.
const baseRetryDelay = 1 * time.Second

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file (optional)")
	inPath := flag.String("in", "-", "path to the message file, '-' for stdin")
	envelopeFrom := flag.String("envelope-from", "", "transport-level sender override")
	envelopeTo := flag.String("envelope-to", "", "transport-level recipient override")
	mailerName := flag.String("mailer", "", "delivery backend: sesv2, ses or stdout (default from config)")
	retries := flag.Int("retries", defaultRetries, "retries for transport and throttling failures")
	flag.Parse()

	// Load configuration
	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging
	setupLogger(cfg.Logging.Level)

	if *mailerName != "" {
		cfg.Mailer = strings.ToLower(*mailerName)
	}

	msg, err := readMessage(*inPath)
	if err != nil {
		slog.Error("failed to read message", "error", err)
		os.Exit(1)
	}

	if *envelopeFrom != "" {
		msg.SetEnvelopeFrom(*envelopeFrom)
	}
	if *envelopeTo != "" {
		msg.SetEnvelopeTo(*envelopeTo)
	}
	if !msg.Header().Has("Message-ID") {
		msg.SetMessageID(senderDomain(msg))
	}

	// Setup graceful cancellation: a signal aborts the in-flight request
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		sig := <-sigCh
		slog.Info("received signal, aborting", "signal", sig)
		cancel()
	}()

	m := selectMailer(ctx, cfg)

	slog.Info("sending message",
		"backend", m.Name(),
		"subject", msg.Subject(),
		"retries", *retries,
	)

	result, err := deliverWithRetry(ctx, m, msg, *retries)
	if err != nil {
		slog.Error("delivery failed", "error", err)
		os.Exit(1)
	}

	slog.Info("message accepted", "message_id", result.MessageID)
	fmt.Println(result.MessageID)
}

// loadConfig loads configuration from the specified path (YAML + env override)
// or from environment variables only if no path is given.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// setupLogger configures the global slog logger with JSON output on stderr
// and the specified log level. Stdout stays reserved for the message id.
func setupLogger(level string) {
	var logLevel slog.Level

	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// readMessage loads the finalized message from the given path, or from
// stdin when the path is "-" or empty.
func readMessage(path string) (*mail.Message, error) {
	if path == "" || path == "-" {
		return mail.ReadMessage(os.Stdin)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open message file: %w", err)
	}
	defer f.Close()

	return mail.ReadMessage(f)
}

// senderDomain picks the domain for a generated Message-ID from the
// envelope sender, falling back to the From header.
func senderDomain(msg *mail.Message) string {
	addr := msg.EnvelopeFrom()
	if addr == "" {
		addr = msg.From()
	}
	if i := strings.LastIndex(addr, "@"); i >= 0 {
		return strings.TrimSuffix(addr[i+1:], ">")
	}
	return ""
}

// selectMailer builds the delivery backend named by the configuration.
// An empty name falls back to auto-detection: sesv2 when a region is
// configured, stdout otherwise.
func selectMailer(ctx context.Context, cfg *config.Config) mailer.Mailer {
	switch cfg.Mailer {
	case "sesv2":
		slog.Info("using SES v2 mailer",
			"region", cfg.AWS.Region,
			"static_credentials", cfg.StaticCredentials(),
		)
		m, err := sesv2.New(ctx, sesv2.Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			ConfigurationSetName: cfg.SES.ConfigurationSet,
			MessageTags:          cfg.SES.MessageTags,
		})
		if err != nil {
			slog.Error("failed to create sesv2 mailer", "error", err)
			os.Exit(1)
		}
		return m

	case "ses":
		slog.Info("using classic SES mailer",
			"region", cfg.AWS.Region,
			"static_credentials", cfg.StaticCredentials(),
		)
		m, err := ses.New(ctx, ses.Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			ConfigurationSetName: cfg.SES.ConfigurationSet,
			MessageTags:          cfg.SES.MessageTags,
		})
		if err != nil {
			slog.Error("failed to create ses mailer", "error", err)
			os.Exit(1)
		}
		return m

	case "stdout":
		slog.Info("using stdout mailer")
		return stdout.New()

	case "":
		// Auto-detection fallback
		if cfg.AWS.Region != "" {
			slog.Info("using SES v2 mailer (auto-detected)",
				"region", cfg.AWS.Region,
			)
			m, err := sesv2.New(ctx, sesv2.Config{
				Region:               cfg.AWS.Region,
				AccessKeyID:          cfg.AWS.AccessKeyID,
				SecretAccessKey:      cfg.AWS.SecretAccessKey,
				ConfigurationSetName: cfg.SES.ConfigurationSet,
				MessageTags:          cfg.SES.MessageTags,
			})
			if err != nil {
				slog.Error("failed to create sesv2 mailer", "error", err)
				os.Exit(1)
			}
			return m
		}
		slog.Info("no mailer configured, using stdout mailer")
		return stdout.New()

	default:
		slog.Error("unknown mailer", "mailer", cfg.Mailer)
		os.Exit(1)
		return nil
	}
}

// deliverWithRetry hands msg to m, retrying transient failures with
// exponential backoff. Only transport failures and service throttling are
// retried; rejections and render failures surface immediately. A negative
// retry count behaves as zero: one attempt, no retries.
func deliverWithRetry(ctx context.Context, m mailer.Mailer, msg *mail.Message, retries int) (*mailer.Result, error) {
	if retries < 0 {
		retries = 0
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			slog.Debug("retrying delivery",
				"attempt", attempt,
				"max_retries", retries,
			)
			delay := backoffDelay(attempt)
			if err := sleepWithContext(ctx, delay); err != nil {
				return nil, fmt.Errorf("context cancelled during retry wait: %w", err)
			}
		}

		result, err := m.Deliver(ctx, msg)
		if err == nil {
			return result, nil
		}
		if !retryable(err) {
			return nil, err
		}

		lastErr = err
		slog.Warn("delivery attempt failed",
			"attempt", attempt,
			"error", err,
		)
	}

	return nil, fmt.Errorf("delivery failed after %d retries: %w", retries, lastErr)
}

// retryable reports whether a delivery failure is worth another attempt:
// transport failures and service throttling are, rejections are not.
func retryable(err error) bool {
	if mailer.IsThrottle(err) {
		return true
	}
	kind, ok := mailer.KindOf(err)
	return ok && kind == mailer.KindTransport
}

// backoffDelay returns the exponential backoff delay for the given attempt number.
func backoffDelay(attempt int) time.Duration {
	delay := baseRetryDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
	}
	return delay
}

// sleepWithContext waits for the specified duration or until the context is cancelled.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
