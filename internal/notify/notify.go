// Package notify emails the outcome of an invoice run to the operations
// inbox, with the validation log attached so the sender can fix their
// export without access to the service.
package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"strings"

	apperrors "pharmacy-invoice-service/pkg/errors"
	"pharmacy-invoice-service/pkg/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// Config holds the email settings.
type Config struct {
	Sender     string   `json:"sender"`
	Recipients []string `json:"recipients"`
	Region     string   `json:"region"`
}

// Validate checks the email configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Sender) == "" {
		return errors.New("sender address is required")
	}
	if len(c.Recipients) == 0 {
		return errors.New("at least one recipient is required")
	}
	for _, recipient := range c.Recipients {
		if strings.TrimSpace(recipient) == "" {
			return errors.New("recipient address cannot be blank")
		}
	}
	return nil
}

// Outcome describes one finished invoice run.
type Outcome struct {
	Pharmacy  string
	Facility  string
	Locator   string
	Committed bool
	Lines     int
	LogName   string
	LogBody   []byte
}

// Notifier reports run outcomes.
type Notifier interface {
	Notify(ctx context.Context, outcome Outcome) error
}

// sesClient is the slice of the SES API the notifier uses.
type sesClient interface {
	SendRawEmail(ctx context.Context, params *ses.SendRawEmailInput, optFns ...func(*ses.Options)) (*ses.SendRawEmailOutput, error)
}

// SESNotifier sends outcome emails through SES.
type SESNotifier struct {
	client sesClient
	config *Config
	logger logger.Logger
}

// NewSESNotifier builds a notifier using the ambient AWS credential chain.
func NewSESNotifier(ctx context.Context, config *Config) (*SESNotifier, error) {
	if err := config.Validate(); err != nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "email", err)
	}

	var opts []func(*awsconfig.LoadOptions) error
	if config.Region != "" {
		opts = append(opts, awsconfig.WithRegion(config.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "aws credentials", err)
	}

	return &SESNotifier{
		client: ses.NewFromConfig(awsCfg),
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("notify"),
	}, nil
}

// newSESNotifierWithClient wires a custom client; used by tests.
func newSESNotifierWithClient(client sesClient, config *Config) *SESNotifier {
	return &SESNotifier{
		client: client,
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("notify"),
	}
}

// Notify sends the outcome email with the run log attached.
func (n *SESNotifier) Notify(ctx context.Context, outcome Outcome) error {
	raw, err := buildRawMessage(n.config.Sender, n.config.Recipients, outcome)
	if err != nil {
		return apperrors.InternalError("build notification email", err)
	}

	_, err = n.client.SendRawEmail(ctx, &ses.SendRawEmailInput{
		Source:       aws.String(n.config.Sender),
		Destinations: n.config.Recipients,
		RawMessage:   &types.RawMessage{Data: raw},
	})
	if err != nil {
		return apperrors.Wrap(err, apperrors.CategoryStorage, apperrors.CodeFetchFailed, "failed to send notification email")
	}

	n.logger.WithFields(logger.Fields{
		"file":      outcome.Locator,
		"committed": outcome.Committed,
	}).Info("Outcome notification sent")
	return nil
}

// Subject renders the notification subject line.
func Subject(outcome Outcome) string {
	if outcome.Committed {
		return fmt.Sprintf("Invoice Processed (%s)", outcome.Pharmacy)
	}
	return fmt.Sprintf("Invoice Rejected (%s)", outcome.Pharmacy)
}

func htmlBody(outcome Outcome) string {
	status := "was rejected; see the attached log for the findings"
	if outcome.Committed {
		status = fmt.Sprintf("was loaded with %d invoice lines", outcome.Lines)
	}
	return fmt.Sprintf(
		"<html><body><p>The invoice file <b>%s</b> for facility <b>%s</b> %s.</p></body></html>",
		outcome.Locator, outcome.Facility, status)
}

// buildRawMessage assembles the multipart MIME payload SES expects:
// an html body plus the run log as a text attachment.
func buildRawMessage(sender string, recipients []string, outcome Outcome) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", sender)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(recipients, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", Subject(outcome))
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", writer.Boundary())

	bodyHeader := textproto.MIMEHeader{}
	bodyHeader.Set("Content-Type", "text/html; charset=utf-8")
	bodyPart, err := writer.CreatePart(bodyHeader)
	if err != nil {
		return nil, err
	}
	if _, err := bodyPart.Write([]byte(htmlBody(outcome))); err != nil {
		return nil, err
	}

	if len(outcome.LogBody) > 0 {
		name := outcome.LogName
		if name == "" {
			name = "invoice-run.log"
		}
		attachmentHeader := textproto.MIMEHeader{}
		attachmentHeader.Set("Content-Type", "text/plain; charset=utf-8")
		attachmentHeader.Set("Content-Transfer-Encoding", "base64")
		attachmentHeader.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		attachmentPart, err := writer.CreatePart(attachmentHeader)
		if err != nil {
			return nil, err
		}
		encoded := base64.StdEncoding.EncodeToString(outcome.LogBody)
		if _, err := attachmentPart.Write([]byte(encoded)); err != nil {
			return nil, err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
