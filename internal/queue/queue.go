// Package queue drives the service from an SQS queue. Each message body
// is the locator key of an uploaded invoice file; the poller hands it to
// a handler and deletes the message once the handler returns.
package queue

import (
	"context"
	"errors"
	"strings"

	apperrors "pharmacy-invoice-service/pkg/errors"
	"pharmacy-invoice-service/pkg/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// Config holds the queue settings.
type Config struct {
	QueueURL    string `json:"queue_url"`
	Region      string `json:"region"`
	WaitSeconds int32  `json:"wait_seconds"`
}

// DefaultConfig returns long-polling settings matching the upload
// pipeline's queue.
func DefaultConfig() *Config {
	return &Config{
		WaitSeconds: 5,
	}
}

// Validate checks the queue configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.QueueURL) == "" {
		return errors.New("queue url is required")
	}
	if c.WaitSeconds < 0 || c.WaitSeconds > 20 {
		return errors.New("wait seconds must be between 0 and 20")
	}
	return nil
}

// Handler processes one locator key. A non-nil error leaves the message
// on the queue for redelivery.
type Handler func(ctx context.Context, key string) error

// sqsClient is the slice of the SQS API the poller uses.
type sqsClient interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Poller long-polls the queue one message at a time. Files are loaded
// whole and replaced idempotently, so there is no value in concurrency
// here and ordering per queue group is preserved.
type Poller struct {
	client sqsClient
	config *Config
	logger logger.Logger
}

// NewPoller builds a poller using the ambient AWS credential chain.
func NewPoller(ctx context.Context, config *Config) (*Poller, error) {
	if err := config.Validate(); err != nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "queue", err)
	}

	var opts []func(*awsconfig.LoadOptions) error
	if config.Region != "" {
		opts = append(opts, awsconfig.WithRegion(config.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "aws credentials", err)
	}

	return &Poller{
		client: sqs.NewFromConfig(awsCfg),
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("queue"),
	}, nil
}

// newPollerWithClient wires a custom client; used by tests.
func newPollerWithClient(client sqsClient, config *Config) *Poller {
	return &Poller{
		client: client,
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("queue"),
	}
}

// Poll receives and handles messages until the context is cancelled.
// Handler failures are logged and the message is left for redelivery;
// receive failures are returned.
func (p *Poller) Poll(ctx context.Context, handler Handler) error {
	p.logger.WithField("queue", p.config.QueueURL).Info("Polling for invoice files")

	for {
		if err := ctx.Err(); err != nil {
			p.logger.Info("Poller stopping")
			return nil
		}

		out, err := p.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(p.config.QueueURL),
			MaxNumberOfMessages: 1,
			WaitTimeSeconds:     p.config.WaitSeconds,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return apperrors.Wrap(err, apperrors.CategoryStorage, apperrors.CodeFetchFailed, "failed to receive queue message")
		}

		for _, message := range out.Messages {
			key := DecodeBody(aws.ToString(message.Body))
			log := p.logger.WithField("file", key)

			if err := handler(ctx, key); err != nil {
				log.WithError(err).Error("Failed to process invoice file; message left for redelivery")
				continue
			}

			if _, err := p.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
				QueueUrl:      aws.String(p.config.QueueURL),
				ReceiptHandle: message.ReceiptHandle,
			}); err != nil {
				log.WithError(err).Error("Failed to delete queue message")
				continue
			}
			log.Info("Invoice file processed")
		}
	}
}

// DecodeBody undoes the upload notification's form encoding, where
// spaces in object keys arrive as plus signs.
func DecodeBody(body string) string {
	return strings.ReplaceAll(strings.TrimSpace(body), "+", " ")
}
