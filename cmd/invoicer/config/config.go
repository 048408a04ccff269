// Package config aggregates the component configurations the CLI wires
// together from flags, environment variables, and the optional config
// file.
package config

import (
	"fmt"

	"pharmacy-invoice-service/internal/notify"
	"pharmacy-invoice-service/internal/queue"
	"pharmacy-invoice-service/internal/repository"
	"pharmacy-invoice-service/internal/storage"
	"pharmacy-invoice-service/pkg/logger"

	"github.com/spf13/viper"
)

// Config is the full service configuration.
type Config struct {
	Log      *logger.Config     `json:"log"`
	Database *repository.Config `json:"database"`
	Storage  *storage.S3Config  `json:"storage"`
	Queue    *queue.Config      `json:"queue"`
	Email    *notify.Config     `json:"email"`

	// LocalRoot switches file retrieval to a directory tree instead of
	// the bucket; used for development and dry runs.
	LocalRoot string `json:"local_root,omitempty"`

	// FormatsDir overrides built-in format field sets with YAML files
	// named after the format keys they replace.
	FormatsDir string `json:"formats_dir,omitempty"`

	// TestMode marks every loaded line as a duplicate and scopes the
	// batch key away from live data.
	TestMode bool `json:"test_mode"`
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		Log:      logger.DefaultConfig(),
		Database: repository.DefaultConfig(),
		Storage:  &storage.S3Config{},
		Queue:    queue.DefaultConfig(),
		Email:    &notify.Config{},
	}
}

// FromViper overlays viper-bound settings onto the defaults.
func FromViper(v *viper.Viper) *Config {
	cfg := Default()

	if level := v.GetString("log-level"); level != "" {
		cfg.Log.Level = logger.Level(level)
	}
	if format := v.GetString("log-format"); format != "" {
		cfg.Log.Format = logger.Format(format)
	}

	if host := v.GetString("db-host"); host != "" {
		cfg.Database.Host = host
	}
	if port := v.GetInt("db-port"); port != 0 {
		cfg.Database.Port = port
	}
	if name := v.GetString("db-name"); name != "" {
		cfg.Database.Database = name
	}
	if user := v.GetString("db-user"); user != "" {
		cfg.Database.User = user
	}
	cfg.Database.Password = v.GetString("db-password")

	cfg.Storage.Bucket = v.GetString("bucket")
	cfg.Storage.Region = v.GetString("region")
	cfg.Storage.Prefix = v.GetString("bucket-prefix")

	cfg.Queue.QueueURL = v.GetString("queue-url")
	cfg.Queue.Region = v.GetString("region")
	if wait := v.GetInt32("queue-wait"); wait != 0 {
		cfg.Queue.WaitSeconds = wait
	}

	cfg.Email.Sender = v.GetString("email-sender")
	cfg.Email.Recipients = v.GetStringSlice("email-recipients")
	cfg.Email.Region = v.GetString("region")

	cfg.LocalRoot = v.GetString("local-root")
	cfg.FormatsDir = v.GetString("formats-dir")
	cfg.TestMode = v.GetBool("test")

	return cfg
}

// Validate checks the pieces a command declares it needs.
type Needs struct {
	Database bool
	Storage  bool
	Queue    bool
	Email    bool
}

// Validate checks the required component configurations.
func (c *Config) Validate(needs Needs) error {
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if needs.Database {
		if err := c.Database.Validate(); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if needs.Storage && c.LocalRoot == "" {
		if err := c.Storage.Validate(); err != nil {
			return fmt.Errorf("storage: %w", err)
		}
	}
	if needs.Queue {
		if err := c.Queue.Validate(); err != nil {
			return fmt.Errorf("queue: %w", err)
		}
	}
	if needs.Email {
		if err := c.Email.Validate(); err != nil {
			return fmt.Errorf("email: %w", err)
		}
	}
	return nil
}
