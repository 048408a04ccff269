package config

import (
	"strings"
	"testing"

	"github.com/spf13/viper"
)

func newViper(settings map[string]interface{}) *viper.Viper {
	v := viper.New()
	for key, value := range settings {
		v.Set(key, value)
	}
	return v
}

func TestFromViperOverlaysDefaults(t *testing.T) {
	v := newViper(map[string]interface{}{
		"log-level":        "debug",
		"db-host":          "db.internal",
		"db-name":          "billing",
		"db-user":          "invoicer",
		"db-password":      "secret",
		"bucket":           "invoice-uploads",
		"region":           "us-east-1",
		"queue-url":        "https://sqs.us-east-1.amazonaws.com/1/uploads",
		"email-sender":     "billing@example.com",
		"email-recipients": []string{"ops@example.com"},
		"test":             true,
	})

	cfg := FromViper(v)

	if string(cfg.Log.Level) != "debug" {
		t.Errorf("Log.Level = %s", cfg.Log.Level)
	}
	if cfg.Database.Host != "db.internal" || cfg.Database.Database != "billing" {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if cfg.Database.Port == 0 {
		t.Error("Database.Port default was lost")
	}
	if cfg.Storage.Bucket != "invoice-uploads" || cfg.Storage.Region != "us-east-1" {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
	if cfg.Queue.Region != "us-east-1" {
		t.Errorf("Queue.Region = %q, want shared region", cfg.Queue.Region)
	}
	if cfg.Queue.WaitSeconds == 0 {
		t.Error("Queue.WaitSeconds default was lost")
	}
	if cfg.Email.Sender != "billing@example.com" || len(cfg.Email.Recipients) != 1 {
		t.Errorf("Email = %+v", cfg.Email)
	}
	if !cfg.TestMode {
		t.Error("TestMode = false")
	}
}

func TestValidateChecksOnlyNeededPieces(t *testing.T) {
	tests := []struct {
		name     string
		settings map[string]interface{}
		needs    Needs
		wantErr  string
	}{
		{
			name:     "nothing needed",
			settings: nil,
			needs:    Needs{},
		},
		{
			name:     "database defaults are usable",
			settings: nil,
			needs:    Needs{Database: true},
		},
		{
			name:     "bad database port",
			settings: map[string]interface{}{"db-port": 70000},
			needs:    Needs{Database: true},
			wantErr:  "database",
		},
		{
			name:     "storage needed but no bucket",
			settings: nil,
			needs:    Needs{Storage: true},
			wantErr:  "storage",
		},
		{
			name:     "local root stands in for the bucket",
			settings: map[string]interface{}{"local-root": "/var/invoices"},
			needs:    Needs{Storage: true},
		},
		{
			name:     "queue needed but no url",
			settings: nil,
			needs:    Needs{Queue: true},
			wantErr:  "queue",
		},
		{
			name:     "email needed but no sender",
			settings: nil,
			needs:    Needs{Email: true},
			wantErr:  "email",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := FromViper(newViper(tt.settings))
			err := cfg.Validate(tt.needs)

			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}
