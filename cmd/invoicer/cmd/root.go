// Package cmd implements the invoicer command line interface.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"pharmacy-invoice-service/cmd/invoicer/config"
	"pharmacy-invoice-service/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "invoicer",
	Short: "Validate and load pharmacy invoice spreadsheets",
	Long: `invoicer ingests pharmacy invoice spreadsheets uploaded by care
facilities, validates every row against the pharmacy's format, and loads
accepted files into the billing database in one idempotent transaction.

Files are addressed by their storage locator:

  {year}/{month}/{facility}/{source}/{filename}

A file either loads completely or not at all; re-running the same file
replaces its earlier load.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging()
	},
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		return NewCLIErrorHandler().HandleError(err)
	}
	return 0
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.invoicer.yaml)")
	flags.Bool("verbose", false, "enable debug logging")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("log-format", "", "log format (text, json)")
	flags.String("region", "", "AWS region for storage, queue, and email")

	flags.String("db-host", "", "database host")
	flags.Int("db-port", 0, "database port")
	flags.String("db-name", "", "database name")
	flags.String("db-user", "", "database user")
	flags.String("db-password", "", "database password")

	flags.String("bucket", "", "S3 bucket holding uploaded invoice files")
	flags.String("bucket-prefix", "", "key prefix inside the bucket")
	flags.String("local-root", "", "read invoice files from this directory instead of the bucket")
	flags.String("formats-dir", "", "directory of YAML field sets overriding built-in formats")

	flags.String("email-sender", "", "notification sender address")
	flags.StringSlice("email-recipients", nil, "notification recipient addresses")

	for _, name := range []string{
		"verbose", "log-level", "log-format", "region",
		"db-host", "db-port", "db-name", "db-user", "db-password",
		"bucket", "bucket-prefix", "local-root", "formats-dir",
		"email-sender", "email-recipients",
	} {
		if err := viper.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", name, err))
		}
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigName(".invoicer")
		}
	}

	viper.SetEnvPrefix("INVOICER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		logger.WithField("config", viper.ConfigFileUsed()).Debug("Loaded config file")
	}
}

func setupLogging() error {
	cfg := config.FromViper(viper.GetViper())
	if viper.GetBool("verbose") {
		cfg.Log.Level = logger.DebugLevel
	}

	log, err := logger.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	logger.SetGlobalLogger(log)
	return nil
}

// loadConfig builds and validates the configuration for a command.
func loadConfig(needs config.Needs) (*config.Config, error) {
	cfg := config.FromViper(viper.GetViper())
	if err := cfg.Validate(needs); err != nil {
		return nil, err
	}
	return cfg, nil
}
