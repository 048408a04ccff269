package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"pharmacy-invoice-service/cmd/invoicer/config"
	"pharmacy-invoice-service/internal/notify"
	"pharmacy-invoice-service/internal/queue"
	"pharmacy-invoice-service/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Process invoice files from the upload queue",
	Long: `Worker long-polls the upload notification queue and runs each
announced file through validation and loading. Files that fail to
process stay on the queue for redelivery.

The worker stops cleanly on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runWorker,
}

func init() {
	workerCmd.Flags().String("queue-url", "", "SQS queue announcing uploaded files")
	workerCmd.Flags().Int32("queue-wait", 0, "long-poll wait in seconds (0-20)")
	workerCmd.Flags().Bool("test", false, "load every file as a test batch")
	workerCmd.Flags().Bool("notify", false, "email each outcome with the log attached")
	for _, name := range []string{"queue-url", "queue-wait", "test", "notify"} {
		if err := viper.BindPFlag(name, workerCmd.Flags().Lookup(name)); err != nil {
			panic(err)
		}
	}
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	wantNotify := viper.GetBool("notify")

	needs := config.Needs{Database: true, Storage: true, Queue: true, Email: wantNotify}
	cfg, err := loadConfig(needs)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := buildRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.close()

	var notifier notify.Notifier
	if wantNotify {
		notifier, err = notify.NewSESNotifier(ctx, cfg.Email)
		if err != nil {
			return err
		}
	}

	poller, err := queue.NewPoller(ctx, cfg.Queue)
	if err != nil {
		return err
	}

	return poller.Poll(ctx, func(ctx context.Context, key string) error {
		batch, vlog, runErr := rt.engine.Run(ctx, key, cfg.TestMode)

		if notifier != nil && batch != nil {
			if err := notifier.Notify(ctx, outcomeFor(key, batch, vlog)); err != nil {
				logger.WithError(err).WithField("file", key).Error("Failed to send outcome notification")
			}
		}

		return runErr
	})
}
