package cmd

import (
	"fmt"

	"pharmacy-invoice-service/cmd/invoicer/config"
	"pharmacy-invoice-service/internal/engine"
	"pharmacy-invoice-service/internal/notify"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var processCmd = &cobra.Command{
	Use:   "process <locator>",
	Short: "Validate and load an invoice file",
	Long: `Process validates the file and, when every row passes, loads it into
the billing database in one transaction. Re-running the same file
replaces its earlier load.

With --notify the outcome is emailed with the validation log attached.`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func init() {
	processCmd.Flags().Bool("test", false, "load as a test batch, kept apart from live data")
	processCmd.Flags().Bool("notify", false, "email the outcome with the log attached")
	if err := viper.BindPFlag("test", processCmd.Flags().Lookup("test")); err != nil {
		panic(err)
	}
	if err := viper.BindPFlag("notify", processCmd.Flags().Lookup("notify")); err != nil {
		panic(err)
	}
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	wantNotify := viper.GetBool("notify")

	needs := config.Needs{Database: true, Storage: true, Email: wantNotify}
	cfg, err := loadConfig(needs)
	if err != nil {
		return err
	}

	rt, err := buildRuntime(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer rt.close()

	var notifier notify.Notifier
	if wantNotify {
		notifier, err = notify.NewSESNotifier(cmd.Context(), cfg.Email)
		if err != nil {
			return err
		}
	}

	batch, vlog, runErr := rt.engine.Run(cmd.Context(), args[0], cfg.TestMode)

	fmt.Fprint(cmd.OutOrStdout(), vlog.Render())

	if notifier != nil && batch != nil {
		outcome := outcomeFor(args[0], batch, vlog)
		if err := notifier.Notify(cmd.Context(), outcome); err != nil && runErr == nil {
			// The pipeline failure, when there is one, stays primary.
			return err
		}
	}

	if runErr != nil {
		return runErr
	}

	if batch == nil || batch.State != engine.StateCommitted {
		fmt.Fprintln(cmd.OutOrStdout(), "\nresult: REJECTED")
		return nil
	}

	fmt.Fprintln(cmd.OutOrStdout(), "\nresult: COMMITTED")
	return nil
}

func outcomeFor(locator string, batch *engine.Batch, vlog *engine.ValidationLog) notify.Outcome {
	outcome := notify.Outcome{
		Locator: locator,
		LogName: "invoice-run.log",
		LogBody: []byte(vlog.Render()),
	}
	if batch != nil {
		if batch.Pharmacy != nil {
			outcome.Pharmacy = batch.Pharmacy.Name
		}
		if batch.Facility != nil {
			outcome.Facility = batch.Facility.Name
		}
		outcome.Committed = batch.State == engine.StateCommitted
		outcome.Lines = len(batch.Rows)
	}
	return outcome
}
