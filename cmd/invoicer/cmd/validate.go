package cmd

import (
	"fmt"

	"pharmacy-invoice-service/cmd/invoicer/config"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var validateCmd = &cobra.Command{
	Use:   "validate <locator>",
	Short: "Validate an invoice file without loading it",
	Long: `Validate resolves the file's pharmacy format, checks every row, and
prints the validation log. Nothing is written to the database.

The locator names the file inside the upload bucket, for example:

  invoicer validate 2021/march/oakview/email/invoice.xlsx`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().Bool("test", false, "validate as a test batch")
	if err := viper.BindPFlag("test", validateCmd.Flags().Lookup("test")); err != nil {
		panic(err)
	}
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(config.Needs{Database: true, Storage: true})
	if err != nil {
		return err
	}

	rt, err := buildRuntime(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer rt.close()

	valid, vlog, batch, err := rt.engine.Validate(cmd.Context(), args[0], cfg.TestMode)
	if err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), vlog.Render())

	if !valid {
		fmt.Fprintln(cmd.OutOrStdout(), "\nresult: INVALID")
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nresult: VALID (%d rows, format %s)\n",
		len(batch.Rows), batch.Descriptor.Key)
	return nil
}
