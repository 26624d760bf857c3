package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"jmxgen/internal/feeder"
)

type feedOptions struct {
	Driver     string
	DSN        string
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	Table      string
	Columns    []string
	Limit      int
	OutputPath string
}

func newFeedCmd(app *appState) *cobra.Command {
	opts := feedOptions{OutputPath: "feed.csv"}

	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Export database rows to a CSV feed file",
		Long: "Export rows from a database table into a CSV file suitable for\n" +
			"JMeter's CSV Data Set Config. Wire the result into a plan with\n" +
			"jmxgen generate --csv-feed file.csv:col1,col2.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFeed(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Driver, "driver", "", "Database driver: postgres, mysql or sqlserver")
	cmd.Flags().StringVar(&opts.DSN, "dsn", "", "Driver-specific connection string (overrides --db-* flags)")
	cmd.Flags().StringVar(&opts.DBHost, "db-host", "", "Database host")
	cmd.Flags().IntVar(&opts.DBPort, "db-port", 0, "Database port")
	cmd.Flags().StringVar(&opts.DBName, "db-name", "", "Database name")
	cmd.Flags().StringVar(&opts.DBUser, "db-user", "", "Database user")
	cmd.Flags().StringVar(&opts.DBPassword, "db-password", "", "Database password")
	cmd.Flags().StringVar(&opts.Table, "table", "", "Table to export")
	cmd.Flags().StringSliceVar(&opts.Columns, "columns", nil, "Columns to export (default: all)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Maximum number of rows (default: no limit)")
	cmd.Flags().StringVarP(&opts.OutputPath, "output", "o", opts.OutputPath, "Output CSV path")
	cmd.MarkFlagRequired("driver")
	cmd.MarkFlagRequired("table")

	return cmd
}

func runFeed(cmd *cobra.Command, opts feedOptions) error {
	dsn := opts.DSN
	if dsn == "" {
		if opts.DBHost == "" {
			return fmt.Errorf("pass a connection with --dsn or the --db-* flags")
		}
		built, err := feeder.BuildDSN(feeder.DBConfig{
			Type:     opts.Driver,
			Host:     opts.DBHost,
			Port:     opts.DBPort,
			Database: opts.DBName,
			User:     opts.DBUser,
			Password: opts.DBPassword,
		})
		if err != nil {
			return err
		}
		dsn = built
	}

	result, err := feeder.Export(feeder.Config{
		Driver:  opts.Driver,
		DSN:     dsn,
		Table:   opts.Table,
		Columns: opts.Columns,
		Limit:   opts.Limit,
	}, opts.OutputPath)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Exported %d row(s) from %s to %s\n", result.Rows, opts.Table, result.CSVPath)
	fmt.Fprintf(out, "Columns: %s\n", strings.Join(result.Columns, ", "))
	fmt.Fprintf(out, "Next: jmxgen generate --csv-feed %s:%s\n", result.CSVPath, strings.Join(result.Columns, ","))
	return nil
}
