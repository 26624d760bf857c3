package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"jmxgen/internal/jmx"
	"jmxgen/internal/scenario"
)

type validateOptions struct {
	ScenarioPath string
	SpecPath     string
}

func newValidateCmd(app *appState) *cobra.Command {
	var opts validateOptions

	cmd := &cobra.Command{
		Use:   "validate [JMX_FILE]",
		Short: "Validate a JMX plan or a scenario file",
		Long: "Validate a JMX test plan's structure and configuration. With\n" +
			"--scenario, lint a scenario file instead, checking endpoint references\n" +
			"and variable lifecycles against the spec.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.ScenarioPath != "" {
				return runValidateScenario(cmd, opts)
			}
			if len(args) != 1 {
				return fmt.Errorf("pass a JMX file to validate, or --scenario for scenario linting")
			}
			return runValidateJMX(cmd, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.ScenarioPath, "scenario", "", "Lint this scenario file instead of a JMX plan")
	cmd.Flags().StringVar(&opts.SpecPath, "spec", "", "Spec to check scenario endpoint references against")

	return cmd
}

func runValidateJMX(cmd *cobra.Command, jmxPath string) error {
	report, err := jmx.NewValidator().Validate(jmxPath)
	if err != nil {
		return err
	}
	printValidationReport(cmd.OutOrStdout(), report)
	if !report.Valid {
		return fmt.Errorf("validation failed with %d issue(s)", len(report.Issues))
	}
	return nil
}

func printValidationReport(out io.Writer, report *jmx.ValidationReport) {
	if report.Valid {
		fmt.Fprintln(out, "Validation: OK")
	} else {
		fmt.Fprintf(out, "Validation: %d issue(s)\n", len(report.Issues))
	}
	for _, issue := range report.Issues {
		fmt.Fprintf(out, "  issue: %s\n", issue)
	}
	for _, rec := range report.Recommendations {
		fmt.Fprintf(out, "  hint: %s\n", rec)
	}
}

func runValidateScenario(cmd *cobra.Command, opts validateOptions) error {
	out := cmd.OutOrStdout()

	result := scenario.NewLinter().Lint(opts.ScenarioPath, opts.SpecPath)

	if result.ScenarioName != "" {
		fmt.Fprintf(out, "Scenario: %s\n", result.ScenarioName)
	}
	for _, issue := range result.Issues {
		location := ""
		if issue.Location != "" {
			location = " (" + issue.Location + ")"
		}
		fmt.Fprintf(out, "  %s [%s] %s%s\n", issue.Level, issue.Category, issue.Message, location)
	}

	if !result.IsValid {
		return fmt.Errorf("scenario validation failed: %d error(s), %d warning(s)",
			result.ErrorsCount(), result.WarningsCount())
	}
	fmt.Fprintf(out, "Scenario is valid (%d warning(s))\n", result.WarningsCount())
	return nil
}
