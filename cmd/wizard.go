package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"jmxgen/internal/project"
	"jmxgen/internal/wizard"
)

type wizardOptions struct {
	SpecPath   string
	OutputPath string
}

func newWizardCmd(app *appState) *cobra.Command {
	opts := wizardOptions{OutputPath: "pt_scenario.yaml"}

	cmd := &cobra.Command{
		Use:   "wizard",
		Short: "Build a scenario file interactively",
		Long: "Walk through scenario creation step by step against a loaded API\n" +
			"contract and write the resulting scenario YAML file.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWizard(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.SpecPath, "spec", "", "Path to the OpenAPI/Swagger spec (default: auto-detected)")
	cmd.Flags().StringVarP(&opts.OutputPath, "output", "o", opts.OutputPath, "Output scenario path")

	return cmd
}

func runWizard(cmd *cobra.Command, opts wizardOptions) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return fmt.Errorf("the wizard needs an interactive terminal")
	}

	specPath := opts.SpecPath
	if specPath == "" {
		candidate, ok := project.NewAnalyzer().FindSpec(".")
		if !ok {
			return fmt.Errorf("no OpenAPI specification found; pass one with --spec")
		}
		specPath = candidate.Path
		fmt.Fprintf(cmd.OutOrStdout(), "Using spec: %s\n", specPath)
	}

	doc, err := parseSpec(specPath)
	if err != nil {
		return err
	}

	w := wizard.New(doc, cmd.InOrStdin(), cmd.OutOrStdout())
	result, err := w.Run()
	if err != nil {
		return err
	}

	if _, err := wizard.Validate(result); err != nil {
		return fmt.Errorf("wizard produced an invalid scenario: %v", err)
	}
	if err := wizard.Save(result, opts.OutputPath); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Scenario written to %s\n", opts.OutputPath)
	fmt.Fprintf(cmd.OutOrStdout(), "Next: jmxgen generate --scenario %s --spec %s\n", opts.OutputPath, specPath)
	return nil
}
