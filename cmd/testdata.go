package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"jmxgen/internal/project"
	"jmxgen/internal/testdata"
)

type testdataOptions struct {
	SpecPath  string
	OutputDir string
}

func newTestdataCmd(app *appState) *cobra.Command {
	opts := testdataOptions{OutputDir: "testdata"}

	cmd := &cobra.Command{
		Use:   "testdata",
		Short: "Generate a request-body template for every endpoint",
		Long: "Generate a YAML template with schema-derived example request bodies\n" +
			"and parameter values for every endpoint in the spec, as a starting\n" +
			"point for hand-tuned test data.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTestdata(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.SpecPath, "spec", "", "Path to the OpenAPI/Swagger spec (default: auto-detected)")
	cmd.Flags().StringVar(&opts.OutputDir, "output-dir", opts.OutputDir, "Directory for the template file")

	return cmd
}

func runTestdata(cmd *cobra.Command, opts testdataOptions) error {
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

	path, err := testdata.NewGenerator(opts.OutputDir).GenerateTemplate(doc.Endpoints)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Template for %d endpoint(s) written to %s\n", len(doc.Endpoints), path)
	return nil
}
