package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"jmxgen/internal/correlate"
	"jmxgen/internal/scenario"
	"jmxgen/internal/visual"
)

type visualizeOptions struct {
	SpecPath string
	Format   string
}

func newVisualizeCmd(app *appState) *cobra.Command {
	opts := visualizeOptions{Format: "text"}

	cmd := &cobra.Command{
		Use:   "visualize SCENARIO_FILE",
		Short: "Render a scenario as text, Mermaid or JSON",
		Long: "Visualize a scenario file's step flow. With --spec, correlation\n" +
			"analysis annotates which captured variables flow between steps.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVisualize(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.SpecPath, "spec", "", "Spec for correlation analysis")
	cmd.Flags().StringVar(&opts.Format, "format", opts.Format, "Output format: text, mermaid or json")

	return cmd
}

func runVisualize(cmd *cobra.Command, scenarioPath string, opts visualizeOptions) error {
	sc, err := scenario.NewParser().Parse(scenarioPath)
	if err != nil {
		return err
	}

	var corr *correlate.Result
	if opts.SpecPath != "" {
		doc, err := parseSpec(opts.SpecPath)
		if err != nil {
			return err
		}
		corr = correlate.NewAnalyzer(doc).Analyze(sc)
	}

	out := cmd.OutOrStdout()
	switch opts.Format {
	case "text":
		fmt.Fprintln(out, visual.Text(sc, corr))
	case "mermaid":
		fmt.Fprintln(out, visual.Mermaid(sc, corr))
	case "json":
		payload := map[string]interface{}{
			"name":         sc.Name,
			"description":  sc.Description,
			"steps":        visual.Steps(sc, corr),
			"correlations": visual.Correlations(sc, corr),
		}
		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal visualization: %v", err)
		}
		fmt.Fprintln(out, string(data))
	default:
		return fmt.Errorf("unknown format %q (expected text, mermaid or json)", opts.Format)
	}
	return nil
}
