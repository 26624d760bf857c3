package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"jmxgen/internal/llm"
	"jmxgen/internal/project"
)

type draftOptions struct {
	SpecPath   string
	Goal       string
	OutputPath string
}

func newDraftCmd(app *appState) *cobra.Command {
	opts := draftOptions{OutputPath: "pt_scenario.yaml"}

	cmd := &cobra.Command{
		Use:   "draft",
		Short: "Draft a scenario file with a language model",
		Long: "Ask a language model for a scenario draft matching a free-text goal.\n" +
			"The draft is parsed and validated against the spec before it is\n" +
			"written, so an invalid document never lands on disk.\n\n" +
			"Requires an API key via JMXGEN_LLM_API_KEY or OPENAI_API_KEY.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDraft(cmd, app, opts)
		},
	}

	cmd.Flags().StringVar(&opts.SpecPath, "spec", "", "Path to the OpenAPI/Swagger spec (default: auto-detected)")
	cmd.Flags().StringVar(&opts.Goal, "goal", "", "What the scenario should exercise, in plain language")
	cmd.Flags().StringVarP(&opts.OutputPath, "output", "o", opts.OutputPath, "Output scenario path")
	cmd.MarkFlagRequired("goal")

	return cmd
}

func runDraft(cmd *cobra.Command, app *appState, opts draftOptions) error {
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

	log, err := app.newLogger()
	if err != nil {
		return err
	}
	defer log.Close()

	llmCfg := &llm.Config{
		Provider:    app.cfg.LLM.Provider,
		APIKey:      app.cfg.LLM.APIKey,
		Model:       app.cfg.LLM.Model,
		Temperature: app.cfg.LLM.Temperature,
		MaxTokens:   app.cfg.LLM.MaxTokens,
	}
	client, err := llm.NewClient(llmCfg, log)
	if err != nil {
		return err
	}

	draft, err := llm.NewDrafter(client).Draft(cmd.Context(), doc, opts.Goal)
	if err != nil {
		return err
	}

	if err := os.WriteFile(opts.OutputPath, []byte(draft.YAML), 0o644); err != nil {
		return fmt.Errorf("failed to write scenario: %v", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Draft scenario %q (%d steps) written to %s\n",
		draft.Scenario.Name, len(draft.Scenario.Steps), opts.OutputPath)
	for _, warning := range draft.Warnings {
		fmt.Fprintf(out, "Warning: %s\n", warning)
	}
	fmt.Fprintln(out, "Review the draft before generating a plan from it.")
	return nil
}
