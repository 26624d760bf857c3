package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"jmxgen/internal/correlate"
	"jmxgen/internal/jmx"
	"jmxgen/internal/project"
	"jmxgen/internal/scenario"
	"jmxgen/internal/spec"
)

type generateOptions struct {
	SpecPath     string
	ScenarioPath string
	OutputPath   string
	Threads      int
	Rampup       int
	Duration     int
	Endpoints    []string
	BaseURL      string
	Flat         bool
	AutoUpdate   bool
	ForceNew     bool
	NoSnapshot   bool
	CSVFeed      string
}

func newGenerateCmd(app *appState) *cobra.Command {
	var opts generateOptions

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a JMX test plan from a spec or scenario",
		Long: "Generate a JMeter JMX test plan. With a scenario file (given via\n" +
			"--scenario or auto-detected as pt_scenario.yaml) a multi-step plan with\n" +
			"correlation is built; otherwise a flat plan with one sampler per\n" +
			"endpoint.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			applyGenerationDefaults(&opts, app)
			return runGenerate(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.SpecPath, "spec", "", "Path to the OpenAPI/Swagger spec (default: auto-detected)")
	cmd.Flags().StringVar(&opts.ScenarioPath, "scenario", "", "Path to a scenario YAML file (default: auto-detected)")
	cmd.Flags().StringVarP(&opts.OutputPath, "output", "o", "", "Output JMX path")
	cmd.Flags().IntVar(&opts.Threads, "threads", 0, "Concurrent threads")
	cmd.Flags().IntVar(&opts.Rampup, "rampup", 0, "Ramp-up seconds")
	cmd.Flags().IntVar(&opts.Duration, "duration", 0, "Test duration in seconds")
	cmd.Flags().StringSliceVar(&opts.Endpoints, "endpoints", nil, "operationIds to include (default: all)")
	cmd.Flags().StringVar(&opts.BaseURL, "base-url", "", "Base URL overriding the spec's server")
	cmd.Flags().BoolVar(&opts.Flat, "flat", false, "Force flat generation even when a scenario file exists")
	cmd.Flags().BoolVar(&opts.AutoUpdate, "auto-update", false, "Update an existing JMX in place when the spec changed")
	cmd.Flags().BoolVar(&opts.ForceNew, "force-new", false, "Regenerate from scratch even when a snapshot exists")
	cmd.Flags().BoolVar(&opts.NoSnapshot, "no-snapshot", false, "Skip saving a spec snapshot")
	cmd.Flags().StringVar(&opts.CSVFeed, "csv-feed", "", "Wire a CSV Data Set into the plan, as file.csv:var1,var2")

	return cmd
}

// applyGenerationDefaults fills unset flags from the loaded configuration.
func applyGenerationDefaults(opts *generateOptions, app *appState) {
	gen := app.cfg.Generation
	if opts.Threads == 0 {
		opts.Threads = gen.Threads
	}
	if opts.Rampup == 0 {
		opts.Rampup = gen.Rampup
	}
	if opts.Duration == 0 {
		opts.Duration = gen.Duration
	}
	if opts.BaseURL == "" {
		opts.BaseURL = gen.BaseURL
	}
}

func runGenerate(cmd *cobra.Command, opts generateOptions) error {
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

	scenarioPath := opts.ScenarioPath
	if scenarioPath == "" && !opts.Flat {
		if found, ok := project.NewAnalyzer().FindScenarioFile("."); ok {
			scenarioPath = found
			fmt.Fprintf(cmd.OutOrStdout(), "Using scenario: %s\n", scenarioPath)
		}
	}

	if scenarioPath != "" && !opts.Flat {
		return runScenarioGenerate(cmd, opts, doc, specPath, scenarioPath)
	}
	return runFlatGenerate(cmd, opts, doc, specPath)
}

func runFlatGenerate(cmd *cobra.Command, opts generateOptions, doc *spec.Document, specPath string) error {
	out := cmd.OutOrStdout()

	outputPath := opts.OutputPath
	if outputPath == "" {
		outputPath = "test.jmx"
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = doc.BaseURL
	}

	// An existing plan with a snapshot is edited in place so manual
	// customizations survive spec changes.
	if opts.AutoUpdate && !opts.ForceNew {
		if done, err := tryAutoUpdate(cmd, opts, doc, specPath, outputPath); done || err != nil {
			return err
		}
	}

	cfg := jmx.Config{
		BaseURL:   baseURL,
		Endpoints: opts.Endpoints,
		Threads:   opts.Threads,
		Rampup:    opts.Rampup,
	}
	if opts.Duration > 0 {
		duration := opts.Duration
		cfg.Duration = &duration
	}
	if opts.CSVFeed != "" {
		feed, err := parseCSVFeed(opts.CSVFeed)
		if err != nil {
			return err
		}
		cfg.CSVFeed = feed
	}

	result, err := jmx.NewGenerator(doc).Generate(outputPath, cfg)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, result.Summary)
	fmt.Fprintf(out, "Samplers: %d, assertions: %d\n", result.SamplersCreated, result.AssertionsAdded)

	if !opts.NoSnapshot {
		if path, err := project.NewSnapshotManager(".").SaveSnapshot(specPath, outputPath, doc); err == nil {
			fmt.Fprintf(out, "Snapshot saved: %s\n", path)
		} else {
			fmt.Fprintf(out, "Snapshot not saved: %v\n", err)
		}
	}

	if report, err := jmx.NewValidator().Validate(outputPath); err == nil {
		printValidationReport(out, report)
	}

	fmt.Fprintf(out, "Run: jmeter -n -t %s -l results.jtl\n", outputPath)
	return nil
}

// tryAutoUpdate returns done=true when the update path handled the request
// (changes applied or nothing to do). done=false means no snapshot exists
// and the caller should generate from scratch.
func tryAutoUpdate(cmd *cobra.Command, opts generateOptions, doc *spec.Document, specPath, outputPath string) (bool, error) {
	if _, err := os.Stat(outputPath); err != nil {
		return false, nil
	}
	manager := project.NewSnapshotManager(".")
	snapshot, err := manager.LoadSnapshot(outputPath)
	if err != nil || snapshot == nil {
		return false, nil
	}

	out := cmd.OutOrStdout()

	diff, err := project.NewComparator().Compare(
		snapshot.Spec.APIVersion, doc.Version,
		snapshot.Endpoints, project.NormalizeEndpoints(doc))
	if err != nil {
		return true, err
	}
	if !diff.HasChanges() {
		fmt.Fprintln(out, "No API changes detected. JMX file is up to date.")
		return true, nil
	}

	result, err := jmx.NewUpdater(".").Update(outputPath, diff, doc)
	if err != nil {
		return true, err
	}
	fmt.Fprintf(out, "Updated %s: %d added, %d disabled, %d retitled\n",
		outputPath, result.ChangesApplied["added"], result.ChangesApplied["disabled"], result.ChangesApplied["updated"])
	if result.BackupPath != "" {
		fmt.Fprintf(out, "Backup: %s\n", result.BackupPath)
	}
	for _, warning := range result.Warnings {
		fmt.Fprintf(out, "Warning: %s\n", warning)
	}

	if !opts.NoSnapshot {
		if path, err := manager.SaveSnapshot(specPath, outputPath, doc); err == nil {
			fmt.Fprintf(out, "Snapshot saved: %s\n", path)
		}
	}
	return true, nil
}

func runScenarioGenerate(cmd *cobra.Command, opts generateOptions, doc *spec.Document, specPath, scenarioPath string) error {
	out := cmd.OutOrStdout()

	sc, err := scenario.NewParser().Parse(scenarioPath)
	if err != nil {
		return err
	}

	corr := correlate.NewAnalyzer(doc).Analyze(sc)
	for _, warning := range corr.Warnings {
		fmt.Fprintf(out, "Warning: %s\n", warning)
	}
	if corr.HasErrors() {
		for _, msg := range corr.Errors {
			fmt.Fprintf(out, "Error: %s\n", msg)
		}
		return fmt.Errorf("correlation analysis found %d error(s)", len(corr.Errors))
	}

	outputPath := opts.OutputPath
	if outputPath == "" {
		outputPath = outputNameForScenario(sc.Name)
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = sc.Settings.BaseURL
	}
	if baseURL == "" {
		baseURL = doc.BaseURL
	}

	result, err := jmx.NewScenarioGenerator(doc).Generate(sc, outputPath, baseURL, corr)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Generated %s from scenario %q (%d steps)\n", result.JMXPath, sc.Name, len(sc.Steps))
	fmt.Fprintf(out, "Samplers: %d, extractors: %d, assertions: %d\n",
		result.SamplersCreated, result.ExtractorsCreated, result.AssertionsCreated)
	fmt.Fprintf(out, "Correlated variables: %d\n", len(corr.Mappings))
	fmt.Fprintf(out, "Run: jmeter -n -t %s -l results.jtl\n", outputPath)
	return nil
}

func parseSpec(path string) (*spec.Document, error) {
	return spec.NewParser().Parse(path)
}

// parseCSVFeed splits a --csv-feed value of the form file.csv:var1,var2.
func parseCSVFeed(value string) (*jmx.CSVFeed, error) {
	idx := strings.LastIndex(value, ":")
	if idx <= 0 || idx == len(value)-1 {
		return nil, fmt.Errorf("invalid --csv-feed %q (expected file.csv:var1,var2)", value)
	}
	variables := strings.Split(value[idx+1:], ",")
	for i, v := range variables {
		variables[i] = strings.TrimSpace(v)
		if variables[i] == "" {
			return nil, fmt.Errorf("invalid --csv-feed %q: empty variable name", value)
		}
	}
	return &jmx.CSVFeed{File: value[:idx], Variables: variables}, nil
}

// outputNameForScenario derives a file name from the scenario name, for
// example "User Journey" becomes "user-journey-test.jmx".
func outputNameForScenario(name string) string {
	safe := strings.ToLower(name)
	safe = strings.ReplaceAll(safe, " ", "-")
	safe = strings.ReplaceAll(safe, "_", "-")

	var b strings.Builder
	for _, r := range safe {
		if r == '-' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	safe = b.String()
	for strings.Contains(safe, "--") {
		safe = strings.ReplaceAll(safe, "--", "-")
	}
	safe = strings.Trim(safe, "-")
	if safe == "" {
		return "scenario-test.jmx"
	}
	return safe + "-test.jmx"
}
