package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"jmxgen/internal/project"
)

type analyzeOptions struct {
	Path            string
	NoDetectChanges bool
	ShowDetails     bool
	ExportDiff      string
	JMXPath         string
}

func newAnalyzeCmd(app *appState) *cobra.Command {
	opts := analyzeOptions{Path: "."}

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Discover API specs and scenario files in a project",
		Long: "Analyze a project directory for OpenAPI/Swagger specifications and\n" +
			"scenario files, and diff the discovered spec against its snapshot to\n" +
			"detect endpoint changes.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Path, "path", opts.Path, "Project directory to analyze")
	cmd.Flags().BoolVar(&opts.NoDetectChanges, "no-detect-changes", false, "Skip snapshot change detection")
	cmd.Flags().BoolVar(&opts.ShowDetails, "show-details", false, "List every discovered endpoint")
	cmd.Flags().StringVar(&opts.ExportDiff, "export-diff", "", "Write the detected spec diff as JSON to this file")
	cmd.Flags().StringVar(&opts.JMXPath, "jmx", "", "Diff against the snapshot of this JMX file instead of the spec's")

	return cmd
}

func runAnalyze(cmd *cobra.Command, opts analyzeOptions) error {
	analyzer := project.NewAnalyzer()
	detect := !opts.NoDetectChanges

	var analysis *project.Analysis
	switch {
	case !detect || opts.JMXPath != "":
		analysis = analyzer.AnalyzeProject(opts.Path)
	default:
		analysis = analyzer.AnalyzeWithChangeDetection(opts.Path)
	}

	out := cmd.OutOrStdout()

	if !analysis.SpecFound {
		if analysis.Message != "" {
			fmt.Fprintln(out, analysis.Message)
		} else {
			fmt.Fprintf(out, "No OpenAPI specification found in %s\n", opts.Path)
		}
		return fmt.Errorf("no OpenAPI specification found")
	}

	// A JMX path pins change detection to that plan's snapshot.
	if detect && opts.JMXPath != "" {
		if err := detectChangesForJMX(analysis, opts.JMXPath); err != nil {
			fmt.Fprintf(out, "Change detection skipped: %v\n", err)
		}
	}

	fmt.Fprintf(out, "API: %s\n", analysis.APITitle)
	fmt.Fprintf(out, "Spec: %s (%s)\n", analysis.SpecPath, analysis.SpecFormat)
	fmt.Fprintf(out, "Base URL: %s\n", analysis.BaseURL)
	fmt.Fprintf(out, "Endpoints: %d\n", analysis.EndpointsCount)
	fmt.Fprintf(out, "Recommended output: %s\n", analysis.RecommendedJMXName)

	if opts.ShowDetails {
		fmt.Fprintln(out)
		for _, ep := range analysis.Endpoints {
			name := ep.OperationID
			if name == "" {
				name = "-"
			}
			fmt.Fprintf(out, "  %-7s %-40s %s\n", ep.Method, ep.Path, name)
		}
	}

	if analysis.ScenarioPath != "" {
		fmt.Fprintf(out, "\nScenario file: %s\n", analysis.ScenarioPath)
		fmt.Fprintf(out, "Next: jmxgen generate --scenario %s --spec %s\n", analysis.ScenarioPath, analysis.SpecPath)
	}

	if analysis.MultipleSpecsFound {
		fmt.Fprintf(out, "\nFound %d candidate specs; using the first:\n", len(analysis.AvailableSpecs))
		for _, s := range analysis.AvailableSpecs {
			fmt.Fprintf(out, "  %s (%s)\n", s.Path, s.Format)
		}
	}

	if detect {
		printChangeDetection(out, analysis)
		if opts.ExportDiff != "" && analysis.SpecDiff != nil {
			if err := exportDiff(analysis.SpecDiff, opts.ExportDiff); err != nil {
				return err
			}
			fmt.Fprintf(out, "Diff written to %s\n", opts.ExportDiff)
		}
	}

	return nil
}

// detectChangesForJMX loads the snapshot recorded for jmxPath and diffs it
// against the freshly parsed spec.
func detectChangesForJMX(analysis *project.Analysis, jmxPath string) error {
	manager := project.NewSnapshotManager(filepath.Dir(jmxPath))
	snapshot, err := manager.LoadSnapshot(jmxPath)
	if err != nil {
		return err
	}
	analysis.SnapshotExists = true

	doc, err := parseSpec(analysis.SpecPath)
	if err != nil {
		return err
	}
	diff, err := project.NewComparator().Compare(
		snapshot.Spec.APIVersion, doc.Version,
		snapshot.Endpoints, project.NormalizeEndpoints(doc))
	if err != nil {
		return err
	}
	if diff.HasChanges() {
		analysis.ChangesDetected = true
		analysis.SpecDiff = diff
	}
	return nil
}

func printChangeDetection(out io.Writer, analysis *project.Analysis) {
	switch {
	case !analysis.SnapshotExists:
		fmt.Fprintln(out, "\nNo snapshot found. Generating a plan will create one.")
	case !analysis.ChangesDetected:
		fmt.Fprintln(out, "\nNo API changes since the last snapshot.")
	default:
		diff := analysis.SpecDiff
		summary := diff.Summary()
		fmt.Fprintf(out, "\nAPI changes detected: %d added, %d removed, %d modified\n",
			summary["added"], summary["removed"], summary["modified"])
		for _, ep := range diff.AddedEndpoints {
			fmt.Fprintf(out, "  + %s %s\n", ep.Method, ep.Path)
		}
		for _, ep := range diff.RemovedEndpoints {
			fmt.Fprintf(out, "  - %s %s\n", ep.Method, ep.Path)
		}
		for _, ep := range diff.ModifiedEndpoints {
			fmt.Fprintf(out, "  ~ %s %s\n", ep.Method, ep.Path)
		}
		fmt.Fprintln(out, "Run: jmxgen generate --auto-update to apply the changes")
	}
}

func exportDiff(diff *project.SpecDiff, path string) error {
	data, err := json.MarshalIndent(diff, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal diff: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write diff: %v", err)
	}
	return nil
}
