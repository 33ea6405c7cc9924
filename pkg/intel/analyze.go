package intel

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/cboyd0319/security-central/pkg/manifest"
	"github.com/cboyd0319/security-central/pkg/policy"
	"github.com/cboyd0319/security-central/pkg/registry"
	"github.com/cboyd0319/security-central/pkg/types"
	"github.com/cboyd0319/security-central/pkg/utils"
	log "github.com/sirupsen/logrus"
)

// Config carries the settings for one dependency analysis run.
type Config struct {
	ReposDir   string
	PolicyFile string
	Output     string
	Workers    int
	Timeout    time.Duration
}

// Analyze builds the cross-repo dependency graph, detects version conflicts,
// enriches them with registry-recommended targets and writes the
// intelligence document. A canceled or timed-out context still produces a
// document from the lookups that finished; the context error is returned so
// the run exits nonzero.
func Analyze(ctx context.Context, cfg *Config) error {
	pol, err := policy.Load(cfg.PolicyFile)
	if err != nil {
		return err
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = pol.Workers
	}

	usages, err := manifest.Collect(cfg.ReposDir)
	if err != nil {
		return err
	}
	log.Infof("Collected %d dependency declarations from %s", len(usages), cfg.ReposDir)

	graph := BuildGraph(usages)
	analyzer := NewAnalyzer(registry.Clients(pol.Registry), workers)
	conflicts, runErr := analyzer.Recommend(ctx, graph.Conflicts())

	doc := types.IntelligenceDocument{
		GeneratedAt: time.Now().UTC(),
		Summary:     graph.Summary(conflicts),
		Conflicts:   conflicts,
	}
	if err := WriteDocument(&doc, cfg.Output); err != nil {
		return err
	}
	printSummary(doc.Summary)
	return runErr
}

// WriteDocument renders the intelligence document as indented JSON, to
// stdout when no path is given.
func WriteDocument(doc *types.IntelligenceDocument, output string) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if output == "" {
		fmt.Println(string(data))
		return nil
	}
	if dir := filepath.Dir(output); dir != "." {
		if _, err := utils.EnsurePath(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(output, data, 0o600); err != nil {
		return fmt.Errorf("failed to write intelligence document: %w", err)
	}
	log.Infof("Intelligence document written to %s", output)
	return nil
}

func printSummary(s types.IntelligenceSummary) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Total packages:\t%d\n", s.TotalPackages)
	fmt.Fprintf(w, "Shared packages:\t%d\n", s.SharedPackages)
	fmt.Fprintf(w, "Version conflicts:\t%d\n", s.VersionConflicts)
	fmt.Fprintf(w, "High severity:\t%d\n", s.HighSeverityConflicts)
	fmt.Fprintf(w, "Lookup failures:\t%d\n", s.LookupFailures)
	w.Flush()
}
