package triage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/cboyd0319/security-central/pkg/dedup"
	"github.com/cboyd0319/security-central/pkg/policy"
	"github.com/cboyd0319/security-central/pkg/report"
	"github.com/cboyd0319/security-central/pkg/types"
	"github.com/cboyd0319/security-central/pkg/utils"
	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Config carries the settings for one triage run.
type Config struct {
	ScanDir      string
	PolicyFile   string
	Output       string
	SarifOutput  string
	Workers      int
	IgnoreErrors bool
	Timeout      time.Duration
}

// Run executes the triage pipeline: normalize every scan report under the
// scan directory, deduplicate findings across scanners, classify them
// against the policy and write the triage document.
func Run(ctx context.Context, cfg *Config) error {
	pol, err := policy.Load(cfg.PolicyFile)
	if err != nil {
		return err
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = pol.Workers
	}

	findings, skipped, err := collectFindings(ctx, cfg.ScanDir, workers, cfg.IgnoreErrors)
	if err != nil {
		return err
	}
	if skipped > 0 {
		log.Warnf("Skipped %d malformed scan report entries", skipped)
	}

	// Score-derived severities are re-bucketed with the policy's CVSS
	// ranges; textual severities already carry their canonical level.
	for i := range findings {
		if findings[i].RawScore != nil {
			findings[i].Severity = pol.SeverityFromScore(*findings[i].RawScore)
		}
	}

	deduped, merged := dedup.Deduplicate(findings, pol.ScannerPriority)
	triaged, err := NewClassifier(pol).Classify(deduped)
	if err != nil {
		return err
	}

	doc := buildDocument(triaged, merged, skipped)
	if err := WriteDocument(&doc, cfg.Output); err != nil {
		return err
	}
	if cfg.SarifOutput != "" {
		if err := WriteSarif(&doc, cfg.SarifOutput); err != nil {
			return err
		}
	}
	printSummary(&doc)
	return nil
}

// collectFindings walks the scan directory laid out <repo>/<tool>.json and
// normalizes every recognized report, one worker per repository. JSON files
// without a registered parser are not scan reports and are ignored. A
// report that cannot be parsed fails the run unless ignoreErrors is set, in
// which case the findings from the remaining reports survive.
func collectFindings(ctx context.Context, scanDir string, workers int, ignoreErrors bool) (types.Findings, int, error) {
	entries, err := os.ReadDir(scanDir)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read scan directory %s: %w", scanDir, err)
	}

	var (
		mu       sync.Mutex
		byRepo   = map[string]types.Findings{}
		repos    []string
		skipped  int
		reports  int
		parseErr *multierror.Error
	)

	sem := make(chan struct{}, workers)
	g, gctx := errgroup.WithContext(ctx)
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		repo := entry.Name()
		repos = append(repos, repo)

		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			defer func() { <-sem }()

			findings, skip, parsed, errs := parseRepoReports(filepath.Join(scanDir, repo), repo)

			mu.Lock()
			defer mu.Unlock()
			byRepo[repo] = findings
			skipped += skip
			reports += parsed
			parseErr = multierror.Append(parseErr, errs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	if err := parseErr.ErrorOrNil(); err != nil {
		if !ignoreErrors {
			return nil, 0, err
		}
		log.Warnf("Ignoring unreadable scan reports: %v", err)
	}
	if reports == 0 {
		return nil, 0, fmt.Errorf("%w: %s", types.ErrNoFindings, scanDir)
	}

	// Deterministic finding order regardless of worker scheduling.
	sort.Strings(repos)
	all := types.Findings{}
	for _, repo := range repos {
		all = append(all, byRepo[repo]...)
	}
	return all, skipped, nil
}

func parseRepoReports(dir, repo string) (types.Findings, int, int, *multierror.Error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, 0, 0, multierror.Append(nil, err)
	}

	var (
		findings types.Findings
		skipped  int
		parsed   int
		errs     *multierror.Error
	)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		file := filepath.Join(dir, entry.Name())
		tool := strings.TrimSuffix(entry.Name(), ".json")
		p, err := report.ParserFor(tool)
		if err != nil {
			log.Debugf("No parser registered for %s, ignoring %s", tool, file)
			continue
		}
		parsed++

		f, skip, err := p.Parse(file, repo)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", file, err))
			continue
		}
		log.Debugf("Parsed %d findings from %s", len(f), file)
		findings = append(findings, f...)
		skipped += skip
	}
	return findings, skipped, parsed, errs
}

func buildDocument(findings []types.TriagedFinding, merged, skipped int) types.TriageDocument {
	doc := types.TriageDocument{
		GeneratedAt:    time.Now().UTC(),
		TotalFindings:  len(findings),
		MergedFindings: merged,
		SkippedEntries: skipped,
		BySeverity:     map[types.Severity]int{},
		Findings:       findings,
	}
	for _, f := range findings {
		doc.BySeverity[f.Severity]++
		if f.AutoFixable {
			doc.AutoFixable++
		}
		if f.AutoMergeEligible {
			doc.AutoMergeEligible++
		}
	}
	return doc
}

// WriteDocument renders the triage document as indented JSON, to stdout
// when no path is given.
func WriteDocument(doc *types.TriageDocument, output string) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if output == "" {
		fmt.Println(string(data))
		return nil
	}
	if err := ensureOutputDir(output); err != nil {
		return err
	}
	if err := os.WriteFile(output, data, 0o600); err != nil {
		return fmt.Errorf("failed to write triage document: %w", err)
	}
	log.Infof("Triage document written to %s", output)
	return nil
}

// ensureOutputDir creates the parent directory of an output path when it
// does not exist yet.
func ensureOutputDir(output string) error {
	dir := filepath.Dir(output)
	if dir == "." {
		return nil
	}
	if _, err := utils.EnsurePath(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}
	return nil
}

func printSummary(doc *types.TriageDocument) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Findings:\t%d\n", doc.TotalFindings)
	fmt.Fprintf(w, "Merged duplicates:\t%d\n", doc.MergedFindings)
	fmt.Fprintf(w, "Skipped entries:\t%d\n", doc.SkippedEntries)
	for _, s := range []types.Severity{
		types.SeverityCritical,
		types.SeverityHigh,
		types.SeverityMedium,
		types.SeverityLow,
		types.SeverityUnknown,
	} {
		if n := doc.BySeverity[s]; n > 0 {
			fmt.Fprintf(w, "%s:\t%d\n", s, n)
		}
	}
	fmt.Fprintf(w, "Auto-fixable:\t%d\n", doc.AutoFixable)
	fmt.Fprintf(w, "Auto-merge eligible:\t%d\n", doc.AutoMergeEligible)
	w.Flush()
}
