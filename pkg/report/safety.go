package report

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/cboyd0319/security-central/pkg/types"
	log "github.com/sirupsen/logrus"
)

// SafetyParser handles `safety check --json` reports.
type SafetyParser struct{}

type safetyEntry struct {
	Package          string   `json:"package"`
	InstalledVersion string   `json:"installed_version"`
	CVE              string   `json:"CVE"`
	Severity         string   `json:"severity"`
	Advisory         string   `json:"advisory"`
	FixedIn          []string `json:"fixed_in"`
}

func (p *SafetyParser) Tool() string { return "safety" }

func (p *SafetyParser) Parse(file, repo string) (types.Findings, int, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, 0, err
	}
	return parseSafety(data, repo)
}

func parseSafety(data []byte, repo string) (types.Findings, int, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, 0, fmt.Errorf("malformed safety report: %w", err)
	}

	findings := types.Findings{}
	skipped := 0
	for _, raw := range entries {
		var entry safetyEntry
		if err := json.Unmarshal(raw, &entry); err != nil || entry.Package == "" {
			log.Debugf("Skipping malformed safety entry: %v", err)
			skipped++
			continue
		}

		severity, score := resolveSeverity(entry.Severity)
		id := entry.CVE
		if id == "" || id == "N/A" {
			id = syntheticID("safety", entry.Package, entry.InstalledVersion, entry.Advisory)
		}
		fixed, _ := maxFixHint(types.EcosystemPyPI, entry.FixedIn)
		findings = append(findings, types.Finding{
			Repository:       repo,
			Package:          entry.Package,
			Ecosystem:        types.EcosystemPyPI,
			InstalledVersion: entry.InstalledVersion,
			FixedVersion:     fixed,
			VulnerabilityID:  id,
			Severity:         severity,
			SourceTool:       "safety",
			RawScore:         score,
			Advisory:         entry.Advisory,
		})
	}
	return findings, skipped, nil
}
