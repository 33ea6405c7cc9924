package report

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/cboyd0319/security-central/pkg/types"
	log "github.com/sirupsen/logrus"
)

// PipAuditParser handles `pip-audit --format json` reports.
type PipAuditParser struct{}

type pipAuditDependency struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Vulns   []struct {
		ID          string   `json:"id"`
		Severity    string   `json:"severity"`
		Description string   `json:"description"`
		FixVersions []string `json:"fix_versions"`
	} `json:"vulns"`
}

func (p *PipAuditParser) Tool() string { return "pip-audit" }

func (p *PipAuditParser) Parse(file, repo string) (types.Findings, int, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, 0, err
	}
	return parsePipAudit(data, repo)
}

func parsePipAudit(data []byte, repo string) (types.Findings, int, error) {
	var doc struct {
		Dependencies []json.RawMessage `json:"dependencies"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, 0, fmt.Errorf("malformed pip-audit report: %w", err)
	}

	findings := types.Findings{}
	skipped := 0
	for _, raw := range doc.Dependencies {
		var dep pipAuditDependency
		if err := json.Unmarshal(raw, &dep); err != nil || dep.Name == "" {
			log.Debugf("Skipping malformed pip-audit dependency entry: %v", err)
			skipped++
			continue
		}

		for _, vuln := range dep.Vulns {
			severity, score := resolveSeverity(vuln.Severity)
			id := vuln.ID
			if id == "" {
				id = syntheticID("pip-audit", dep.Name, dep.Version, vuln.Description)
			}
			// A single advisory can carry several fix hints; keep the highest.
			fixed, _ := maxFixHint(types.EcosystemPyPI, vuln.FixVersions)
			findings = append(findings, types.Finding{
				Repository:       repo,
				Package:          dep.Name,
				Ecosystem:        types.EcosystemPyPI,
				InstalledVersion: dep.Version,
				FixedVersion:     fixed,
				VulnerabilityID:  id,
				Severity:         severity,
				SourceTool:       "pip-audit",
				RawScore:         score,
				Advisory:         vuln.Description,
			})
		}
	}
	return findings, skipped, nil
}
