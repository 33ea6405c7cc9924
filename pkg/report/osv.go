package report

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/cboyd0319/security-central/pkg/types"
	log "github.com/sirupsen/logrus"
)

// OSVParser handles `osv-scanner --format json` reports.
type OSVParser struct{}

type osvSeverityEntry struct {
	Type  string `json:"type"`
	Score string `json:"score"`
}

type osvVulnerability struct {
	ID               string `json:"id"`
	Summary          string `json:"summary"`
	DatabaseSpecific struct {
		Severity string `json:"severity"`
	} `json:"database_specific"`
	Severity []osvSeverityEntry `json:"severity"`
	Affected []struct {
		Ranges []struct {
			Events []struct {
				Introduced string `json:"introduced"`
				Fixed      string `json:"fixed"`
			} `json:"events"`
		} `json:"ranges"`
	} `json:"affected"`
}

type osvPackage struct {
	Package struct {
		Name      string `json:"name"`
		Version   string `json:"version"`
		Ecosystem string `json:"ecosystem"`
	} `json:"package"`
	Vulnerabilities []osvVulnerability `json:"vulnerabilities"`
}

func (p *OSVParser) Tool() string { return "osv-scanner" }

func (p *OSVParser) Parse(file, repo string) (types.Findings, int, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, 0, err
	}
	return parseOSV(data, repo)
}

func parseOSV(data []byte, repo string) (types.Findings, int, error) {
	var doc struct {
		Results []struct {
			Packages []json.RawMessage `json:"packages"`
		} `json:"results"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, 0, fmt.Errorf("malformed osv-scanner report: %w", err)
	}

	findings := types.Findings{}
	skipped := 0
	for _, result := range doc.Results {
		for _, raw := range result.Packages {
			var pkg osvPackage
			if err := json.Unmarshal(raw, &pkg); err != nil || pkg.Package.Name == "" {
				log.Debugf("Skipping malformed osv-scanner package entry: %v", err)
				skipped++
				continue
			}

			ecosystem := osvEcosystem(pkg.Package.Ecosystem)
			for _, vuln := range pkg.Vulnerabilities {
				severity, score := resolveSeverity(vuln.DatabaseSpecific.Severity)
				if severity == types.SeverityUnknown {
					severity, score = cvssSeverity(vuln.Severity)
				}
				id := vuln.ID
				if id == "" {
					id = syntheticID("osv-scanner", pkg.Package.Name, pkg.Package.Version, vuln.Summary)
				}
				findings = append(findings, types.Finding{
					Repository:       repo,
					Package:          pkg.Package.Name,
					Ecosystem:        ecosystem,
					InstalledVersion: pkg.Package.Version,
					FixedVersion:     firstFixedEvent(vuln),
					VulnerabilityID:  id,
					Severity:         severity,
					SourceTool:       "osv-scanner",
					RawScore:         score,
					Advisory:         vuln.Summary,
				})
			}
		}
	}
	return findings, skipped, nil
}

// cvssSeverity resolves the vulnerability's CVSS entries. Only numeric
// scores are understood; vector strings are left to the database severity.
func cvssSeverity(entries []osvSeverityEntry) (types.Severity, *float64) {
	for _, e := range entries {
		if !strings.HasPrefix(e.Type, "CVSS") {
			continue
		}
		if sev, score := resolveSeverity(e.Score); sev != types.SeverityUnknown {
			return sev, score
		}
	}
	return types.SeverityUnknown, nil
}

// firstFixedEvent returns the first "fixed" event recorded for the
// vulnerability, the closest thing OSV offers to a fix hint.
func firstFixedEvent(vuln osvVulnerability) string {
	for _, affected := range vuln.Affected {
		for _, r := range affected.Ranges {
			for _, event := range r.Events {
				if event.Fixed != "" {
					return event.Fixed
				}
			}
		}
	}
	return ""
}

// osvEcosystem maps OSV ecosystem labels onto the canonical names.
func osvEcosystem(raw string) string {
	switch strings.ToLower(raw) {
	case "pypi":
		return types.EcosystemPyPI
	case "npm":
		return types.EcosystemNPM
	case "maven":
		return types.EcosystemMaven
	default:
		return strings.ToLower(raw)
	}
}
