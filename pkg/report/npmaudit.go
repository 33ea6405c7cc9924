package report

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/cboyd0319/security-central/pkg/types"
	log "github.com/sirupsen/logrus"
)

// NpmAuditParser handles `npm audit --json` reports in both the v7+ format
// (top-level "vulnerabilities" map) and the legacy v6 format (top-level
// "advisories" map).
type NpmAuditParser struct{}

type npmVulnerability struct {
	Severity     string            `json:"severity"`
	Range        string            `json:"range"`
	Via          []json.RawMessage `json:"via"`
	FixAvailable json.RawMessage   `json:"fixAvailable"`
}

type npmViaAdvisory struct {
	Source   json.Number `json:"source"`
	Name     string      `json:"name"`
	URL      string      `json:"url"`
	Severity string      `json:"severity"`
	Title    string      `json:"title"`
}

type npmAdvisory struct {
	ModuleName      string   `json:"module_name"`
	Severity        string   `json:"severity"`
	Overview        string   `json:"overview"`
	CVEs            []string `json:"cves"`
	PatchedVersions string   `json:"patched_versions"`
	Findings        []struct {
		Version string `json:"version"`
	} `json:"findings"`
}

func (p *NpmAuditParser) Tool() string { return "npm-audit" }

func (p *NpmAuditParser) Parse(file, repo string) (types.Findings, int, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, 0, err
	}
	return parseNpmAudit(data, repo)
}

func parseNpmAudit(data []byte, repo string) (types.Findings, int, error) {
	var doc struct {
		Vulnerabilities map[string]json.RawMessage `json:"vulnerabilities"`
		Advisories      map[string]json.RawMessage `json:"advisories"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, 0, fmt.Errorf("malformed npm audit report: %w", err)
	}

	if doc.Vulnerabilities != nil {
		return parseNpmAuditV7(doc.Vulnerabilities, repo)
	}
	return parseNpmAuditV6(doc.Advisories, repo)
}

func parseNpmAuditV7(vulns map[string]json.RawMessage, repo string) (types.Findings, int, error) {
	findings := types.Findings{}
	skipped := 0
	for _, name := range sortedKeys(vulns) {
		var vuln npmVulnerability
		if err := json.Unmarshal(vulns[name], &vuln); err != nil || vuln.Severity == "" {
			log.Debugf("Skipping malformed npm audit entry for %s: %v", name, err)
			skipped++
			continue
		}

		severity, score := resolveSeverity(vuln.Severity)
		id, advisory := firstViaAdvisory(vuln.Via)
		if id == "" {
			id = syntheticID("npm-audit", name, vuln.Range)
		}
		findings = append(findings, types.Finding{
			Repository:       repo,
			Package:          name,
			Ecosystem:        types.EcosystemNPM,
			InstalledVersion: vuln.Range,
			FixedVersion:     fixAvailableVersion(vuln.FixAvailable),
			VulnerabilityID:  id,
			Severity:         severity,
			SourceTool:       "npm-audit",
			RawScore:         score,
			Advisory:         advisory,
		})
	}
	return findings, skipped, nil
}

func parseNpmAuditV6(advisories map[string]json.RawMessage, repo string) (types.Findings, int, error) {
	findings := types.Findings{}
	skipped := 0
	for _, key := range sortedKeys(advisories) {
		var adv npmAdvisory
		if err := json.Unmarshal(advisories[key], &adv); err != nil || adv.ModuleName == "" {
			log.Debugf("Skipping malformed npm advisory %s: %v", key, err)
			skipped++
			continue
		}

		severity, score := resolveSeverity(adv.Severity)
		id := ""
		if len(adv.CVEs) > 0 {
			id = adv.CVEs[0]
		}
		if id == "" {
			id = syntheticID("npm-audit", adv.ModuleName, key)
		}
		installed := ""
		if len(adv.Findings) > 0 {
			installed = adv.Findings[0].Version
		}
		findings = append(findings, types.Finding{
			Repository:       repo,
			Package:          adv.ModuleName,
			Ecosystem:        types.EcosystemNPM,
			InstalledVersion: installed,
			FixedVersion:     adv.PatchedVersions,
			VulnerabilityID:  id,
			Severity:         severity,
			SourceTool:       "npm-audit",
			RawScore:         score,
			Advisory:         adv.Overview,
		})
	}
	return findings, skipped, nil
}

// firstViaAdvisory extracts the first structured advisory from a "via" list,
// which mixes plain package-name strings with advisory objects.
func firstViaAdvisory(via []json.RawMessage) (id, advisory string) {
	for _, raw := range via {
		var obj npmViaAdvisory
		if err := json.Unmarshal(raw, &obj); err != nil {
			continue // plain string entry referencing another package
		}
		if obj.URL != "" || obj.Title != "" {
			return obj.URL, obj.Title
		}
	}
	return "", ""
}

// fixAvailableVersion digs the target version out of "fixAvailable", which
// is either a boolean or an object naming the fixing release.
func fixAvailableVersion(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var obj struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return ""
	}
	return obj.Version
}

func sortedKeys(m map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
