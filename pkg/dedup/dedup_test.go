package dedup

import (
	"testing"

	"github.com/cboyd0319/security-central/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPriority = map[string]int{
	"pip-audit":   10,
	"npm-audit":   9,
	"osv-scanner": 8,
	"safety":      7,
}

func pyFinding(repo, id, tool, fixed string, sev types.Severity) types.Finding {
	return types.Finding{
		Repository:       repo,
		Package:          "requests",
		Ecosystem:        types.EcosystemPyPI,
		InstalledVersion: "2.30.0",
		FixedVersion:     fixed,
		VulnerabilityID:  id,
		Severity:         sev,
		SourceTool:       tool,
	}
}

func TestFingerprint(t *testing.T) {
	base := pyFinding("acme/api", "CVE-2023-32681", "pip-audit", "2.31.0", types.SeverityMedium)

	upper := base
	upper.Repository = "Acme/API"
	upper.VulnerabilityID = "cve-2023-32681"
	assert.Equal(t, Fingerprint(base), Fingerprint(upper), "case differences must not split groups")

	otherTool := base
	otherTool.SourceTool = "safety"
	otherTool.FixedVersion = "2.31.1"
	assert.Equal(t, Fingerprint(base), Fingerprint(otherTool), "source tool is not part of the identity")

	otherRepo := base
	otherRepo.Repository = "acme/web"
	assert.NotEqual(t, Fingerprint(base), Fingerprint(otherRepo))

	otherFile := base
	otherFile.FileLocation = "src/client.py:10"
	assert.NotEqual(t, Fingerprint(base), Fingerprint(otherFile))
}

func TestFingerprintRuleFindings(t *testing.T) {
	a := types.Finding{
		Repository:      "acme/infra",
		VulnerabilityID: "PSAvoidUsingWriteHost",
		SourceTool:      "PSScriptAnalyzer",
		FileLocation:    "scripts/build.ps1:7",
	}
	b := a
	b.FileLocation = "scripts/deploy.ps1:3"
	assert.NotEqual(t, Fingerprint(a), Fingerprint(b), "script diagnostics key on rule and location")
}

func TestDeduplicateMergesAcrossTools(t *testing.T) {
	findings := types.Findings{
		pyFinding("acme/api", "CVE-2023-32681", "safety", "2.31.0", types.SeverityHigh),
		pyFinding("acme/api", "CVE-2023-32681", "pip-audit", "2.31.1", types.SeverityMedium),
		pyFinding("acme/api", "CVE-2023-32681", "osv-scanner", "", types.SeverityMedium),
	}

	merged, count := Deduplicate(findings, testPriority)
	require.Len(t, merged, 1)
	assert.Equal(t, 2, count)

	got := merged[0]
	assert.Equal(t, "pip-audit", got.SourceTool, "highest-priority scanner provides the canonical record")
	assert.Equal(t, types.SeverityMedium, got.Severity)
	assert.Equal(t, "2.31.1", got.FixedIn, "highest fix hint across the group wins")
	assert.Equal(t, []string{"osv-scanner", "pip-audit", "safety"}, got.DetectedBy)
}

func TestDeduplicateLowerPriorityNeverDisplaces(t *testing.T) {
	findings := types.Findings{
		pyFinding("acme/api", "CVE-2023-32681", "pip-audit", "2.31.0", types.SeverityMedium),
		pyFinding("acme/api", "CVE-2023-32681", "unknown-scanner", "2.31.9", types.SeverityCritical),
	}

	merged, count := Deduplicate(findings, testPriority)
	require.Len(t, merged, 1)
	assert.Equal(t, 1, count)
	assert.Equal(t, "pip-audit", merged[0].SourceTool)
	assert.Equal(t, types.SeverityMedium, merged[0].Severity)
	assert.Equal(t, "2.31.9", merged[0].FixedIn, "fix hints still merge from unranked tools")
}

func TestDeduplicateEqualHintsPreferPriority(t *testing.T) {
	findings := types.Findings{
		pyFinding("acme/api", "CVE-2023-32681", "safety", "2.31.1.0", types.SeverityMedium),
		pyFinding("acme/api", "CVE-2023-32681", "pip-audit", "2.31.1", types.SeverityMedium),
	}

	merged, _ := Deduplicate(findings, testPriority)
	require.Len(t, merged, 1)
	assert.Equal(t, "2.31.1", merged[0].FixedIn, "equal versions keep the higher-priority scanner's spelling")
}

func TestDeduplicateKeepsFirstSeenOrder(t *testing.T) {
	first := pyFinding("acme/api", "CVE-2023-32681", "safety", "2.31.0", types.SeverityMedium)
	second := pyFinding("acme/web", "CVE-2024-0001", "pip-audit", "1.2.0", types.SeverityHigh)
	dup := pyFinding("acme/api", "CVE-2023-32681", "pip-audit", "2.31.0", types.SeverityMedium)

	merged, count := Deduplicate(types.Findings{first, second, dup}, testPriority)
	require.Len(t, merged, 2)
	assert.Equal(t, 1, count)
	assert.Equal(t, "CVE-2023-32681", merged[0].VulnerabilityID)
	assert.Equal(t, "CVE-2024-0001", merged[1].VulnerabilityID)
}

func TestDeduplicateIdempotent(t *testing.T) {
	findings := types.Findings{
		pyFinding("acme/api", "CVE-2023-32681", "safety", "2.31.0", types.SeverityHigh),
		pyFinding("acme/api", "CVE-2023-32681", "pip-audit", "2.31.1", types.SeverityMedium),
	}

	once, _ := Deduplicate(findings, testPriority)
	again := make(types.Findings, 0, len(once))
	for _, m := range once {
		again = append(again, m.Finding)
	}
	twice, count := Deduplicate(again, testPriority)

	assert.Zero(t, count, "re-running over merged output must not merge further")
	require.Len(t, twice, len(once))
	for i := range once {
		assert.Equal(t, once[i].Finding, twice[i].Finding)
	}
}

func TestDeduplicateEmptyInput(t *testing.T) {
	merged, count := Deduplicate(nil, testPriority)
	assert.Empty(t, merged)
	assert.Zero(t, count)
}
