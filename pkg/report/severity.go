package report

import (
	"crypto/sha1"
	"fmt"
	"strconv"
	"strings"

	"github.com/cboyd0319/security-central/pkg/types"
)

// severityFromScore buckets a CVSS score into the canonical ordinal using
// the standard v3 rating bands.
func severityFromScore(score float64) types.Severity {
	switch {
	case score >= 9.0:
		return types.SeverityCritical
	case score >= 7.0:
		return types.SeverityHigh
	case score >= 4.0:
		return types.SeverityMedium
	case score > 0:
		return types.SeverityLow
	default:
		return types.SeverityUnknown
	}
}

// resolveSeverity maps a scanner-reported severity value to the canonical
// ordinal, trying the textual level table first and a numeric CVSS score
// second. The parsed score, if any, is returned for the finding record.
func resolveSeverity(raw string) (types.Severity, *float64) {
	if sev := types.ParseSeverity(raw); sev != types.SeverityUnknown {
		return sev, nil
	}
	if score, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
		return severityFromScore(score), &score
	}
	return types.SeverityUnknown, nil
}

// syntheticID builds a stable identifier for findings whose scanner did not
// assign one. IDs are scoped by tool so identical content reported by two
// tools stays distinct.
func syntheticID(tool string, parts ...string) string {
	material := strings.ToLower(tool + "|" + strings.Join(parts, "|"))
	sum := sha1.Sum([]byte(material))
	return fmt.Sprintf("%s-%X", strings.ToUpper(tool), sum[:6])
}
