package types

import "strings"

// Severity is the canonical severity ordinal shared by every scanner.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityUnknown  Severity = "UNKNOWN"
)

var severityRanks = map[Severity]int{
	SeverityCritical: 4,
	SeverityHigh:     3,
	SeverityMedium:   2,
	SeverityLow:      1,
	SeverityUnknown:  0,
}

// Rank returns the ordinal position of s, with UNKNOWN lowest.
func (s Severity) Rank() int {
	return severityRanks[s]
}

// AtLeast reports whether s is at least as severe as floor.
func (s Severity) AtLeast(floor Severity) bool {
	return s.Rank() >= floor.Rank()
}

// severityAliases maps the level strings emitted by the supported scanners to
// canonical severities. Values not listed here resolve to UNKNOWN.
var severityAliases = map[string]Severity{
	"critical":      SeverityCritical,
	"high":          SeverityHigh,
	"error":         SeverityHigh,
	"medium":        SeverityMedium,
	"moderate":      SeverityMedium,
	"warning":       SeverityMedium,
	"low":           SeverityLow,
	"info":          SeverityLow,
	"informational": SeverityLow,
}

// ParseSeverity maps a raw scanner severity level to the canonical ordinal.
// Empty or unmapped values resolve to UNKNOWN, never to a guessed level.
func ParseSeverity(raw string) Severity {
	if s, ok := severityAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return s
	}
	return SeverityUnknown
}

// ParseSeverityName resolves a canonical severity name as written in config
// files. Unlike ParseSeverity it rejects unknown values instead of mapping
// them, so misspelled policy entries surface as errors.
func ParseSeverityName(raw string) (Severity, bool) {
	s := Severity(strings.ToUpper(strings.TrimSpace(raw)))
	if _, ok := severityRanks[s]; ok {
		return s, true
	}
	return SeverityUnknown, false
}
