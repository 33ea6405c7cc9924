package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/cboyd0319/security-central/pkg/types"
	log "github.com/sirupsen/logrus"
)

// PSScriptAnalyzerParser handles `Invoke-ScriptAnalyzer | ConvertTo-Json`
// output. A single diagnostic serializes as a bare object rather than a
// one-element array, and Severity may be the enum name or its numeric value
// depending on how the runner converts it.
type PSScriptAnalyzerParser struct{}

type psaDiagnostic struct {
	Severity   json.RawMessage `json:"Severity"`
	ScriptPath string          `json:"ScriptPath"`
	Line       int             `json:"Line"`
	RuleName   string          `json:"RuleName"`
	Message    string          `json:"Message"`
}

func (p *PSScriptAnalyzerParser) Tool() string { return "PSScriptAnalyzer" }

func (p *PSScriptAnalyzerParser) Parse(file, repo string) (types.Findings, int, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, 0, err
	}
	return parsePSScriptAnalyzer(data, repo)
}

func parsePSScriptAnalyzer(data []byte, repo string) (types.Findings, int, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return types.Findings{}, 0, nil
	}
	if trimmed[0] == '{' {
		trimmed = append(append([]byte{'['}, trimmed...), ']')
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(trimmed, &entries); err != nil {
		return nil, 0, fmt.Errorf("malformed PSScriptAnalyzer report: %w", err)
	}

	findings := types.Findings{}
	skipped := 0
	for _, raw := range entries {
		var diag psaDiagnostic
		if err := json.Unmarshal(raw, &diag); err != nil {
			log.Debugf("Skipping malformed PSScriptAnalyzer entry: %v", err)
			skipped++
			continue
		}

		severity := psaSeverity(diag.Severity)
		location := diag.ScriptPath
		if location != "" && diag.Line > 0 {
			location = fmt.Sprintf("%s:%d", diag.ScriptPath, diag.Line)
		}
		id := diag.RuleName
		if id == "" {
			id = syntheticID("PSScriptAnalyzer", diag.ScriptPath, strconv.Itoa(diag.Line), diag.Message)
		}
		findings = append(findings, types.Finding{
			Repository:      repo,
			VulnerabilityID: id,
			Severity:        severity,
			SourceTool:      "PSScriptAnalyzer",
			FileLocation:    location,
			Advisory:        diag.Message,
		})
	}
	return findings, skipped, nil
}

// psaSeverity resolves a PSScriptAnalyzer severity that is either the enum
// name ("Error", "Warning", "Information") or its numeric value.
func psaSeverity(raw json.RawMessage) types.Severity {
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		return types.ParseSeverity(name)
	}
	var level int
	if err := json.Unmarshal(raw, &level); err == nil {
		switch level {
		case 2, 3: // Error, ParseError
			return types.SeverityHigh
		case 1: // Warning
			return types.SeverityMedium
		case 0: // Information
			return types.SeverityLow
		}
	}
	return types.SeverityUnknown
}
