package triage

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cboyd0319/security-central/pkg/types"
	log "github.com/sirupsen/logrus"
)

const (
	sarifSchema  = "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/master/Schemata/sarif-schema-2.1.0.json"
	sarifVersion = "2.1.0"

	driverName    = "security-central"
	driverVersion = "1.0.0"
	driverInfoURI = "https://github.com/cboyd0319/security-central"
)

// The subset of SARIF 2.1.0 that GitHub code scanning ingests.
type sarifLog struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name           string `json:"name"`
	Version        string `json:"version"`
	InformationURI string `json:"informationUri"`
}

type sarifResult struct {
	RuleID     string          `json:"ruleId"`
	Level      string          `json:"level"`
	Message    sarifText       `json:"message"`
	Locations  []sarifLocation `json:"locations"`
	Properties map[string]any  `json:"properties,omitempty"`
}

type sarifText struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           *sarifRegion          `json:"region,omitempty"`
}

type sarifArtifactLocation struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine int `json:"startLine"`
}

// WriteSarif exports the triage document as a single-run SARIF log for
// GitHub code scanning.
func WriteSarif(doc *types.TriageDocument, output string) error {
	data, err := json.MarshalIndent(toSarif(doc), "", "  ")
	if err != nil {
		return err
	}
	if err := ensureOutputDir(output); err != nil {
		return err
	}
	if err := os.WriteFile(output, data, 0o600); err != nil {
		return fmt.Errorf("failed to write SARIF export: %w", err)
	}
	log.Infof("SARIF export written to %s", output)
	return nil
}

func toSarif(doc *types.TriageDocument) sarifLog {
	results := make([]sarifResult, 0, len(doc.Findings))
	for _, f := range doc.Findings {
		results = append(results, toSarifResult(f))
	}
	return sarifLog{
		Schema:  sarifSchema,
		Version: sarifVersion,
		Runs: []sarifRun{{
			Tool: sarifTool{Driver: sarifDriver{
				Name:           driverName,
				Version:        driverVersion,
				InformationURI: driverInfoURI,
			}},
			Results: results,
		}},
	}
}

func toSarifResult(f types.TriagedFinding) sarifResult {
	message := f.Advisory
	if message == "" {
		message = "Security vulnerability detected"
	}

	file, line := splitLocation(f.FileLocation)
	location := sarifLocation{
		PhysicalLocation: sarifPhysicalLocation{
			ArtifactLocation: sarifArtifactLocation{
				URI: fmt.Sprintf("repos/%s/%s", f.Repository, file),
			},
		},
	}
	if line > 0 {
		location.PhysicalLocation.Region = &sarifRegion{StartLine: line}
	}

	props := map[string]any{
		"confidence": f.Confidence,
		"deltaClass": string(f.DeltaClass),
		"detectedBy": f.DetectedBy,
	}
	if f.Package != "" {
		props["package"] = f.Package
	}
	if f.FixedIn != "" {
		props["fixedIn"] = f.FixedIn
	}

	return sarifResult{
		RuleID:     f.VulnerabilityID,
		Level:      sarifLevel(f.Severity),
		Message:    sarifText{Text: message},
		Locations:  []sarifLocation{location},
		Properties: props,
	}
}

// splitLocation separates the optional one-based line suffix from a
// "path:line" location.
func splitLocation(loc string) (string, int) {
	i := strings.LastIndex(loc, ":")
	if i < 0 {
		return loc, 0
	}
	line, err := strconv.Atoi(loc[i+1:])
	if err != nil || line <= 0 {
		return loc, 0
	}
	return loc[:i], line
}

// sarifLevel maps canonical severities onto the three levels GitHub
// renders. Unknown severities surface as warnings rather than vanish.
func sarifLevel(s types.Severity) string {
	switch s {
	case types.SeverityCritical, types.SeverityHigh:
		return "error"
	case types.SeverityLow:
		return "note"
	default:
		return "warning"
	}
}
