package types

import "time"

// Packaging ecosystems recognized by the manifest collectors and registry
// clients.
const (
	EcosystemPyPI  = "pypi"
	EcosystemNPM   = "npm"
	EcosystemMaven = "maven"
)

// DeltaClass classifies the version distance between an installed version
// and its fix target.
type DeltaClass string

const (
	DeltaPatch   DeltaClass = "patch"
	DeltaMinor   DeltaClass = "minor"
	DeltaMajor   DeltaClass = "major"
	DeltaUnknown DeltaClass = "unknown"
)

// Finding is one normalized issue reported by a single scanner against a
// single repository.
type Finding struct {
	Repository       string   `json:"repository"`
	Package          string   `json:"package,omitempty"`
	Ecosystem        string   `json:"ecosystem,omitempty"`
	InstalledVersion string   `json:"installedVersion,omitempty"`
	FixedVersion     string   `json:"fixedVersion,omitempty"`
	VulnerabilityID  string   `json:"vulnerabilityID"`
	Severity         Severity `json:"severity"`
	SourceTool       string   `json:"sourceTool"`
	FileLocation     string   `json:"fileLocation,omitempty"`
	RawScore         *float64 `json:"rawScore,omitempty"`
	Advisory         string   `json:"advisory,omitempty"`
}

type Findings []Finding

// DeduplicatedFinding is a Finding merged across every scanner that reported
// the same underlying issue.
type DeduplicatedFinding struct {
	Finding
	DetectedBy []string `json:"detectedBy"`
	FixedIn    string   `json:"fixedIn,omitempty"`
}

// TriagedFinding carries the remediation classification for a deduplicated
// finding.
type TriagedFinding struct {
	DeduplicatedFinding
	DeltaClass        DeltaClass `json:"deltaClass"`
	AutoFixable       bool       `json:"autoFixable"`
	AutoMergeEligible bool       `json:"autoMergeEligible"`
	Confidence        int        `json:"confidence"`
}

// PackageUsage records one dependency declaration found in a repository
// manifest.
type PackageUsage struct {
	Repository   string `json:"repository"`
	Package      string `json:"package"`
	Ecosystem    string `json:"ecosystem"`
	Version      string `json:"version"`
	ManifestPath string `json:"manifestPath"`
}

// VersionConflict reports a package pinned at different versions across
// repositories.
type VersionConflict struct {
	Package           string              `json:"package"`
	Ecosystem         string              `json:"ecosystem"`
	Repositories      []string            `json:"repositories"`
	Versions          map[string][]string `json:"versions"`
	Severity          int                 `json:"severity"`
	MajorBoundary     bool                `json:"majorBoundary"`
	RecommendedTarget string              `json:"recommendedTarget,omitempty"`
	LookupFailed      bool                `json:"lookupFailed,omitempty"`
	UpgradeOrder      []string            `json:"upgradeOrder,omitempty"`
	Rationale         string              `json:"rationale,omitempty"`
}

// TriageDocument is the JSON document produced by a triage run.
type TriageDocument struct {
	GeneratedAt       time.Time        `json:"generatedAt"`
	TotalFindings     int              `json:"totalFindings"`
	MergedFindings    int              `json:"mergedFindings"`
	SkippedEntries    int              `json:"skippedEntries"`
	BySeverity        map[Severity]int `json:"bySeverity"`
	AutoFixable       int              `json:"autoFixable"`
	AutoMergeEligible int              `json:"autoMergeEligible"`
	Findings          []TriagedFinding `json:"findings"`
}

// IntelligenceSummary aggregates counters over one dependency analysis run.
type IntelligenceSummary struct {
	TotalPackages         int `json:"totalPackages"`
	SharedPackages        int `json:"sharedPackages"`
	VersionConflicts      int `json:"versionConflicts"`
	HighSeverityConflicts int `json:"highSeverityConflicts"`
	LookupFailures        int `json:"lookupFailures"`
}

// IntelligenceDocument is the JSON document produced by a dependency
// analysis run.
type IntelligenceDocument struct {
	GeneratedAt time.Time           `json:"generatedAt"`
	Summary     IntelligenceSummary `json:"summary"`
	Conflicts   []VersionConflict   `json:"conflicts"`
}
