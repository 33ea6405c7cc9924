package policy

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/cboyd0319/security-central/pkg/types"
	"gopkg.in/yaml.v2"
)

// Duration parses YAML duration strings ("500ms", "30s") into time.Duration.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MergeRule is the per-repository auto-merge decision table. Every key must
// be spelled out in the policy file; an absent key is a configuration error,
// never an implicit false.
type MergeRule struct {
	Patch    bool
	Minor    bool
	Major    bool
	Security bool
}

func (r *MergeRule) UnmarshalYAML(unmarshal func(interface{}) error) error {
	raw := struct {
		Patch    *bool `yaml:"patch"`
		Minor    *bool `yaml:"minor"`
		Major    *bool `yaml:"major"`
		Security *bool `yaml:"security"`
	}{}
	if err := unmarshal(&raw); err != nil {
		return err
	}

	var missing []string
	if raw.Patch == nil {
		missing = append(missing, "patch")
	}
	if raw.Minor == nil {
		missing = append(missing, "minor")
	}
	if raw.Major == nil {
		missing = append(missing, "major")
	}
	if raw.Security == nil {
		missing = append(missing, "security")
	}
	if len(missing) > 0 {
		return fmt.Errorf("auto_merge rule is missing required keys: %s", strings.Join(missing, ", "))
	}

	*r = MergeRule{Patch: *raw.Patch, Minor: *raw.Minor, Major: *raw.Major, Security: *raw.Security}
	return nil
}

// Allows reports whether the rule permits automated merging for the given
// delta class. Unknown deltas are never allowed.
func (r MergeRule) Allows(delta types.DeltaClass) bool {
	switch delta {
	case types.DeltaPatch:
		return r.Patch
	case types.DeltaMinor:
		return r.Minor
	case types.DeltaMajor:
		return r.Major
	default:
		return false
	}
}

// RepoPolicy is the per-repository policy entry.
type RepoPolicy struct {
	AutoMerge             MergeRule `yaml:"auto_merge"`
	NotificationThreshold string    `yaml:"notification_threshold"`

	notificationFloor types.Severity
}

// AutoFixRule gates which findings are candidates for automated fixes.
type AutoFixRule struct {
	MinSeverity string `yaml:"min_severity"`

	minSeverity types.Severity
}

// ConfidenceWeights parameterizes the 0-100 fix confidence score.
type ConfidenceWeights struct {
	BaseCritical       int `yaml:"base_critical"`
	BaseHigh           int `yaml:"base_high"`
	BaseMedium         int `yaml:"base_medium"`
	BaseLow            int `yaml:"base_low"`
	BaseUnknown        int `yaml:"base_unknown"`
	CorroborationBonus int `yaml:"corroboration_bonus"`
	CorroborationCap   int `yaml:"corroboration_cap"`
	PatchBonus         int `yaml:"patch_bonus"`
	MajorPenalty       int `yaml:"major_penalty"`
	UnknownPenalty     int `yaml:"unknown_penalty"`
}

// BaseFor returns the starting score for a severity.
func (w ConfidenceWeights) BaseFor(s types.Severity) int {
	switch s {
	case types.SeverityCritical:
		return w.BaseCritical
	case types.SeverityHigh:
		return w.BaseHigh
	case types.SeverityMedium:
		return w.BaseMedium
	case types.SeverityLow:
		return w.BaseLow
	default:
		return w.BaseUnknown
	}
}

// ScoreRange bounds the CVSS scores that map to one severity name. Max is
// informational; banding only needs the floors.
type ScoreRange struct {
	Min float64  `yaml:"min"`
	Max *float64 `yaml:"max"`
}

type scoreBand struct {
	floor    float64
	severity types.Severity
}

// RegistrySettings configures the package registry clients and their shared
// call budget.
type RegistrySettings struct {
	CallsPerMinute int      `yaml:"calls_per_minute"`
	MaxAttempts    int      `yaml:"max_attempts"`
	BaseDelay      Duration `yaml:"base_delay"`
	Timeout        Duration `yaml:"timeout"`
	PyPIBaseURL    string   `yaml:"pypi_base_url"`
	NPMBaseURL     string   `yaml:"npm_base_url"`
}

// Policy is the parsed security-central policy file.
type Policy struct {
	Version         string                `yaml:"version"`
	SeverityRanges  map[string]ScoreRange `yaml:"severity_ranges"`
	ScannerPriority map[string]int        `yaml:"scanner_priority"`
	AutoFix         AutoFixRule           `yaml:"auto_fix"`
	Confidence      ConfidenceWeights     `yaml:"confidence"`
	Repositories    map[string]RepoPolicy `yaml:"repositories"`
	Registry        RegistrySettings      `yaml:"registry"`
	Workers         int                   `yaml:"workers"`

	scoreBands []scoreBand
}

// DefaultScannerPriority ranks scanners by reliability; higher wins merges.
// The ranking is fixed and documented here so triage output is reproducible
// across runs, but a policy file may override individual entries.
func DefaultScannerPriority() map[string]int {
	return map[string]int{
		"pip-audit":        10,
		"npm-audit":        9,
		"osv-scanner":      8,
		"safety":           7,
		"bandit":           6,
		"semgrep":          5,
		"dependency-check": 4,
		"PSScriptAnalyzer": 3,
	}
}

// DefaultSeverityRanges returns the standard CVSS v3 rating bands. A policy
// file may override individual entries.
func DefaultSeverityRanges() map[string]ScoreRange {
	ten := 10.0
	return map[string]ScoreRange{
		"critical": {Min: 9.0, Max: &ten},
		"high":     {Min: 7.0},
		"medium":   {Min: 4.0},
		"low":      {Min: 0.0},
	}
}

func defaultConfidenceWeights() ConfidenceWeights {
	return ConfidenceWeights{
		BaseCritical:       85,
		BaseHigh:           75,
		BaseMedium:         55,
		BaseLow:            40,
		BaseUnknown:        25,
		CorroborationBonus: 7,
		CorroborationCap:   21,
		PatchBonus:         10,
		MajorPenalty:       15,
		UnknownPenalty:     25,
	}
}

// Load reads and validates the policy file at path. Structural problems are
// fatal and name the offending file and key.
func Load(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file %s: %w", path, err)
	}

	p := Policy{
		SeverityRanges:  DefaultSeverityRanges(),
		ScannerPriority: DefaultScannerPriority(),
		Confidence:      defaultConfidenceWeights(),
		AutoFix:         AutoFixRule{MinSeverity: string(types.SeverityLow)},
		Registry: RegistrySettings{
			CallsPerMinute: 30,
			MaxAttempts:    4,
			BaseDelay:      Duration(500 * time.Millisecond),
			Timeout:        Duration(30 * time.Second),
		},
		Workers: 4,
	}
	if err := yaml.UnmarshalStrict(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse policy file %s: %w", path, err)
	}
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("invalid policy file %s: %w", path, err)
	}
	return &p, nil
}

func (p *Policy) validate() error {
	floor, ok := types.ParseSeverityName(p.AutoFix.MinSeverity)
	if !ok {
		return fmt.Errorf("auto_fix.min_severity %q is not a severity name", p.AutoFix.MinSeverity)
	}
	p.AutoFix.minSeverity = floor

	p.scoreBands = p.scoreBands[:0]
	for name, rng := range p.SeverityRanges {
		sev, ok := types.ParseSeverityName(name)
		if !ok || sev == types.SeverityUnknown {
			return fmt.Errorf("severity_ranges key %q is not a severity name", name)
		}
		if rng.Max != nil && *rng.Max < rng.Min {
			return fmt.Errorf("severity_ranges.%s max is below min", name)
		}
		p.scoreBands = append(p.scoreBands, scoreBand{floor: rng.Min, severity: sev})
	}
	sort.Slice(p.scoreBands, func(i, j int) bool {
		return p.scoreBands[i].floor > p.scoreBands[j].floor
	})

	for name, repo := range p.Repositories {
		if repo.NotificationThreshold == "" {
			return fmt.Errorf("repository %q is missing notification_threshold", name)
		}
		threshold, ok := types.ParseSeverityName(repo.NotificationThreshold)
		if !ok {
			return fmt.Errorf("repository %q notification_threshold %q is not a severity name", name, repo.NotificationThreshold)
		}
		repo.notificationFloor = threshold
		p.Repositories[name] = repo
	}

	w := p.Confidence
	for key, v := range map[string]int{
		"corroboration_bonus": w.CorroborationBonus,
		"corroboration_cap":   w.CorroborationCap,
		"patch_bonus":         w.PatchBonus,
		"major_penalty":       w.MajorPenalty,
		"unknown_penalty":     w.UnknownPenalty,
	} {
		if v < 0 {
			return fmt.Errorf("confidence.%s must not be negative", key)
		}
	}

	if p.Registry.CallsPerMinute <= 0 {
		return fmt.Errorf("registry.calls_per_minute must be positive")
	}
	if p.Registry.MaxAttempts <= 0 {
		return fmt.Errorf("registry.max_attempts must be positive")
	}
	if p.Workers <= 0 {
		return fmt.Errorf("workers must be positive")
	}
	return nil
}

// Rule returns the auto-merge decision table for repo. A repository without
// a policy entry is a configuration error, never a default.
func (p *Policy) Rule(repo string) (MergeRule, error) {
	rp, ok := p.Repositories[repo]
	if !ok {
		return MergeRule{}, fmt.Errorf("no policy entry for repository %q", repo)
	}
	return rp.AutoMerge, nil
}

// NotificationFloor returns the minimum severity repo wants surfaced.
func (p *Policy) NotificationFloor(repo string) (types.Severity, error) {
	rp, ok := p.Repositories[repo]
	if !ok {
		return types.SeverityUnknown, fmt.Errorf("no policy entry for repository %q", repo)
	}
	return rp.notificationFloor, nil
}

// MinAutoFixSeverity returns the severity floor below which findings are
// never auto-fix candidates.
func (p *Policy) MinAutoFixSeverity() types.Severity {
	return p.AutoFix.minSeverity
}

// SeverityFromScore buckets a CVSS score using the configured ranges.
// Scores at or above a range's floor take that range's severity; zero and
// negative scores stay unknown.
func (p *Policy) SeverityFromScore(score float64) types.Severity {
	if score <= 0 {
		return types.SeverityUnknown
	}
	for _, b := range p.scoreBands {
		if score >= b.floor {
			return b.severity
		}
	}
	return types.SeverityUnknown
}
