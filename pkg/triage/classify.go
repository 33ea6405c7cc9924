package triage

import (
	"github.com/cboyd0319/security-central/pkg/policy"
	"github.com/cboyd0319/security-central/pkg/types"
	"github.com/cboyd0319/security-central/pkg/versions"
)

// Classifier rates the remediation path of deduplicated findings against
// the loaded policy.
type Classifier struct {
	pol *policy.Policy
}

// NewClassifier builds a Classifier over pol.
func NewClassifier(pol *policy.Policy) *Classifier {
	return &Classifier{pol: pol}
}

// Classify produces one triaged finding per input, in input order. A
// finding from a repository without a policy entry is a configuration
// error and aborts the run; silently defaulting a merge gate is worse than
// failing loudly.
func (c *Classifier) Classify(findings []types.DeduplicatedFinding) ([]types.TriagedFinding, error) {
	out := make([]types.TriagedFinding, 0, len(findings))
	for _, f := range findings {
		rule, err := c.pol.Rule(f.Repository)
		if err != nil {
			return nil, err
		}
		floor, err := c.pol.NotificationFloor(f.Repository)
		if err != nil {
			return nil, err
		}

		t := types.TriagedFinding{DeduplicatedFinding: f}
		t.DeltaClass = deltaClass(f)
		t.AutoFixable = c.autoFixable(f, t.DeltaClass)
		t.AutoMergeEligible = autoMergeEligible(f, t.DeltaClass, t.AutoFixable, rule, floor)
		t.Confidence = confidence(c.pol.Confidence, f, t.DeltaClass)
		out = append(out, t)
	}
	return out, nil
}

// fixTarget returns the version a fix would move to, preferring the merged
// hint over the canonical finding's own.
func fixTarget(f types.DeduplicatedFinding) string {
	if f.FixedIn != "" {
		return f.FixedIn
	}
	return f.FixedVersion
}

func deltaClass(f types.DeduplicatedFinding) types.DeltaClass {
	target := fixTarget(f)
	if target == "" || f.InstalledVersion == "" {
		return types.DeltaUnknown
	}
	return versions.Delta(f.InstalledVersion, target)
}

// autoFixable reports whether an automated fix may be raised at all: there
// must be a fix version, the jump must stay within a minor release, and the
// finding must clear the policy's severity floor.
func (c *Classifier) autoFixable(f types.DeduplicatedFinding, delta types.DeltaClass) bool {
	if fixTarget(f) == "" {
		return false
	}
	if delta != types.DeltaPatch && delta != types.DeltaMinor {
		return false
	}
	return f.Severity.AtLeast(c.pol.MinAutoFixSeverity())
}

// autoMergeEligible decides whether the repository's policy allows merging
// the fix without review. The security flag lets critical findings cross
// the delta gates, but never an unknown delta: a jump we cannot size is
// never merged unattended.
func autoMergeEligible(f types.DeduplicatedFinding, delta types.DeltaClass, fixable bool, rule policy.MergeRule, floor types.Severity) bool {
	if fixable && rule.Allows(delta) && f.Severity.AtLeast(floor) {
		return true
	}
	return rule.Security &&
		f.Severity == types.SeverityCritical &&
		fixTarget(f) != "" &&
		delta != types.DeltaUnknown
}
