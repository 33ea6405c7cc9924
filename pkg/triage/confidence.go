package triage

import (
	"github.com/cboyd0319/security-central/pkg/policy"
	"github.com/cboyd0319/security-central/pkg/types"
)

// confidence scores how safe the remediation looks on a 0-100 scale. The
// base comes from severity, every corroborating scanner adds trust up to a
// cap, and the size of the version jump adjusts the result: patch fixes
// gain, major jumps lose, unsizable jumps lose the most.
func confidence(w policy.ConfidenceWeights, f types.DeduplicatedFinding, delta types.DeltaClass) int {
	score := w.BaseFor(f.Severity)

	if extra := len(f.DetectedBy) - 1; extra > 0 {
		bonus := extra * w.CorroborationBonus
		if bonus > w.CorroborationCap {
			bonus = w.CorroborationCap
		}
		score += bonus
	}

	switch delta {
	case types.DeltaPatch:
		score += w.PatchBonus
	case types.DeltaMajor:
		score -= w.MajorPenalty
	case types.DeltaUnknown:
		score -= w.UnknownPenalty
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
