package versions

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
	pep440 "github.com/aquasecurity/go-pep440-version"
	"github.com/cboyd0319/security-central/pkg/types"
	log "github.com/sirupsen/logrus"
)

// Comparer bundles the version predicates for one packaging ecosystem.
type Comparer struct {
	IsValid      func(string) bool
	LessThan     func(string, string) bool
	IsPreRelease func(string) bool
}

// ForEcosystem returns the comparer for the given packaging ecosystem.
// PyPI uses PEP 440 semantics; everything else compares as semver.
func ForEcosystem(ecosystem string) Comparer {
	switch strings.ToLower(ecosystem) {
	case types.EcosystemPyPI:
		return Comparer{isValidPEP440, isLessThanPEP440, isPreReleasePEP440}
	default:
		return Comparer{isValidSemver, isLessThanSemver, isPreReleaseSemver}
	}
}

// Normalize strips the constraint operators and prefixes that commonly
// decorate manifest version strings (^1.2.3, ~=1.2, v2.0.0, ">= 1.0").
func Normalize(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimLeft(v, "^~=<>!")
	v = strings.TrimSpace(v)
	return strings.TrimPrefix(v, "v")
}

func isValidSemver(v string) bool {
	_, err := semver.NewVersion(Normalize(v))
	return err == nil
}

func isLessThanSemver(v1, v2 string) bool {
	a, err := semver.NewVersion(Normalize(v1))
	if err != nil {
		log.Warnf("Error parsing version '%s': %v", v1, err)
		return false
	}
	b, err := semver.NewVersion(Normalize(v2))
	if err != nil {
		log.Warnf("Error parsing version '%s': %v", v2, err)
		return false
	}
	return a.LessThan(b)
}

func isPreReleaseSemver(v string) bool {
	parsed, err := semver.NewVersion(Normalize(v))
	if err != nil {
		return false
	}
	return parsed.Prerelease() != ""
}

func isValidPEP440(v string) bool {
	_, err := pep440.Parse(Normalize(v))
	return err == nil
}

func isLessThanPEP440(v1, v2 string) bool {
	a, err := pep440.Parse(Normalize(v1))
	if err != nil {
		log.Warnf("Error parsing Python version '%s': %v", v1, err)
		return false
	}
	b, err := pep440.Parse(Normalize(v2))
	if err != nil {
		log.Warnf("Error parsing Python version '%s': %v", v2, err)
		return false
	}
	return a.LessThan(b)
}

// pep440PreOrDev matches the trailing pre-release and dev segments defined
// by PEP 440 (1.0a1, 2.0.0rc1, 1.0.0.dev3). Post releases do not match.
var pep440PreOrDev = regexp.MustCompile(`(?i)(?:[._-]?(?:a|b|c|rc|alpha|beta|pre|preview)[._-]?\d*|[._-]?dev[._-]?\d*)$`)

func isPreReleasePEP440(v string) bool {
	if !isValidPEP440(v) {
		return false
	}
	return pep440PreOrDev.MatchString(Normalize(v))
}

// MaxVersion returns the highest valid version among candidates according to
// cmp. Invalid candidates are skipped; ok is false when none parse.
func MaxVersion(cmp Comparer, candidates []string) (string, bool) {
	best := ""
	found := false
	for _, c := range candidates {
		if c == "" || !cmp.IsValid(c) {
			continue
		}
		if !found || cmp.LessThan(best, c) {
			best = c
			found = true
		}
	}
	return best, found
}

// releaseSegmentPattern captures the leading numeric release segments of a
// version string after normalization.
var releaseSegmentPattern = regexp.MustCompile(`^(\d+)(?:\.(\d+))?(?:\.(\d+))?`)

// ReleaseSegments extracts the major, minor and patch release segments of a
// version string. Missing segments default to zero; ok is false when no
// leading numeric segment exists.
func ReleaseSegments(v string) (major, minor, patch int, ok bool) {
	m := releaseSegmentPattern.FindStringSubmatch(Normalize(v))
	if m == nil {
		return 0, 0, 0, false
	}
	major, _ = strconv.Atoi(m[1])
	if m[2] != "" {
		minor, _ = strconv.Atoi(m[2])
	}
	if m[3] != "" {
		patch, _ = strconv.Atoi(m[3])
	}
	return major, minor, patch, true
}

// Delta classifies the distance between two concrete versions by comparing
// release segments. Either side failing to parse yields unknown, never a
// guessed class.
func Delta(installed, fixed string) types.DeltaClass {
	iMaj, iMin, _, iOK := ReleaseSegments(installed)
	fMaj, fMin, _, fOK := ReleaseSegments(fixed)
	if !iOK || !fOK {
		return types.DeltaUnknown
	}
	switch {
	case iMaj != fMaj:
		return types.DeltaMajor
	case iMin != fMin:
		return types.DeltaMinor
	default:
		return types.DeltaPatch
	}
}
