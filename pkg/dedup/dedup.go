package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/cboyd0319/security-central/pkg/types"
	"github.com/cboyd0319/security-central/pkg/utils"
	"github.com/cboyd0319/security-central/pkg/versions"
	log "github.com/sirupsen/logrus"
)

// Fingerprint derives the stable identity of a finding from its repository,
// package (or rule, for script diagnostics that carry no package), the
// vulnerability id and the file location. Case differences between scanner
// outputs never produce distinct fingerprints.
func Fingerprint(f types.Finding) string {
	pkg := f.Package
	if pkg == "" {
		pkg = f.VulnerabilityID
	}
	parts := []string{f.Repository, pkg, f.VulnerabilityID, f.FileLocation}
	sum := sha256.Sum256([]byte(strings.ToLower(strings.Join(parts, "|"))))
	return hex.EncodeToString(sum[:])
}

// Deduplicate collapses findings that several scanners reported for the same
// underlying issue. The canonical scalar fields come from the finding whose
// source tool ranks highest in priority, FixedIn keeps the highest fix hint
// seen across the group, and DetectedBy accumulates every reporting tool.
// Groups appear in first-seen order and the merged count tallies how many
// findings were folded away.
func Deduplicate(findings types.Findings, priority map[string]int) ([]types.DeduplicatedFinding, int) {
	groups := make(map[string]*types.DeduplicatedFinding, len(findings))
	hints := make(map[string][]fixHint, len(findings))
	order := make([]string, 0, len(findings))
	merged := 0

	for _, f := range findings {
		fp := Fingerprint(f)
		g, ok := groups[fp]
		if !ok {
			groups[fp] = &types.DeduplicatedFinding{
				Finding:    f,
				DetectedBy: []string{f.SourceTool},
			}
			hints[fp] = append(hints[fp], fixHint{f.FixedVersion, priority[f.SourceTool]})
			order = append(order, fp)
			continue
		}

		merged++
		if priority[f.SourceTool] > priority[g.SourceTool] {
			log.Debugf("Finding %s: preferring %s report over %s", f.VulnerabilityID, f.SourceTool, g.SourceTool)
			g.Finding = f
		}
		g.DetectedBy = append(g.DetectedBy, f.SourceTool)
		hints[fp] = append(hints[fp], fixHint{f.FixedVersion, priority[f.SourceTool]})
	}

	out := make([]types.DeduplicatedFinding, 0, len(order))
	for _, fp := range order {
		g := groups[fp]
		g.DetectedBy = utils.DeduplicateStringSlice(g.DetectedBy)
		sort.Strings(g.DetectedBy)
		g.FixedIn = bestHint(g.Ecosystem, hints[fp])
		out = append(out, *g)
	}
	return out, merged
}

// fixHint pairs one scanner's fix version with that scanner's priority.
type fixHint struct {
	version  string
	priority int
}

// bestHint reduces the fix hints collected across a group to the highest
// version the ecosystem's comparer accepts, falling back to the first
// non-empty raw hint when none parse. When two hints name the same version
// in different spellings, the higher-priority scanner's spelling wins.
func bestHint(ecosystem string, hints []fixHint) string {
	cmp := versions.ForEcosystem(ecosystem)
	var best fixHint
	found := false
	for _, h := range hints {
		if h.version == "" || !cmp.IsValid(h.version) {
			continue
		}
		if !found || cmp.LessThan(best.version, h.version) {
			best, found = h, true
			continue
		}
		if !cmp.LessThan(h.version, best.version) && h.priority > best.priority {
			best = h
		}
	}
	if found {
		return best.version
	}
	for _, h := range hints {
		if h.version != "" {
			return h.version
		}
	}
	return ""
}
