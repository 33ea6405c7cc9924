package intel

import (
	"sort"
	"strconv"
	"strings"

	"github.com/cboyd0319/security-central/pkg/types"
	"github.com/cboyd0319/security-central/pkg/utils"
	"github.com/cboyd0319/security-central/pkg/versions"
)

// Conflict severity bands on the 0-10 scale. A spread across major releases
// always rates above a minor-only spread, which in turn beats patch drift.
// Wider spreads earn small bonuses but never cross into the next band from
// below.
const (
	severityPatchSpread = 2
	severityUnparsed    = 3
	severityMixed       = 5
	severityMinorSpread = 6
	severityMajorSpread = 10

	// HighSeverityFloor marks the conflicts counted as high severity in the
	// run summary.
	HighSeverityFloor = 8
)

type packageNode struct {
	ecosystem string
	name      string
	versions  map[string][]string // repo -> versions declared there
}

// Graph indexes which repositories declare which package at which version.
type Graph struct {
	nodes map[string]*packageNode
}

// BuildGraph folds collected manifest usages into a package graph. Usages
// without a package name or version carry nothing to compare and are
// dropped.
func BuildGraph(usages []types.PackageUsage) *Graph {
	g := &Graph{nodes: map[string]*packageNode{}}
	for _, u := range usages {
		if u.Package == "" || u.Version == "" {
			continue
		}
		key := u.Ecosystem + "|" + u.Package
		node, ok := g.nodes[key]
		if !ok {
			node = &packageNode{
				ecosystem: u.Ecosystem,
				name:      u.Package,
				versions:  map[string][]string{},
			}
			g.nodes[key] = node
		}
		node.versions[u.Repository] = append(node.versions[u.Repository], u.Version)
	}
	return g
}

// Conflicts lists the packages declared at two or more distinct versions
// across two or more repositories, most severe first, package name breaking
// ties.
func (g *Graph) Conflicts() []types.VersionConflict {
	conflicts := []types.VersionConflict{}
	for _, node := range g.nodes {
		if len(node.versions) < 2 {
			continue
		}

		distinct := map[string]bool{}
		repos := make([]string, 0, len(node.versions))
		versionsByRepo := make(map[string][]string, len(node.versions))
		for repo, vers := range node.versions {
			repos = append(repos, repo)
			unique := utils.DeduplicateStringSlice(vers)
			sort.Strings(unique)
			versionsByRepo[repo] = unique
			for _, v := range unique {
				distinct[v] = true
			}
		}
		if len(distinct) < 2 {
			continue
		}
		sort.Strings(repos)

		all := make([]string, 0, len(distinct))
		for v := range distinct {
			all = append(all, v)
		}
		sort.Strings(all)

		severity, majorBoundary := conflictSeverity(all, len(repos))
		conflicts = append(conflicts, types.VersionConflict{
			Package:       node.name,
			Ecosystem:     node.ecosystem,
			Repositories:  repos,
			Versions:      versionsByRepo,
			Severity:      severity,
			MajorBoundary: majorBoundary,
		})
	}

	sort.Slice(conflicts, func(i, j int) bool {
		if conflicts[i].Severity != conflicts[j].Severity {
			return conflicts[i].Severity > conflicts[j].Severity
		}
		return conflicts[i].Package < conflicts[j].Package
	})
	return conflicts
}

// conflictSeverity rates how bad a version spread is. Versions whose leading
// segments are not numeric rate a flat severityMixed; a spread where no
// version has two release segments rates severityUnparsed. Everything else
// gets its band from the widest boundary crossed, plus a point each for more
// than two distinct versions and more than two affected repos, capped at the
// major band.
func conflictSeverity(distinct []string, repoCount int) (severity int, majorBoundary bool) {
	type release struct{ major, minor int }
	parsed := make([]release, 0, len(distinct))
	for _, v := range distinct {
		parts := strings.Split(versions.Normalize(v), ".")
		if len(parts) < 2 {
			continue
		}
		major, errMajor := strconv.Atoi(parts[0])
		minor, errMinor := strconv.Atoi(parts[1])
		if errMajor != nil || errMinor != nil {
			return severityMixed, false
		}
		parsed = append(parsed, release{major, minor})
	}
	if len(parsed) == 0 {
		return severityUnparsed, false
	}

	majors := map[int]bool{}
	minors := map[int]bool{}
	for _, r := range parsed {
		majors[r.major] = true
		minors[r.minor] = true
	}

	majorBoundary = len(majors) > 1
	severity = severityPatchSpread
	switch {
	case majorBoundary:
		severity = severityMajorSpread
	case len(minors) > 1:
		severity = severityMinorSpread
	}
	if len(distinct) > 2 {
		severity++
	}
	if repoCount > 2 {
		severity++
	}
	if severity > severityMajorSpread {
		severity = severityMajorSpread
	}
	return severity, majorBoundary
}

// Summary computes the run counters over the graph and its conflicts.
func (g *Graph) Summary(conflicts []types.VersionConflict) types.IntelligenceSummary {
	shared := 0
	for _, node := range g.nodes {
		if len(node.versions) > 1 {
			shared++
		}
	}
	summary := types.IntelligenceSummary{
		TotalPackages:    len(g.nodes),
		SharedPackages:   shared,
		VersionConflicts: len(conflicts),
	}
	for _, c := range conflicts {
		if c.Severity >= HighSeverityFloor {
			summary.HighSeverityConflicts++
		}
		if c.LookupFailed {
			summary.LookupFailures++
		}
	}
	return summary
}
