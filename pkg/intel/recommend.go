package intel

import (
	"context"
	"fmt"
	"sort"

	"github.com/cboyd0319/security-central/pkg/registry"
	"github.com/cboyd0319/security-central/pkg/types"
	"github.com/cboyd0319/security-central/pkg/versions"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Analyzer enriches version conflicts with registry-backed upgrade targets.
type Analyzer struct {
	clients map[string]registry.MetadataClient
	workers int
}

// NewAnalyzer builds an Analyzer over the given metadata clients, keyed by
// ecosystem. workers bounds the concurrent registry lookups.
func NewAnalyzer(clients map[string]registry.MetadataClient, workers int) *Analyzer {
	if workers <= 0 {
		workers = 4
	}
	return &Analyzer{clients: clients, workers: workers}
}

// Recommend resolves a recommended target version and an upgrade order for
// each conflict. Lookups fan out over a bounded worker pool; a failed lookup
// flags its own conflict and leaves every other conflict untouched. When ctx
// is canceled the finished results are kept, pending conflicts keep the
// lookup-failed flag and an ordering derived from the versions in use, and
// the context error is returned alongside the partial results.
func (a *Analyzer) Recommend(ctx context.Context, conflicts []types.VersionConflict) ([]types.VersionConflict, error) {
	out := make([]types.VersionConflict, len(conflicts))
	copy(out, conflicts)

	sem := make(chan struct{}, a.workers)
	g, gctx := errgroup.WithContext(ctx)
	for i := range out {
		// Until a lookup completes, order against the highest version
		// already in use.
		out[i].LookupFailed = true
		out[i].UpgradeOrder = upgradeOrder(&out[i], "")
		out[i].Rationale = rationale(&out[i], "")

		i := i
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			defer func() { <-sem }()

			a.resolve(gctx, &out[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Warnf("Dependency analysis interrupted, keeping completed lookups: %v", err)
		return out, err
	}
	return out, nil
}

func (a *Analyzer) resolve(ctx context.Context, c *types.VersionConflict) {
	client, ok := a.clients[c.Ecosystem]
	if !ok {
		log.Debugf("No registry client for ecosystem %s, cannot recommend a target for %s", c.Ecosystem, c.Package)
		return
	}
	published, err := client.Versions(ctx, c.Package)
	if err != nil {
		log.Warnf("Registry lookup for %s package %s failed: %v", c.Ecosystem, c.Package, err)
		return
	}
	c.LookupFailed = false
	c.RecommendedTarget = recommendTarget(c.Ecosystem, inUse(c), published)
	c.UpgradeOrder = upgradeOrder(c, c.RecommendedTarget)
	c.Rationale = rationale(c, c.RecommendedTarget)
}

// rationale explains the suggested ordering in one line for the report.
func rationale(c *types.VersionConflict, target string) string {
	if len(c.UpgradeOrder) == 0 {
		return ""
	}
	first := c.UpgradeOrder[0]
	if target == "" {
		return fmt.Sprintf("Upgrade %s first (smallest version gap); no registry target resolved", first)
	}
	return fmt.Sprintf("Upgrade %s first (smallest version gap to %s)", first, target)
}

// inUse flattens the distinct versions declared across every repo.
func inUse(c *types.VersionConflict) []string {
	seen := map[string]bool{}
	all := []string{}
	for _, vers := range c.Versions {
		for _, v := range vers {
			if !seen[v] {
				seen[v] = true
				all = append(all, v)
			}
		}
	}
	sort.Strings(all)
	return all
}

// recommendTarget picks the newest published non-prerelease version that is
// not below any parseable version already in use. An empty result means the
// registry offers no suitable release.
func recommendTarget(ecosystem string, used, published []string) string {
	cmp := versions.ForEcosystem(ecosystem)
	floor := make([]string, 0, len(used))
	for _, v := range used {
		if cmp.IsValid(v) {
			floor = append(floor, v)
		}
	}

	candidates := make([]string, 0, len(published))
	for _, v := range published {
		if !cmp.IsValid(v) || cmp.IsPreRelease(v) {
			continue
		}
		below := false
		for _, f := range floor {
			if cmp.LessThan(v, f) {
				below = true
				break
			}
		}
		if !below {
			candidates = append(candidates, v)
		}
	}
	target, _ := versions.MaxVersion(cmp, candidates)
	return target
}

// upgradeOrder ranks the affected repositories so the repo closest to the
// target upgrades first, ties broken alphabetically. Repos whose versions
// do not parse sort last. With no target, the highest version in use
// stands in.
func upgradeOrder(c *types.VersionConflict, target string) []string {
	cmp := versions.ForEcosystem(c.Ecosystem)
	if target == "" {
		target, _ = versions.MaxVersion(cmp, inUse(c))
	}
	tMajor, tMinor, tPatch, targetOK := versions.ReleaseSegments(target)

	type entry struct {
		repo string
		gap  [3]int
		ok   bool
	}
	entries := make([]entry, 0, len(c.Versions))
	for repo, vers := range c.Versions {
		e := entry{repo: repo}
		if highest, found := versions.MaxVersion(cmp, vers); found && targetOK {
			if major, minor, patch, ok := versions.ReleaseSegments(highest); ok {
				e.ok = true
				e.gap = [3]int{abs(tMajor - major), abs(tMinor - minor), abs(tPatch - patch)}
			}
		}
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.ok != b.ok {
			return a.ok
		}
		if a.ok {
			for k := range a.gap {
				if a.gap[k] != b.gap[k] {
					return a.gap[k] < b.gap[k]
				}
			}
		}
		return a.repo < b.repo
	})

	order := make([]string, 0, len(entries))
	for _, e := range entries {
		order = append(order, e.repo)
	}
	return order
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
