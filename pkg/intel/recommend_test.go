package intel

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/cboyd0319/security-central/pkg/registry"
	"github.com/cboyd0319/security-central/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRegistry struct {
	ecosystem string
	published map[string][]string
	errs      map[string]error

	mu    sync.Mutex
	calls int
	hook  func(n int) ([]string, error)
}

func (f *fakeRegistry) Ecosystem() string { return f.ecosystem }

func (f *fakeRegistry) Versions(_ context.Context, pkg string) ([]string, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()

	if f.hook != nil {
		return f.hook(n)
	}
	if err, ok := f.errs[pkg]; ok {
		return nil, err
	}
	return f.published[pkg], nil
}

func pypiFake(published map[string][]string) *fakeRegistry {
	return &fakeRegistry{ecosystem: types.EcosystemPyPI, published: published}
}

func conflict(pkg, eco string, byRepo map[string][]string) types.VersionConflict {
	repos := make([]string, 0, len(byRepo))
	for repo := range byRepo {
		repos = append(repos, repo)
	}
	return types.VersionConflict{
		Package:      pkg,
		Ecosystem:    eco,
		Repositories: repos,
		Versions:     byRepo,
		Severity:     severityMinorSpread,
	}
}

func TestRecommendPicksNewestCoveringRelease(t *testing.T) {
	reg := pypiFake(map[string][]string{
		"black": {"23.9.1", "24.1.0", "24.8.0", "25.0.0a1", "25.1.0"},
	})
	analyzer := NewAnalyzer(map[string]registry.MetadataClient{types.EcosystemPyPI: reg}, 2)

	out, err := analyzer.Recommend(context.Background(), []types.VersionConflict{
		conflict("black", types.EcosystemPyPI, map[string][]string{
			"api":    {"23.9.1"},
			"worker": {"24.1.0"},
		}),
	})
	require.NoError(t, err)
	require.Len(t, out, 1)

	c := out[0]
	assert.False(t, c.LookupFailed)
	assert.Equal(t, "25.1.0", c.RecommendedTarget, "pre-releases must never be recommended")
	assert.Equal(t, []string{"worker", "api"}, c.UpgradeOrder, "the repo closest to the target upgrades first")
	assert.Equal(t, "Upgrade worker first (smallest version gap to 25.1.0)", c.Rationale)
}

func TestRecommendWhenRegistryHasNothingNewer(t *testing.T) {
	reg := pypiFake(map[string][]string{
		"flask": {"2.2.0", "2.3.2", "3.0.0rc1"},
	})
	analyzer := NewAnalyzer(map[string]registry.MetadataClient{types.EcosystemPyPI: reg}, 2)

	out, err := analyzer.Recommend(context.Background(), []types.VersionConflict{
		conflict("flask", types.EcosystemPyPI, map[string][]string{
			"api":    {"2.2.0"},
			"worker": {"2.3.2"},
		}),
	})
	require.NoError(t, err)

	c := out[0]
	assert.False(t, c.LookupFailed)
	assert.Equal(t, "2.3.2", c.RecommendedTarget, "the highest version already in use still covers everyone")
}

func TestRecommendLookupFailureIsIsolated(t *testing.T) {
	reg := pypiFake(map[string][]string{
		"requests": {"2.30.0", "2.31.0", "2.32.3"},
	})
	reg.errs = map[string]error{"flask": errors.New("pypi lookup for flask failed: unexpected status 503")}
	analyzer := NewAnalyzer(map[string]registry.MetadataClient{types.EcosystemPyPI: reg}, 2)

	out, err := analyzer.Recommend(context.Background(), []types.VersionConflict{
		conflict("flask", types.EcosystemPyPI, map[string][]string{
			"api":    {"2.2.0"},
			"worker": {"2.3.2"},
		}),
		conflict("requests", types.EcosystemPyPI, map[string][]string{
			"api":    {"2.30.0"},
			"worker": {"2.31.0"},
		}),
	})
	require.NoError(t, err, "a single failed lookup must not fail the run")
	require.Len(t, out, 2)

	flask, requests := out[0], out[1]
	assert.True(t, flask.LookupFailed)
	assert.Empty(t, flask.RecommendedTarget)
	assert.Equal(t, []string{"worker", "api"}, flask.UpgradeOrder,
		"with no registry answer the order falls back to the highest version in use")
	assert.Contains(t, flask.Rationale, "no registry target resolved")

	assert.False(t, requests.LookupFailed)
	assert.Equal(t, "2.32.3", requests.RecommendedTarget)
}

func TestRecommendWithoutClientForEcosystem(t *testing.T) {
	analyzer := NewAnalyzer(map[string]registry.MetadataClient{}, 2)

	out, err := analyzer.Recommend(context.Background(), []types.VersionConflict{
		conflict("org.apache.logging.log4j:log4j-core", types.EcosystemMaven, map[string][]string{
			"api": {"2.17.0"},
			"web": {"2.20.0"},
		}),
	})
	require.NoError(t, err)

	c := out[0]
	assert.True(t, c.LookupFailed)
	assert.Empty(t, c.RecommendedTarget)
	assert.Len(t, c.UpgradeOrder, 2)
}

// Canceling mid-run keeps whatever lookups already finished and leaves the
// rest flagged as failed.
func TestRecommendCancellationKeepsCompleted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := &fakeRegistry{ecosystem: types.EcosystemPyPI}
	reg.hook = func(n int) ([]string, error) {
		if n == 1 {
			cancel()
			return []string{"9.9.9"}, nil
		}
		return nil, context.Canceled
	}
	analyzer := NewAnalyzer(map[string]registry.MetadataClient{types.EcosystemPyPI: reg}, 1)

	byRepo := map[string][]string{"api": {"1.0.0"}, "worker": {"1.1.0"}}
	out, err := analyzer.Recommend(ctx, []types.VersionConflict{
		conflict("first", types.EcosystemPyPI, byRepo),
		conflict("second", types.EcosystemPyPI, byRepo),
		conflict("third", types.EcosystemPyPI, byRepo),
	})
	if err != nil {
		require.ErrorIs(t, err, context.Canceled)
	}
	require.Len(t, out, 3)

	completed := 0
	for _, c := range out {
		if !c.LookupFailed {
			completed++
			assert.Equal(t, "9.9.9", c.RecommendedTarget)
		} else {
			assert.Empty(t, c.RecommendedTarget)
		}
		assert.Len(t, c.UpgradeOrder, 2, "even unresolved conflicts keep a usable ordering")
	}
	assert.Equal(t, 1, completed)
}

func TestUpgradeOrder(t *testing.T) {
	c := conflict("lodash", types.EcosystemNPM, map[string][]string{
		"checkout": {"4.17.1"},
		"web":      {"4.17.1"},
		"api":      {"4.0.0"},
		"legacy":   {"not-a-version"},
	})

	order := upgradeOrder(&c, "4.17.21")
	assert.Equal(t, []string{"checkout", "web", "api", "legacy"}, order,
		"smallest gap first, alphabetical on ties, unparseable last")
}

func TestRecommendTargetIgnoresUnparseableUsage(t *testing.T) {
	target := recommendTarget(types.EcosystemPyPI,
		[]string{"2.30.0", "latest"},
		[]string{"2.29.0", "2.31.0"})
	assert.Equal(t, "2.31.0", target)
}
