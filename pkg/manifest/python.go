package manifest

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/cboyd0319/security-central/pkg/types"
	"github.com/cboyd0319/security-central/pkg/versions"
)

// requirementPattern matches pinned and bounded dependency lines
// (package==1.2.3, package>=1.2). Lines without an operator carry no
// version to compare and are ignored.
var requirementPattern = regexp.MustCompile(`^([A-Za-z0-9._-]+)\s*([<>=!~]+)\s*(.+)$`)

func parseRequirements(data []byte, repo, manifestPath string) []types.PackageUsage {
	usages := []types.PackageUsage{}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			continue
		}
		m := requirementPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		usages = append(usages, types.PackageUsage{
			Repository:   repo,
			Package:      strings.ToLower(m[1]),
			Ecosystem:    types.EcosystemPyPI,
			Version:      firstBound(m[3]),
			ManifestPath: manifestPath,
		})
	}
	return usages
}

type pyprojectDoc struct {
	Project struct {
		Dependencies []string `toml:"dependencies"`
	} `toml:"project"`
	Tool struct {
		Poetry struct {
			Dependencies map[string]interface{} `toml:"dependencies"`
		} `toml:"poetry"`
	} `toml:"tool"`
}

func parsePyproject(data []byte, repo, manifestPath string) ([]types.PackageUsage, error) {
	var doc pyprojectDoc
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid pyproject.toml: %w", err)
	}

	usages := []types.PackageUsage{}
	for _, dep := range doc.Project.Dependencies {
		m := requirementPattern.FindStringSubmatch(strings.TrimSpace(dep))
		if m == nil {
			continue
		}
		usages = append(usages, types.PackageUsage{
			Repository:   repo,
			Package:      strings.ToLower(m[1]),
			Ecosystem:    types.EcosystemPyPI,
			Version:      firstBound(m[3]),
			ManifestPath: manifestPath,
		})
	}

	for _, name := range sortedInterfaceKeys(doc.Tool.Poetry.Dependencies) {
		if strings.EqualFold(name, "python") {
			continue
		}
		ver := poetryVersion(doc.Tool.Poetry.Dependencies[name])
		if ver == "" {
			continue
		}
		usages = append(usages, types.PackageUsage{
			Repository:   repo,
			Package:      strings.ToLower(name),
			Ecosystem:    types.EcosystemPyPI,
			Version:      versions.Normalize(firstBound(ver)),
			ManifestPath: manifestPath,
		})
	}
	return usages, nil
}

// poetryVersion pulls the version constraint out of a poetry dependency
// value, which is either a bare string or a table with a version key.
func poetryVersion(spec interface{}) string {
	switch v := spec.(type) {
	case string:
		return v
	case map[string]interface{}:
		if s, ok := v["version"].(string); ok {
			return s
		}
	}
	return ""
}

// firstBound keeps the first bound of a compound constraint like
// "1.2.3,<2.0"; the continuation is a ceiling, not a version in use.
// Trailing environment markers and inline comments are cut off first.
func firstBound(v string) string {
	if i := strings.IndexAny(v, ";#"); i >= 0 {
		v = v[:i]
	}
	return strings.TrimSpace(strings.Split(v, ",")[0])
}

func sortedInterfaceKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
