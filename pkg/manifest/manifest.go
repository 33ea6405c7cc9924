package manifest

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cboyd0319/security-central/pkg/types"
	"github.com/cboyd0319/security-central/pkg/utils"
	log "github.com/sirupsen/logrus"
)

// Directories that never hold first-party manifests. Descending into
// node_modules in particular would drown the graph in transitive deps.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"venv":         true,
	".venv":        true,
	"__pycache__":  true,
}

// Collect walks every repository checkout under root and extracts the
// dependencies declared in the manifests it finds. Each direct child
// directory of root is treated as one repository.
func Collect(root string) ([]types.PackageUsage, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read repos directory %s: %w", root, err)
	}

	usages := []types.PackageUsage{}
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		repoUsages, err := CollectRepo(filepath.Join(root, entry.Name()), entry.Name())
		if err != nil {
			return nil, err
		}
		usages = append(usages, repoUsages...)
	}
	return usages, nil
}

// CollectRepo extracts the declared dependencies from one repository
// checkout. A manifest that fails to parse is logged and skipped; it
// must not hide the dependencies of every other manifest in the repo.
func CollectRepo(dir, repo string) ([]types.PackageUsage, error) {
	usages := []types.PackageUsage{}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		parsed, perr := parseManifest(path, repo, rel)
		if perr != nil {
			log.Warnf("Failed to parse %s in %s: %v", rel, repo, perr)
			return nil
		}
		usages = append(usages, parsed...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return usages, nil
}

func parseManifest(path, repo, rel string) ([]types.PackageUsage, error) {
	// Zero-byte manifests declare nothing.
	if dir, name := filepath.Split(path); !utils.IsNonEmptyFile(dir, name) {
		return nil, nil
	}
	switch name := filepath.Base(path); {
	case strings.HasPrefix(name, "requirements") && strings.HasSuffix(name, ".txt"):
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return parseRequirements(data, repo, rel), nil
	case name == "pyproject.toml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return parsePyproject(data, repo, rel)
	case name == "package.json":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return parsePackageJSON(data, repo, rel)
	case name == "pom.xml":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return parsePOM(f, repo, rel)
	}
	return nil, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
