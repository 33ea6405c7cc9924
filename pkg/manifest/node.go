package manifest

import (
	"encoding/json"
	"fmt"

	"github.com/cboyd0319/security-central/pkg/types"
	"github.com/cboyd0319/security-central/pkg/versions"
)

type packageJSON struct {
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

func parsePackageJSON(data []byte, repo, manifestPath string) ([]types.PackageUsage, error) {
	var doc packageJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid package.json: %w", err)
	}

	usages := []types.PackageUsage{}
	for _, deps := range []map[string]string{doc.Dependencies, doc.DevDependencies} {
		for _, name := range sortedKeys(deps) {
			ver := versions.Normalize(deps[name])
			if ver == "" {
				continue
			}
			usages = append(usages, types.PackageUsage{
				Repository:   repo,
				Package:      name,
				Ecosystem:    types.EcosystemNPM,
				Version:      ver,
				ManifestPath: manifestPath,
			})
		}
	}
	return usages, nil
}
