package manifest

import (
	"fmt"
	"io"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/cboyd0319/security-central/pkg/types"
	log "github.com/sirupsen/logrus"
)

const dependencyXPathQuery = "//dependency"

func parsePOM(r io.Reader, repo, manifestPath string) ([]types.PackageUsage, error) {
	doc, err := xmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("invalid pom.xml: %w", err)
	}

	usages := []types.PackageUsage{}
	for _, node := range xmlquery.Find(doc, dependencyXPathQuery) {
		groupID := xmlquery.FindOne(node, "groupId")
		artifactID := xmlquery.FindOne(node, "artifactId")
		version := xmlquery.FindOne(node, "version")
		if groupID == nil || artifactID == nil || version == nil {
			continue
		}

		ver := strings.TrimSpace(version.InnerText())
		if strings.Contains(ver, "${") {
			// Property interpolation, not a concrete version.
			log.Debugf("Skipping interpolated Maven version %s in %s", ver, manifestPath)
			continue
		}
		usages = append(usages, types.PackageUsage{
			Repository:   repo,
			Package:      strings.TrimSpace(groupID.InnerText()) + ":" + strings.TrimSpace(artifactID.InnerText()),
			Ecosystem:    types.EcosystemMaven,
			Version:      ver,
			ManifestPath: manifestPath,
		})
	}
	return usages, nil
}
