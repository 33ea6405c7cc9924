package registry

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/cboyd0319/security-central/pkg/resilient"
	"github.com/cboyd0319/security-central/pkg/types"
)

// NPMClient queries the npm registry for published package versions.
type NPMClient struct {
	baseURL string
	client  *http.Client
	caller  *resilient.Caller
}

func NewNPMClient(baseURL string, client *http.Client, caller *resilient.Caller) *NPMClient {
	if client == nil {
		client = defaultHTTPClient()
	}
	return &NPMClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
		caller:  caller,
	}
}

func (c *NPMClient) Ecosystem() string { return types.EcosystemNPM }

type npmVersionMeta struct {
	Deprecated string `json:"deprecated"`
}

// Versions lists the versions published for pkg, skipping deprecated ones.
// Scoped package names are path-escaped the way the registry expects
// (@scope%2Fname).
func (c *NPMClient) Versions(ctx context.Context, pkg string) ([]string, error) {
	var doc struct {
		Versions map[string]npmVersionMeta `json:"versions"`
	}
	endpoint := fmt.Sprintf("%s/%s", c.baseURL, url.PathEscape(pkg))
	if err := fetchJSON(ctx, c.client, c.caller, endpoint, &doc); err != nil {
		return nil, fmt.Errorf("npm lookup for %s failed: %w", pkg, err)
	}

	versions := make([]string, 0, len(doc.Versions))
	for v, meta := range doc.Versions {
		if meta.Deprecated != "" {
			continue
		}
		versions = append(versions, v)
	}
	sort.Strings(versions)
	return versions, nil
}
