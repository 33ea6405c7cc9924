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

// PyPIClient queries the PyPI JSON API for published release versions.
type PyPIClient struct {
	baseURL string
	client  *http.Client
	caller  *resilient.Caller
}

func NewPyPIClient(baseURL string, client *http.Client, caller *resilient.Caller) *PyPIClient {
	if client == nil {
		client = defaultHTTPClient()
	}
	return &PyPIClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
		caller:  caller,
	}
}

func (c *PyPIClient) Ecosystem() string { return types.EcosystemPyPI }

type pypiFile struct {
	Yanked bool `json:"yanked"`
}

// Versions lists the release versions published for pkg. Releases whose
// files have all been yanked are dropped; they cannot be installed anymore.
func (c *PyPIClient) Versions(ctx context.Context, pkg string) ([]string, error) {
	var doc struct {
		Releases map[string][]pypiFile `json:"releases"`
	}
	endpoint := fmt.Sprintf("%s/pypi/%s/json", c.baseURL, url.PathEscape(pkg))
	if err := fetchJSON(ctx, c.client, c.caller, endpoint, &doc); err != nil {
		return nil, fmt.Errorf("pypi lookup for %s failed: %w", pkg, err)
	}

	versions := make([]string, 0, len(doc.Releases))
	for v, files := range doc.Releases {
		if yankedRelease(files) {
			continue
		}
		versions = append(versions, v)
	}
	sort.Strings(versions)
	return versions, nil
}

func yankedRelease(files []pypiFile) bool {
	if len(files) == 0 {
		return false
	}
	for _, f := range files {
		if !f.Yanked {
			return false
		}
	}
	return true
}
