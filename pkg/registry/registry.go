package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cboyd0319/security-central/pkg/policy"
	"github.com/cboyd0319/security-central/pkg/resilient"
	"github.com/cboyd0319/security-central/pkg/types"
	log "github.com/sirupsen/logrus"
)

const userAgent = "security-central"

// MetadataClient lists the published versions of packages in one ecosystem.
type MetadataClient interface {
	Ecosystem() string
	Versions(ctx context.Context, pkg string) ([]string, error)
}

// Clients builds the default metadata clients keyed by ecosystem. Each
// registry gets its own Caller so the rate ceilings are enforced per
// endpoint group, shared by every goroutine querying that registry.
func Clients(settings policy.RegistrySettings) map[string]MetadataClient {
	opts := resilient.Options{
		MaxAttempts:    settings.MaxAttempts,
		BaseDelay:      time.Duration(settings.BaseDelay),
		CallsPerMinute: settings.CallsPerMinute,
	}
	httpClient := &http.Client{Timeout: time.Duration(settings.Timeout)}
	return map[string]MetadataClient{
		types.EcosystemPyPI: NewPyPIClient(settings.PyPIBaseURL, httpClient, resilient.New("pypi", opts)),
		types.EcosystemNPM:  NewNPMClient(settings.NPMBaseURL, httpClient, resilient.New("npm", opts)),
	}
}

func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

// fetchJSON gets url under the caller's retry and rate-limit regime and
// decodes the response body into out.
func fetchJSON(ctx context.Context, client *http.Client, caller *resilient.Caller, url string, out any) error {
	log.Debugf("Registry lookup: %s", url)
	return caller.Do(ctx, url, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("failed to create registry request: %w", err)
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if err := resilient.CheckResponse(resp); err != nil {
			return err
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read registry response: %w", err)
		}
		return json.Unmarshal(body, out)
	})
}
