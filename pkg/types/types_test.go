package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindingJSON(t *testing.T) {
	t.Run("empty optional fields are omitted", func(t *testing.T) {
		f := Finding{
			Repository:      "api-service",
			VulnerabilityID: "CVE-2023-1234",
			Severity:        SeverityHigh,
			SourceTool:      "pip-audit",
		}

		data, err := json.Marshal(f)
		require.NoError(t, err)

		expected := `{"repository":"api-service","vulnerabilityID":"CVE-2023-1234","severity":"HIGH","sourceTool":"pip-audit"}`
		assert.JSONEq(t, expected, string(data))
	})

	t.Run("deduplicated finding flattens the embedded finding", func(t *testing.T) {
		d := DeduplicatedFinding{
			Finding: Finding{
				Repository:       "api-service",
				Package:          "requests",
				Ecosystem:        EcosystemPyPI,
				InstalledVersion: "2.31.0",
				VulnerabilityID:  "CVE-2023-32681",
				Severity:         SeverityMedium,
				SourceTool:       "pip-audit",
			},
			DetectedBy: []string{"pip-audit", "safety"},
			FixedIn:    "2.31.1",
		}

		data, err := json.Marshal(d)
		require.NoError(t, err)

		var decoded map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, "requests", decoded["package"])
		assert.Equal(t, "2.31.1", decoded["fixedIn"])
		assert.NotContains(t, decoded, "finding")
	})
}
