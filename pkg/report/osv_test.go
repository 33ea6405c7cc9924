package report

import (
	"testing"

	"github.com/cboyd0319/security-central/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOSV(t *testing.T) {
	p := &OSVParser{}

	findings, skipped, err := p.Parse("testdata/osv-scanner.json", "acme/ml")
	require.NoError(t, err)
	assert.Zero(t, skipped)
	require.Len(t, findings, 3)

	pillow := findings[0]
	assert.Equal(t, "pillow", pillow.Package)
	assert.Equal(t, types.EcosystemPyPI, pillow.Ecosystem, "OSV ecosystem labels map onto canonical names")
	assert.Equal(t, "9.5.0", pillow.InstalledVersion)
	assert.Equal(t, "10.0.1", pillow.FixedVersion, "first fixed event becomes the fix hint")
	assert.Equal(t, "GHSA-j7hp-h8jx-5ppr", pillow.VulnerabilityID)
	assert.Equal(t, types.SeverityCritical, pillow.Severity)

	express := findings[1]
	assert.Equal(t, types.EcosystemNPM, express.Ecosystem)
	assert.Equal(t, types.SeverityMedium, express.Severity)
	assert.Empty(t, express.FixedVersion, "no fixed event means no hint")

	aiohttp := findings[2]
	assert.Equal(t, types.SeverityHigh, aiohttp.Severity, "CVSS score entries cover a missing database severity")
	require.NotNil(t, aiohttp.RawScore)
	assert.InDelta(t, 7.5, *aiohttp.RawScore, 0.001)
	assert.Equal(t, "3.9.2", aiohttp.FixedVersion)
}

func TestParseOSVInvalidDocument(t *testing.T) {
	p := &OSVParser{}

	_, _, err := p.Parse("testdata/invalid.json", "acme/ml")
	assert.ErrorContains(t, err, "malformed osv-scanner report")
}
