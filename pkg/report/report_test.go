package report

import (
	"testing"

	"github.com/cboyd0319/security-central/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParserFor(t *testing.T) {
	for _, tool := range []string{"pip-audit", "safety", "npm-audit", "osv-scanner", "PSScriptAnalyzer"} {
		p, err := ParserFor(tool)
		require.NoError(t, err, tool)
		assert.Equal(t, tool, p.Tool())
	}

	_, err := ParserFor("grype")
	assert.ErrorIs(t, err, types.ErrUnknownTool)
}

func TestParseFileInfersTool(t *testing.T) {
	findings, skipped, err := ParseFile("testdata/pip-audit.json", "acme/api")
	require.NoError(t, err)
	assert.Zero(t, skipped)
	require.NotEmpty(t, findings)
	assert.Equal(t, "pip-audit", findings[0].SourceTool)
	assert.Equal(t, "acme/api", findings[0].Repository)

	_, _, err = ParseFile("testdata/psa_single.json", "acme/api")
	assert.ErrorIs(t, err, types.ErrUnknownTool)
}

func TestMaxFixHint(t *testing.T) {
	tests := []struct {
		name      string
		ecosystem string
		hints     []string
		want      string
		parsed    bool
	}{
		{
			name:      "highest of several",
			ecosystem: types.EcosystemPyPI,
			hints:     []string{"2.2.5", "2.3.2"},
			want:      "2.3.2",
			parsed:    true,
		},
		{
			name:      "single hint",
			ecosystem: types.EcosystemNPM,
			hints:     []string{"4.17.21"},
			want:      "4.17.21",
			parsed:    true,
		},
		{
			name:      "range operators are tolerated",
			ecosystem: types.EcosystemNPM,
			hints:     []string{">=7.23.2"},
			want:      ">=7.23.2",
			parsed:    true,
		},
		{
			name:      "unparseable falls back to first raw hint",
			ecosystem: types.EcosystemNPM,
			hints:     []string{"see advisory"},
			want:      "see advisory",
			parsed:    false,
		},
		{
			name:      "no hints",
			ecosystem: types.EcosystemPyPI,
			hints:     nil,
			want:      "",
			parsed:    false,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := maxFixHint(tc.ecosystem, tc.hints)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.parsed, ok)
		})
	}
}
