package report

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cboyd0319/security-central/pkg/types"
	"github.com/cboyd0319/security-central/pkg/versions"
)

// Parser normalizes one scanner's raw JSON report into canonical findings.
// Parse returns the findings, the number of malformed entries skipped, and
// an error only when the document as a whole cannot be decoded. A malformed
// entry inside an otherwise valid report never aborts the parse.
type Parser interface {
	Tool() string
	Parse(file, repo string) (types.Findings, int, error)
}

func allParsers() []Parser {
	return []Parser{
		&PipAuditParser{},
		&SafetyParser{},
		&NpmAuditParser{},
		&OSVParser{},
		&PSScriptAnalyzerParser{},
	}
}

// ParserFor selects the parser registered for the named tool.
func ParserFor(tool string) (Parser, error) {
	for _, p := range allParsers() {
		if p.Tool() == tool {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", types.ErrUnknownTool, tool)
}

// ParseFile normalizes the scan report at file. The tool is inferred from
// the file name, which the scan runner writes as <tool>.json.
func ParseFile(file, repo string) (types.Findings, int, error) {
	tool := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	p, err := ParserFor(tool)
	if err != nil {
		return nil, 0, err
	}
	return p.Parse(file, repo)
}

// maxFixHint reduces a list of fix hints to the highest parseable version,
// falling back to the first raw hint when none parse.
func maxFixHint(ecosystem string, hints []string) (string, bool) {
	best, ok := versions.MaxVersion(versions.ForEcosystem(ecosystem), hints)
	if !ok && len(hints) > 0 {
		return hints[0], false
	}
	return best, ok
}
