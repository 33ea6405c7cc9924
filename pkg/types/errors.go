package types

import "errors"

// ErrNoFindings indicates that a triage run found no scan reports to parse.
var ErrNoFindings = errors.New("no scan reports found to triage")

// ErrUnknownTool indicates a scan report from a tool without a registered parser.
var ErrUnknownTool = errors.New("no parser registered for tool")
