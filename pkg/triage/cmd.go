package triage

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
)

// NewTriageCmd builds the triage subcommand.
func NewTriageCmd() *cobra.Command {
	cfg := Config{}
	triageCmd := &cobra.Command{
		Use:     "triage",
		Short:   "Normalize, deduplicate and classify scanner findings",
		Example: "secc triage -i scans/ -p policy.yaml -o triage.json --sarif triage.sarif",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer cancel()
			if cfg.Timeout > 0 {
				var tcancel context.CancelFunc
				ctx, tcancel = context.WithTimeout(ctx, cfg.Timeout)
				defer tcancel()
			}
			return Run(ctx, &cfg)
		},
	}
	flags := triageCmd.Flags()
	flags.StringVarP(&cfg.ScanDir, "input", "i", "", "Directory holding the scan reports, one subdirectory per repository")
	flags.StringVarP(&cfg.PolicyFile, "policy", "p", "", "Policy file path")
	flags.StringVarP(&cfg.Output, "output", "o", "triage.json", "Output path for the triage document")
	flags.StringVar(&cfg.SarifOutput, "sarif", "", "Also export the findings as SARIF to this path")
	flags.IntVar(&cfg.Workers, "workers", 0, "Concurrent repositories to normalize, defaults to the policy setting")
	flags.BoolVar(&cfg.IgnoreErrors, "ignore-errors", false, "Keep going when individual scan reports cannot be parsed")
	flags.DurationVar(&cfg.Timeout, "timeout", 5*time.Minute, "Timeout for the triage run, defaults to '5m'")

	if err := triageCmd.MarkFlagRequired("input"); err != nil {
		panic(err)
	}
	if err := triageCmd.MarkFlagRequired("policy"); err != nil {
		panic(err)
	}

	return triageCmd
}
