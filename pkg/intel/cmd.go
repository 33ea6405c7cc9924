package intel

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
)

// NewDepsCmd builds the deps subcommand.
func NewDepsCmd() *cobra.Command {
	cfg := Config{}
	depsCmd := &cobra.Command{
		Use:     "deps",
		Short:   "Analyze cross-repository dependency version conflicts",
		Example: "secc deps -m repos/ -p policy.yaml -o intelligence.json",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer cancel()
			if cfg.Timeout > 0 {
				var tcancel context.CancelFunc
				ctx, tcancel = context.WithTimeout(ctx, cfg.Timeout)
				defer tcancel()
			}
			return Analyze(ctx, &cfg)
		},
	}
	flags := depsCmd.Flags()
	flags.StringVarP(&cfg.ReposDir, "repos-dir", "m", "", "Directory holding the repository checkouts to analyze")
	flags.StringVarP(&cfg.PolicyFile, "policy", "p", "", "Policy file path")
	flags.StringVarP(&cfg.Output, "output", "o", "intelligence.json", "Output path for the intelligence document")
	flags.IntVar(&cfg.Workers, "workers", 0, "Concurrent registry lookups, defaults to the policy setting")
	flags.DurationVar(&cfg.Timeout, "timeout", 10*time.Minute, "Timeout for the analysis, defaults to '10m'")

	if err := depsCmd.MarkFlagRequired("repos-dir"); err != nil {
		panic(err)
	}
	if err := depsCmd.MarkFlagRequired("policy"); err != nil {
		panic(err)
	}

	return depsCmd
}
