package cli

import (
	"github.com/VictoriaMetrics/metrics"
	"github.com/spf13/cobra"
)

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	var process bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print ledger metrics in Prometheus text format",
		Long: `Print the ledger counters (cache hits and misses, saves, conflicts,
purchases) of this process in Prometheus text exposition format.
With --process, Go runtime and process metrics are included.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			metrics.WritePrometheus(cmd.OutOrStdout(), process)
			return nil
		},
	}
	cmd.Flags().BoolVar(&process, "process", false, "include Go runtime and process metrics")
	return cmd
}
