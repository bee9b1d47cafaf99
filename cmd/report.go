package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/webtriage/webtriage/internal/llm"
	"github.com/webtriage/webtriage/internal/runner"
)

var (
	reportDir    string
	reportPrefix string
)

var reportCmd = &cobra.Command{
	Use:   "report [run-log]",
	Short: "Generate bug reports from recorded agent runs",
	Long: `Report feeds a recorded run trajectory, screenshots included, to the
configured LLM and writes its verdict to bug_reports/.

Analyze a single log by path, or a whole directory of logs with --dir and
an optional filename --prefix.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := requireConfig()
		if err != nil {
			return err
		}
		client, err := llm.NewClient(cfg.LLM)
		if err != nil {
			return err
		}

		if len(args) == 1 {
			outPath, err := runner.GenerateReport(cmd.Context(), client, args[0], cfg)
			if err != nil {
				return err
			}
			fmt.Printf("📝 Bug report saved to %s\n", outPath)
			return nil
		}

		dir := reportDir
		if dir == "" {
			dir = cfg.Paths.Logs
		}
		return runner.GenerateReports(cmd.Context(), client, dir, reportPrefix, cfg)
	},
}

func init() {
	reportCmd.Flags().StringVarP(&reportDir, "dir", "d", "", "directory of run logs (default: configured log dir)")
	reportCmd.Flags().StringVar(&reportPrefix, "prefix", "agent_run_", "only analyze logs whose filename starts with this prefix")
	rootCmd.AddCommand(reportCmd)
}
