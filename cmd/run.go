package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/webtriage/webtriage/internal/runner"
)

var runTasksFile string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the task batch against the configured site",
	Long: `Run executes every task in the task list file. Each task drives the
browser agent from a fresh page, records the run to agent_logs/ with
per-step screenshots, and continues with the next task even when one fails.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := requireConfig()
		if err != nil {
			return err
		}
		if runTasksFile != "" {
			cfg.TasksFile = runTasksFile
		}

		r := runner.New(cfg)
		failed, err := r.Run(cmd.Context())
		if err != nil {
			return err
		}
		if failed > 0 {
			return fmt.Errorf("%d task(s) failed", failed)
		}
		fmt.Println("🎉 All tasks completed")
		return nil
	},
}

func init() {
	runCmd.Flags().StringVarP(&runTasksFile, "tasks", "t", "", "task list file (overrides config)")
	rootCmd.AddCommand(runCmd)
}
