package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/webtriage/webtriage/internal/config"
	"github.com/webtriage/webtriage/internal/logging"
)

var (
	cfgFile    string
	projectDir string
	verbose    bool

	appConfig *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "webtriage",
	Short: "Webtriage - LLM-assisted website bug triage",
	Long: `Webtriage drives a browser agent through a list of testing tasks,
records each run as a structured trajectory with screenshots, and asks a
vision-capable LLM to turn the trajectory into a bug report.

Use 'run' to execute a task batch, 'report' to analyze recorded runs, and
'credentials' to manage per-site test logins.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute(ctx context.Context) {
	defer logging.Sync()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .webtriage/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "V", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&projectDir, "project", "p", ".", "project directory")
}

// initConfig sets up logging and loads configuration. Commands that need a
// full config call requireConfig and fail with a hint when loading failed.
func initConfig() {
	if err := logging.Initialize(projectDir, verbose); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logging: %v\n", err)
	}

	loader := config.NewLoader(projectDir)
	if cfgFile != "" {
		loader = config.NewFileLoader(cfgFile)
	}
	if !loader.IsInitialized() {
		return
	}

	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
		return
	}
	appConfig = cfg
}

// requireConfig returns the loaded config or an error telling the user how
// to create one.
func requireConfig() (*config.Config, error) {
	if appConfig == nil {
		return nil, fmt.Errorf("no configuration found, create .webtriage/config.yaml or pass --config")
	}
	return appConfig, nil
}
