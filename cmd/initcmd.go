package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/webtriage/webtriage/internal/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default configuration in the current project",
	Long: `Init writes a starter .webtriage/config.yaml with the default browser,
agent and analyzer settings. Edit it afterwards to point at your site and
set the LLM provider; API keys can stay out of the file and come from
ANTHROPIC_API_KEY or OPENAI_API_KEY instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		loader := config.NewLoader(projectDir)
		path := loader.GetConfigPath()

		if _, err := os.Stat(path); err == nil && !initForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}

		if err := loader.Save(config.DefaultConfig(), path); err != nil {
			return err
		}
		fmt.Printf("📝 Wrote %s\n", path)
		fmt.Println("Next steps:")
		fmt.Println("  1. Set your LLM API key (ANTHROPIC_API_KEY or llm.api_key)")
		fmt.Println("  2. Add your site's login selectors under auth_manager.sites")
		fmt.Println("  3. Store test credentials: webtriage credentials set <site>")
		fmt.Println("  4. List tasks in tasks.txt and run: webtriage run")
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing config file")
	rootCmd.AddCommand(initCmd)
}
