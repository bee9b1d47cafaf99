package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/webtriage/webtriage/internal/session"
)

var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Manage per-site test account credentials",
	Long: `Credentials are stored in the operating system keyring, scoped to the
configured test profile. The agent reads them when a site requires login.`,
}

var credentialsSetCmd = &cobra.Command{
	Use:   "set <site>",
	Short: "Store username and password for a site",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := sessionManager()
		if err != nil {
			return err
		}
		site := args[0]

		fmt.Printf("Username for %s: ", site)
		reader := bufio.NewReader(os.Stdin)
		username, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("reading username: %w", err)
		}
		username = strings.TrimSpace(username)
		if username == "" {
			return fmt.Errorf("username must not be empty")
		}

		fmt.Printf("Password for %s: ", site)
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("reading password: %w", err)
		}
		if len(password) == 0 {
			return fmt.Errorf("password must not be empty")
		}

		if err := sess.StoreCredentials(site, username, string(password)); err != nil {
			return err
		}
		fmt.Printf("🔐 Credentials for %s saved to the system keyring\n", site)
		return nil
	},
}

var credentialsCheckCmd = &cobra.Command{
	Use:   "check <site>",
	Short: "Check whether credentials exist for a site",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := sessionManager()
		if err != nil {
			return err
		}
		site := args[0]

		username, _, err := sess.Credentials(site)
		if errors.Is(err, session.ErrCredentialsNotFound) {
			fmt.Printf("❌ No credentials stored for %s\n", site)
			os.Exit(1)
		}
		if err != nil {
			return err
		}
		fmt.Printf("✅ Credentials for %s present (user: %s)\n", site, username)
		return nil
	},
}

var credentialsDeleteCmd = &cobra.Command{
	Use:   "delete <site>",
	Short: "Remove stored credentials for a site",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := sessionManager()
		if err != nil {
			return err
		}
		site := args[0]

		if err := sess.DeleteCredentials(site); err != nil {
			return err
		}
		fmt.Printf("🗑️  Credentials for %s removed\n", site)
		return nil
	},
}

func sessionManager() (*session.Manager, error) {
	cfg, err := requireConfig()
	if err != nil {
		return nil, err
	}
	return session.NewManager(cfg.Browser.TestProfileName, cfg.Paths.AuthRoot)
}

func init() {
	credentialsCmd.AddCommand(credentialsSetCmd)
	credentialsCmd.AddCommand(credentialsCheckCmd)
	credentialsCmd.AddCommand(credentialsDeleteCmd)
	rootCmd.AddCommand(credentialsCmd)
}
