package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"boorudl/pkg/auth"
	"boorudl/pkg/booru"
	"boorudl/pkg/config"
	"boorudl/pkg/ui"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage endpoint API keys",
	Long: `Manage API keys for the configured endpoints.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation (BOORUDL_PASSPHRASE)
  - Environment variables BOORUDL_<ENDPOINT>_USERNAME and BOORUDL_<ENDPOINT>_API_KEY (read only)

A username and api_key written in the config file take precedence.`,
}

// setCmd represents the auth set command
var setCmd = &cobra.Command{
	Use:     "set <endpoint>",
	Short:   "Store the username and API key of an endpoint",
	Example: `  boorudl auth set danbooru`,
	Args:    cobra.ExactArgs(1),
	RunE:    runAuthSet,
}

// deleteCmd represents the auth delete command
var deleteCmd = &cobra.Command{
	Use:     "delete <endpoint>",
	Aliases: []string{"rm"},
	Short:   "Remove the stored credentials of an endpoint",
	Args:    cobra.ExactArgs(1),
	RunE:    runAuthDelete,
}

// listCmd represents the auth list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored credentials with masked keys",
	Args:  cobra.NoArgs,
	RunE:  runAuthList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(setCmd)
	authCmd.AddCommand(deleteCmd)
	authCmd.AddCommand(listCmd)
}

func runAuthSet(cmd *cobra.Command, args []string) error {
	name := args[0]

	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	fmt.Fprintln(ui.Out, auth.APIKeyGuide(configuredEndpoint(name)))

	reader := bufio.NewReader(os.Stdin)
	if existing, _ := manager.Retrieve(name); existing != nil {
		fmt.Fprintf(ui.Out, "Credentials for '%s' already exist. Replace them? (y/N): ", name)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return nil
		}
	}

	fmt.Fprint(ui.Out, "Username: ")
	username, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("failed to read username: %w", err)
	}
	username = strings.TrimSpace(username)

	fmt.Fprint(ui.Out, "API key (hidden): ")
	apiKey, err := readPassword(reader)
	if err != nil {
		return fmt.Errorf("failed to read API key: %w", err)
	}

	cred := &auth.Credential{
		Endpoint:     name,
		Username:     username,
		APIKey:       apiKey,
		LastModified: time.Now(),
	}
	if err := manager.Store(cred); err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}

	masked := auth.Sanitize(cred)
	ui.PrintSuccess(fmt.Sprintf("Credentials saved for %s", name))
	ui.PrintInfo("Username", masked.Username)
	ui.PrintInfo("API key", masked.APIKey)
	return nil
}

func runAuthDelete(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	if err := manager.Delete(args[0]); err != nil {
		return fmt.Errorf("failed to remove credentials: %w", err)
	}
	ui.PrintSuccess("Credentials removed: " + args[0])
	return nil
}

func runAuthList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	creds, err := manager.List()
	if err != nil {
		return fmt.Errorf("failed to list credentials: %w", err)
	}
	if len(creds) == 0 {
		ui.PrintInfo("No stored credentials", "use 'boorudl auth set <endpoint>' to add one")
		return nil
	}

	ui.PrintHighlight("Stored Credentials")
	for _, c := range creds {
		s := auth.Sanitize(c)
		fmt.Fprintf(ui.Out, "  %s  %s  %s  %s\n",
			ui.Cyan(s.Endpoint), s.Username, s.APIKey,
			ui.Dim(s.LastModified.Format("2006-01-02 15:04")))
	}
	return nil
}

// configuredEndpoint looks name up in the config so the guide can point at
// the right site. Unknown names get a bare endpoint.
func configuredEndpoint(name string) booru.Endpoint {
	ep := booru.Endpoint{Name: name}

	cfg, err := config.LoadUnvalidated(configFile, nil)
	if err != nil {
		return ep
	}
	for _, ec := range cfg.Endpoints {
		if ec.Name != name {
			continue
		}
		ep.BaseURL = strings.TrimRight(ec.URL, "/")
		if d, err := booru.ParseDialect(ec.Dialect); err == nil {
			ep.Dialect = d
		}
	}
	return ep
}

// readPassword reads a secret from stdin without echoing
func readPassword(reader *bufio.Reader) (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		secret, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(ui.Out)
		if err == nil {
			return strings.TrimSpace(string(secret)), nil
		}
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
