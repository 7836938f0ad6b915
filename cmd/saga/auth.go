package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sagalabs/saga/internal/credential"
)

// AuthCmd creates the auth command with its subcommands.
func AuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage provider API keys in the OS keychain",
		Long: `Store, inspect, and remove provider API keys.

Keys are kept in the OS keychain (set SAGA_KEYRING_DISABLED=1 to opt out
on headless machines and use environment variables instead).

Examples:
  saga auth set gemini
  saga auth show gemini
  saga auth clear gemini`,
	}

	cmd.AddCommand(authSetCmd())
	cmd.AddCommand(authShowCmd())
	cmd.AddCommand(authClearCmd())
	return cmd
}

func authSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <provider> [key]",
		Short: "Store an API key",
		Args:  cobra.RangeArgs(1, 2),
		Run: func(cmd *cobra.Command, args []string) {
			provider := args[0]
			var key string
			if len(args) == 2 {
				key = args[1]
			} else {
				fmt.Printf("API key for %s: ", provider)
				line, err := bufio.NewReader(os.Stdin).ReadString('\n')
				if err != nil {
					fmt.Fprintf(os.Stderr, "\033[31mError: %v\033[0m\n", err)
					os.Exit(1)
				}
				key = strings.TrimSpace(line)
			}
			if key == "" {
				fmt.Fprintln(os.Stderr, "\033[31mError: empty key\033[0m")
				os.Exit(1)
			}
			if !credential.Available() {
				fmt.Fprintln(os.Stderr, "\033[31mError: OS keychain unavailable; set the key via environment variable instead\033[0m")
				os.Exit(1)
			}
			if err := credential.Set(provider, key); err != nil {
				fmt.Fprintf(os.Stderr, "\033[31mError: %v\033[0m\n", err)
				os.Exit(1)
			}
			fmt.Printf("Stored key for %s.\n", provider)
		},
	}
}

func authShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <provider>",
		Short: "Show where a provider's key comes from",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			provider := args[0]
			cfg := loadConfig()

			var configured string
			if pc := cfg.ProviderFor(provider); pc != nil {
				configured = pc.APIKey
			}
			key := credential.Resolve(provider, configured)
			if key == "" {
				fmt.Printf("No key found for %s.\n", provider)
				os.Exit(1)
			}
			fmt.Printf("%s: %s (source: %s)\n", provider, maskKey(key), keySource(provider, configured))
		},
	}
}

func authClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <provider>",
		Short: "Remove a stored API key",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if err := credential.Delete(args[0]); err != nil {
				fmt.Fprintf(os.Stderr, "\033[31mError: %v\033[0m\n", err)
				os.Exit(1)
			}
			fmt.Printf("Removed key for %s.\n", args[0])
		},
	}
}

func keySource(provider, configured string) string {
	if name := credential.EnvVarInUse(provider); name != "" {
		return "environment (" + name + ")"
	}
	if credential.Available() {
		if v, err := credential.Get(provider); err == nil && v != "" {
			return "keychain"
		}
	}
	if configured != "" {
		return "config file"
	}
	return "unknown"
}

func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
