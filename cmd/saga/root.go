// Package cli implements the saga command tree.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sagalabs/saga/internal/ai"
	"github.com/sagalabs/saga/internal/config"
	"github.com/sagalabs/saga/internal/credential"
	"github.com/sagalabs/saga/internal/defaults"
	"github.com/sagalabs/saga/internal/logging"
	"github.com/sagalabs/saga/internal/store"
	"github.com/sagalabs/saga/internal/store/migrations"
)

// Shared CLI flags (used across multiple command files)
var (
	cfgFile string
	verbose bool
)

// SetupRootCmd configures the root command with all subcommands and flags.
func SetupRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "saga",
		Short: "Saga - resilient LLM chat",
		Long: `Saga is a chat front-end for hosted LLMs that survives rate limits.

When the upstream quota runs out mid-conversation, Saga truncates the
transcript to the most recent turns, rebuilds the session, and retries
with exponential backoff instead of losing the conversation.

Just type 'saga' to start an interactive chat.`,
		Run: func(cmd *cobra.Command, args []string) {
			runChat(nil, chatFlags{})
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: platform data directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(ChatCmd())
	rootCmd.AddCommand(ServeCmd())
	rootCmd.AddCommand(ExportCmd())
	rootCmd.AddCommand(ModelsCmd())
	rootCmd.AddCommand(AuthCmd())
	rootCmd.AddCommand(DoctorCmd())

	return rootCmd
}

// loadConfig initializes the data directory and loads the configuration,
// exiting on failure. Quiet by default for clean CLI output.
func loadConfig() *config.Config {
	if !verbose {
		logging.Disable()
	}
	migrations.QuietMode = true

	if _, err := defaults.EnsureDataDir(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError: failed to initialize data directory: %v\033[0m\n", err)
		os.Exit(1)
	}

	var (
		cfg *config.Config
		err error
	)
	if cfgFile != "" {
		cfg, err = config.LoadFrom(cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError: failed to load config: %v\033[0m\n", err)
		os.Exit(1)
	}
	return cfg
}

// buildClient authenticates against the configured provider.
func buildClient(ctx context.Context, cfg *config.Config) (ai.Client, error) {
	provider := cfg.Provider
	if provider == "" {
		provider = ai.ProviderGemini
	}

	var configured, baseURL string
	if pc := cfg.ProviderFor(provider); pc != nil {
		configured = pc.APIKey
		baseURL = pc.BaseURL
	}

	key := credential.Resolve(provider, configured)
	if key == "" && provider != ai.ProviderOllama {
		return nil, fmt.Errorf("no API key for %s: set %s or run 'saga auth set %s'",
			provider, primaryEnvVar(provider), provider)
	}
	return ai.NewClient(ctx, provider, key, baseURL)
}

func primaryEnvVar(provider string) string {
	switch provider {
	case ai.ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case ai.ProviderOpenAI:
		return "OPENAI_API_KEY"
	default:
		return "GEMINI_API_KEY"
	}
}

// openStore opens the SQLite conversation store, exiting on failure.
func openStore(cfg *config.Config) *store.Store {
	st, err := store.Open(cfg.DBPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError: failed to open database: %v\033[0m\n", err)
		os.Exit(1)
	}
	return st
}
