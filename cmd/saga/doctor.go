package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sagalabs/saga/internal/ai"
	"github.com/sagalabs/saga/internal/config"
	"github.com/sagalabs/saga/internal/credential"
	"github.com/sagalabs/saga/internal/defaults"
	"github.com/sagalabs/saga/internal/store"
	"github.com/sagalabs/saga/internal/store/migrations"
)

// DoctorCmd creates the doctor command for health checks.
func DoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check installation health and diagnose issues",
		Long: `Run diagnostics on your Saga installation.

Checks:
  - Data directory and configuration
  - Persona file
  - API key for the active provider
  - Database status
  - OS keychain availability`,
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

type checkResult struct {
	name    string
	status  string // "ok", "warn", "error"
	message string
}

func runDoctor() {
	fmt.Println("\033[1mSaga Doctor\033[0m")
	fmt.Println("===========")
	fmt.Println()

	var results []checkResult
	results = append(results, checkDataDir()...)
	results = append(results, checkConfig()...)
	results = append(results, checkCredentials()...)
	results = append(results, checkDatabase()...)
	results = append(results, checkKeychain())

	okCount, warnCount, errorCount := 0, 0, 0
	for _, r := range results {
		switch r.status {
		case "ok":
			fmt.Printf("\033[32m✓\033[0m %s: %s\n", r.name, r.message)
			okCount++
		case "warn":
			fmt.Printf("\033[33m⚠\033[0m %s: %s\n", r.name, r.message)
			warnCount++
		case "error":
			fmt.Printf("\033[31m✗\033[0m %s: %s\n", r.name, r.message)
			errorCount++
		}
	}

	fmt.Println()
	fmt.Println("Summary:")
	fmt.Printf("  \033[32m%d passed\033[0m", okCount)
	if warnCount > 0 {
		fmt.Printf("  \033[33m%d warnings\033[0m", warnCount)
	}
	if errorCount > 0 {
		fmt.Printf("  \033[31m%d errors\033[0m", errorCount)
	}
	fmt.Println()

	if errorCount > 0 {
		os.Exit(1)
	}
}

func checkDataDir() []checkResult {
	dataDir, err := defaults.EnsureDataDir()
	if err != nil {
		return []checkResult{{"Data directory", "error", err.Error()}}
	}
	return []checkResult{{"Data directory", "ok", dataDir}}
}

func checkConfig() []checkResult {
	var results []checkResult

	cfg, err := config.Load()
	if err != nil {
		return append(results, checkResult{"Config", "error", err.Error()})
	}
	path := filepath.Join(cfg.DataDir, config.FileName)
	if _, statErr := os.Stat(path); statErr != nil {
		results = append(results, checkResult{"Config", "warn", "no config.yaml, using defaults"})
	} else {
		results = append(results, checkResult{"Config", "ok", path})
	}

	provider := cfg.Provider
	if provider == "" {
		provider = ai.ProviderGemini
	}
	if err := ai.ValidateModel(provider, cfg.ActiveModel()); err != nil {
		results = append(results, checkResult{"Model", "error", err.Error()})
	} else {
		results = append(results, checkResult{"Model", "ok", fmt.Sprintf("%s / %s", provider, cfg.ActiveModel())})
	}

	if _, err := os.Stat(cfg.PersonaPath()); err != nil {
		results = append(results, checkResult{"Persona", "warn", "persona file missing, using embedded default"})
	} else {
		results = append(results, checkResult{"Persona", "ok", cfg.PersonaPath()})
	}
	return results
}

func checkCredentials() []checkResult {
	cfg, err := config.Load()
	if err != nil {
		return nil
	}
	provider := cfg.Provider
	if provider == "" {
		provider = ai.ProviderGemini
	}
	if provider == ai.ProviderOllama {
		return []checkResult{{"API key", "ok", "ollama needs no key"}}
	}

	var configured string
	if pc := cfg.ProviderFor(provider); pc != nil {
		configured = pc.APIKey
	}
	if credential.Resolve(provider, configured) == "" {
		return []checkResult{{"API key", "error",
			fmt.Sprintf("no key for %s (set %s or run 'saga auth set %s')", provider, primaryEnvVar(provider), provider)}}
	}
	return []checkResult{{"API key", "ok", provider + " key found"}}
}

func checkDatabase() []checkResult {
	cfg, err := config.Load()
	if err != nil {
		return nil
	}
	migrations.QuietMode = true
	st, err := store.Open(cfg.DBPath())
	if err != nil {
		return []checkResult{{"Database", "error", err.Error()}}
	}
	defer st.Close()
	return []checkResult{{"Database", "ok", cfg.DBPath()}}
}

func checkKeychain() checkResult {
	if os.Getenv("SAGA_KEYRING_DISABLED") == "1" {
		return checkResult{"Keychain", "warn", "disabled via SAGA_KEYRING_DISABLED"}
	}
	if !credential.Available() {
		return checkResult{"Keychain", "warn", "OS keychain unavailable, falling back to environment variables"}
	}
	return checkResult{"Keychain", "ok", "available"}
}
