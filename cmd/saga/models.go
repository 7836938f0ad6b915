package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sagalabs/saga/internal/ai"
)

// ModelsCmd creates the models command.
func ModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List supported providers and models",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()
			printModels(cfg.Provider)
		},
	}
}

// printModels is shared with the interactive /models command.
func printModels(activeProvider string) {
	if activeProvider == "" {
		activeProvider = ai.ProviderGemini
	}
	for _, p := range ai.Providers() {
		marker := " "
		if p == activeProvider {
			marker = "*"
		}
		fmt.Printf("%s %s (default: %s)\n", marker, p, ai.DefaultModelFor(p))
		if models := ai.SupportedModels(p); models != nil {
			for _, m := range models {
				fmt.Printf("    %s\n", m)
			}
		} else {
			fmt.Println("    (any model name)")
		}
	}
}
