package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sagalabs/saga/internal/chat"
)

// ExportCmd creates the export command.
func ExportCmd() *cobra.Command {
	var format, out string
	var list bool

	cmd := &cobra.Command{
		Use:   "export [conversation-id]",
		Short: "Export a stored conversation",
		Long: `Export a stored conversation as CSV, Markdown, or HTML.

Without an id the most recently updated conversation is exported.

Examples:
  saga export                      # latest conversation as CSV
  saga export --list               # list stored conversations
  saga export 4f1c... --format md
  saga export --format html --out tower.html`,
		Args: cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			id := ""
			if len(args) > 0 {
				id = args[0]
			}
			runExport(id, format, out, list)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", chat.FormatCSV, "export format: csv, markdown, html")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: history_log_<timestamp>.<ext>)")
	cmd.Flags().BoolVar(&list, "list", false, "list stored conversations instead of exporting")

	return cmd
}

func runExport(id, format, out string, list bool) {
	cfg := loadConfig()
	st := openStore(cfg)
	defer st.Close()

	ctx := context.Background()

	if list {
		conversations, err := st.ListConversations(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "\033[31mError: %v\033[0m\n", err)
			os.Exit(1)
		}
		if len(conversations) == 0 {
			fmt.Println("No stored conversations.")
			return
		}
		for _, c := range conversations {
			title := c.Title
			if title == "" {
				title = "(untitled)"
			}
			fmt.Printf("%s  %-30s %s  updated %s\n", c.ID, title, c.Model, c.UpdatedAt.Format("2006-01-02 15:04"))
		}
		return
	}

	if id == "" {
		conversations, err := st.ListConversations(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "\033[31mError: %v\033[0m\n", err)
			os.Exit(1)
		}
		if len(conversations) == 0 {
			fmt.Fprintln(os.Stderr, "No stored conversations to export.")
			os.Exit(1)
		}
		id = conversations[0].ID
	}

	meta, err := st.GetConversation(ctx, id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError: %v\033[0m\n", err)
		os.Exit(1)
	}
	turns, err := st.LoadTurns(ctx, id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError: %v\033[0m\n", err)
		os.Exit(1)
	}

	if out == "" {
		out = chat.ExportFilename(format, time.Now())
	}
	f, err := os.Create(out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError: %v\033[0m\n", err)
		os.Exit(1)
	}
	defer f.Close()

	if err := chat.Export(f, format, meta.Title, turns); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError: %v\033[0m\n", err)
		os.Exit(1)
	}
	fmt.Printf("Exported %d turn(s) to %s\n", len(turns), out)
}
