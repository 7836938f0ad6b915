package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sagalabs/saga/internal/ai"
	"github.com/sagalabs/saga/internal/chat"
	"github.com/sagalabs/saga/internal/config"
	"github.com/sagalabs/saga/internal/store"
)

type chatFlags struct {
	resumeID string
	model    string
	noSave   bool
}

// ChatCmd creates the chat command.
func ChatCmd() *cobra.Command {
	var flags chatFlags

	cmd := &cobra.Command{
		Use:   "chat [prompt]",
		Short: "Chat with the configured model",
		Long: `Start an interactive chat, or send a single prompt and exit.

The conversation survives upstream rate limits: on quota exhaustion the
transcript is truncated to the most recent turns, the session is rebuilt,
and the prompt is retried with exponential backoff.

Examples:
  saga chat
  saga chat "When was the Eiffel Tower built?"
  saga chat --resume 4f1c...   # continue a stored conversation
  saga chat --model gemini-2.5-pro
  saga chat --no-save          # keep nothing on disk`,
		Run: func(cmd *cobra.Command, args []string) {
			runChat(args, flags)
		},
	}

	cmd.Flags().StringVar(&flags.resumeID, "resume", "", "resume a stored conversation by id")
	cmd.Flags().StringVarP(&flags.model, "model", "m", "", "model to use (overrides config)")
	cmd.Flags().BoolVar(&flags.noSave, "no-save", false, "do not persist the conversation")

	return cmd
}

func runChat(args []string, flags chatFlags) {
	cfg := loadConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\n\033[33mInterrupted\033[0m")
		cancel()
	}()

	client, err := buildClient(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError: %v\033[0m\n", err)
		os.Exit(1)
	}
	defer client.Close()

	model := flags.model
	if model == "" {
		model = cfg.ActiveModel()
	}
	if err := ai.ValidateModel(client.Name(), model); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError: %v\033[0m\n", err)
		os.Exit(1)
	}

	factory := chat.NewFactory(client, model, cfg.SystemInstruction())
	conv := chat.NewConversation(factory, chat.Options{
		HistoryLimit: cfg.HistoryLimit,
		MaxAttempts:  cfg.MaxAttempts,
		OnChunk: func(text string) {
			fmt.Print(text)
		},
		OnNotice: func(n chat.Notice) {
			color := "\033[31m" // errors in red
			if n.Kind == ai.KindQuota {
				color = "\033[33m" // rate limiting is recoverable, show in yellow
			}
			fmt.Printf("\n%s%s\033[0m\n", color, n.Message)
		},
	})

	var (
		st     *store.Store
		convID string
	)
	if !flags.noSave {
		st = openStore(cfg)
		defer st.Close()

		if flags.resumeID != "" {
			meta, err := st.GetConversation(ctx, flags.resumeID)
			if err != nil {
				fmt.Fprintf(os.Stderr, "\033[31mError: %v\033[0m\n", err)
				os.Exit(1)
			}
			turns, err := st.LoadTurns(ctx, meta.ID)
			if err != nil {
				fmt.Fprintf(os.Stderr, "\033[31mError: %v\033[0m\n", err)
				os.Exit(1)
			}
			conv.Restore(turns)
			if flags.model == "" && meta.Model != "" {
				conv.SetModel(meta.Model)
			}
			convID = meta.ID
			fmt.Printf("Resumed conversation %s (%d turns)\n", meta.ID, len(turns))
		} else {
			created, err := st.CreateConversation(ctx, "", conv.Model())
			if err != nil {
				fmt.Fprintf(os.Stderr, "\033[31mError: %v\033[0m\n", err)
				os.Exit(1)
			}
			convID = created.ID
		}
	}

	// Hot-reload: a config-file edit switches the model mid-conversation.
	stopWatch, err := config.Watch(cfg.DataDir, func(newCfg *config.Config) {
		if m := newCfg.ActiveModel(); m != "" && m != conv.Model() {
			conv.SetModel(m)
			fmt.Printf("\n\033[33mModel switched to %s\033[0m\n", m)
		}
	})
	if err == nil {
		defer stopWatch()
	}

	if len(args) > 0 {
		runOnce(ctx, conv, st, convID, strings.Join(args, " "))
	} else {
		runInteractive(ctx, conv, st, convID, cfg)
	}

	if cfg.AutoExport && conv.TurnCount() > 0 {
		exportOnExit(conv, cfg.ExportFormat)
	}
}

// runOnce sends a single prompt.
func runOnce(ctx context.Context, conv *chat.Conversation, st *store.Store, convID, prompt string) {
	fmt.Print("\033[32m")
	_, err := conv.Send(ctx, prompt)
	fmt.Print("\033[0m\n")
	saveTranscript(ctx, st, convID, conv)
	if err != nil {
		os.Exit(1)
	}
}

// runInteractive runs the interactive chat loop.
func runInteractive(ctx context.Context, conv *chat.Conversation, st *store.Store, convID string, cfg *config.Config) {
	fmt.Println("\033[1mSaga\033[0m")
	fmt.Printf("Chatting with %s. Use /help for commands, Ctrl+C to exit.\n", conv.Model())
	fmt.Println()

	reader := bufio.NewReader(os.Stdin)

	for {
		if ctx.Err() != nil {
			return
		}
		fmt.Print("\033[36m> \033[0m")

		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if quit := handleCommand(ctx, line, conv, st, convID, cfg); quit {
				return
			}
			continue
		}

		fmt.Print("\033[32m")
		_, err = conv.Send(ctx, line)
		fmt.Print("\033[0m\n")
		if ctx.Err() != nil {
			return
		}
		// Failures were already reported through the notice hook; the store
		// follows the transcript either way (resets and truncations too).
		_ = err
		saveTranscript(ctx, st, convID, conv)
		fmt.Println()
	}
}

// handleCommand handles slash commands. Returns true to exit the loop.
func handleCommand(ctx context.Context, line string, conv *chat.Conversation, st *store.Store, convID string, cfg *config.Config) bool {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/help":
		fmt.Println(`Commands:
  /help            - Show this help
  /reset           - Clear the conversation and start fresh
  /model <name>    - Switch model (transcript survives)
  /models          - List supported models
  /info            - Show conversation state
  /export [format] - Export transcript (csv, markdown, html)
  /quit            - Exit`)

	case "/reset":
		if err := conv.Reset(ctx); err != nil {
			fmt.Printf("\033[31mReset failed: %v\033[0m\n", err)
		} else {
			fmt.Println("Conversation cleared.")
		}
		saveTranscript(ctx, st, convID, conv)

	case "/model":
		if arg == "" {
			fmt.Printf("Current model: %s\n", conv.Model())
			break
		}
		provider := cfg.Provider
		if provider == "" {
			provider = ai.ProviderGemini
		}
		if err := ai.ValidateModel(provider, arg); err != nil {
			fmt.Printf("\033[31m%v\033[0m\n", err)
			break
		}
		conv.SetModel(arg)
		if st != nil && convID != "" {
			_ = st.SetConversationModel(ctx, convID, arg)
		}
		fmt.Printf("Model switched to %s. The conversation continues.\n", arg)

	case "/models":
		printModels(cfg.Provider)

	case "/info":
		fmt.Printf("Model:    %s\n", conv.Model())
		fmt.Printf("Turns:    %d\n", conv.TurnCount())
		fmt.Printf("State:    %s\n", conv.State())
		if convID != "" {
			fmt.Printf("Saved as: %s\n", convID)
		}

	case "/export":
		format := arg
		if format == "" {
			format = cfg.ExportFormat
		}
		exportOnExit(conv, format)

	case "/quit", "/exit":
		return true

	default:
		fmt.Printf("Unknown command %s (try /help)\n", cmd)
	}
	return false
}

// saveTranscript mirrors the committed transcript into the store. A full
// rewrite keeps the store exact under quota truncation and resets.
func saveTranscript(ctx context.Context, st *store.Store, convID string, conv *chat.Conversation) {
	if st == nil || convID == "" {
		return
	}
	if err := st.ClearTurns(ctx, convID); err != nil {
		fmt.Fprintf(os.Stderr, "\033[33mWarning: failed to save transcript: %v\033[0m\n", err)
		return
	}
	for _, turn := range conv.Snapshot() {
		if err := st.AppendTurn(ctx, convID, turn); err != nil {
			fmt.Fprintf(os.Stderr, "\033[33mWarning: failed to save transcript: %v\033[0m\n", err)
			return
		}
	}
}

// exportOnExit writes the transcript to a timestamped file in the working
// directory.
func exportOnExit(conv *chat.Conversation, format string) {
	name := chat.ExportFilename(format, time.Now())
	f, err := os.Create(name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mExport failed: %v\033[0m\n", err)
		return
	}
	defer f.Close()
	if err := chat.Export(f, format, "Conversation", conv.Snapshot()); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mExport failed: %v\033[0m\n", err)
		return
	}
	fmt.Printf("Exported to %s\n", name)
}
