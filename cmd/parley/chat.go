package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/internal/cli"
	"github.com/aretw0/parley/internal/config"
	"github.com/aretw0/parley/internal/presentation/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the assistant from the terminal",
	Long:  `Starts an interactive REPL that feeds each line through the orchestrator. Replies are rendered as markdown when stdout is a terminal.`,
	Run: func(cmd *cobra.Command, args []string) {
		configPath, _ := cmd.Flags().GetString("config")
		conversationID, _ := cmd.Flags().GetString("conversation")
		userID, _ := cmd.Flags().GetString("user")
		plain, _ := cmd.Flags().GetBool("plain")

		cfg, err := config.Load(configPath)
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			os.Exit(1)
		}

		app, err := cli.Build(cfg)
		if err != nil {
			fmt.Printf("Error initializing parley: %v\n", err)
			os.Exit(1)
		}
		defer app.Close()

		if conversationID == "" {
			conversationID = uuid.NewString()
		}

		interactive := term.IsTerminal(int(os.Stdout.Fd())) && !plain
		if interactive {
			tui.PrintBanner()
			fmt.Printf("Conversation %s. Type 'exit' to quit.\n\n", conversationID)
		}

		runner := parley.NewRunner(conversationID)
		runner.Input = os.Stdin
		runner.Output = os.Stdout
		runner.UserID = userID
		if interactive {
			runner.Renderer = tui.NewRenderer()
		}

		if err := runner.Run(context.Background(), app.Orchestrator); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().String("conversation", "", "Conversation id to resume (default: a fresh one)")
	chatCmd.Flags().String("user", "", "User id, enables user-scoped variables")
	chatCmd.Flags().Bool("plain", false, "Disable markdown rendering and the banner")
}
