package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/parley/internal/cli"
	"github.com/aretw0/parley/internal/config"
	"github.com/aretw0/parley/internal/presentation/graph"
)

var graphCmd = &cobra.Command{
	Use:   "graph [workflow-key]",
	Short: "Render a workflow as a Mermaid flowchart",
	Run: func(cmd *cobra.Command, args []string) {
		configPath, _ := cmd.Flags().GetString("config")

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

		if len(args) == 0 {
			fmt.Println("Available workflows:")
			for _, w := range app.Workflows {
				fmt.Printf("  %s (domain: %s)\n", w.Key, w.Domain)
			}
			return
		}

		for _, w := range app.Workflows {
			if w.Key == args[0] {
				fmt.Println(graph.GenerateMermaid(w))
				return
			}
		}
		fmt.Printf("Unknown workflow %q\n", args[0])
		os.Exit(1)
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
