package parley

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// Runner handles an interactive conversation loop using provided IO.
// This allows for easy testing and integration with different frontends
// (CLI, TUI, etc).
type Runner struct {
	Input          io.Reader
	Output         io.Writer
	ConversationID string
	UserID         string
	Renderer       ContentRenderer
}

// ContentRenderer transforms the reply before outputting it. This
// allows for TUI rendering (markdown to ANSI) without coupling the core
// package.
type ContentRenderer func(string) (string, error)

// NewRunner creates a Runner for the given conversation. The caller
// sets Input/Output (use os.Stdin and os.Stdout for a terminal).
func NewRunner(conversationID string) *Runner {
	return &Runner{ConversationID: conversationID}
}

// Run reads user lines and feeds them through the orchestrator until
// EOF, "exit"/"quit", or an escalation.
func (r *Runner) Run(ctx context.Context, o *Orchestrator) error {
	if r.Input == nil {
		return fmt.Errorf("input reader must be set (use os.Stdin)")
	}
	if r.Output == nil {
		return fmt.Errorf("output writer must be set (use os.Stdout)")
	}
	lineReader := bufio.NewReader(r.Input)

	for {
		fmt.Fprint(r.Output, "> ")
		text, err := lineReader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				// Graceful exit on EOF
				return nil
			}
			return fmt.Errorf("input error: %w", err)
		}
		input := strings.TrimSpace(text)
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			fmt.Fprintln(r.Output, "Bye!")
			return nil
		}

		resp, err := o.HandleTurn(ctx, TurnRequest{
			ConversationID: r.ConversationID,
			UserID:         r.UserID,
			Message:        input,
		})
		if err != nil {
			return fmt.Errorf("turn error: %w", err)
		}

		output := resp.Reply
		if r.Renderer != nil {
			if rendered, rerr := r.Renderer(output); rerr == nil {
				output = rendered
			}
		}
		fmt.Fprintln(r.Output, strings.TrimSpace(output))

		if resp.Escalated {
			fmt.Fprintln(r.Output, "(handing this conversation to a human)")
			return nil
		}
	}
}
