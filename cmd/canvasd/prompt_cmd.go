package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"promptcanvas/internal/dispatch"
)

var (
	promptStatePath string
	promptSession   string
)

var promptCmd = &cobra.Command{
	Use:   "prompt <text>",
	Short: "Send one request to the model and print the resulting actions",
	Long: `Runs a full turn: the text and the current scene state go to the model,
its tool calls are validated and the aggregated result is printed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPrompt,
}

func runPrompt(cmd *cobra.Command, args []string) error {
	req := dispatch.PromptRequest{
		SessionID: promptSession,
		Text:      strings.Join(args, " "),
	}
	if promptStatePath != "" {
		data, err := os.ReadFile(promptStatePath)
		if err != nil {
			return fmt.Errorf("failed to read state: %w", err)
		}
		req.State = data
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.connectModel(cmd.Context()); err != nil {
		return err
	}

	result, err := a.service.HandlePrompt(cmd.Context(), req)
	if err != nil {
		return err
	}
	return printTurn(cmd.OutOrStdout(), cmd.ErrOrStderr(), result)
}
