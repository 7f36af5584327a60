package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"promptcanvas/internal/scene"
)

var callCmd = &cobra.Command{
	Use:   "call <tool> [json-args]",
	Short: "Run one tool call through the dispatcher without a model",
	Long: `Dispatches a single tool call exactly as if the model had produced it and
prints the turn result. Useful for checking clamping and image lookups.

Example:
  canvasd call change_background '{"red":300,"green":-5,"blue":128}'`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runCall,
}

func runCall(cmd *cobra.Command, args []string) error {
	call := scene.ToolCall{Name: args[0], Arguments: map[string]any{}}
	if len(args) == 2 {
		if err := json.Unmarshal([]byte(args[1]), &call.Arguments); err != nil {
			return fmt.Errorf("invalid arguments for %s: %w", call.Name, err)
		}
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	result := a.dispatcher.Dispatch(cmd.Context(), []scene.ToolCall{call})
	return printTurn(cmd.OutOrStdout(), cmd.ErrOrStderr(), result)
}

// printTurn writes the JSON result to out and the status line to status.
// A failed turn is returned as an error so the exit code reflects it.
func printTurn(out, status io.Writer, result scene.TurnResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(out, string(data))
	printStatus(status, result)
	if !result.OK() {
		return fmt.Errorf("turn failed: %s", result.Error)
	}
	return nil
}
