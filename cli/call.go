package cli

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"
)

// NewCallCmd creates the "call" subcommand.
func NewCallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call <tool> [name=value...]",
		Short: "Invoke a tool directly",
		Long:  "Dispatches a tool by name. Parameters are given as name=value pairs or as a JSON object with --input; values are coerced to the declared parameter types.",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runCall,
	}
	cmd.Flags().String("input", "", "Parameters as a JSON object")
	return cmd
}

func runCall(cmd *cobra.Command, args []string) error {
	name := args[0]
	input, _ := cmd.Flags().GetString("input")
	params, err := parseCallParams(input, args[1:])
	if err != nil {
		return err
	}

	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	return printEnvelope(cmd, a.dispatcher.Dispatch(cmd.Context(), name, params))
}

// parseCallParams builds the raw parameter map from --input or from
// name=value pairs. Pair values stay strings and are coerced on dispatch.
func parseCallParams(input string, pairs []string) (map[string]any, error) {
	if strings.TrimSpace(input) != "" {
		if len(pairs) > 0 {
			return nil, exitError(exitInputParse, "use either --input or name=value pairs, not both")
		}
		dec := json.NewDecoder(bytes.NewReader([]byte(input)))
		dec.UseNumber()
		var params map[string]any
		if err := dec.Decode(&params); err != nil {
			return nil, exitError(exitInputParse, "--input must be a JSON object: %v", err)
		}
		if params == nil {
			return nil, exitError(exitInputParse, "--input must be a JSON object")
		}
		return params, nil
	}

	params := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, exitError(exitInputParse, "invalid parameter %q: expected name=value", pair)
		}
		params[key] = value
	}
	return params, nil
}
