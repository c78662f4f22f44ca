package cli

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/petal-labs/petaltools/tool"
)

// NewAskCmd creates the "ask" subcommand.
func NewAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [query...]",
		Short: "Route a natural-language request to a tool",
		Long:  "Sends the query to the configured language model, dispatches the tool it selects, and prints the result envelope. Without arguments the query is read from stdin.",
		RunE:  runAsk,
	}
	cmd.Flags().Bool("plan", false, "Print the selected tool call without dispatching it")
	return cmd
}

func runAsk(cmd *cobra.Command, args []string) error {
	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		var err error
		query, err = promptQuery(cmd.InOrStdin(), cmd.OutOrStdout())
		if err != nil {
			return exitError(exitInputParse, "reading query: %v", err)
		}
	}
	if query == "" {
		return exitError(exitInputParse, "query is empty")
	}

	a, err := loadApp(cmd)
	if err != nil {
		return err
	}

	if planOnly, _ := cmd.Flags().GetBool("plan"); planOnly {
		instr, err := a.router.Plan(cmd.Context(), query)
		if err != nil {
			env := tool.EnvelopeFromError(err)
			_ = printJSON(cmd.OutOrStdout(), env)
			return exitError(envelopeExitCode(env.ErrorKind), "%s", env.Message)
		}
		desc, _ := a.registry.Lookup(instr.Tool)
		instr.Params = tool.MaskTrusted(desc, instr.Params)
		return printJSON(cmd.OutOrStdout(), instr)
	}

	return printEnvelope(cmd, a.router.Route(cmd.Context(), query))
}

// promptQuery reads one line from in after writing the prompt to out.
func promptQuery(in io.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, "Enter your query: ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// printEnvelope writes env as indented JSON and converts a failure into an
// ExitError.
func printEnvelope(cmd *cobra.Command, env tool.Envelope) error {
	if err := printJSON(cmd.OutOrStdout(), env); err != nil {
		return err
	}
	if !env.OK {
		return exitError(envelopeExitCode(env.ErrorKind), "%s: %s", env.ErrorKind, env.Message)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return exitError(exitRuntime, "encoding output: %v", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}
