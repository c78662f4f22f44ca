// Package cli implements the petaltools command tree.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRootCmd builds the petaltools root command with every subcommand.
func NewRootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "petaltools",
		Short: "Tool dispatcher with natural-language routing",
		Long:  "petaltools discovers tool units, serves them over HTTP and MCP, and routes free-text requests to them through a language model.",
		// SilenceUsage prevents printing usage on every error
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "Path to petaltools.yaml (default: ./petaltools.yaml, then ~/.petaltools/config.yaml)")
	flags.String("tools-dir", "", "Directory of *_tool.yaml manifests")
	flags.Bool("verbose", false, "Enable verbose/debug logging")
	flags.Bool("quiet", false, "Suppress all output except errors")
	flags.String("log-format", "", "Log format: text | json")
	flags.String("provider", "", "Language model provider: openai | anthropic | ollama | gemini")
	flags.String("model", "", "Language model name")
	flags.StringArray("provider-key", nil, "Set provider API key as name=key (repeatable)")
	flags.String("coercion", "", "Parameter coercion policy: permissive | strict")

	root.Version = version
	root.SetVersionTemplate(fmt.Sprintf("petaltools version %s\n", version))

	root.AddCommand(NewAskCmd())
	root.AddCommand(NewCallCmd())
	root.AddCommand(NewToolsCmd())
	root.AddCommand(NewServeCmd(version))
	root.AddCommand(NewSecretCmd())
	return root
}
