package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/petal-labs/petaltools/tool"
)

// NewToolsCmd creates the "tools" subcommand.
func NewToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List discovered tools",
		Args:  cobra.NoArgs,
		RunE:  runTools,
	}
	cmd.Flags().Bool("json", false, "Output as JSON")
	return cmd
}

type toolListItem struct {
	Name        string              `json:"name"`
	Origin      tool.Origin         `json:"origin"`
	Async       bool                `json:"async"`
	Signature   string              `json:"signature"`
	Description string              `json:"description,omitempty"`
	Parameters  []toolListParameter `json:"parameters"`
}

type toolListParameter struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
	Default  any    `json:"default,omitempty"`
}

func runTools(cmd *cobra.Command, _ []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}

	descs := a.registry.Descriptors()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		items := make([]toolListItem, 0, len(descs))
		for _, desc := range descs {
			item := toolListItem{
				Name:        desc.Name,
				Origin:      desc.Origin,
				Async:       desc.Async,
				Signature:   desc.Signature(),
				Description: desc.Description,
				Parameters:  []toolListParameter{},
			}
			for _, p := range desc.Parameters {
				if p.Trusted {
					continue
				}
				item.Parameters = append(item.Parameters, toolListParameter{
					Name:     p.Name,
					Type:     p.Type,
					Required: p.Required(),
					Default:  p.Default,
				})
			}
			items = append(items, item)
		}
		return printJSON(cmd.OutOrStdout(), items)
	}

	if len(descs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No tools discovered.")
		return nil
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tORIGIN\tASYNC\tSIGNATURE\tDESCRIPTION")
	for _, desc := range descs {
		fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%s\n",
			desc.Name, desc.Origin, desc.Async, desc.Signature(), firstLine(desc.Description))
	}
	return w.Flush()
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}
