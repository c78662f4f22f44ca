package orchestrate

import (
	"strings"

	"github.com/petal-labs/petaltools/tool"
)

const systemPreamble = `You are a tool router. Given a user request, choose exactly one tool from the list below and extract its parameters.

Available tools:
`

const systemContract = `
Respond with a single JSON object and nothing else:
{"tool": "<tool name>", "params": {"<parameter>": <value>}}
Omit parameters you cannot infer when they have a default. Dates use YYYY-MM-DD. If unsure, make your best guess.`

// SystemPrompt renders the routing instruction for every tool in reg.
// Trusted parameters are never listed.
func SystemPrompt(reg *tool.Registry) string {
	var b strings.Builder
	b.WriteString(systemPreamble)
	for _, desc := range reg.Descriptors() {
		b.WriteString("- ")
		b.WriteString(desc.Signature())
		if desc.Description != "" {
			b.WriteString(": ")
			b.WriteString(desc.Description)
		}
		b.WriteByte('\n')
		for _, p := range desc.Parameters {
			if p.Trusted || p.Description == "" {
				continue
			}
			b.WriteString("    ")
			b.WriteString(p.Name)
			b.WriteString(": ")
			b.WriteString(p.Description)
			b.WriteByte('\n')
		}
	}
	b.WriteString(systemContract)
	return b.String()
}
