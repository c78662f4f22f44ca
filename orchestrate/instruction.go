package orchestrate

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/petal-labs/petaltools/tool"
)

// Instruction is a parsed {tool, params} call proposed by the model.
type Instruction struct {
	Tool   string         `json:"tool"`
	Params map[string]any `json:"params"`
}

// ParseInstruction strips an optional code fence from text and decodes the
// instruction. Failures are UnparsableInstruction errors carrying the raw
// text in details.raw.
func ParseInstruction(text string) (Instruction, error) {
	body := stripFence(text)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		return Instruction{}, unparsable(text, fmt.Errorf("model output is not a JSON object: %w", err))
	}
	if fields == nil {
		return Instruction{}, unparsable(text, errors.New("model output is not a JSON object"))
	}

	rawTool, ok := fields["tool"]
	if !ok {
		return Instruction{}, unparsable(text, errors.New(`model output has no "tool" key`))
	}
	var name string
	if err := json.Unmarshal(rawTool, &name); err != nil || strings.TrimSpace(name) == "" {
		return Instruction{}, unparsable(text, errors.New(`"tool" must be a non-empty string`))
	}

	rawParams, ok := fields["params"]
	if !ok {
		return Instruction{}, unparsable(text, errors.New(`model output has no "params" key`))
	}
	var params map[string]any
	if err := json.Unmarshal(rawParams, &params); err != nil || params == nil {
		return Instruction{}, unparsable(text, errors.New(`"params" must be a JSON object`))
	}

	return Instruction{Tool: strings.TrimSpace(name), Params: params}, nil
}

func unparsable(raw string, cause error) error {
	return tool.NewToolError(tool.KindUnparsableInstruction, cause.Error(), cause).
		WithDetails(map[string]any{"raw": raw})
}

// stripFence removes a surrounding ``` or ```json code fence.
func stripFence(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
	}
	if end := strings.LastIndex(s, "```"); end >= 0 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}
