package orchestrate

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/petal-labs/petaltools/tool"
)

func TestStripFence(t *testing.T) {
	tests := map[string]string{
		"```json\n{\"a\":1}\n```":  `{"a":1}`,
		"```\n{\"a\":1}\n```":      `{"a":1}`,
		"  {\"a\":1}  ":             `{"a":1}`,
		"```json {\"a\":1}```":      `{"a":1}`,
		"```json\n{\"a\":1}":        `{"a":1}`,
		"\n```JSON\n{\"a\":1}\n```": `{"a":1}`,
	}
	for in, want := range tests {
		if got := stripFence(in); got != want {
			t.Fatalf("stripFence(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseInstruction(t *testing.T) {
	got, err := ParseInstruction("```json\n{\"tool\":\"market_recap\",\"params\":{\"markets\":\"AAPL\"}}\n```")
	if err != nil {
		t.Fatalf("ParseInstruction() error = %v", err)
	}
	want := Instruction{Tool: "market_recap", Params: map[string]any{"markets": "AAPL"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ParseInstruction() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseInstructionRejects(t *testing.T) {
	for _, raw := range []string{
		"not json",
		"null",
		`["weather"]`,
		`{"params":{}}`,
		`{"tool":"","params":{}}`,
		`{"tool":42,"params":{}}`,
		`{"tool":"weather"}`,
		`{"tool":"weather","params":"Paris"}`,
		`{"tool":"weather","params":null}`,
	} {
		_, err := ParseInstruction(raw)
		toolErr, ok := tool.AsToolError(err)
		if !ok || toolErr.Kind != tool.KindUnparsableInstruction {
			t.Fatalf("ParseInstruction(%q) error = %v, want UnparsableInstruction", raw, err)
		}
		if toolErr.Details["raw"] != raw {
			t.Fatalf("ParseInstruction(%q) details.raw = %v", raw, toolErr.Details["raw"])
		}
	}
}
