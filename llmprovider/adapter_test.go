package llmprovider

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	iriscore "github.com/petal-labs/iris/core"
	"google.golang.org/genai"
)

type fakeChatter struct {
	got  *iriscore.ChatRequest
	resp *iriscore.ChatResponse
	err  error
}

func (f *fakeChatter) Chat(ctx context.Context, req *iriscore.ChatRequest) (*iriscore.ChatResponse, error) {
	f.got = req
	return f.resp, f.err
}

func TestIrisModelComplete(t *testing.T) {
	temp := 0.0
	maxTokens := 256
	fake := &fakeChatter{resp: &iriscore.ChatResponse{Output: `{"tool":"weather","params":{}}`}}
	m := &irisModel{chat: fake, model: "gpt-test", temperature: &temp, maxTokens: &maxTokens}

	out, err := m.Complete(context.Background(), "route tools", "weather in paris")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if out != `{"tool":"weather","params":{}}` {
		t.Fatalf("Complete() = %q", out)
	}

	if fake.got.Model != iriscore.ModelID("gpt-test") {
		t.Fatalf("Model = %q, want gpt-test", fake.got.Model)
	}
	wantMessages := []iriscore.Message{
		{Role: iriscore.RoleSystem, Content: "route tools"},
		{Role: iriscore.RoleUser, Content: "weather in paris"},
	}
	if len(fake.got.Messages) != len(wantMessages) {
		t.Fatalf("Messages = %d, want %d", len(fake.got.Messages), len(wantMessages))
	}
	for i, want := range wantMessages {
		got := fake.got.Messages[i]
		if got.Role != want.Role || got.Content != want.Content {
			t.Fatalf("Messages[%d] = %s/%q, want %s/%q", i, got.Role, got.Content, want.Role, want.Content)
		}
	}
	if fake.got.Temperature == nil || *fake.got.Temperature != 0 {
		t.Fatalf("Temperature = %v, want 0", fake.got.Temperature)
	}
	if fake.got.MaxTokens == nil || *fake.got.MaxTokens != 256 {
		t.Fatalf("MaxTokens = %v, want 256", fake.got.MaxTokens)
	}
}

func TestIrisModelCompleteOmitsEmptySystem(t *testing.T) {
	fake := &fakeChatter{resp: &iriscore.ChatResponse{Output: "ok"}}
	m := &irisModel{chat: fake, model: "gpt-test"}

	if _, err := m.Complete(context.Background(), "", "hello"); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if len(fake.got.Messages) != 1 || fake.got.Messages[0].Role != iriscore.RoleUser {
		t.Fatalf("Messages = %+v, want a single user message", fake.got.Messages)
	}
	if fake.got.Temperature != nil || fake.got.MaxTokens != nil {
		t.Fatal("unset sampling options were sent")
	}
}

func TestIrisModelCompleteWrapsProviderError(t *testing.T) {
	cause := errors.New("rate limited")
	m := &irisModel{chat: &fakeChatter{err: cause}, model: "gpt-test"}

	_, err := m.Complete(context.Background(), "sys", "user")
	if !errors.Is(err, cause) {
		t.Fatalf("Complete() error = %v, want wrapped %v", err, cause)
	}
}

func TestGenaiModelComplete(t *testing.T) {
	var (
		gotModel    string
		gotContents []*genai.Content
		gotConfig   *genai.GenerateContentConfig
	)
	temp := 0.2
	m := &genaiModel{
		model:       "gemini-test",
		temperature: &temp,
		generate: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			gotModel, gotContents, gotConfig = model, contents, config
			return &genai.GenerateContentResponse{
				Candidates: []*genai.Candidate{{
					Content: genai.NewContentFromText(`{"tool":"market_recap","params":{}}`, genai.RoleModel),
				}},
			}, nil
		},
	}

	out, err := m.Complete(context.Background(), "route tools", "how are markets")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if out != `{"tool":"market_recap","params":{}}` {
		t.Fatalf("Complete() = %q", out)
	}
	if gotModel != "gemini-test" {
		t.Fatalf("model = %q", gotModel)
	}
	if len(gotContents) != 1 || gotContents[0].Parts[0].Text != "how are markets" {
		t.Fatalf("contents = %+v", gotContents)
	}
	if gotConfig.SystemInstruction == nil || gotConfig.SystemInstruction.Parts[0].Text != "route tools" {
		t.Fatalf("system instruction = %+v", gotConfig.SystemInstruction)
	}
	if diff := cmp.Diff(float32(0.2), *gotConfig.Temperature); diff != "" {
		t.Fatalf("temperature mismatch (-want +got):\n%s", diff)
	}
}

func TestGenaiModelCompleteNoCandidates(t *testing.T) {
	m := &genaiModel{
		model: "gemini-test",
		generate: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return &genai.GenerateContentResponse{}, nil
		},
	}
	_, err := m.Complete(context.Background(), "", "hi")
	if err == nil || !strings.Contains(err.Error(), "no candidates") {
		t.Fatalf("Complete() error = %v, want no candidates", err)
	}
}
