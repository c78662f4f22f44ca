package llmprovider

import (
	"context"
	"errors"
	"fmt"

	iriscore "github.com/petal-labs/iris/core"
	"google.golang.org/genai"

	"github.com/petal-labs/petaltools/orchestrate"
)

// chatter is the slice of an iris provider the router needs.
type chatter interface {
	Chat(ctx context.Context, req *iriscore.ChatRequest) (*iriscore.ChatResponse, error)
}

// irisModel adapts an iris provider to orchestrate.Model.
type irisModel struct {
	chat        chatter
	model       string
	temperature *float64
	maxTokens   *int
}

// Complete sends the system and user messages as one chat turn.
func (m *irisModel) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := m.chat.Chat(ctx, m.toRequest(system, user))
	if err != nil {
		return "", fmt.Errorf("provider chat failed: %w", err)
	}
	if resp == nil {
		return "", errors.New("provider chat returned no response")
	}
	return resp.Output, nil
}

func (m *irisModel) toRequest(system, user string) *iriscore.ChatRequest {
	messages := make([]iriscore.Message, 0, 2)
	if system != "" {
		messages = append(messages, iriscore.Message{Role: iriscore.RoleSystem, Content: system})
	}
	messages = append(messages, iriscore.Message{Role: iriscore.RoleUser, Content: user})

	req := &iriscore.ChatRequest{
		Model:    iriscore.ModelID(m.model),
		Messages: messages,
	}
	if m.temperature != nil {
		temp := float32(*m.temperature)
		req.Temperature = &temp
	}
	if m.maxTokens != nil {
		req.MaxTokens = m.maxTokens
	}
	return req
}

type generateFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

// genaiModel adapts the Gemini generate-content API to orchestrate.Model.
type genaiModel struct {
	generate    generateFunc
	model       string
	temperature *float64
	maxTokens   *int
}

// Complete sends user as the only content with system as the instruction.
func (m *genaiModel) Complete(ctx context.Context, system, user string) (string, error) {
	cfg := &genai.GenerateContentConfig{}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if m.temperature != nil {
		temp := float32(*m.temperature)
		cfg.Temperature = &temp
	}
	if m.maxTokens != nil {
		cfg.MaxOutputTokens = int32(*m.maxTokens)
	}

	contents := []*genai.Content{genai.NewContentFromText(user, genai.RoleUser)}
	resp, err := m.generate(ctx, m.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate failed: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", errors.New("gemini returned no candidates")
	}
	return resp.Text(), nil
}

var (
	_ orchestrate.Model = (*irisModel)(nil)
	_ orchestrate.Model = (*genaiModel)(nil)
)
