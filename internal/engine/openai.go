package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIEngine talks to the OpenAI API or any server implementing its chat
// completions and embeddings endpoints.
type OpenAIEngine struct {
	client openai.Client
}

// NewOpenAIEngine creates an OpenAIEngine. An empty baseURL uses the
// official endpoint.
func NewOpenAIEngine(baseURL, apiKey string, opts ...option.RequestOption) *OpenAIEngine {
	all := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		all = append(all, option.WithBaseURL(baseURL))
	}
	all = append(all, opts...)
	return &OpenAIEngine{client: openai.NewClient(all...)}
}

func (e *OpenAIEngine) Chat(ctx context.Context, model string, messages []Message, jsonSchema *Schema) (string, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)+1)
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			msgs = append(msgs, openai.SystemMessage(m.Content))
		case RoleAssistant:
			msgs = append(msgs, openai.ChatCompletionMessageParamOfAssistant(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}
	// Not every compatible server honours response_format, so the schema
	// travels as an instruction.
	if jsonSchema != nil {
		msgs = append(msgs, openai.SystemMessage(schemaInstruction(jsonSchema)))
	}

	resp, err := e.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: msgs,
	})
	if err != nil {
		return "", fmt.Errorf("chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func schemaInstruction(s *Schema) string {
	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Reply with a single JSON object and nothing else. Fields:")
	for _, name := range names {
		p := s.Properties[name]
		typ := p.Type
		if p.Items != nil {
			typ += " of " + p.Items.Type
		}
		fmt.Fprintf(&b, "\n- %s (%s)", name, typ)
		if p.Description != "" {
			b.WriteString(": " + p.Description)
		}
	}
	return b.String()
}

func (e *OpenAIEngine) Embed(ctx context.Context, model string, text string) ([]float32, error) {
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model: openai.EmbeddingModel(model),
	})
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("embed: empty embeddings array")
	}
	src := resp.Data[0].Embedding
	vec := make([]float32, len(src))
	for i, v := range src {
		vec[i] = float32(v)
	}
	return vec, nil
}

func (e *OpenAIEngine) IsRunning(ctx context.Context) bool {
	_, err := e.client.Models.List(ctx)
	return err == nil
}

func (e *OpenAIEngine) HasModel(ctx context.Context, name string) bool {
	_, err := e.client.Models.Get(ctx, name)
	return err == nil
}
