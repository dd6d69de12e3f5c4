package generation

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
)

type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

type Message struct {
	Role    Role
	Content string
}

// Completer opens a streaming chat completion.
type Completer interface {
	StreamChat(ctx context.Context, messages []Message) (Stream, error)
}

// Stream yields text fragments in order. Next blocks until a fragment is
// available or the stream ends; Err reports why it ended early.
type Stream interface {
	Next() bool
	Fragment() string
	Err() error
	Close() error
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// OpenAICompleter streams chat completions from the OpenAI API. Requests
// are never retried.
type OpenAICompleter struct {
	client openai.Client
	model  string
}

func NewOpenAICompleter(cfg OpenAIConfig) *OpenAICompleter {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAICompleter{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
	}
}

func (c *OpenAICompleter) StreamChat(ctx context.Context, messages []Message) (Stream, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)),
	}
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			params.Messages = append(params.Messages, openai.SystemMessage(m.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(m.Content))
		}
	}

	stream := c.client.Chat.Completions.NewStreaming(ctx, params)
	// The request is sent when the stream is created; a failed request
	// is reported by Err before the first Next.
	if err := stream.Err(); err != nil {
		_ = stream.Close()
		return nil, err
	}
	return &openAIStream{stream: stream}, nil
}

type openAIStream struct {
	stream  *ssestream.Stream[openai.ChatCompletionChunk]
	current string
}

func (s *openAIStream) Next() bool {
	if !s.stream.Next() {
		return false
	}
	s.current = ""
	if chunk := s.stream.Current(); len(chunk.Choices) > 0 {
		s.current = chunk.Choices[0].Delta.Content
	}
	return true
}

func (s *openAIStream) Fragment() string { return s.current }
func (s *openAIStream) Err() error       { return s.stream.Err() }
func (s *openAIStream) Close() error     { return s.stream.Close() }
