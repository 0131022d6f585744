package provider

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"parley-server/internal/domain/catalog"
	"parley-server/internal/domain/chat"
	"parley-server/internal/domain/conversation"
)

// Kind selects the go-openai transport flavor for a backend.
type Kind string

const (
	KindOpenAI Kind = "openai"
	KindAzure  Kind = "azure"
)

// Config describes one completion backend.
type Config struct {
	ID         string
	Kind       Kind
	APIKey     string
	BaseURL    string // optional override for OpenAI-compatible backends
	Endpoint   string // required for Azure
	APIVersion string // optional Azure api-version override
}

// OpenAIClient streams chat completions through go-openai, covering both
// plain OpenAI-compatible backends and Azure OpenAI deployments.
type OpenAIClient struct {
	client *openai.Client
	log    zerolog.Logger
}

// NewOpenAIClient builds a completion client for one backend.
func NewOpenAIClient(cfg Config, log zerolog.Logger) *OpenAIClient {
	var clientCfg openai.ClientConfig
	switch cfg.Kind {
	case KindAzure:
		clientCfg = openai.DefaultAzureConfig(cfg.APIKey, cfg.Endpoint)
		if cfg.APIVersion != "" {
			clientCfg.APIVersion = cfg.APIVersion
		}
	default:
		clientCfg = openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientCfg.BaseURL = cfg.BaseURL
		}
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(clientCfg),
		log:    log.With().Str("component", "provider").Str("provider", cfg.ID).Logger(),
	}
}

// StreamCompletion opens a streaming chat completion. The returned stream
// yields content deltas, then a terminal event carrying the full assistant
// message, then io.EOF.
func (c *OpenAIClient) StreamCompletion(ctx context.Context, req chat.CompletionRequest) (chat.CompletionStream, error) {
	upstream, err := c.client.CreateChatCompletionStream(ctx, buildRequest(req))
	if err != nil {
		return nil, err
	}
	return &completionStream{upstream: upstream}, nil
}

// buildRequest maps a completion request onto the go-openai request shape.
// Azure routes by deployment name when the model declares one.
func buildRequest(req chat.CompletionRequest) openai.ChatCompletionRequest {
	model := req.Model.Name
	if req.Model.Deployment != "" {
		model = req.Model.Deployment
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		// Failed assistant placeholders never travel upstream.
		if m.Failed {
			continue
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	out := openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
		Stream:   true,
	}
	applyParams(&out, req.Params)
	return out
}

// applyParams maps resolved model parameters onto request fields. Unknown
// parameter names are ignored rather than rejected.
func applyParams(req *openai.ChatCompletionRequest, params []catalog.Param) {
	for _, p := range params {
		switch p.Name {
		case "temperature":
			if f, ok := catalog.ParamFloat64(p); ok {
				req.Temperature = float32(f)
			}
		case "top_p":
			if f, ok := catalog.ParamFloat64(p); ok {
				req.TopP = float32(f)
			}
		case "max_tokens":
			if f, ok := catalog.ParamFloat64(p); ok {
				req.MaxTokens = int(f)
			}
		case "frequency_penalty":
			if f, ok := catalog.ParamFloat64(p); ok {
				req.FrequencyPenalty = float32(f)
			}
		case "presence_penalty":
			if f, ok := catalog.ParamFloat64(p); ok {
				req.PresencePenalty = float32(f)
			}
		case "stop":
			if s, ok := p.Value.(string); ok && s != "" {
				req.Stop = []string{s}
			}
		case "user":
			if s, ok := p.Value.(string); ok {
				req.User = s
			}
		}
	}
}

// completionStream adapts the go-openai delta stream: it accumulates content
// so the upstream EOF can be turned into the terminal event carrying the
// complete assistant message.
type completionStream struct {
	upstream     *openai.ChatCompletionStream
	content      strings.Builder
	terminalSent bool
}

func (s *completionStream) Recv() (chat.StreamEvent, error) {
	if s.terminalSent {
		return chat.StreamEvent{}, io.EOF
	}

	for {
		resp, err := s.upstream.Recv()
		if errors.Is(err, io.EOF) {
			s.terminalSent = true
			return chat.StreamEvent{
				Terminal: true,
				Message: conversation.Message{
					Role:    conversation.RoleAssistant,
					Content: s.content.String(),
				},
			}, nil
		}
		if err != nil {
			return chat.StreamEvent{}, err
		}

		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		s.content.WriteString(delta)
		return chat.StreamEvent{Delta: delta}, nil
	}
}

func (s *completionStream) Close() error {
	return s.upstream.Close()
}

var _ chat.Completer = (*OpenAIClient)(nil)
