package provider

import (
	"testing"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley-server/internal/domain/catalog"
	"parley-server/internal/domain/chat"
	"parley-server/internal/domain/conversation"
)

func TestBuildRequestMapsMessagesAndParams(t *testing.T) {
	req := buildRequest(chat.CompletionRequest{
		Model: catalog.Model{Provider: "openai", Name: "gpt-4o"},
		Params: []catalog.Param{
			{Name: "temperature", Type: catalog.VariableTypeRange, Value: decimal.NewFromFloat(0.3)},
			{Name: "top_p", Type: catalog.VariableTypeRange, Value: 0.9},
			{Name: "max_tokens", Type: catalog.VariableTypeRange, Value: 800},
			{Name: "stop", Type: catalog.VariableTypeString, Value: "###"},
			{Name: "style", Type: catalog.VariableTypeString, Value: "formal"}, // unmapped
		},
		Messages: []conversation.Message{
			{Role: conversation.RoleSystem, Content: "Be terse."},
			{Role: conversation.RoleUser, Content: "hi"},
		},
	})

	assert.Equal(t, "gpt-4o", req.Model)
	assert.True(t, req.Stream)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Equal(t, "hi", req.Messages[1].Content)

	assert.InDelta(t, 0.3, float64(req.Temperature), 1e-6)
	assert.InDelta(t, 0.9, float64(req.TopP), 1e-6)
	assert.Equal(t, 800, req.MaxTokens)
	assert.Equal(t, []string{"###"}, req.Stop)
}

func TestBuildRequestPrefersDeployment(t *testing.T) {
	req := buildRequest(chat.CompletionRequest{
		Model: catalog.Model{Provider: "azure", Name: "gpt-4o-mini", Deployment: "gpt4o-mini-eu"},
	})
	assert.Equal(t, "gpt4o-mini-eu", req.Model)
}

func TestBuildRequestSkipsFailedMessages(t *testing.T) {
	req := buildRequest(chat.CompletionRequest{
		Model: catalog.Model{Provider: "openai", Name: "gpt-4o"},
		Messages: []conversation.Message{
			{Role: conversation.RoleUser, Content: "hi"},
			{Role: conversation.RoleAssistant, Content: "par", Failed: true},
			{Role: conversation.RoleUser, Content: "again"},
		},
	})
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "again", req.Messages[1].Content)
}

func TestApplyParamsIgnoresMalformedValues(t *testing.T) {
	var req openai.ChatCompletionRequest
	applyParams(&req, []catalog.Param{
		{Name: "temperature", Type: catalog.VariableTypeRange, Value: "warm"},
		{Name: "max_tokens", Type: catalog.VariableTypeRange, Value: nil},
	})
	assert.Zero(t, req.Temperature)
	assert.Zero(t, req.MaxTokens)
}

func TestRegistryLookup(t *testing.T) {
	reg, err := NewRegistry([]Config{
		{ID: "openai", Kind: KindOpenAI, APIKey: "sk-test"},
		{ID: "azure", Kind: KindAzure, APIKey: "az-test", Endpoint: "https://example.openai.azure.com"},
	}, zerolog.Nop())
	require.NoError(t, err)

	c, err := reg.Completer("openai")
	require.NoError(t, err)
	assert.NotNil(t, c)

	_, err = reg.Completer("anthropic")
	assert.Error(t, err)

	assert.ElementsMatch(t, []string{"openai", "azure"}, reg.IDs())
}

func TestRegistryRejectsBadConfigs(t *testing.T) {
	cases := map[string][]Config{
		"empty":          {},
		"missing id":     {{Kind: KindOpenAI, APIKey: "k"}},
		"missing key":    {{ID: "openai", Kind: KindOpenAI}},
		"azure endpoint": {{ID: "azure", Kind: KindAzure, APIKey: "k"}},
		"duplicate": {
			{ID: "openai", Kind: KindOpenAI, APIKey: "a"},
			{ID: "openai", Kind: KindOpenAI, APIKey: "b"},
		},
	}

	for name, configs := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewRegistry(configs, zerolog.Nop())
			assert.Error(t, err)
		})
	}
}
