package llms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstUserContent(t *testing.T) {
	msgs := []Message{
		AssistantMessage("earlier answer"),
		UserMessage("what is CRISPR?"),
		UserMessage("second question"),
	}

	assert.Equal(t, "what is CRISPR?", FirstUserContent(msgs))
	assert.Equal(t, "", FirstUserContent(nil))
}

func TestJoinContents(t *testing.T) {
	msgs := []Message{UserMessage("a"), AssistantMessage("b"), UserMessage("c")}
	assert.Equal(t, "a\nb\nc", JoinContents(msgs))
}

func TestTierString(t *testing.T) {
	assert.Equal(t, "cli", TierCLI.String())
	assert.Equal(t, "api", TierAPI.String())
	assert.Equal(t, "local-fallback", TierLocalFallback.String())
}

func TestEstimateUsage(t *testing.T) {
	usage := EstimateUsage("a short prompt", "a slightly longer completion text")
	assert.Greater(t, usage["total_tokens"], 0)
	assert.Equal(t, usage["prompt_tokens"]+usage["completion_tokens"], usage["total_tokens"])
}

func TestProviderRegistry_ByTier(t *testing.T) {
	r := NewProviderRegistry()
	ollama := NewOllamaProvider("", "", 0)
	require.NoError(t, r.RegisterProvider(ollama))

	local := r.ByTier(TierLocalFallback)
	require.Len(t, local, 1)
	assert.Equal(t, "ollama", local[0].Name())
	assert.Empty(t, r.ByTier(TierCLI))
}

func TestProviderConstructors_RequireKeys(t *testing.T) {
	_, err := NewAnthropicProvider("")
	require.Error(t, err)

	_, err = NewOpenAIProvider("")
	require.Error(t, err)

	_, err = NewDeepSeekProvider("")
	require.Error(t, err)

	p, err := NewGrokProvider("xai-key")
	require.NoError(t, err)
	assert.Equal(t, "grok", p.Name())
	assert.Equal(t, TierAPI, p.Tier())
}

func TestExtractCLIResult(t *testing.T) {
	assert.Equal(t, "hello", extractCLIResult([]byte(`{"result":"hello"}`)))
	assert.Equal(t, "fallback text", extractCLIResult([]byte("fallback text\n")))
}
