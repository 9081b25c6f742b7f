package llm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trialstack/icfgen/pkg/llm"
)

func TestNewWithConfigDefaults(t *testing.T) {
	client, err := llm.NewWithConfig(llm.ClientConfig{})
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestNewWithConfigAnthropic(t *testing.T) {
	client, err := llm.NewWithConfig(llm.ClientConfig{
		Provider: "anthropic",
		APIKey:   "test-key",
	})
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestNewWithConfigRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		config llm.ClientConfig
	}{
		{"negative temperature", llm.ClientConfig{Temperature: -0.5}},
		{"temperature too high", llm.ClientConfig{Temperature: 2.5}},
		{"negative max tokens", llm.ClientConfig{MaxTokens: -1}},
		{"unknown provider", llm.ClientConfig{Provider: "openai"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client, err := llm.NewWithConfig(tc.config)
			require.Error(t, err)
			assert.Nil(t, client)
		})
	}
}

func TestCountTokens(t *testing.T) {
	short, err := llm.CountTokens("hello")
	if err != nil {
		t.Skipf("token encoding unavailable: %v", err)
	}
	assert.Greater(t, short, 0)

	long, err := llm.CountTokens("You are a medical writer generating the risks section of an informed consent form.")
	require.NoError(t, err)
	assert.Greater(t, long, short)
}
