package assistant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOpenAIClient(t *testing.T) {
	c, err := NewOpenAIClient("sk-test")
	require.NoError(t, err)

	assert.Equal(t, "openai", c.Name())
	assert.Equal(t, "gpt-4o", c.model)
}

func TestNewOpenAIClientRequiresKey(t *testing.T) {
	_, err := NewOpenAIClient("")
	require.Error(t, err)
}
