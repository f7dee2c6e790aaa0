package assistant

import (
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnthropicBuildParams(t *testing.T) {
	c := &AnthropicClient{model: "claude-3-5-sonnet-20241022"}

	params := c.buildParams(&Request{
		Question: "What is a B-tree?",
		Context:  "Student Name: Thabo Nkosi\nRole: student",
		History: []Turn{
			{Role: "user", Content: "hi"},
			{Role: "assistant", Content: "Hello! How can I help?"},
		},
	})

	assert.Equal(t, "claude-3-5-sonnet-20241022", params.Model.Value)

	// The constructed context goes through the system prompt so follow-up
	// turns keep it instead of losing it after the first message.
	require.Len(t, params.System.Value, 1)
	assert.Equal(t, "Student Name: Thabo Nkosi\nRole: student", params.System.Value[0].Text.Value)

	require.Len(t, params.Messages.Value, 3)
	last := params.Messages.Value[2]
	assert.Equal(t, anthropic.MessageParamRoleUser, last.Role.Value)

	blocks := last.Content.Value
	require.Len(t, blocks, 1)
	text, ok := blocks[0].(anthropic.TextBlockParam)
	require.True(t, ok)
	assert.Equal(t, "What is a B-tree?", text.Text.Value)
}

func TestAnthropicBuildParamsWithoutContext(t *testing.T) {
	c := &AnthropicClient{model: "claude-3-5-sonnet-20241022"}

	params := c.buildParams(&Request{Question: "hello"})

	assert.False(t, params.System.Present)
	require.Len(t, params.Messages.Value, 1)
}
