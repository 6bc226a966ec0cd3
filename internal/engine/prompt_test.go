package engine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildPrompt_WithSystemPrompt(t *testing.T) {
	prompt := BuildPrompt("You are a coding expert", "What is Go?")

	assert.Equal(t,
		"<|system|>\nYou are a coding expert<|end|>\n<|user|>\nWhat is Go?<|end|>\n<|assistant|>\n",
		prompt)
}

func TestBuildPrompt_EmptySystemPromptOmitsFraming(t *testing.T) {
	prompt := BuildPrompt("", "hello")

	assert.Equal(t, "<|user|>\nhello<|end|>\n<|assistant|>\n", prompt)
	assert.NotContains(t, prompt, "<|system|>")
}

func TestBuildPrompt_SystemPromptVerbatim(t *testing.T) {
	system := "line one\nline two\t<odd bytes> \x00end"
	prompt := BuildPrompt(system, "hi")

	assert.True(t, strings.Contains(prompt, system),
		"the system prompt must appear byte-for-byte inside the framed prompt")
}

func TestNormalizeMaxTokens(t *testing.T) {
	assert.Equal(t, UnlimitedTokens, NormalizeMaxTokens(0))
	assert.Equal(t, 1, NormalizeMaxTokens(1))
	assert.Equal(t, 4096, NormalizeMaxTokens(4096))
}
