package engine

// Phi-style chat markers used to frame prompts for the model.
const (
	systemOpen    = "<|system|>\n"
	userOpen      = "<|user|>\n"
	assistantOpen = "<|assistant|>\n"
	turnEnd       = "<|end|>\n"
)

// BuildPrompt frames a system/user prompt pair for the model. An empty
// system prompt omits the system framing entirely; a non-empty one is
// included verbatim.
func BuildPrompt(systemPrompt, userPrompt string) string {
	if systemPrompt == "" {
		return userOpen + userPrompt + turnEnd + assistantOpen
	}

	return systemOpen + systemPrompt + turnEnd +
		userOpen + userPrompt + turnEnd +
		assistantOpen
}
