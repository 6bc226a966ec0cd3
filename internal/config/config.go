package config

// Config holds the main configuration for the worker.
type Config struct {
	Version    string           `json:"version"              yaml:"version"`
	Model      ModelConfig      `json:"model"                yaml:"model"`
	IPC        IPCConfig        `json:"ipc,omitempty"        yaml:"ipc,omitempty"`
	Generation GenerationConfig `json:"generation,omitempty" yaml:"generation,omitempty"`
}

// ModelConfig holds the model file and engine parameters.
type ModelConfig struct {
	// Path is the GGUF model file.
	Path string `json:"path" yaml:"path"`

	// Binary is the llama.cpp CLI binary used to run the model.
	Binary string `json:"binary" yaml:"binary"`

	ContextSize   int     `json:"context_size,omitempty"   yaml:"context_size,omitempty"`
	BatchSize     int     `json:"batch_size,omitempty"     yaml:"batch_size,omitempty"`
	GPULayers     int     `json:"gpu_layers,omitempty"     yaml:"gpu_layers,omitempty"`
	Threads       int     `json:"threads,omitempty"        yaml:"threads,omitempty"`
	Temperature   float64 `json:"temperature,omitempty"    yaml:"temperature,omitempty"`
	MinP          float64 `json:"min_p,omitempty"          yaml:"min_p,omitempty"`
	RepeatPenalty float64 `json:"repeat_penalty,omitempty" yaml:"repeat_penalty,omitempty"`
}

// IPCConfig names the shared resources. Both processes must agree on the
// prefix to rendezvous.
type IPCConfig struct {
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
}

// GenerationConfig holds per-request defaults. These are hot-reloadable: the
// watcher applies them to subsequent requests without a restart.
type GenerationConfig struct {
	// MaxTokens is the token budget per request; 0 means unlimited. Negative
	// values are rejected by schema validation.
	MaxTokens int `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`

	// SystemPrompt is the default system prompt for interactive test mode.
	SystemPrompt string `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`
}
