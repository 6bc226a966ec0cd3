package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/shmbridge/internal/config"
)

const testSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["version", "model"],
  "properties": {
    "version": {"type": "string", "enum": ["1"]},
    "model": {
      "type": "object",
      "required": ["path", "binary"],
      "properties": {
        "path": {"type": "string", "minLength": 1},
        "binary": {"type": "string", "minLength": 1}
      }
    },
    "generation": {
      "type": "object",
      "properties": {
        "max_tokens": {"type": "integer", "minimum": 0}
      }
    }
  }
}`

func writeFiles(t *testing.T, configYAML string) (configPath, schemaPath string) {
	t.Helper()

	dir := t.TempDir()
	configPath = filepath.Join(dir, "config.yaml")
	schemaPath = filepath.Join(dir, "schema.json")

	require.NoError(t, os.WriteFile(configPath, []byte(configYAML), 0o644))
	require.NoError(t, os.WriteFile(schemaPath, []byte(testSchema), 0o644))

	return configPath, schemaPath
}

func TestLoadAndValidate(t *testing.T) {
	configPath, schemaPath := writeFiles(t, `
version: "1"
model:
  path: models/phi-3.gguf
  binary: /usr/local/bin/llama-cli
  context_size: 4096
ipc:
  prefix: myworker
generation:
  max_tokens: 2048
  system_prompt: "You are terse."
`)

	cfg, err := config.LoadAndValidate(configPath, schemaPath)
	require.NoError(t, err)

	assert.Equal(t, "1", cfg.Version)
	assert.Equal(t, "models/phi-3.gguf", cfg.Model.Path)
	assert.Equal(t, 4096, cfg.Model.ContextSize)
	assert.Equal(t, "myworker", cfg.IPC.Prefix)
	assert.Equal(t, 2048, cfg.Generation.MaxTokens)
	assert.Equal(t, "You are terse.", cfg.Generation.SystemPrompt)
}

func TestLoadAndValidate_RejectsNegativeMaxTokens(t *testing.T) {
	configPath, schemaPath := writeFiles(t, `
version: "1"
model:
  path: models/phi-3.gguf
  binary: llama-cli
generation:
  max_tokens: -1
`)

	_, err := config.LoadAndValidate(configPath, schemaPath)
	assert.ErrorContains(t, err, "validation failed")
}

func TestLoadAndValidate_RejectsMissingModel(t *testing.T) {
	configPath, schemaPath := writeFiles(t, `
version: "1"
`)

	_, err := config.LoadAndValidate(configPath, schemaPath)
	assert.ErrorContains(t, err, "validation failed")
}

func TestLoadAndValidate_MissingFile(t *testing.T) {
	_, schemaPath := writeFiles(t, `version: "1"`)

	_, err := config.LoadAndValidate("/no/such/config.yaml", schemaPath)
	assert.ErrorContains(t, err, "failed to read config")
}
