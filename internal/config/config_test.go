package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultsProduceRunnableBounds(t *testing.T) {
	cfg := Defaults()
	require.Equal(t, "info", cfg.Logging.Level)
	require.Equal(t, "anthropic", cfg.LLM.Primary)
	require.Equal(t, 10, cfg.Accountant.MaxLLMCallsPerQuery)
	require.Equal(t, 21, cfg.Accountant.MaxAgentHopsPerQuery)
	require.Equal(t, 25000, cfg.Accountant.MaxTotalCodeTokens)
}

func TestLoadWithEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Defaults(), cfg)
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.Error(t, err)
}

func TestLoadParsesYAMLAndExpandsEnvVars(t *testing.T) {
	t.Setenv("CODESCOUT_ANTHROPIC_KEY", "sk-from-env")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
logging:
  level: debug
  format: json
llm:
  primary: openai
  anthropic:
    api_key: "${CODESCOUT_ANTHROPIC_KEY}"
    model: "claude-sonnet-4-20250514"
  openai:
    api_key: "${CODESCOUT_OPENAI_KEY:-sk-default}"
storage:
  working_directory: /repo
accountant:
  max_llm_calls_per_query: 5
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, "json", cfg.Logging.Format)
	require.Equal(t, "openai", cfg.LLM.Primary)
	require.Equal(t, "sk-from-env", cfg.LLM.Anthropic.APIKey)
	require.Equal(t, "sk-default", cfg.LLM.OpenAI.APIKey, "the withDefault form falls back when the var is unset")
	require.Equal(t, "/repo", cfg.Storage.WorkingDirectory)
	require.Equal(t, 5, cfg.Accountant.MaxLLMCallsPerQuery)
}

func TestExpandEnvVarsPrecedenceAndMissingVarsResolveEmpty(t *testing.T) {
	t.Setenv("CODESCOUT_SET_VAR", "present")

	require.Equal(t, "present", expandEnvVars("$CODESCOUT_SET_VAR"))
	require.Equal(t, "present", expandEnvVars("${CODESCOUT_SET_VAR}"))
	require.Equal(t, "present", expandEnvVars("${CODESCOUT_SET_VAR:-fallback}"))
	require.Equal(t, "fallback", expandEnvVars("${CODESCOUT_UNSET_VAR:-fallback}"))
	require.Equal(t, "", expandEnvVars("${CODESCOUT_UNSET_VAR}"))
	require.Equal(t, "no variables here", expandEnvVars("no variables here"))
}

func TestExpandStringsWalksNestedMapsAndSlices(t *testing.T) {
	t.Setenv("CODESCOUT_NESTED_VAR", "resolved")

	doc := map[string]any{
		"top": "$CODESCOUT_NESTED_VAR",
		"nested": map[string]any{
			"inner": "${CODESCOUT_NESTED_VAR}",
		},
		"list": []any{"$CODESCOUT_NESTED_VAR", 42},
	}

	out := expandStrings(doc).(map[string]any)
	require.Equal(t, "resolved", out["top"])
	require.Equal(t, "resolved", out["nested"].(map[string]any)["inner"])
	require.Equal(t, "resolved", out["list"].([]any)[0])
	require.Equal(t, 42, out["list"].([]any)[1], "non-string values pass through untouched")
}
