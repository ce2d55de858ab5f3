package observability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics

	require.NotPanics(t, func() {
		m.RecordStageRun("intent", 10*time.Millisecond)
		m.RecordStageFailure("critic", "llm_malformed_output")
		m.RecordReintent("reject")
		m.RecordLLMCall("claude-sonnet", "anthropic", 200*time.Millisecond)
		m.RecordLLMTokens("claude-sonnet", "anthropic", 100, 50)
		m.RecordToolCall("search_code", "success", 5*time.Millisecond)
		m.RecordToolNotFound("read_code")
		m.RecordQuotaExceeded("max_total_code_tokens")
	})
}

func TestNewMetricsDisabledWhenNotEnabled(t *testing.T) {
	m, err := NewMetrics(&MetricsConfig{Enabled: false})
	require.NoError(t, err)
	require.Nil(t, m)
}

func TestNewMetricsRegistersSeries(t *testing.T) {
	m, err := NewMetrics(&MetricsConfig{Enabled: true, Namespace: "codescout_test"})
	require.NoError(t, err)
	require.NotNil(t, m)

	m.RecordStageRun("planner", 3*time.Millisecond)
	m.RecordLLMCall("gpt-4o", "openai", time.Millisecond)

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}

func TestNoopManager(t *testing.T) {
	mgr := NoopManager()
	require.False(t, mgr.TracingEnabled())
	require.False(t, mgr.MetricsEnabled())
	require.Nil(t, mgr.Tracer())
	require.Nil(t, mgr.Metrics())
}
