// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics collection for the pipeline, tool
// layer, LLM adapters, and resource accountant.
type Metrics struct {
	config   *MetricsConfig
	registry *prometheus.Registry

	stageRuns     *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	stageFailures *prometheus.CounterVec
	reintents     *prometheus.CounterVec

	llmCalls        *prometheus.CounterVec
	llmCallDuration *prometheus.HistogramVec
	llmTokensInput  *prometheus.CounterVec
	llmTokensOutput *prometheus.CounterVec
	llmErrors       *prometheus.CounterVec

	toolCalls        *prometheus.CounterVec
	toolCallDuration *prometheus.HistogramVec
	toolNotFound     *prometheus.CounterVec
	toolErrors       *prometheus.CounterVec

	citationsObserved *prometheus.CounterVec

	accountantQuotaHits *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance from configuration.
func NewMetrics(cfg *MetricsConfig) (*Metrics, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	if cfg.Namespace == "" {
		cfg.Namespace = DefaultServiceName
	}

	m := &Metrics{
		config:   cfg,
		registry: prometheus.NewRegistry(),
	}

	m.initStageMetrics()
	m.initLLMMetrics()
	m.initToolMetrics()
	m.initAccountantMetrics()

	return m, nil
}

func (m *Metrics) initStageMetrics() {
	m.stageRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "pipeline",
			Name:      "stage_runs_total",
			Help:      "Total number of pipeline stage executions",
		},
		[]string{"stage"},
	)

	m.stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.config.Namespace,
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 15),
		},
		[]string{"stage"},
	)

	m.stageFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "pipeline",
			Name:      "stage_failures_total",
			Help:      "Total number of pipeline stage failures",
		},
		[]string{"stage", "reason"},
	)

	m.reintents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "pipeline",
			Name:      "reintent_cycles_total",
			Help:      "Total number of critic-driven re-entries to the Intent stage",
		},
		[]string{"verdict"},
	)

	m.citationsObserved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "pipeline",
			Name:      "citations_observed_total",
			Help:      "Total number of distinct path:line citations accumulated",
		},
		[]string{"tool"},
	)

	m.registry.MustRegister(m.stageRuns, m.stageDuration, m.stageFailures, m.reintents, m.citationsObserved)
}

func (m *Metrics) initLLMMetrics() {
	m.llmCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "llm",
			Name:      "calls_total",
			Help:      "Total number of LLM completions/streams",
		},
		[]string{"model", "provider"},
	)

	m.llmCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.config.Namespace,
			Subsystem: "llm",
			Name:      "call_duration_seconds",
			Help:      "LLM call duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"model", "provider"},
	)

	m.llmTokensInput = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "llm",
			Name:      "tokens_input_total",
			Help:      "Total number of input tokens consumed",
		},
		[]string{"model", "provider"},
	)

	m.llmTokensOutput = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "llm",
			Name:      "tokens_output_total",
			Help:      "Total number of output tokens generated",
		},
		[]string{"model", "provider"},
	)

	m.llmErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "llm",
			Name:      "errors_total",
			Help:      "Total number of LLM call errors",
		},
		[]string{"model", "provider", "error_type"},
	)

	m.registry.MustRegister(m.llmCalls, m.llmCallDuration, m.llmTokensInput, m.llmTokensOutput, m.llmErrors)
}

func (m *Metrics) initToolMetrics() {
	m.toolCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "tool",
			Name:      "calls_total",
			Help:      "Total number of composed tool invocations",
		},
		[]string{"tool", "status"},
	)

	m.toolCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.config.Namespace,
			Subsystem: "tool",
			Name:      "call_duration_seconds",
			Help:      "Tool execution duration in seconds, across its whole fallback chain",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15),
		},
		[]string{"tool"},
	)

	m.toolNotFound = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "tool",
			Name:      "not_found_total",
			Help:      "Total number of tool calls whose fallback chain was exhausted without a result",
		},
		[]string{"tool"},
	)

	m.toolErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "tool",
			Name:      "errors_total",
			Help:      "Total number of hard tool errors",
		},
		[]string{"tool", "error_type"},
	)

	m.registry.MustRegister(m.toolCalls, m.toolCallDuration, m.toolNotFound, m.toolErrors)
}

func (m *Metrics) initAccountantMetrics() {
	m.accountantQuotaHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "accountant",
			Name:      "quota_exceeded_total",
			Help:      "Total number of requests terminated by the resource accountant",
		},
		[]string{"reason"},
	)

	m.registry.MustRegister(m.accountantQuotaHits)
}

// RecordStageRun records one pipeline stage execution.
func (m *Metrics) RecordStageRun(stage string, duration time.Duration) {
	if m == nil {
		return
	}
	m.stageRuns.WithLabelValues(stage).Inc()
	m.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordStageFailure records a stage failure and its reason.
func (m *Metrics) RecordStageFailure(stage, reason string) {
	if m == nil {
		return
	}
	m.stageFailures.WithLabelValues(stage, reason).Inc()
}

// RecordReintent records one critic verdict driving (or not driving) a re-entry.
func (m *Metrics) RecordReintent(verdict string) {
	if m == nil {
		return
	}
	m.reintents.WithLabelValues(verdict).Inc()
}

// RecordCitationsObserved records new citations contributed by one tool.
func (m *Metrics) RecordCitationsObserved(tool string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.citationsObserved.WithLabelValues(tool).Add(float64(count))
}

// RecordLLMCall records an LLM completion/stream call.
func (m *Metrics) RecordLLMCall(model, provider string, duration time.Duration) {
	if m == nil {
		return
	}
	m.llmCalls.WithLabelValues(model, provider).Inc()
	m.llmCallDuration.WithLabelValues(model, provider).Observe(duration.Seconds())
}

// RecordLLMTokens records token usage for one LLM call.
func (m *Metrics) RecordLLMTokens(model, provider string, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	m.llmTokensInput.WithLabelValues(model, provider).Add(float64(inputTokens))
	m.llmTokensOutput.WithLabelValues(model, provider).Add(float64(outputTokens))
}

// RecordLLMError records an LLM call error.
func (m *Metrics) RecordLLMError(model, provider, errorType string) {
	if m == nil {
		return
	}
	m.llmErrors.WithLabelValues(model, provider, errorType).Inc()
}

// RecordToolCall records one composed tool invocation and its terminal status.
func (m *Metrics) RecordToolCall(toolName, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(toolName, status).Inc()
	m.toolCallDuration.WithLabelValues(toolName).Observe(duration.Seconds())
}

// RecordToolNotFound records a tool call whose fallback chain found nothing.
func (m *Metrics) RecordToolNotFound(toolName string) {
	if m == nil {
		return
	}
	m.toolNotFound.WithLabelValues(toolName).Inc()
}

// RecordToolError records a hard tool error (not a not_found signal).
func (m *Metrics) RecordToolError(toolName, errorType string) {
	if m == nil {
		return
	}
	m.toolErrors.WithLabelValues(toolName, errorType).Inc()
}

// RecordQuotaExceeded records a request terminated by the accountant.
func (m *Metrics) RecordQuotaExceeded(reason string) {
	if m == nil {
		return
	}
	m.accountantQuotaHits.WithLabelValues(reason).Inc()
}

// Handler returns an HTTP handler for the Prometheus metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}
