// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package observability

import (
	"context"
	"fmt"
	"log/slog"
)

// Manager owns the lifecycle of the tracer provider and the Prometheus
// registry. A zero Manager (or a nil one) means observability is off; both
// accessors then return nil, which every Record*/Start* helper tolerates.
type Manager struct {
	tracer  *Tracer
	metrics *Metrics
}

// NewFromConfig builds a Manager, initializing only the sections the config
// enables. A nil config yields a disabled Manager rather than an error.
func NewFromConfig(ctx context.Context, cfg *Config) (*Manager, error) {
	if cfg == nil {
		return &Manager{}, nil
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("observability config: %w", err)
	}

	var m Manager
	if cfg.Tracing.Enabled {
		tracer, err := NewTracer(ctx, &cfg.Tracing)
		if err != nil {
			return nil, fmt.Errorf("init tracing: %w", err)
		}
		m.tracer = tracer
		slog.Info("tracing enabled",
			"exporter", cfg.Tracing.Exporter,
			"endpoint", cfg.Tracing.Endpoint,
			"sampling_rate", cfg.Tracing.SamplingRate)
	}
	if cfg.Metrics.Enabled {
		metrics, err := NewMetrics(&cfg.Metrics)
		if err != nil {
			_ = m.Shutdown(ctx)
			return nil, fmt.Errorf("init metrics: %w", err)
		}
		m.metrics = metrics
		slog.Info("metrics enabled", "namespace", cfg.Metrics.Namespace)
	}
	return &m, nil
}

// Tracer returns the tracer, or nil when tracing is disabled.
func (m *Manager) Tracer() *Tracer {
	if m == nil {
		return nil
	}
	return m.tracer
}

// Metrics returns the metrics registry, or nil when metrics are disabled.
func (m *Manager) Metrics() *Metrics {
	if m == nil {
		return nil
	}
	return m.metrics
}

// TracingEnabled reports whether spans are being exported.
func (m *Manager) TracingEnabled() bool { return m != nil && m.tracer != nil }

// MetricsEnabled reports whether a Prometheus registry is live.
func (m *Manager) MetricsEnabled() bool { return m != nil && m.metrics != nil }

// Shutdown flushes the tracer provider. The Prometheus registry needs no
// teardown.
func (m *Manager) Shutdown(ctx context.Context) error {
	if m == nil || m.tracer == nil {
		return nil
	}
	if err := m.tracer.Shutdown(ctx); err != nil {
		return fmt.Errorf("tracer shutdown: %w", err)
	}
	return nil
}
