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

import "fmt"

// Config holds the tracing and metrics sections of the YAML config document.
type Config struct {
	Tracing TracingConfig `yaml:"tracing,omitempty"`
	Metrics MetricsConfig `yaml:"metrics,omitempty"`
}

// TracingConfig configures the OpenTelemetry tracer provider. Only the two
// exporters this repo wires are accepted: "otlp" (gRPC collector) and
// "stdout" (pretty-printed spans for local debugging).
type TracingConfig struct {
	Enabled        bool    `yaml:"enabled,omitempty"`
	Exporter       string  `yaml:"exporter,omitempty"`
	Endpoint       string  `yaml:"endpoint,omitempty"`
	SamplingRate   float64 `yaml:"sampling_rate,omitempty"`
	ServiceName    string  `yaml:"service_name,omitempty"`
	ServiceVersion string  `yaml:"service_version,omitempty"`

	// Insecure disables TLS toward the OTLP collector. Nil means true,
	// matching the local-collector default.
	Insecure *bool `yaml:"insecure,omitempty"`
}

// MetricsConfig configures the Prometheus registry.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled,omitempty"`
	Endpoint  string `yaml:"endpoint,omitempty"`
	Namespace string `yaml:"namespace,omitempty"`
}

// SetDefaults fills every unset field with its documented default.
func (c *Config) SetDefaults() {
	t := &c.Tracing
	if t.Exporter == "" {
		t.Exporter = "otlp"
	}
	if t.Endpoint == "" {
		t.Endpoint = DefaultOTLPEndpoint
	}
	if t.SamplingRate == 0 {
		t.SamplingRate = DefaultSamplingRate
	}
	if t.ServiceName == "" {
		t.ServiceName = DefaultServiceName
	}
	m := &c.Metrics
	if m.Endpoint == "" {
		m.Endpoint = DefaultMetricsPath
	}
	if m.Namespace == "" {
		m.Namespace = DefaultServiceName
	}
}

// Validate rejects configurations the exporters cannot honor. Disabled
// sections are not validated, so a half-filled stanza with enabled: false
// never blocks startup.
func (c *Config) Validate() error {
	if t := &c.Tracing; t.Enabled {
		if t.Exporter != "otlp" && t.Exporter != "stdout" {
			return fmt.Errorf("tracing: unknown exporter %q (valid: otlp, stdout)", t.Exporter)
		}
		if t.Exporter == "otlp" && t.Endpoint == "" {
			return fmt.Errorf("tracing: endpoint is required for the otlp exporter")
		}
		if t.SamplingRate < 0 || t.SamplingRate > 1 {
			return fmt.Errorf("tracing: sampling_rate %v outside [0, 1]", t.SamplingRate)
		}
	}
	return nil
}

// IsInsecure reports whether the OTLP connection should skip TLS.
func (c *TracingConfig) IsInsecure() bool {
	return c.Insecure == nil || *c.Insecure
}
