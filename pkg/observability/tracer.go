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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Tracer wraps an OpenTelemetry tracer with span helpers scoped to the
// pipeline stages, tool executions, and LLM calls that make up one request.
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// TracerOption configures a Tracer at construction time.
type TracerOption func(*tracerOptions)

type tracerOptions struct{}

// NewTracer creates a Tracer from TracingConfig, wiring an OTLP or stdout
// exporter depending on cfg.Exporter.
func NewTracer(ctx context.Context, cfg *TracingConfig, _ ...TracerOption) (*Tracer, error) {
	var exporter sdktrace.SpanExporter
	var err error

	switch cfg.Exporter {
	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	default:
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.IsInsecure() {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exporter, err = otlptracegrpc.New(ctx, opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SamplingRate)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return &Tracer{provider: tp, tracer: tp.Tracer(cfg.ServiceName)}, nil
}

// Start opens a generic span.
func (t *Tracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if t == nil {
		return ctx, noopSpan()
	}
	return t.tracer.Start(ctx, name, opts...)
}

// StartStage opens a span covering one pipeline stage's pre/core/post hooks.
func (t *Tracer) StartStage(ctx context.Context, requestID, sessionID, stage string) (context.Context, trace.Span) {
	return t.Start(ctx, SpanStageRun, trace.WithAttributes(
		attribute.String(AttrRequestID, requestID),
		attribute.String(AttrSessionID, sessionID),
		attribute.String(AttrStageName, stage),
	))
}

// StartToolExecution opens a span covering one composed-tool invocation,
// including every fallback strategy it tries.
func (t *Tracer) StartToolExecution(ctx context.Context, requestID, toolName string) (context.Context, trace.Span) {
	return t.Start(ctx, SpanToolExecution, trace.WithAttributes(
		attribute.String(AttrRequestID, requestID),
		attribute.String(AttrToolName, toolName),
	))
}

// StartLLMCall opens a span covering one LLM adapter invocation.
func (t *Tracer) StartLLMCall(ctx context.Context, requestID, model, provider string) (context.Context, trace.Span) {
	return t.Start(ctx, SpanLLMCall, trace.WithAttributes(
		attribute.String(AttrRequestID, requestID),
		attribute.String(AttrLLMModel, model),
		attribute.String(AttrLLMProvider, provider),
	))
}

// AddLLMUsage records token usage on an in-flight LLM call span.
func (t *Tracer) AddLLMUsage(span trace.Span, tokensIn, tokensOut int) {
	if span == nil {
		return
	}
	span.SetAttributes(
		attribute.Int(AttrLLMTokensIn, tokensIn),
		attribute.Int(AttrLLMTokensOut, tokensOut),
	)
}

// RecordError marks the span as failed and attaches the error.
func (t *Tracer) RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetAttributes(attribute.String(AttrErrorType, err.Error()))
}

// Shutdown flushes and releases the underlying tracer provider.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t == nil || t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}
