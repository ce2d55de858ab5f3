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

// Package logger wires log/slog for the whole process: level parsing,
// terminal-aware formatting, and suppression of third-party library logs
// below DEBUG.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
)

const modulePrefix = "github.com/kadirpekel/codescout"

var defaultLogger *slog.Logger

// ParseLevel maps a textual level to slog.Level. Unknown values fall back
// to WARN rather than erroring so a typo in config never silences logging
// entirely.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelWarn, nil
}

// handler is the single slog.Handler for the process. It owns level
// filtering, caller-based suppression of third-party records, and the
// simple/verbose text layouts with optional ANSI color.
type handler struct {
	out     io.Writer
	min     slog.Level
	color   bool
	verbose bool
	attrs   []slog.Attr
}

func (h *handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.min
}

// Handle drops records originating outside this module unless the process
// runs at DEBUG. Libraries that log through slog.Default would otherwise
// drown the pipeline's own output.
func (h *handler) Handle(_ context.Context, r slog.Record) error {
	if h.min > slog.LevelDebug && !fromThisModule(r.PC) {
		return nil
	}

	var b strings.Builder
	if h.verbose && !r.Time.IsZero() {
		b.WriteString(r.Time.Format("2006/01/02 15:04:05 "))
	}
	writeLevel(&b, r.Level, h.color)
	b.WriteByte(' ')
	b.WriteString(r.Message)
	for _, a := range h.attrs {
		writeAttr(&b, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&b, a)
		return true
	})
	b.WriteByte('\n')
	_, err := io.WriteString(h.out, b.String())
	return err
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

func (h *handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	// Groups are flattened into key prefixes; nothing here logs deeply
	// enough to need real nesting.
	clone := *h
	clone.attrs = append([]slog.Attr(nil), h.attrs...)
	for i, a := range clone.attrs {
		clone.attrs[i] = slog.Attr{Key: name + "." + a.Key, Value: a.Value}
	}
	return &clone
}

func writeAttr(b *strings.Builder, a slog.Attr) {
	fmt.Fprintf(b, " %s=%s", a.Key, a.Value.String())
}

func writeLevel(b *strings.Builder, level slog.Level, color bool) {
	name := level.String()
	if name == "WARNING" {
		name = "WARN"
	}
	if !color {
		b.WriteString(name)
		return
	}
	var code string
	switch {
	case level >= slog.LevelError:
		code = "\033[31m"
	case level >= slog.LevelWarn:
		code = "\033[33m"
	case level >= slog.LevelInfo:
		code = "\033[36m"
	default:
		code = "\033[90m"
	}
	b.WriteString(code)
	b.WriteString(name)
	b.WriteString("\033[0m")
}

func fromThisModule(pc uintptr) bool {
	if pc == 0 {
		return false
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return false
	}
	if strings.HasPrefix(fn.Name(), modulePrefix) {
		return true
	}
	file, _ := fn.FileLine(pc)
	return strings.Contains(file, "codescout/")
}

// Init installs the process-wide logger. format is "simple" (level +
// message, the default) or "verbose" (timestamped). Color is enabled only
// when output is a terminal.
func Init(level slog.Level, output *os.File, format string) {
	defaultLogger = slog.New(&handler{
		out:     output,
		min:     level,
		color:   isTerminal(output),
		verbose: format == "verbose",
	})
	slog.SetDefault(defaultLogger)
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

// OpenLogFile opens path for appending, creating it if needed. The returned
// cleanup closes the file.
func OpenLogFile(path string) (*os.File, func(), error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}

// GetLogger returns the process logger, initializing a stderr INFO logger
// on first use if Init was never called.
func GetLogger() *slog.Logger {
	if defaultLogger == nil {
		Init(slog.LevelInfo, os.Stderr, "simple")
	}
	return defaultLogger
}
