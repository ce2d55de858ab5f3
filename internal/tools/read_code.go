package tools

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kadirpekel/codescout/internal/storage"
)

// maxFileSliceTokens bounds one read_code call's returned content; token
// counting here is the same word-count approximation the context builder
// package uses, to avoid a second estimator disagreeing with the first.
const maxFileSliceTokens = 4000

// extensionSwaps lists the paired extensions read_code's second fallback
// strategy tries when the exact path isn't found (.py<->.pyi,
// .ts<->.tsx, and friends).
var extensionSwaps = map[string][]string{
	".py":  {".pyi"},
	".pyi": {".py"},
	".ts":  {".tsx", ".d.ts"},
	".tsx": {".ts"},
	".js":  {".jsx"},
	".jsx": {".js"},
	".go":  {},
	".h":   {".hpp", ".hh"},
	".hpp": {".h"},
}

// ReadCode implements the read_code composed tool: exact path, extension
// swap, glob by filename, glob by stem.
type ReadCode struct {
	primitives *Primitives
}

// NewReadCode wraps Primitives as the read_code composed tool.
func NewReadCode(primitives *Primitives) *ReadCode {
	return &ReadCode{primitives: primitives}
}

func (t *ReadCode) Info() Info {
	return Info{
		Name:        "read_code",
		Description: "Read a bounded slice of a file's lines via a deterministic fallback chain: exact path, extension swap, glob by filename, glob by stem.",
		Category:    CategoryComposed,
		Risk:        RiskReadOnly,
		Parameters: []Parameter{
			{Name: "path", Type: "string", Description: "File path to read, ideally one returned by a prior search_code call.", Required: true},
			{Name: "start_line", Type: "integer", Description: "Optional 1-indexed start line.", Required: false},
			{Name: "end_line", Type: "integer", Description: "Optional 1-indexed end line.", Required: false},
		},
	}
}

func (t *ReadCode) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	path, _ := args["path"].(string)
	if path == "" {
		return ToolResult{Tool: "read_code", Status: StatusError, Error: "path argument is required"}, nil
	}
	startLine := intArg(args, "start_line")
	endLine := intArg(args, "end_line")

	result := ToolResult{Tool: "read_code"}

	// Strategy 1: exact path.
	slice, err := t.primitives.ReadFile(ctx, path, startLine, endLine)
	if err == nil && len(slice.Lines) > 0 {
		result.AttemptHistory = append(result.AttemptHistory, Attempt{Strategy: "exact_path", Outcome: StatusSuccess})
		return t.finish(result, "exact_path", path, slice), nil
	}
	result.AttemptHistory = append(result.AttemptHistory, attemptFromErr("exact_path", err))

	// Strategy 2: extension swap.
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	for _, swapped := range extensionSwaps[ext] {
		candidate := stem + swapped
		slice, err := t.primitives.ReadFile(ctx, candidate, startLine, endLine)
		if err == nil && len(slice.Lines) > 0 {
			result.AttemptHistory = append(result.AttemptHistory, Attempt{Strategy: "extension_swap", Outcome: StatusSuccess, Detail: candidate})
			return t.finish(result, "extension_swap", candidate, slice), nil
		}
	}
	result.AttemptHistory = append(result.AttemptHistory, Attempt{Strategy: "extension_swap", Outcome: StatusNotFound})

	// Strategy 3: glob by filename anywhere in scope.
	filename := filepath.Base(path)
	byName, err := t.primitives.GlobFiles(ctx, filename, false)
	if err == nil && len(byName) > 0 {
		candidate := byName[0]
		slice, rerr := t.primitives.ReadFile(ctx, candidate, startLine, endLine)
		if rerr == nil && len(slice.Lines) > 0 {
			result.AttemptHistory = append(result.AttemptHistory, Attempt{Strategy: "glob_by_filename", Outcome: StatusSuccess, Detail: candidate})
			return t.finish(result, "glob_by_filename", candidate, slice), nil
		}
	}
	result.AttemptHistory = append(result.AttemptHistory, attemptFromErr("glob_by_filename", err))

	// Strategy 4: glob by stem, returns a candidate list with no content.
	byStem, err := t.primitives.GlobFiles(ctx, filepath.Base(stem), true)
	if err == nil && len(byStem) > 0 {
		result.AttemptHistory = append(result.AttemptHistory, Attempt{
			Strategy: "glob_by_stem", Outcome: StatusSuccess,
			Detail: fmt.Sprintf("%d candidate(s)", len(byStem)),
		})
		result.Status = StatusNotFound
		result.FoundVia = "glob_by_stem"
		result.Data = Data{Candidates: byStem}
		return result, nil
	}
	result.AttemptHistory = append(result.AttemptHistory, attemptFromErr("glob_by_stem", err))

	result.Status = StatusNotFound
	return result, nil
}

// finish truncates slice to maxFileSliceTokens (approximated as whitespace-
// separated words, matching the context package's estimator) and builds
// the successful ToolResult.
func (t *ReadCode) finish(result ToolResult, foundVia, path string, slice storage.FileSlice) ToolResult {
	lines := slice.Lines
	budget := maxFileSliceTokens
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		words := len(strings.Fields(line))
		if words == 0 {
			words = 1
		}
		if budget-words < 0 {
			break
		}
		budget -= words
		kept = append(kept, line)
	}

	match := Match{
		Path:    path,
		Line:    slice.StartLine,
		EndLine: slice.StartLine + len(kept) - 1,
		Snippet: strings.Join(kept, "\n"),
	}

	result.Status = StatusSuccess
	result.FoundVia = foundVia
	result.Data = Data{Matches: []Match{match}}
	result.Citations = []Citation{NewCitation(path, slice.StartLine)}
	return result
}

func intArg(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func attemptFromErr(strategy string, err error) Attempt {
	if err != nil {
		return Attempt{Strategy: strategy, Outcome: StatusError, Detail: err.Error()}
	}
	return Attempt{Strategy: strategy, Outcome: StatusNotFound}
}
