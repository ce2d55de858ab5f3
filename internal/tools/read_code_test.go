package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/codescout/internal/storage"
)

func TestReadCodeExactPathHit(t *testing.T) {
	backend := newFakeBackend()
	backend.slices["src/auth/login.py"] = storage.FileSlice{
		Path: "src/auth/login.py", StartLine: 42, Lines: []string{"def login(user):"},
	}

	read := NewReadCode(NewPrimitives(backend))
	result, err := read.Execute(context.Background(), map[string]any{"path": "src/auth/login.py"})
	require.NoError(t, err)

	require.Equal(t, StatusSuccess, result.Status)
	require.Equal(t, "exact_path", result.FoundVia)
	require.Equal(t, []Citation{"src/auth/login.py:42"}, result.Citations)
}

func TestReadCodeFallsBackToExtensionSwap(t *testing.T) {
	backend := newFakeBackend()
	backend.slices["login.pyi"] = storage.FileSlice{Path: "login.pyi", StartLine: 1, Lines: []string{"def login(user: str) -> None: ..."}}

	read := NewReadCode(NewPrimitives(backend))
	result, err := read.Execute(context.Background(), map[string]any{"path": "login.py"})
	require.NoError(t, err)

	require.Equal(t, StatusSuccess, result.Status)
	require.Equal(t, "extension_swap", result.FoundVia)
	require.Equal(t, "login.pyi", result.Data.Matches[0].Path)
}

func TestReadCodeFallsBackToGlobByFilename(t *testing.T) {
	backend := newFakeBackend()
	backend.byName["login.py"] = []string{"nested/deep/login.py"}
	backend.slices["nested/deep/login.py"] = storage.FileSlice{Path: "nested/deep/login.py", StartLine: 1, Lines: []string{"def login():"}}

	read := NewReadCode(NewPrimitives(backend))
	result, err := read.Execute(context.Background(), map[string]any{"path": "somewhere/login.py"})
	require.NoError(t, err)

	require.Equal(t, StatusSuccess, result.Status)
	require.Equal(t, "glob_by_filename", result.FoundVia)
}

func TestReadCodeFallsBackToGlobByStemReturnsCandidatesWithNoContent(t *testing.T) {
	backend := newFakeBackend()
	backend.byStem["login"] = []string{"login.go", "login_test.go"}

	read := NewReadCode(NewPrimitives(backend))
	result, err := read.Execute(context.Background(), map[string]any{"path": "login.py"})
	require.NoError(t, err)

	require.Equal(t, StatusNotFound, result.Status, "glob_by_stem returns candidates only, never content")
	require.Equal(t, "glob_by_stem", result.FoundVia)
	require.ElementsMatch(t, []string{"login.go", "login_test.go"}, result.Data.Candidates)
	require.Empty(t, result.Data.Matches)
}

func TestReadCodeNotFoundAfterAllFourStrategiesFail(t *testing.T) {
	read := NewReadCode(NewPrimitives(newFakeBackend()))
	result, err := read.Execute(context.Background(), map[string]any{"path": "nonexistent.py"})
	require.NoError(t, err)

	require.Equal(t, StatusNotFound, result.Status)
	require.Len(t, result.AttemptHistory, 4)
	require.Empty(t, result.Citations)
}

func TestReadCodeRequiresPath(t *testing.T) {
	read := NewReadCode(NewPrimitives(newFakeBackend()))
	result, err := read.Execute(context.Background(), map[string]any{})
	require.NoError(t, err)
	require.Equal(t, StatusError, result.Status)
}

func TestReadCodeTruncatesToMaxFileSliceTokens(t *testing.T) {
	backend := newFakeBackend()
	lines := make([]string, 0, 5000)
	for i := 0; i < 5000; i++ {
		lines = append(lines, "word")
	}
	backend.slices["big.go"] = storage.FileSlice{Path: "big.go", StartLine: 1, Lines: lines}

	read := NewReadCode(NewPrimitives(backend))
	result, err := read.Execute(context.Background(), map[string]any{"path": "big.go"})
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, result.Status)

	match := result.Data.Matches[0]
	keptLines := match.EndLine - match.Line + 1
	require.LessOrEqual(t, keptLines, maxFileSliceTokens, "one word per line means line count bounds word count")
	require.Less(t, keptLines, 5000, "the slice must actually be truncated, not passed through whole")
}
