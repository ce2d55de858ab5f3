package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/codescout/internal/storage"
)

func TestFindSymbolFallsBackToPrefixMatch(t *testing.T) {
	backend := newFakeBackend()
	backend.prefix = []storage.Symbol{{Name: "LoginUser", Path: "auth.go", Line: 3}}

	tool := NewFindSymbolTool(NewPrimitives(backend))
	result, err := tool.Execute(context.Background(), map[string]any{"name": "Login"})
	require.NoError(t, err)

	require.Equal(t, StatusSuccess, result.Status)
	require.Equal(t, []Citation{"auth.go:3"}, result.Citations)
}

func TestGetImportsReturnsNotFoundForUntrackedFile(t *testing.T) {
	backend := newFakeBackend()
	backend.imports["app/auth.py"] = []string{"os", "app.db"}

	tool := NewGetImportsTool(NewPrimitives(backend))

	result, err := tool.Execute(context.Background(), map[string]any{"path": "app/auth.py"})
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, result.Status)
	require.Len(t, result.Data.Matches, 2)

	result, err = tool.Execute(context.Background(), map[string]any{"path": "unknown.py"})
	require.NoError(t, err)
	require.Equal(t, StatusNotFound, result.Status)
}

func TestGetImportersListsCandidatesWithoutCitations(t *testing.T) {
	backend := newFakeBackend()
	backend.importers["app/db.py"] = []string{"app/auth.py", "index.js"}

	tool := NewGetImportersTool(NewPrimitives(backend))
	result, err := tool.Execute(context.Background(), map[string]any{"path": "app/db.py"})
	require.NoError(t, err)

	require.Equal(t, StatusSuccess, result.Status)
	require.ElementsMatch(t, []string{"app/auth.py", "index.js"}, result.Data.Candidates)
	require.Empty(t, result.Citations, "importer listings carry no path:line evidence")
}

func TestFindSimilarFilesExcludesTheProbeFileItself(t *testing.T) {
	backend := newFakeBackend()
	backend.slices["a.go"] = storage.FileSlice{Path: "a.go", StartLine: 1, Lines: []string{"package a"}}
	backend.vector = []storage.VectorHit{
		{Path: "a.go", Line: 1, Text: "package a"},
		{Path: "b.go", Line: 1, Text: "package b", Score: 0.8},
	}

	tool := NewFindSimilarFilesTool(NewPrimitives(backend))
	result, err := tool.Execute(context.Background(), map[string]any{"path": "a.go"})
	require.NoError(t, err)

	require.Equal(t, StatusSuccess, result.Status)
	require.Len(t, result.Data.Matches, 1)
	require.Equal(t, "b.go", result.Data.Matches[0].Path)
}

func TestGrepSearchToolCitesEachHit(t *testing.T) {
	backend := newFakeBackend()
	backend.grepCS = []storage.GrepHit{{Path: "x.go", Line: 7, Text: "var ErrBoom = errors.New"}}

	tool := NewGrepSearchTool(NewPrimitives(backend))
	result, err := tool.Execute(context.Background(), map[string]any{"pattern": "ErrBoom", "case_sensitive": true})
	require.NoError(t, err)

	require.Equal(t, StatusSuccess, result.Status)
	require.Equal(t, []Citation{"x.go:7"}, result.Citations)
}
