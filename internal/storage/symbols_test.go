package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeSymbolFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "internal", "auth"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "internal", "auth", "login.go"), []byte(
		"package auth\n\nfunc LoginUser(name string) error {\n\treturn nil\n}\n\nfunc LoginAdmin(name string) error {\n\treturn nil\n}\n\ntype Session struct{}\n",
	), 0o644))

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "scripts"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scripts", "login.py"), []byte(
		"def login(name):\n    return True\n\n\nclass Session:\n    pass\n",
	), 0o644))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("not source code"), 0o644))

	return dir
}

func TestTreeSitterIndexFindExactMatchesGoFunction(t *testing.T) {
	idx := NewTreeSitterIndex(writeSymbolFixture(t))

	matches, err := idx.FindExact(context.Background(), "LoginUser", "")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, filepath.Join("internal", "auth", "login.go"), matches[0].Path)
	require.Equal(t, "go", matches[0].Kind)
}

func TestTreeSitterIndexFindExactMatchesPythonFunction(t *testing.T) {
	idx := NewTreeSitterIndex(writeSymbolFixture(t))

	matches, err := idx.FindExact(context.Background(), "login", "")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, filepath.Join("scripts", "login.py"), matches[0].Path)
}

func TestTreeSitterIndexFindPrefixMatchesBothGoFunctions(t *testing.T) {
	idx := NewTreeSitterIndex(writeSymbolFixture(t))

	matches, err := idx.FindPrefix(context.Background(), "Login", "")
	require.NoError(t, err)
	require.Len(t, matches, 2)
}

func TestTreeSitterIndexFindExactRespectsScope(t *testing.T) {
	idx := NewTreeSitterIndex(writeSymbolFixture(t))

	matches, err := idx.FindExact(context.Background(), "Session", "scripts")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, filepath.Join("scripts", "login.py"), matches[0].Path)
}

func TestTreeSitterIndexFindExactNoMatchReturnsEmpty(t *testing.T) {
	idx := NewTreeSitterIndex(writeSymbolFixture(t))

	matches, err := idx.FindExact(context.Background(), "DoesNotExist", "")
	require.NoError(t, err)
	require.Empty(t, matches)
}

func TestTreeSitterIndexIgnoresUnrecognizedExtensions(t *testing.T) {
	idx := NewTreeSitterIndex(writeSymbolFixture(t))

	matches, err := idx.FindPrefix(context.Background(), "", "")
	require.NoError(t, err)
	for _, m := range matches {
		require.NotEqual(t, "ignored.txt", filepath.Base(m.Path))
	}
}

func TestTreeSitterIndexBuildsLazilyOnce(t *testing.T) {
	idx := NewTreeSitterIndex(writeSymbolFixture(t))
	require.False(t, idx.built)

	_, err := idx.FindExact(context.Background(), "LoginUser", "")
	require.NoError(t, err)
	require.True(t, idx.built)

	before := len(idx.symbols)
	_, err = idx.FindExact(context.Background(), "Session", "")
	require.NoError(t, err)
	require.Equal(t, before, len(idx.symbols), "a second call reuses the cached symbol table")
}
