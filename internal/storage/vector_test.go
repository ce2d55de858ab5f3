package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChromemIndexSearchSimilarReturnsNilOnEmptyCollection(t *testing.T) {
	idx, err := NewChromemIndex(t.TempDir())
	require.NoError(t, err)

	hits, err := idx.SearchSimilar(context.Background(), "login handler", "", 5)
	require.NoError(t, err)
	require.Nil(t, hits)
}

func TestChromemIndexSearchSimilarFindsIndexedDocument(t *testing.T) {
	idx, err := NewChromemIndex(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, idx.Index(context.Background(), "src/auth/login.py", 42, "def login(user, password): authenticate the user"))
	require.NoError(t, idx.Index(context.Background(), "src/util/math.py", 7, "def add(a, b): return a plus b"))

	hits, err := idx.SearchSimilar(context.Background(), "authenticate a user login", "", 5)
	require.NoError(t, err)
	require.NotEmpty(t, hits)

	var sawLogin bool
	for _, h := range hits {
		if h.Path == "src/auth/login.py" {
			sawLogin = true
			require.Equal(t, 42, h.Line)
		}
	}
	require.True(t, sawLogin, "the semantically closer document must be returned")
}

func TestChromemIndexSearchSimilarRespectsScopePrefix(t *testing.T) {
	idx, err := NewChromemIndex(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, idx.Index(context.Background(), "src/auth/login.py", 42, "authenticate the user"))
	require.NoError(t, idx.Index(context.Background(), "src/other/thing.py", 1, "authenticate the user"))

	hits, err := idx.SearchSimilar(context.Background(), "authenticate the user", "src/auth", 5)
	require.NoError(t, err)
	for _, h := range hits {
		require.Contains(t, h.Path, "src/auth")
	}
}

func TestChromemIndexSearchSimilarDefaultsTopKWhenUnset(t *testing.T) {
	idx, err := NewChromemIndex(t.TempDir())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, idx.Index(context.Background(), "file.py", i+1, "some distinct text here"))
	}

	hits, err := idx.SearchSimilar(context.Background(), "some distinct text", "", 0)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
}
