package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompositeBackendPromotesEachCapabilityToTheRightImplementation(t *testing.T) {
	dir := writeTestTree(t)
	symbols := NewTreeSitterIndex(dir)
	fs := NewFSBackend(dir)
	vectors, err := NewChromemIndex("")
	require.NoError(t, err)

	backend := NewCompositeBackend(symbols, fs, vectors, NewImportScanner(dir), nil, nil)

	var _ Backend = backend

	hits, err := backend.Grep(context.Background(), "Widget", false, "", 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits, "Grep must be served by the embedded *FSBackend")

	matches, err := backend.FindExact(context.Background(), "NewWidget", "")
	require.NoError(t, err)
	require.Len(t, matches, 1, "FindExact must be served by the embedded *TreeSitterIndex")

	vhits, err := backend.SearchSimilar(context.Background(), "widget constructor", "", 5)
	require.NoError(t, err)
	require.Empty(t, vhits, "an empty vector index returns no hits rather than erroring")
}
