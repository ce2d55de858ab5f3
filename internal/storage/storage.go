// Package storage defines the capability interfaces the tool layer consumes
// and provides concrete implementations: a tree-sitter-backed
// symbol index, a chromem-go embedded vector store, a pgx-backed key/value
// and event log, and a git-plumbing read-only wrapper.
package storage

import "context"

// Symbol is one named code construct discovered by the symbol index.
type Symbol struct {
	Name      string
	Path      string
	Line      int
	EndLine   int
	Kind      string
	Language  string
	Signature string
}

// GrepHit is one regex match produced by the grep capability.
type GrepHit struct {
	Path string
	Line int
	Text string
}

// VectorHit is one nearest-neighbor result from the vector-similarity index.
type VectorHit struct {
	Path  string
	Line  int
	Score float64
	Text  string
}

// FileSlice is a bounded, line-ranged read of a file's content.
type FileSlice struct {
	Path      string
	StartLine int
	Lines     []string
}

// TreeEntry is one node in a bounded directory tree enumeration.
type TreeEntry struct {
	Path  string
	IsDir bool
	Depth int
}

// GitLogEntry is one commit in a git log read.
type GitLogEntry struct {
	SHA     string
	Author  string
	Subject string
}

// GitBlameLine attributes one source line to the commit that last touched it.
type GitBlameLine struct {
	Line int
	SHA  string
	Text string
}

// GitDiffHunk is one changed region between two refs.
type GitDiffHunk struct {
	Path     string
	OldStart int
	NewStart int
	Lines    []string
}

// SymbolIndex resolves exact and prefix symbol lookups, the first two
// fallback strategies of search_code.
type SymbolIndex interface {
	FindExact(ctx context.Context, name, scope string) ([]Symbol, error)
	FindPrefix(ctx context.Context, prefix, scope string) ([]Symbol, error)
}

// Grepper performs a regex search with a result cap, the third and fourth
// fallback strategies of search_code.
type Grepper interface {
	Grep(ctx context.Context, pattern string, caseSensitive bool, scope string, limit int) ([]GrepHit, error)
}

// VectorIndex performs 384-dimensional embedding similarity search, the
// final fallback strategy of search_code.
type VectorIndex interface {
	SearchSimilar(ctx context.Context, queryText string, scope string, topK int) ([]VectorHit, error)
}

// FileReader reads a bounded slice of a file's lines, and enumerates
// candidates for read_code's extension-swap and glob fallbacks.
type FileReader interface {
	ReadRange(ctx context.Context, path string, startLine, endLine int) (FileSlice, error)
	GlobByName(ctx context.Context, filename string) ([]string, error)
	GlobByStem(ctx context.Context, stem string) ([]string, error)
	Tree(ctx context.Context, root string, maxDepth int) ([]TreeEntry, error)
}

// ImportGraph resolves what a file imports and which files import it.
type ImportGraph interface {
	Imports(ctx context.Context, path string) ([]string, error)
	Importers(ctx context.Context, path string) ([]string, error)
}

// GitReader exposes read-only git plumbing: log, blame, diff, status.
type GitReader interface {
	Log(ctx context.Context, path string, limit int) ([]GitLogEntry, error)
	Blame(ctx context.Context, path string) ([]GitBlameLine, error)
	Diff(ctx context.Context, fromRef, toRef, path string) ([]GitDiffHunk, error)
	Status(ctx context.Context) ([]string, error)
}

// SessionStore persists opaque session working-memory by session id.
type SessionStore interface {
	SaveSession(ctx context.Context, sessionID string, state []byte) error
	LoadSession(ctx context.Context, sessionID string) ([]byte, error)
}

// EventLog is an append-only record of pipeline events keyed by request id.
type EventLog interface {
	AppendEvent(ctx context.Context, requestID string, eventType string, payload []byte) error
}

// Backend bundles every storage capability the tool layer and service
// façade need. A concrete Backend is assembled in cmd/codescout/main.go from
// the tree-sitter, chromem-go, and pgx-backed implementations in this
// package; the core only ever depends on this interface set.
type Backend interface {
	SymbolIndex
	Grepper
	VectorIndex
	FileReader
	ImportGraph
	GitReader
	SessionStore
	EventLog
}
