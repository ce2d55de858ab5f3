package tools

import (
	"context"

	"github.com/kadirpekel/codescout/internal/storage"
)

// Primitives bundles the storage-backed operations composed tools fall
// back across. These are plain Go methods the composed tools in
// search_code.go/read_code.go call directly, in their fixed fallback
// order; the planner can never invoke one by name.
type Primitives struct {
	backend storage.Backend
}

// NewPrimitives wraps a storage.Backend for use by composed tools.
func NewPrimitives(backend storage.Backend) *Primitives {
	return &Primitives{backend: backend}
}

// FindSymbolExact is the first search_code fallback strategy.
func (p *Primitives) FindSymbolExact(ctx context.Context, name, scope string) ([]storage.Symbol, error) {
	return p.backend.FindExact(ctx, name, scope)
}

// FindSymbolPrefix is the second search_code fallback strategy.
func (p *Primitives) FindSymbolPrefix(ctx context.Context, name, scope string) ([]storage.Symbol, error) {
	return p.backend.FindPrefix(ctx, name, scope)
}

// GrepSearch is the third (case-sensitive) and fourth (case-insensitive)
// search_code fallback strategy, distinguished by caseSensitive.
func (p *Primitives) GrepSearch(ctx context.Context, pattern string, caseSensitive bool, scope string, limit int) ([]storage.GrepHit, error) {
	return p.backend.Grep(ctx, pattern, caseSensitive, scope, limit)
}

// SemanticSearch is the fifth and final search_code fallback strategy.
func (p *Primitives) SemanticSearch(ctx context.Context, query, scope string, topK int) ([]storage.VectorHit, error) {
	return p.backend.SearchSimilar(ctx, query, scope, topK)
}

// ReadFile is read_code's first (exact path) strategy.
func (p *Primitives) ReadFile(ctx context.Context, path string, startLine, endLine int) (storage.FileSlice, error) {
	return p.backend.ReadRange(ctx, path, startLine, endLine)
}

// GlobFiles finds candidates by exact filename (read_code's glob-by-filename
// strategy) or by stem (read_code's glob-by-stem strategy, byStem=true).
func (p *Primitives) GlobFiles(ctx context.Context, name string, byStem bool) ([]string, error) {
	if byStem {
		return p.backend.GlobByStem(ctx, name)
	}
	return p.backend.GlobByName(ctx, name)
}

// Imports lists what path imports; Importers lists the files importing it.
func (p *Primitives) Imports(ctx context.Context, path string) ([]string, error) {
	return p.backend.Imports(ctx, path)
}

func (p *Primitives) Importers(ctx context.Context, path string) ([]string, error) {
	return p.backend.Importers(ctx, path)
}

// Tree enumerates a directory tree bounded by maxDepth.
func (p *Primitives) Tree(ctx context.Context, root string, maxDepth int) ([]storage.TreeEntry, error) {
	return p.backend.Tree(ctx, root, maxDepth)
}

// GitLog, GitBlame, GitDiff, GitStatus expose read-only git plumbing; none
// are wired into search_code/read_code's fixed fallback chains. They are
// registered as standalone primitive-category tools, which the planner's
// post-hook rejects as plan steps, so the executor never invokes them.
func (p *Primitives) GitLog(ctx context.Context, path string, limit int) ([]storage.GitLogEntry, error) {
	return p.backend.Log(ctx, path, limit)
}

func (p *Primitives) GitBlame(ctx context.Context, path string) ([]storage.GitBlameLine, error) {
	return p.backend.Blame(ctx, path)
}

func (p *Primitives) GitDiff(ctx context.Context, fromRef, toRef, path string) ([]storage.GitDiffHunk, error) {
	return p.backend.Diff(ctx, fromRef, toRef, path)
}

func (p *Primitives) GitStatus(ctx context.Context) ([]string, error) {
	return p.backend.Status(ctx)
}
