package tools

import (
	"context"

	"github.com/kadirpekel/codescout/internal/storage"
)

// fakeBackend is a scriptable storage.Backend stand-in so search_code and
// read_code's fallback chains can be exercised strategy by strategy without
// a real filesystem, tree-sitter parse, or chromem-go index.
type fakeBackend struct {
	exact    []storage.Symbol
	prefix   []storage.Symbol
	grepCS   []storage.GrepHit
	grepCI   []storage.GrepHit
	vector   []storage.VectorHit
	readErr  error
	slices   map[string]storage.FileSlice
	byName   map[string][]string
	byStem   map[string][]string
	treeErr  error
	sessions map[string][]byte
	imports  map[string][]string
	importers map[string][]string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		slices: make(map[string]storage.FileSlice),
		byName: make(map[string][]string),
		byStem: make(map[string][]string),
		sessions: make(map[string][]byte),
		imports:  make(map[string][]string),
		importers: make(map[string][]string),
	}
}

func (f *fakeBackend) FindExact(ctx context.Context, name, scope string) ([]storage.Symbol, error) {
	return f.exact, nil
}

func (f *fakeBackend) FindPrefix(ctx context.Context, prefix, scope string) ([]storage.Symbol, error) {
	return f.prefix, nil
}

func (f *fakeBackend) Grep(ctx context.Context, pattern string, caseSensitive bool, scope string, limit int) ([]storage.GrepHit, error) {
	if caseSensitive {
		return f.grepCS, nil
	}
	return f.grepCI, nil
}

func (f *fakeBackend) SearchSimilar(ctx context.Context, queryText string, scope string, topK int) ([]storage.VectorHit, error) {
	return f.vector, nil
}

func (f *fakeBackend) ReadRange(ctx context.Context, path string, startLine, endLine int) (storage.FileSlice, error) {
	if f.readErr != nil {
		return storage.FileSlice{}, f.readErr
	}
	slice, ok := f.slices[path]
	if !ok {
		return storage.FileSlice{}, nil
	}
	return slice, nil
}

func (f *fakeBackend) GlobByName(ctx context.Context, filename string) ([]string, error) {
	return f.byName[filename], nil
}

func (f *fakeBackend) GlobByStem(ctx context.Context, stem string) ([]string, error) {
	return f.byStem[stem], nil
}

func (f *fakeBackend) Tree(ctx context.Context, root string, maxDepth int) ([]storage.TreeEntry, error) {
	return nil, f.treeErr
}

func (f *fakeBackend) Imports(ctx context.Context, path string) ([]string, error) {
	return f.imports[path], nil
}

func (f *fakeBackend) Importers(ctx context.Context, path string) ([]string, error) {
	return f.importers[path], nil
}

func (f *fakeBackend) Log(ctx context.Context, path string, limit int) ([]storage.GitLogEntry, error) {
	return nil, nil
}

func (f *fakeBackend) Blame(ctx context.Context, path string) ([]storage.GitBlameLine, error) {
	return nil, nil
}

func (f *fakeBackend) Diff(ctx context.Context, fromRef, toRef, path string) ([]storage.GitDiffHunk, error) {
	return nil, nil
}

func (f *fakeBackend) Status(ctx context.Context) ([]string, error) {
	return nil, nil
}

func (f *fakeBackend) SaveSession(ctx context.Context, sessionID string, state []byte) error {
	f.sessions[sessionID] = state
	return nil
}

func (f *fakeBackend) LoadSession(ctx context.Context, sessionID string) ([]byte, error) {
	return f.sessions[sessionID], nil
}

func (f *fakeBackend) AppendEvent(ctx context.Context, requestID string, eventType string, payload []byte) error {
	return nil
}

var _ storage.Backend = (*fakeBackend)(nil)
