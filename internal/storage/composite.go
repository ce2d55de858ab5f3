package storage

// CompositeBackend assembles one Backend from independently constructed
// capability implementations (tree-sitter symbols, filesystem grep/read,
// chromem vectors, import graph, git plumbing, Postgres session/event
// store), the way cmd/codescout/main.go wires them at startup. Each field satisfies one
// or more of the embedded capability interfaces; promotion does the rest.
type CompositeBackend struct {
	*TreeSitterIndex
	*FSBackend
	*ChromemIndex
	*ImportScanner
	*GitExecReader
	*PGStore
}

// NewCompositeBackend wires the capability implementations into a single
// Backend.
func NewCompositeBackend(symbols *TreeSitterIndex, fs *FSBackend, vectors *ChromemIndex, imports *ImportScanner, git *GitExecReader, sessions *PGStore) *CompositeBackend {
	return &CompositeBackend{
		TreeSitterIndex: symbols,
		FSBackend:       fs,
		ChromemIndex:    vectors,
		ImportScanner:   imports,
		GitExecReader:   git,
		PGStore:         sessions,
	}
}

var _ Backend = (*CompositeBackend)(nil)
