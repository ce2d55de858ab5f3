package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
)

// symbolQueries is the per-language s-expression query tree-sitter runs to
// pull named declarations out of a parse tree.
var symbolQueries = map[string]struct {
	lang  *sitter.Language
	query string
}{
	".go": {golang.GetLanguage(), `
		(function_declaration name: (identifier) @name) @decl
		(method_declaration name: (field_identifier) @name) @decl
		(type_spec name: (type_identifier) @name) @decl
	`},
	".py": {python.GetLanguage(), `
		(function_definition name: (identifier) @name) @decl
		(class_definition name: (identifier) @name) @decl
	`},
	".js": {javascript.GetLanguage(), `
		(function_declaration name: (identifier) @name) @decl
		(class_declaration name: (identifier) @name) @decl
	`},
}

func init() {
	symbolQueries[".ts"] = symbolQueries[".js"]
	symbolQueries[".jsx"] = symbolQueries[".js"]
	symbolQueries[".tsx"] = symbolQueries[".js"]
}

// TreeSitterIndex implements SymbolIndex over a working directory, parsing
// every source file it recognizes with the matching tree-sitter grammar and
// caching the resulting symbol table. It is built lazily on first use, once,
// and is safe for concurrent reads once built.
type TreeSitterIndex struct {
	WorkingDirectory string
	MaxFileSize      int64

	mu      sync.RWMutex
	symbols []Symbol
	built   bool
}

// NewTreeSitterIndex creates a symbol index rooted at dir.
func NewTreeSitterIndex(dir string) *TreeSitterIndex {
	return &TreeSitterIndex{WorkingDirectory: dir, MaxFileSize: 10 * 1024 * 1024}
}

func (t *TreeSitterIndex) ensureBuilt() error {
	t.mu.RLock()
	built := t.built
	t.mu.RUnlock()
	if built {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.built {
		return nil
	}

	var symbols []Symbol
	err := filepath.Walk(t.WorkingDirectory, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() || info.Size() > t.MaxFileSize {
			return nil
		}
		q, ok := symbolQueries[filepath.Ext(path)]
		if !ok {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		rel, _ := filepath.Rel(t.WorkingDirectory, path)
		found, parseErr := parseSymbols(content, q.lang, q.query, rel)
		if parseErr != nil {
			return nil
		}
		symbols = append(symbols, found...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("building symbol index: %w", err)
	}

	t.symbols = symbols
	t.built = true
	return nil
}

func parseSymbols(content []byte, lang *sitter.Language, queryStr string, path string) ([]Symbol, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	query, err := sitter.NewQuery([]byte(queryStr), lang)
	if err != nil {
		return nil, err
	}
	defer query.Close()

	cursor := sitter.NewQueryCursor()
	defer cursor.Close()
	cursor.Exec(query, tree.RootNode())

	kind := strings.TrimPrefix(filepath.Ext(path), ".")
	var out []Symbol
	for {
		match, ok := cursor.NextMatch()
		if !ok {
			break
		}
		var name string
		var node *sitter.Node
		for _, c := range match.Captures {
			capName := query.CaptureNameForId(c.Index)
			if capName == "name" {
				name = c.Node.Content(content)
			}
			if capName == "decl" {
				node = c.Node
			}
		}
		if name == "" || node == nil {
			continue
		}
		out = append(out, Symbol{
			Name:      name,
			Path:      path,
			Line:      int(node.StartPoint().Row) + 1,
			EndLine:   int(node.EndPoint().Row) + 1,
			Kind:      kind,
			Language:  kind,
			Signature: strings.SplitN(node.Content(content), "\n", 2)[0],
		})
	}
	return out, nil
}

// FindExact implements SymbolIndex: an exact, case-sensitive name match.
func (t *TreeSitterIndex) FindExact(ctx context.Context, name, scope string) ([]Symbol, error) {
	if err := t.ensureBuilt(); err != nil {
		return nil, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []Symbol
	for _, s := range t.symbols {
		if s.Name == name && withinScope(s.Path, scope) {
			out = append(out, s)
		}
	}
	return out, nil
}

// FindPrefix implements SymbolIndex: a case-sensitive prefix match.
func (t *TreeSitterIndex) FindPrefix(ctx context.Context, prefix, scope string) ([]Symbol, error) {
	if err := t.ensureBuilt(); err != nil {
		return nil, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []Symbol
	for _, s := range t.symbols {
		if strings.HasPrefix(s.Name, prefix) && withinScope(s.Path, scope) {
			out = append(out, s)
		}
	}
	return out, nil
}

// Symbols returns every symbol in the index, building it on first use.
// Startup wiring feeds these into the vector index so semantic search has
// one document per indexed symbol.
func (t *TreeSitterIndex) Symbols(ctx context.Context) ([]Symbol, error) {
	if err := t.ensureBuilt(); err != nil {
		return nil, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]Symbol(nil), t.symbols...), nil
}

func withinScope(path, scope string) bool {
	if scope == "" {
		return true
	}
	return strings.HasPrefix(path, strings.TrimSuffix(scope, "/"))
}

var _ SymbolIndex = (*TreeSitterIndex)(nil)
