package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// importPatterns extracts import targets per language family. Each pattern's
// first capture group is the imported module/path string as written in
// source.
var importPatterns = map[string][]*regexp.Regexp{
	".go": {
		regexp.MustCompile(`(?m)^\s*import\s+(?:\w+\s+)?"([^"]+)"`),
		regexp.MustCompile(`(?m)^\s*(?:\w+\s+)?"([^"]+)"\s*$`),
	},
	".py": {
		regexp.MustCompile(`(?m)^\s*import\s+([\w.]+)`),
		regexp.MustCompile(`(?m)^\s*from\s+([\w.]+)\s+import\b`),
	},
	".js": {
		regexp.MustCompile(`(?m)^\s*import\b[^'"]*['"]([^'"]+)['"]`),
		regexp.MustCompile(`require\(\s*['"]([^'"]+)['"]\s*\)`),
	},
}

func init() {
	importPatterns[".ts"] = importPatterns[".js"]
	importPatterns[".jsx"] = importPatterns[".js"]
	importPatterns[".tsx"] = importPatterns[".js"]
	importPatterns[".pyi"] = importPatterns[".py"]
}

// ImportScanner implements ImportGraph over a working directory: a lazily
// built forward map (file -> import strings as written), which Importers
// scans. Importers matching is by final segment: a file importing
// "app/auth" counts as an importer of any path whose stem or containing
// directory name is exactly "auth".
type ImportScanner struct {
	WorkingDirectory string
	MaxFileSize      int64

	mu      sync.RWMutex
	forward map[string][]string
	built   bool
}

// NewImportScanner creates an import scanner rooted at dir.
func NewImportScanner(dir string) *ImportScanner {
	return &ImportScanner{WorkingDirectory: dir, MaxFileSize: 10 * 1024 * 1024}
}

func (s *ImportScanner) ensureBuilt() error {
	s.mu.RLock()
	built := s.built
	s.mu.RUnlock()
	if built {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.built {
		return nil
	}

	forward := make(map[string][]string)
	err := filepath.Walk(s.WorkingDirectory, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() || info.Size() > s.MaxFileSize {
			return nil
		}
		patterns, ok := importPatterns[filepath.Ext(path)]
		if !ok {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		rel, _ := filepath.Rel(s.WorkingDirectory, path)

		seen := make(map[string]struct{})
		var imports []string
		for _, re := range patterns {
			for _, m := range re.FindAllStringSubmatch(string(content), -1) {
				target := m[1]
				if _, dup := seen[target]; dup {
					continue
				}
				seen[target] = struct{}{}
				imports = append(imports, target)
			}
		}
		forward[rel] = imports
		return nil
	})
	if err != nil {
		return fmt.Errorf("building import graph: %w", err)
	}

	s.forward = forward
	s.built = true
	return nil
}

// Imports returns the import strings of path, as written in its source.
func (s *ImportScanner) Imports(ctx context.Context, path string) ([]string, error) {
	if err := s.ensureBuilt(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.forward[path]...), nil
}

// Importers returns every scanned file with an import plausibly resolving
// to path.
func (s *ImportScanner) Importers(ctx context.Context, path string) ([]string, error) {
	if err := s.ensureBuilt(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	targets := importTargets(path)
	var out []string
	for file, imports := range s.forward {
		if file == path {
			continue
		}
		for _, imp := range imports {
			if matchesTarget(imp, targets) {
				out = append(out, file)
				break
			}
		}
	}
	return out, nil
}

// importTargets derives the names an import statement could use to refer to
// path: its stem and its containing directory.
func importTargets(path string) []string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	dir := filepath.Base(filepath.Dir(path))
	targets := []string{stem}
	if dir != "." && dir != stem {
		targets = append(targets, dir)
	}
	return targets
}

func matchesTarget(imp string, targets []string) bool {
	// Normalize separators: "app.auth", "app/auth", "./auth" all end in
	// a final segment comparable against the target names.
	imp = strings.ReplaceAll(imp, ".", "/")
	segment := imp
	if idx := strings.LastIndex(imp, "/"); idx >= 0 {
		segment = imp[idx+1:]
	}
	for _, t := range targets {
		if segment == t {
			return true
		}
	}
	return false
}

var _ ImportGraph = (*ImportScanner)(nil)
