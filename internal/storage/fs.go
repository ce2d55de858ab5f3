package storage

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// FSBackend implements Grepper and FileReader directly against the local
// filesystem rooted at WorkingDirectory, with a validatePath containment
// check against directory traversal.
type FSBackend struct {
	WorkingDirectory string
	MaxFileSize      int64
}

// NewFSBackend creates an FSBackend rooted at dir.
func NewFSBackend(dir string) *FSBackend {
	return &FSBackend{WorkingDirectory: dir, MaxFileSize: 10 * 1024 * 1024}
}

func (f *FSBackend) validatePath(path string) (string, error) {
	if filepath.IsAbs(path) {
		return "", fmt.Errorf("absolute paths not allowed, use relative paths")
	}
	cleaned := filepath.Clean(path)
	if strings.Contains(cleaned, "..") {
		return "", fmt.Errorf("directory traversal not allowed (..)")
	}

	absPath, err := filepath.Abs(filepath.Join(f.WorkingDirectory, cleaned))
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}
	absWorkDir, err := filepath.Abs(f.WorkingDirectory)
	if err != nil {
		return "", fmt.Errorf("invalid working directory: %w", err)
	}
	if !strings.HasPrefix(absPath, absWorkDir) {
		return "", fmt.Errorf("path escapes working directory")
	}
	return absPath, nil
}

// Grep implements Grepper.
func (f *FSBackend) Grep(ctx context.Context, pattern string, caseSensitive bool, scope string, limit int) ([]GrepHit, error) {
	if !caseSensitive {
		pattern = "(?i)" + pattern
	}
	regex, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex pattern: %w", err)
	}

	if scope == "" {
		scope = "."
	}
	root, err := f.validatePath(scope)
	if err != nil {
		return nil, err
	}

	var hits []GrepHit
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || len(hits) >= limit {
			return nil
		}
		info, err := d.Info()
		if err != nil || info.Size() > f.MaxFileSize {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		rel, _ := filepath.Rel(f.WorkingDirectory, path)
		for i, line := range strings.Split(string(content), "\n") {
			if len(hits) >= limit {
				break
			}
			if regex.MatchString(line) {
				hits = append(hits, GrepHit{Path: rel, Line: i + 1, Text: line})
			}
		}
		return nil
	})
	if walkErr != nil && walkErr != ctx.Err() {
		return nil, walkErr
	}
	return hits, ctx.Err()
}

// ReadRange implements FileReader.
func (f *FSBackend) ReadRange(ctx context.Context, path string, startLine, endLine int) (FileSlice, error) {
	abs, err := f.validatePath(path)
	if err != nil {
		return FileSlice{}, err
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		return FileSlice{}, err
	}
	lines := strings.Split(string(content), "\n")

	if startLine <= 0 {
		startLine = 1
	}
	if endLine <= 0 || endLine > len(lines) {
		endLine = len(lines)
	}
	if startLine > len(lines) {
		return FileSlice{Path: path, StartLine: startLine}, nil
	}

	return FileSlice{
		Path:      path,
		StartLine: startLine,
		Lines:     lines[startLine-1 : endLine],
	}, nil
}

// GlobByName implements FileReader: finds files anywhere under the working
// directory whose base name matches filename exactly.
func (f *FSBackend) GlobByName(ctx context.Context, filename string) ([]string, error) {
	var matches []string
	err := filepath.WalkDir(f.WorkingDirectory, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if filepath.Base(path) == filename {
			rel, _ := filepath.Rel(f.WorkingDirectory, path)
			matches = append(matches, rel)
		}
		return nil
	})
	return matches, err
}

// GlobByStem implements FileReader: finds files anywhere under the working
// directory whose base name (without extension) matches stem.
func (f *FSBackend) GlobByStem(ctx context.Context, stem string) ([]string, error) {
	var matches []string
	err := filepath.WalkDir(f.WorkingDirectory, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		base := filepath.Base(path)
		if strings.TrimSuffix(base, filepath.Ext(base)) == stem {
			rel, _ := filepath.Rel(f.WorkingDirectory, path)
			matches = append(matches, rel)
		}
		return nil
	})
	return matches, err
}

// Tree implements FileReader: a depth-bounded directory enumeration.
func (f *FSBackend) Tree(ctx context.Context, root string, maxDepth int) ([]TreeEntry, error) {
	absRoot, err := f.validatePath(root)
	if err != nil {
		return nil, err
	}

	var entries []TreeEntry
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, _ := filepath.Rel(absRoot, path)
		if rel == "." {
			return nil
		}
		depth := strings.Count(rel, string(filepath.Separator)) + 1
		if depth > maxDepth {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		entries = append(entries, TreeEntry{Path: rel, IsDir: d.IsDir(), Depth: depth})
		return nil
	})
	return entries, err
}
