package storage

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// blameHeaderRe matches a porcelain blame hunk header: <sha> <orig-line> <final-line> [<num-lines>].
var blameHeaderRe = regexp.MustCompile(`^([0-9a-f]{40}) (\d+) (\d+)`)

// GitExecReader implements GitReader by shelling out to the system git
// binary and parsing its porcelain output, with unified diffs parsed by
// go-diff.
type GitExecReader struct {
	WorkingDirectory string
}

// NewGitExecReader creates a GitReader rooted at dir, which must be inside a
// git working tree.
func NewGitExecReader(dir string) *GitExecReader {
	return &GitExecReader{WorkingDirectory: dir}
}

func (g *GitExecReader) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.WorkingDirectory
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return string(out), nil
}

// Log implements GitReader.
func (g *GitExecReader) Log(ctx context.Context, path string, limit int) ([]GitLogEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	args := []string{"log", fmt.Sprintf("-n%d", limit), "--pretty=format:%H\x1f%an\x1f%s"}
	if path != "" {
		args = append(args, "--", path)
	}
	out, err := g.run(ctx, args...)
	if err != nil {
		return nil, err
	}

	var entries []GitLogEntry
	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\x1f", 3)
		if len(parts) != 3 {
			continue
		}
		entries = append(entries, GitLogEntry{SHA: parts[0], Author: parts[1], Subject: parts[2]})
	}
	return entries, nil
}

// Blame implements GitReader.
func (g *GitExecReader) Blame(ctx context.Context, path string) ([]GitBlameLine, error) {
	out, err := g.run(ctx, "blame", "--porcelain", path)
	if err != nil {
		return nil, err
	}

	var lines []GitBlameLine
	scanner := bufio.NewScanner(strings.NewReader(out))
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	var currentSHA string
	var finalLine int
	for scanner.Scan() {
		line := scanner.Text()
		if m := blameHeaderRe.FindStringSubmatch(line); m != nil {
			currentSHA = m[1][:8]
			fmt.Sscanf(m[3], "%d", &finalLine)
			continue
		}
		if strings.HasPrefix(line, "\t") {
			lines = append(lines, GitBlameLine{Line: finalLine, SHA: currentSHA, Text: strings.TrimPrefix(line, "\t")})
		}
	}
	return lines, nil
}

// Diff implements GitReader: parses unified diff hunks with go-diff.
func (g *GitExecReader) Diff(ctx context.Context, fromRef, toRef, path string) ([]GitDiffHunk, error) {
	args := []string{"diff", fromRef, toRef}
	if path != "" {
		args = append(args, "--", path)
	}
	out, err := g.run(ctx, args...)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(out) == "" {
		return nil, nil
	}

	fileDiffs, err := diff.ParseMultiFileDiff([]byte(out))
	if err != nil {
		return nil, fmt.Errorf("parsing diff: %w", err)
	}

	var hunks []GitDiffHunk
	for _, fd := range fileDiffs {
		filePath := strings.TrimPrefix(fd.NewName, "b/")
		for _, h := range fd.Hunks {
			hunks = append(hunks, GitDiffHunk{
				Path:     filePath,
				OldStart: int(h.OrigStartLine),
				NewStart: int(h.NewStartLine),
				Lines:    strings.Split(string(h.Body), "\n"),
			})
		}
	}
	return hunks, nil
}

// Status implements GitReader.
func (g *GitExecReader) Status(ctx context.Context) ([]string, error) {
	out, err := g.run(ctx, "status", "--porcelain")
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, l := range strings.Split(out, "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	return lines, nil
}

var _ GitReader = (*GitExecReader)(nil)
