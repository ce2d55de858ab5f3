package tools

import (
	"context"
	"fmt"
	"strings"
)

// The tools in this file register the remaining primitives as
// CategoryPrimitive entries, so the registry's name->metadata listing is
// complete and Get()/Composed() can tell planner-eligible tools apart from
// internal-only ones by category rather than by a hardcoded name list.
// None of these are ever returned by Registry.Composed().

type treeTool struct{ p *Primitives }

func NewTreeTool(p *Primitives) Tool { return &treeTool{p} }

func (t *treeTool) Info() Info {
	return Info{
		Name: "tree", Category: CategoryPrimitive, Risk: RiskReadOnly,
		Description: "Enumerate a directory tree bounded by max_tree_depth=10.",
		Parameters: []Parameter{
			{Name: "root", Type: "string", Required: false},
			{Name: "max_depth", Type: "integer", Required: false},
		},
	}
}

func (t *treeTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	root, _ := args["root"].(string)
	depth := intArg(args, "max_depth")
	if depth <= 0 || depth > 10 {
		depth = 10
	}
	entries, err := t.p.Tree(ctx, root, depth)
	if err != nil {
		return ToolResult{Tool: "tree", Status: StatusError, Error: err.Error()}, nil
	}
	matches := make([]Match, 0, len(entries))
	for _, e := range entries {
		matches = append(matches, Match{Path: e.Path, Kind: kindForEntry(e.IsDir)})
	}
	return ToolResult{Tool: "tree", Status: StatusSuccess, Data: Data{Matches: matches}}, nil
}

func kindForEntry(isDir bool) string {
	if isDir {
		return "directory"
	}
	return "file"
}

type gitLogTool struct{ p *Primitives }

func NewGitLogTool(p *Primitives) Tool { return &gitLogTool{p} }

func (t *gitLogTool) Info() Info {
	return Info{Name: "git_log", Category: CategoryPrimitive, Risk: RiskReadOnly,
		Description: "List recent commits touching a path.",
		Parameters: []Parameter{
			{Name: "path", Type: "string", Required: false},
			{Name: "limit", Type: "integer", Required: false},
		},
	}
}

func (t *gitLogTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	path, _ := args["path"].(string)
	limit := intArg(args, "limit")
	if limit <= 0 {
		limit = 20
	}
	entries, err := t.p.GitLog(ctx, path, limit)
	if err != nil {
		return ToolResult{Tool: "git_log", Status: StatusError, Error: err.Error()}, nil
	}
	if len(entries) == 0 {
		return ToolResult{Tool: "git_log", Status: StatusNotFound}, nil
	}
	matches := make([]Match, 0, len(entries))
	for _, e := range entries {
		matches = append(matches, Match{Path: path, Snippet: fmt.Sprintf("%s %s %s", e.SHA, e.Author, e.Subject)})
	}
	return ToolResult{Tool: "git_log", Status: StatusSuccess, Data: Data{Matches: matches}}, nil
}

type gitBlameTool struct{ p *Primitives }

func NewGitBlameTool(p *Primitives) Tool { return &gitBlameTool{p} }

func (t *gitBlameTool) Info() Info {
	return Info{Name: "git_blame", Category: CategoryPrimitive, Risk: RiskReadOnly,
		Description: "Attribute each line of a file to the commit that last touched it.",
		Parameters:  []Parameter{{Name: "path", Type: "string", Required: true}},
	}
}

func (t *gitBlameTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	path, _ := args["path"].(string)
	lines, err := t.p.GitBlame(ctx, path)
	if err != nil {
		return ToolResult{Tool: "git_blame", Status: StatusError, Error: err.Error()}, nil
	}
	if len(lines) == 0 {
		return ToolResult{Tool: "git_blame", Status: StatusNotFound}, nil
	}
	matches := make([]Match, 0, len(lines))
	for _, l := range lines {
		matches = append(matches, Match{Path: path, Line: l.Line, Snippet: fmt.Sprintf("%s %s", l.SHA, l.Text)})
	}
	return ToolResult{Tool: "git_blame", Status: StatusSuccess, Data: Data{Matches: matches}, Citations: matchesToCitations(matches)}, nil
}

type gitDiffTool struct{ p *Primitives }

func NewGitDiffTool(p *Primitives) Tool { return &gitDiffTool{p} }

func (t *gitDiffTool) Info() Info {
	return Info{Name: "git_diff", Category: CategoryPrimitive, Risk: RiskReadOnly,
		Description: "Show changed hunks between two refs for a path.",
		Parameters: []Parameter{
			{Name: "from_ref", Type: "string", Required: true},
			{Name: "to_ref", Type: "string", Required: true},
			{Name: "path", Type: "string", Required: false},
		},
	}
}

func (t *gitDiffTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	from, _ := args["from_ref"].(string)
	to, _ := args["to_ref"].(string)
	path, _ := args["path"].(string)
	hunks, err := t.p.GitDiff(ctx, from, to, path)
	if err != nil {
		return ToolResult{Tool: "git_diff", Status: StatusError, Error: err.Error()}, nil
	}
	if len(hunks) == 0 {
		return ToolResult{Tool: "git_diff", Status: StatusNotFound}, nil
	}
	matches := make([]Match, 0, len(hunks))
	for _, h := range hunks {
		matches = append(matches, Match{Path: h.Path, Line: h.NewStart, Snippet: fmt.Sprintf("%d line(s) changed", len(h.Lines))})
	}
	return ToolResult{Tool: "git_diff", Status: StatusSuccess, Data: Data{Matches: matches}}, nil
}

type gitStatusTool struct{ p *Primitives }

func NewGitStatusTool(p *Primitives) Tool { return &gitStatusTool{p} }

func (t *gitStatusTool) Info() Info {
	return Info{Name: "git_status", Category: CategoryPrimitive, Risk: RiskReadOnly,
		Description: "Show the working tree's status.",
	}
}

func (t *gitStatusTool) Execute(ctx context.Context, _ map[string]any) (ToolResult, error) {
	lines, err := t.p.GitStatus(ctx)
	if err != nil {
		return ToolResult{Tool: "git_status", Status: StatusError, Error: err.Error()}, nil
	}
	matches := make([]Match, 0, len(lines))
	for _, l := range lines {
		matches = append(matches, Match{Snippet: l})
	}
	return ToolResult{Tool: "git_status", Status: StatusSuccess, Data: Data{Matches: matches}}, nil
}

type readFileTool struct{ p *Primitives }

func NewReadFileTool(p *Primitives) Tool { return &readFileTool{p} }

func (t *readFileTool) Info() Info {
	return Info{Name: "read_file", Category: CategoryPrimitive, Risk: RiskReadOnly,
		Description: "Read a line range of one file by exact path, with no fallback.",
		Parameters: []Parameter{
			{Name: "path", Type: "string", Required: true},
			{Name: "start_line", Type: "integer", Required: false},
			{Name: "end_line", Type: "integer", Required: false},
		},
	}
}

func (t *readFileTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	path, _ := args["path"].(string)
	if path == "" {
		return ToolResult{Tool: "read_file", Status: StatusError, Error: "path argument is required"}, nil
	}
	slice, err := t.p.ReadFile(ctx, path, intArg(args, "start_line"), intArg(args, "end_line"))
	if err != nil {
		return ToolResult{Tool: "read_file", Status: StatusError, Error: err.Error()}, nil
	}
	if len(slice.Lines) == 0 {
		return ToolResult{Tool: "read_file", Status: StatusNotFound}, nil
	}
	match := Match{Path: path, Line: slice.StartLine, EndLine: slice.StartLine + len(slice.Lines) - 1, Snippet: strings.Join(slice.Lines, "\n")}
	return ToolResult{Tool: "read_file", Status: StatusSuccess, Data: Data{Matches: []Match{match}}, Citations: []Citation{NewCitation(path, slice.StartLine)}}, nil
}

type globFilesTool struct{ p *Primitives }

func NewGlobFilesTool(p *Primitives) Tool { return &globFilesTool{p} }

func (t *globFilesTool) Info() Info {
	return Info{Name: "glob_files", Category: CategoryPrimitive, Risk: RiskReadOnly,
		Description: "Find files by exact base name, or by stem when by_stem is set.",
		Parameters: []Parameter{
			{Name: "name", Type: "string", Required: true},
			{Name: "by_stem", Type: "boolean", Required: false},
		},
	}
}

func (t *globFilesTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	name, _ := args["name"].(string)
	if name == "" {
		return ToolResult{Tool: "glob_files", Status: StatusError, Error: "name argument is required"}, nil
	}
	byStem, _ := args["by_stem"].(bool)
	paths, err := t.p.GlobFiles(ctx, name, byStem)
	if err != nil {
		return ToolResult{Tool: "glob_files", Status: StatusError, Error: err.Error()}, nil
	}
	if len(paths) == 0 {
		return ToolResult{Tool: "glob_files", Status: StatusNotFound}, nil
	}
	return ToolResult{Tool: "glob_files", Status: StatusSuccess, Data: Data{Candidates: paths}}, nil
}

type grepSearchTool struct{ p *Primitives }

func NewGrepSearchTool(p *Primitives) Tool { return &grepSearchTool{p} }

func (t *grepSearchTool) Info() Info {
	return Info{Name: "grep_search", Category: CategoryPrimitive, Risk: RiskReadOnly,
		Description: "Regex search across the working tree, capped at max_grep_results=50.",
		Parameters: []Parameter{
			{Name: "pattern", Type: "string", Required: true},
			{Name: "scope", Type: "string", Required: false},
			{Name: "case_sensitive", Type: "boolean", Required: false},
		},
	}
}

func (t *grepSearchTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	pattern, _ := args["pattern"].(string)
	if pattern == "" {
		return ToolResult{Tool: "grep_search", Status: StatusError, Error: "pattern argument is required"}, nil
	}
	scope, _ := args["scope"].(string)
	caseSensitive, _ := args["case_sensitive"].(bool)
	hits, err := t.p.GrepSearch(ctx, pattern, caseSensitive, scope, maxGrepResults)
	if err != nil {
		return ToolResult{Tool: "grep_search", Status: StatusError, Error: err.Error()}, nil
	}
	if len(hits) == 0 {
		return ToolResult{Tool: "grep_search", Status: StatusNotFound}, nil
	}
	matches := grepToMatches(hits)
	return ToolResult{Tool: "grep_search", Status: StatusSuccess, Data: Data{Matches: matches}, Citations: matchesToCitations(matches)}, nil
}

type findSymbolTool struct{ p *Primitives }

func NewFindSymbolTool(p *Primitives) Tool { return &findSymbolTool{p} }

func (t *findSymbolTool) Info() Info {
	return Info{Name: "find_symbol", Category: CategoryPrimitive, Risk: RiskReadOnly,
		Description: "Look up a symbol by exact name, then by prefix.",
		Parameters: []Parameter{
			{Name: "name", Type: "string", Required: true},
			{Name: "scope", Type: "string", Required: false},
		},
	}
}

func (t *findSymbolTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	name, _ := args["name"].(string)
	if name == "" {
		return ToolResult{Tool: "find_symbol", Status: StatusError, Error: "name argument is required"}, nil
	}
	scope, _ := args["scope"].(string)
	symbols, err := t.p.FindSymbolExact(ctx, name, scope)
	if err == nil && len(symbols) == 0 {
		symbols, err = t.p.FindSymbolPrefix(ctx, name, scope)
	}
	if err != nil {
		return ToolResult{Tool: "find_symbol", Status: StatusError, Error: err.Error()}, nil
	}
	if len(symbols) == 0 {
		return ToolResult{Tool: "find_symbol", Status: StatusNotFound}, nil
	}
	matches := symbolsToMatches(symbols)
	return ToolResult{Tool: "find_symbol", Status: StatusSuccess, Data: Data{Matches: matches}, Citations: matchesToCitations(matches)}, nil
}

type getFileSymbolsTool struct{ p *Primitives }

func NewGetFileSymbolsTool(p *Primitives) Tool { return &getFileSymbolsTool{p} }

func (t *getFileSymbolsTool) Info() Info {
	return Info{Name: "get_file_symbols", Category: CategoryPrimitive, Risk: RiskReadOnly,
		Description: "List every symbol declared in one file.",
		Parameters:  []Parameter{{Name: "path", Type: "string", Required: true}},
	}
}

func (t *getFileSymbolsTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	path, _ := args["path"].(string)
	if path == "" {
		return ToolResult{Tool: "get_file_symbols", Status: StatusError, Error: "path argument is required"}, nil
	}
	// An empty prefix with the file path as scope yields every symbol the
	// index holds for that file.
	symbols, err := t.p.FindSymbolPrefix(ctx, "", path)
	if err != nil {
		return ToolResult{Tool: "get_file_symbols", Status: StatusError, Error: err.Error()}, nil
	}
	if len(symbols) == 0 {
		return ToolResult{Tool: "get_file_symbols", Status: StatusNotFound}, nil
	}
	matches := symbolsToMatches(symbols)
	return ToolResult{Tool: "get_file_symbols", Status: StatusSuccess, Data: Data{Matches: matches}, Citations: matchesToCitations(matches)}, nil
}

type getImportsTool struct{ p *Primitives }

func NewGetImportsTool(p *Primitives) Tool { return &getImportsTool{p} }

func (t *getImportsTool) Info() Info {
	return Info{Name: "get_imports", Category: CategoryPrimitive, Risk: RiskReadOnly,
		Description: "List the import targets of one file, as written in its source.",
		Parameters:  []Parameter{{Name: "path", Type: "string", Required: true}},
	}
}

func (t *getImportsTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	path, _ := args["path"].(string)
	if path == "" {
		return ToolResult{Tool: "get_imports", Status: StatusError, Error: "path argument is required"}, nil
	}
	imports, err := t.p.Imports(ctx, path)
	if err != nil {
		return ToolResult{Tool: "get_imports", Status: StatusError, Error: err.Error()}, nil
	}
	if len(imports) == 0 {
		return ToolResult{Tool: "get_imports", Status: StatusNotFound}, nil
	}
	matches := make([]Match, 0, len(imports))
	for _, imp := range imports {
		matches = append(matches, Match{Path: path, Snippet: imp})
	}
	return ToolResult{Tool: "get_imports", Status: StatusSuccess, Data: Data{Matches: matches}}, nil
}

type getImportersTool struct{ p *Primitives }

func NewGetImportersTool(p *Primitives) Tool { return &getImportersTool{p} }

func (t *getImportersTool) Info() Info {
	return Info{Name: "get_importers", Category: CategoryPrimitive, Risk: RiskReadOnly,
		Description: "List the files whose imports resolve to one file.",
		Parameters:  []Parameter{{Name: "path", Type: "string", Required: true}},
	}
}

func (t *getImportersTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	path, _ := args["path"].(string)
	if path == "" {
		return ToolResult{Tool: "get_importers", Status: StatusError, Error: "path argument is required"}, nil
	}
	importers, err := t.p.Importers(ctx, path)
	if err != nil {
		return ToolResult{Tool: "get_importers", Status: StatusError, Error: err.Error()}, nil
	}
	if len(importers) == 0 {
		return ToolResult{Tool: "get_importers", Status: StatusNotFound}, nil
	}
	return ToolResult{Tool: "get_importers", Status: StatusSuccess, Data: Data{Candidates: importers}}, nil
}

type semanticSearchTool struct{ p *Primitives }

func NewSemanticSearchTool(p *Primitives) Tool { return &semanticSearchTool{p} }

func (t *semanticSearchTool) Info() Info {
	return Info{Name: "semantic_search", Category: CategoryPrimitive, Risk: RiskReadOnly,
		Description: "Vector-similarity search over the indexed symbol corpus.",
		Parameters: []Parameter{
			{Name: "query", Type: "string", Required: true},
			{Name: "scope", Type: "string", Required: false},
			{Name: "top_k", Type: "integer", Required: false},
		},
	}
}

func (t *semanticSearchTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	query, _ := args["query"].(string)
	if query == "" {
		return ToolResult{Tool: "semantic_search", Status: StatusError, Error: "query argument is required"}, nil
	}
	scope, _ := args["scope"].(string)
	hits, err := t.p.SemanticSearch(ctx, query, scope, intArg(args, "top_k"))
	if err != nil {
		return ToolResult{Tool: "semantic_search", Status: StatusError, Error: err.Error()}, nil
	}
	if len(hits) == 0 {
		return ToolResult{Tool: "semantic_search", Status: StatusNotFound}, nil
	}
	matches := vectorToMatches(hits)
	return ToolResult{Tool: "semantic_search", Status: StatusSuccess, Data: Data{Matches: matches}, Citations: matchesToCitations(matches)}, nil
}

// findSimilarFilesSampleLines bounds how much of the target file is fed to
// the vector index as the similarity probe.
const findSimilarFilesSampleLines = 50

type findSimilarFilesTool struct{ p *Primitives }

func NewFindSimilarFilesTool(p *Primitives) Tool { return &findSimilarFilesTool{p} }

func (t *findSimilarFilesTool) Info() Info {
	return Info{Name: "find_similar_files", Category: CategoryPrimitive, Risk: RiskReadOnly,
		Description: "Find files semantically similar to one file, using its head as the probe.",
		Parameters:  []Parameter{{Name: "path", Type: "string", Required: true}},
	}
}

func (t *findSimilarFilesTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	path, _ := args["path"].(string)
	if path == "" {
		return ToolResult{Tool: "find_similar_files", Status: StatusError, Error: "path argument is required"}, nil
	}
	slice, err := t.p.ReadFile(ctx, path, 1, findSimilarFilesSampleLines)
	if err != nil || len(slice.Lines) == 0 {
		return ToolResult{Tool: "find_similar_files", Status: StatusNotFound}, nil
	}
	hits, err := t.p.SemanticSearch(ctx, strings.Join(slice.Lines, "\n"), "", 0)
	if err != nil {
		return ToolResult{Tool: "find_similar_files", Status: StatusError, Error: err.Error()}, nil
	}
	var matches []Match
	for _, h := range hits {
		if h.Path == path {
			continue
		}
		matches = append(matches, Match{Path: h.Path, Line: h.Line, Snippet: h.Text, Score: h.Score})
	}
	if len(matches) == 0 {
		return ToolResult{Tool: "find_similar_files", Status: StatusNotFound}, nil
	}
	return ToolResult{Tool: "find_similar_files", Status: StatusSuccess, Data: Data{Matches: matches}}, nil
}

// listToolsTool is a self-describing
// primitive returning the registry's own composed-tool listing; it takes
// the registry as a late-bound dependency rather than Primitives.
type listToolsTool struct {
	infos func() []Info
}

// NewListTools creates the list_tools primitive; infos is typically
// Registry.Composed.
func NewListTools(infos func() []Info) Tool { return &listToolsTool{infos: infos} }

func (t *listToolsTool) Info() Info {
	return Info{Name: "list_tools", Category: CategoryPrimitive, Risk: RiskReadOnly,
		Description: "List the composed tools available to the planner.",
	}
}

func (t *listToolsTool) Execute(ctx context.Context, _ map[string]any) (ToolResult, error) {
	matches := make([]Match, 0)
	for _, info := range t.infos() {
		matches = append(matches, Match{Symbol: info.Name, Snippet: info.Description})
	}
	return ToolResult{Tool: "list_tools", Status: StatusSuccess, Data: Data{Matches: matches}}, nil
}
