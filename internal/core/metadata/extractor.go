package metadata

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/neilberkman/devlog/internal/core/models"
)

// Summary is what a session's ledger refers to
type Summary struct {
	Issues []Occurrence
	Files  []Occurrence
}

// Occurrence tracks where an issue ID or file path appears in the ledger
type Occurrence struct {
	Value      string
	FirstIndex int
	LastIndex  int
	Count      int
	// Modified is set for files changed by a codeChange action or mentioned
	// next to an editing verb
	Modified bool
}

var (
	issuePatterns = []*regexp.Regexp{
		// Linear/JIRA-style: ENA-6530, ena-6530
		regexp.MustCompile(`\b([A-Za-z]{2,10}-\d+)\b`),
		// GitHub-style: #1234
		regexp.MustCompile(`(?:^|[\s(])(#\d{2,})\b`),
		// Explicit mentions: "issue: 1234", "issue #1234"
		regexp.MustCompile(`(?i)\bissue[:\s]+#?(\d+)`),
	}

	filePatterns = []*regexp.Regexp{
		// Quoted paths: "path/to/file.ext"
		regexp.MustCompile(`"([a-zA-Z0-9_\-/.]+\.[a-zA-Z0-9]+)"`),
		// Backtick paths
		regexp.MustCompile("`([a-zA-Z0-9_\\-/.]+\\.[a-zA-Z0-9]+)`"),
		// Unquoted paths need a slash and an extension
		regexp.MustCompile(`\b([a-zA-Z0-9_\-.]+(?:/[a-zA-Z0-9_\-.]+)+\.[a-zA-Z0-9]{1,5})\b`),
	}

	urlPattern = regexp.MustCompile(`[a-zA-Z][a-zA-Z0-9+.-]*://\S+`)

	falsePositiveIssues = map[string]bool{
		"utf-8": true, "iso-8859": true, "us-ascii": true, "x-www": true,
		"en-us": true, "fr-fr": true, "de-de": true, "sha-1": true,
		"sha-256": true, "sha-512": true, "base-64": true,
	}

	validExts = []string{
		// Code
		".go", ".ex", ".exs", ".heex", ".js", ".ts", ".jsx", ".tsx",
		".py", ".rb", ".java", ".c", ".cpp", ".h", ".hpp",
		".rs", ".php", ".swift", ".kt", ".sql", ".proto", ".graphql",
		// Config & Data
		".json", ".yaml", ".yml", ".toml", ".ini", ".xml", ".env", ".mod", ".sum",
		// Docs
		".md", ".txt", ".rst", ".adoc",
		// Web
		".html", ".css", ".scss",
		// Scripts
		".sh", ".bash", ".zsh", ".fish", ".mk",
	}

	modKeywords = []string{
		"edit", "modify", "update", "change", "write", "create",
		"add", "remove", "delete", "fix", "patch", "vim ", "nano ", "sed ",
	}
)

// Extract scans every action's text for issue IDs and file paths
func Extract(actions []models.Action) Summary {
	issues := newTally()
	files := newTally()

	for i := range actions {
		a := &actions[i]
		text := a.SearchText()

		for _, id := range issueIDs(text) {
			issues.add(id, i, false)
		}
		for _, path := range filePaths(text) {
			if path == a.File {
				continue
			}
			files.add(path, i, isModificationContext(text, path))
		}
		if a.Type == models.ActionCodeChange && a.File != "" {
			files.add(a.File, i, true)
		}
	}

	return Summary{Issues: issues.sorted(), Files: files.sorted()}
}

type tally struct {
	byValue map[string]*Occurrence
}

func newTally() *tally {
	return &tally{byValue: make(map[string]*Occurrence)}
}

func (t *tally) add(value string, index int, modified bool) {
	occ, ok := t.byValue[value]
	if !ok {
		occ = &Occurrence{Value: value, FirstIndex: index}
		t.byValue[value] = occ
	}
	occ.LastIndex = index
	occ.Count++
	occ.Modified = occ.Modified || modified
}

// sorted orders by mention count, then first appearance
func (t *tally) sorted() []Occurrence {
	out := make([]Occurrence, 0, len(t.byValue))
	for _, occ := range t.byValue {
		out = append(out, *occ)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if out[i].FirstIndex != out[j].FirstIndex {
			return out[i].FirstIndex < out[j].FirstIndex
		}
		return out[i].Value < out[j].Value
	})
	return out
}

// issueIDs finds issue IDs in text, upper-cased and deduplicated
func issueIDs(text string) []string {
	seen := make(map[string]bool)
	var issues []string
	for _, pattern := range issuePatterns {
		for _, match := range pattern.FindAllStringSubmatch(text, -1) {
			id := match[1]
			if _, err := strconv.Atoi(id); err == nil {
				id = "#" + id
			}
			id = strings.ToUpper(id)
			if seen[id] || !isValidIssueID(id) {
				continue
			}
			seen[id] = true
			issues = append(issues, id)
		}
	}
	return issues
}

// isValidIssueID filters out common false positives
func isValidIssueID(id string) bool {
	if len(id) < 3 {
		return false
	}
	return !falsePositiveIssues[strings.ToLower(id)]
}

// filePaths finds file paths in text
func filePaths(text string) []string {
	text = urlPattern.ReplaceAllString(text, " ")
	seen := make(map[string]bool)
	var files []string
	for _, pattern := range filePatterns {
		for _, match := range pattern.FindAllStringSubmatch(text, -1) {
			path := strings.TrimPrefix(strings.TrimSpace(match[1]), "./")
			if !seen[path] && isValidFilePath(path) {
				files = append(files, path)
				seen[path] = true
			}
		}
	}
	return files
}

// isValidFilePath filters out false positives
func isValidFilePath(path string) bool {
	if len(path) < 4 || !hasValidExtension(path) {
		return false
	}
	if strings.Contains(path, "://") || strings.ContainsAny(path, "@ ") {
		return false
	}
	return true
}

func hasValidExtension(path string) bool {
	lowerPath := strings.ToLower(path)
	for _, ext := range validExts {
		if strings.HasSuffix(lowerPath, ext) {
			return true
		}
	}
	return false
}

// isModificationContext checks for an editing keyword within 100 characters of the path
func isModificationContext(text, filePath string) bool {
	lower := strings.ToLower(text)
	fileIdx := strings.Index(lower, strings.ToLower(filePath))
	if fileIdx == -1 {
		return false
	}

	start := fileIdx - 100
	if start < 0 {
		start = 0
	}
	end := fileIdx + len(filePath) + 100
	if end > len(lower) {
		end = len(lower)
	}
	window := lower[start:end]

	for _, keyword := range modKeywords {
		if strings.Contains(window, keyword) {
			return true
		}
	}
	return false
}
