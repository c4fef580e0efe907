package loader

import (
	"bytes"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultExclusions are never indexed: dependency trees, build output and
// lockfiles.
var DefaultExclusions = []string{
	"**/node_modules/**",
	"**/dist/**",
	"**/build/**",
	"**/vendor/**",
	"**/.git/**",
	"**/__pycache__/**",
	"**/.venv/**",
	"**/.next/**",
	"package-lock.json",
	"yarn.lock",
	"pnpm-lock.yaml",
	"bun.lockb",
	"go.sum",
	"Cargo.lock",
	"poetry.lock",
}

var binaryExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".ico": true,
	".webp": true, ".bmp": true, ".mp3": true, ".mp4": true, ".wav": true,
	".mov": true, ".pdf": true, ".zip": true, ".tar": true, ".gz": true,
	".rar": true, ".7z": true, ".jar": true, ".exe": true, ".dll": true,
	".so": true, ".dylib": true, ".class": true, ".o": true, ".a": true,
	".woff": true, ".woff2": true, ".ttf": true, ".eot": true, ".otf": true,
	".db": true, ".sqlite": true, ".wasm": true,
}

// DefaultMaxFileSize caps how large a single file may be before it is skipped.
const DefaultMaxFileSize = 1 << 20

// Filter decides which repository paths are worth loading.
type Filter struct {
	patterns    []string
	MaxFileSize int64
}

// NewFilter builds a filter from DefaultExclusions plus extra glob patterns.
// Patterns without a slash match the file's base name at any depth.
func NewFilter(extra ...string) *Filter {
	patterns := make([]string, 0, len(DefaultExclusions)+len(extra))
	patterns = append(patterns, DefaultExclusions...)
	for _, p := range extra {
		if p = strings.TrimSpace(p); p != "" && doublestar.ValidatePattern(p) {
			patterns = append(patterns, p)
		}
	}
	return &Filter{patterns: patterns, MaxFileSize: DefaultMaxFileSize}
}

// Excluded reports whether p matches an exclusion pattern.
func (f *Filter) Excluded(p string) bool {
	p = strings.TrimPrefix(path.Clean("/"+p), "/")
	base := path.Base(p)
	for _, pattern := range f.patterns {
		target := p
		if !strings.Contains(pattern, "/") {
			target = base
		}
		if ok, _ := doublestar.Match(pattern, target); ok {
			return true
		}
	}
	return false
}

// Skip reports whether a file should be skipped before its content is read.
func (f *Filter) Skip(p string, size int64) bool {
	if f.Excluded(p) {
		return true
	}
	if binaryExtensions[strings.ToLower(path.Ext(p))] {
		return true
	}
	return f.MaxFileSize > 0 && size > f.MaxFileSize
}

// IsText reports whether content looks like UTF-8 source text.
func IsText(content []byte) bool {
	head := content
	if len(head) > 8000 {
		head = head[:8000]
	}
	if bytes.IndexByte(head, 0) >= 0 {
		return false
	}
	return utf8.Valid(content)
}

var languageMap = map[string]string{
	".go": "Go", ".py": "Python", ".js": "JavaScript", ".ts": "TypeScript",
	".jsx": "JavaScript (React)", ".tsx": "TypeScript (React)", ".java": "Java",
	".rs": "Rust", ".rb": "Ruby", ".php": "PHP", ".c": "C", ".cpp": "C++",
	".h": "C/C++ Header", ".hpp": "C++ Header", ".cs": "C#", ".swift": "Swift",
	".kt": "Kotlin", ".scala": "Scala", ".sql": "SQL", ".sh": "Shell",
	".yaml": "YAML", ".yml": "YAML", ".json": "JSON", ".html": "HTML",
	".css": "CSS", ".scss": "SCSS", ".md": "Markdown", ".toml": "TOML",
	".proto": "Protocol Buffers", ".graphql": "GraphQL", ".vue": "Vue",
	".svelte": "Svelte", ".prisma": "Prisma",
}

// Language guesses a display language from the file extension.
func Language(p string) string {
	return languageMap[strings.ToLower(path.Ext(p))]
}
