package artifact

import (
	"path/filepath"
	"strings"
)

var extLanguages = map[string]string{
	"js":         "javascript",
	"jsx":        "javascript",
	"ts":         "typescript",
	"tsx":        "typescript",
	"py":         "python",
	"html":       "html",
	"css":        "css",
	"scss":       "scss",
	"sass":       "scss",
	"json":       "json",
	"md":         "markdown",
	"yaml":       "yaml",
	"yml":        "yaml",
	"xml":        "xml",
	"sql":        "sql",
	"sh":         "bash",
	"bash":       "bash",
	"php":        "php",
	"rb":         "ruby",
	"go":         "go",
	"rust":       "rust",
	"rs":         "rust",
	"java":       "java",
	"kt":         "kotlin",
	"swift":      "swift",
	"cpp":        "cpp",
	"c":          "c",
	"cs":         "csharp",
	"vue":        "vue",
	"svelte":     "svelte",
	"dockerfile": "dockerfile",
	"gitignore":  "gitignore",
	"env":        "bash",
	"toml":       "toml",
	"ini":        "ini",
	"csv":        "csv",
	"txt":        "text",
}

// Language maps a file path to a syntax tag, "text" when unknown.
func Language(path string) string {
	base := strings.ToLower(filepath.Base(path))
	ext := strings.TrimPrefix(filepath.Ext(base), ".")
	if ext == "" {
		// Dotfiles and extensionless names such as "Dockerfile".
		ext = strings.TrimPrefix(base, ".")
	}
	if lang, ok := extLanguages[ext]; ok {
		return lang
	}
	return "text"
}
