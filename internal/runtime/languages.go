package runtime

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/bash"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	ts "github.com/smacker/go-tree-sitter/typescript/typescript"
)

// extToFiletype maps file extensions to filetype names. A filetype names
// both a grammar and a rule table.
var extToFiletype = map[string]string{
	".py":   "python",
	".pyi":  "python",
	".sh":   "bash",
	".bash": "bash",
	".go":   "go",
	".js":   "javascript",
	".mjs":  "javascript",
	".ts":   "typescript",
	".rs":   "rust",
	".c":    "c",
	".h":    "c",
}

var (
	grammars     map[string]*sitter.Language
	grammarsOnce sync.Once
)

func loadGrammars() {
	grammarsOnce.Do(func() {
		grammars = map[string]*sitter.Language{
			"python":     python.GetLanguage(),
			"bash":       bash.GetLanguage(),
			"go":         golang.GetLanguage(),
			"javascript": javascript.GetLanguage(),
			"typescript": ts.GetLanguage(),
			"rust":       rust.GetLanguage(),
			"c":          c.GetLanguage(),
		}
	})
}

// LanguageForFile returns the filetype for a path based on its extension,
// or ("", false) if the extension is not recognized.
func LanguageForFile(path string) (string, bool) {
	ft, ok := extToFiletype[strings.ToLower(filepath.Ext(path))]
	return ft, ok
}

// ParserForLanguage returns the tree-sitter grammar for a filetype.
func ParserForLanguage(filetype string) (*sitter.Language, bool) {
	loadGrammars()
	l, ok := grammars[filetype]
	return l, ok
}

// Filetypes returns every filetype with a grammar, sorted.
func Filetypes() []string {
	loadGrammars()
	names := make([]string, 0, len(grammars))
	for name := range grammars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
