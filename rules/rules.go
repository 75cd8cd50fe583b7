// Package rules holds the built-in highlight rule tables, one
// <filetype>.rules file per filetype.
package rules

import (
	"embed"
	"io/fs"
	"path"
	"sort"
	"strings"
)

//go:embed *.rules
var FS embed.FS

// Ext is the extension of rule table files.
const Ext = ".rules"

// FileName returns the rule table file name for filetype.
func FileName(filetype string) string {
	return filetype + Ext
}

// Filetypes lists the filetypes that have a rule table in fsys, sorted.
func Filetypes(fsys fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != Ext {
			continue
		}
		out = append(out, strings.TrimSuffix(e.Name(), Ext))
	}
	sort.Strings(out)
	return out, nil
}
