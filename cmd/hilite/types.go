package main

import (
	"github.com/jward/hilite/internal/props"
)

// CLIResult is the top-level JSON envelope for all commands.
type CLIResult struct {
	Command string `json:"command"`
	Results any    `json:"results"`
	Error   string `json:"error,omitempty"`
}

// CLIAnnotation is a JSON-friendly labelled range. Lines and columns are
// 1-based; columns count bytes and EndCol is exclusive.
type CLIAnnotation struct {
	Label     string `json:"label"`
	StartLine int    `json:"start_line"`
	StartCol  int    `json:"start_col"`
	EndLine   int    `json:"end_line"`
	EndCol    int    `json:"end_col"`
}

// CLIFile is the highlighting of one file.
type CLIFile struct {
	File        string          `json:"file"`
	Filetype    string          `json:"filetype"`
	Annotations []CLIAnnotation `json:"annotations"`
	Stats       *CLIStats       `json:"stats,omitempty"`

	lines []string
}

// CLIStats reports one highlight pass.
type CLIStats struct {
	Props            int   `json:"props"`
	Flushes          int   `json:"flushes"`
	Continuations    int   `json:"continuations"`
	EmbeddedBlocks   int   `json:"embedded_blocks"`
	EmbeddedFailures int   `json:"embedded_failures"`
	DurationMicros   int64 `json:"duration_us"`
}

// CLIRulesCheck reports compiling one rule table.
type CLIRulesCheck struct {
	Filetype string   `json:"filetype"`
	Labels   int      `json:"labels"`
	Errors   []string `json:"errors,omitempty"`
}

// CLITreeNode is one node of a parse tree with the label its path
// resolves to.
type CLITreeNode struct {
	Depth     int    `json:"depth"`
	Path      string `json:"path"`
	Kind      string `json:"kind"`
	Field     string `json:"field,omitempty"`
	Label     string `json:"label,omitempty"`
	Embed     string `json:"embed,omitempty"`
	StartLine int    `json:"start_line"`
	StartCol  int    `json:"start_col"`
	EndLine   int    `json:"end_line"`
	EndCol    int    `json:"end_col"`
}

// CLIFiletypeStats summarizes the stored annotations of one filetype.
type CLIFiletypeStats struct {
	Filetype string         `json:"filetype"`
	Files    []CLIBuffer    `json:"files"`
	Labels   map[string]int `json:"labels"`
}

// CLIBuffer is a stored buffer.
type CLIBuffer struct {
	Path          string `json:"path"`
	Lines         int    `json:"lines"`
	HighlightedAt string `json:"highlighted_at"`
}

// CLILocation is a stored annotation and the file holding it.
type CLILocation struct {
	File string `json:"file"`
	CLIAnnotation
}

// CLIPagedLocations is one page of a label search.
type CLIPagedLocations struct {
	Items      []CLILocation `json:"items"`
	TotalCount int           `json:"total_count"`
}

func toCLIAnnotations(anns []props.Annotation) []CLIAnnotation {
	out := make([]CLIAnnotation, 0, len(anns))
	for _, a := range anns {
		out = append(out, CLIAnnotation{
			Label:     a.Label,
			StartLine: a.StartLine,
			StartCol:  a.StartCol,
			EndLine:   a.EndLine,
			EndCol:    a.EndCol,
		})
	}
	return out
}

func fromCLIAnnotations(anns []CLIAnnotation) []props.Annotation {
	out := make([]props.Annotation, 0, len(anns))
	for _, a := range anns {
		out = append(out, props.Annotation{
			Label: a.Label,
			Range: props.Range{StartLine: a.StartLine, StartCol: a.StartCol, EndLine: a.EndLine, EndCol: a.EndCol},
		})
	}
	return out
}
