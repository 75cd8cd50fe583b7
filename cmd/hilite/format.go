package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/jward/hilite/internal/render"
)

// stdout receives command output.
var stdout io.Writer = os.Stdout

// formatFilesText formats highlighted files as aligned columns, one
// annotation per row.
func formatFilesText(w io.Writer, files []CLIFile) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	multi := len(files) > 1
	if multi {
		fmt.Fprintln(tw, "FILE\tRANGE\tLABEL")
	} else {
		fmt.Fprintln(tw, "RANGE\tLABEL")
	}
	for _, f := range files {
		for _, a := range f.Annotations {
			rng := fmt.Sprintf("%d:%d-%d:%d", a.StartLine, a.StartCol, a.EndLine, a.EndCol)
			if multi {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", f.File, rng, a.Label)
			} else {
				fmt.Fprintf(tw, "%s\t%s\n", rng, a.Label)
			}
		}
	}
	tw.Flush()

	for _, f := range files {
		if f.Stats == nil {
			continue
		}
		s := f.Stats
		fmt.Fprintf(w, "\n%s: %d props, %d flushes, %d continuations, %d embedded blocks (%d failed), %dus\n",
			f.File, s.Props, s.Flushes, s.Continuations, s.EmbeddedBlocks, s.EmbeddedFailures, s.DurationMicros)
	}
}

// formatFilesHTML renders each file as a highlighted <pre> block.
func formatFilesHTML(w io.Writer, files []CLIFile) error {
	opts := render.HTMLOptions{LineNumbers: flagLineNumbers}
	for i, f := range files {
		if i > 0 {
			fmt.Fprintln(w)
		}
		if len(files) > 1 {
			fmt.Fprintf(w, "<!-- %s -->\n", f.File)
		}
		if err := render.HTML(w, f.lines, annotationsOf(f), opts); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}
	return nil
}

// formatRulesChecksText formats rule table checks, listing each error
// under its table.
func formatRulesChecksText(w io.Writer, checks []CLIRulesCheck) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILETYPE\tLABELS\tERRORS")
	for _, c := range checks {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", c.Filetype, c.Labels, len(c.Errors))
	}
	tw.Flush()
	for _, c := range checks {
		for _, e := range c.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
}

// formatTreeText formats parse tree nodes as an indented outline.
func formatTreeText(w io.Writer, nodes []CLITreeNode) {
	for _, n := range nodes {
		name := n.Kind
		if n.Field != "" {
			name = n.Field + ":" + n.Kind
		}
		fmt.Fprintf(w, "%s%s %d:%d-%d:%d", strings.Repeat("  ", n.Depth), name, n.StartLine, n.StartCol, n.EndLine, n.EndCol)
		if n.Label != "" {
			fmt.Fprintf(w, " -> %s", n.Label)
			if n.Embed != "" {
				fmt.Fprintf(w, " (embed:%s)", n.Embed)
			}
		}
		fmt.Fprintln(w)
	}
}

// formatStatsText formats a filetype summary as readable text.
func formatStatsText(w io.Writer, s CLIFiletypeStats) {
	fmt.Fprintf(w, "Filetype: %s\n", s.Filetype)
	fmt.Fprintf(w, "Files: %d\n", len(s.Files))
	fmt.Fprintln(w)

	if len(s.Files) > 0 {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "  PATH\tLINES\tHIGHLIGHTED")
		for _, f := range s.Files {
			fmt.Fprintf(tw, "  %s\t%d\t%s\n", f.Path, f.Lines, f.HighlightedAt)
		}
		tw.Flush()
		fmt.Fprintln(w)
	}

	if len(s.Labels) > 0 {
		fmt.Fprintln(w, "Labels:")
		labels := make([]string, 0, len(s.Labels))
		for l := range s.Labels {
			labels = append(labels, l)
		}
		sort.Strings(labels)
		for _, l := range labels {
			fmt.Fprintf(w, "  %s: %d\n", l, s.Labels[l])
		}
	}
}

// formatLocationsText formats stored annotations as aligned columns.
func formatLocationsText(w io.Writer, locs []CLILocation) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tRANGE\tLABEL")
	for _, l := range locs {
		fmt.Fprintf(tw, "%s\t%d:%d-%d:%d\t%s\n", l.File, l.StartLine, l.StartCol, l.EndLine, l.EndCol, l.Label)
	}
	tw.Flush()
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type.
func outputResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case []CLIFile:
		formatFilesText(w, v)
	case []CLIRulesCheck:
		formatRulesChecksText(w, v)
	case []CLITreeNode:
		formatTreeText(w, v)
	case CLIFiletypeStats:
		formatStatsText(w, v)
	case []CLILocation:
		formatLocationsText(w, v)
	case CLIPagedLocations:
		formatLocationsText(w, v.Items)
		if len(v.Items) < v.TotalCount {
			fmt.Fprintf(w, "\n(showing %d of %d)\n", len(v.Items), v.TotalCount)
		}
	case []string:
		for _, s := range v {
			fmt.Fprintln(w, s)
		}
	case nil:
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	return nil
}

// outputResult writes result in the selected format.
func outputResult(result CLIResult) error {
	switch flagFormat {
	case "text":
		return outputResultText(stdout, result)
	case "html":
		files, ok := result.Results.([]CLIFile)
		if !ok {
			return fmt.Errorf("html output is only supported by highlight")
		}
		return formatFilesHTML(stdout, files)
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. Otherwise it goes to stderr.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat != "json" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return err
	}
	result := CLIResult{
		Command: command,
		Error:   err.Error(),
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)
	return err
}

// validFormats lists accepted values for --format.
var validFormats = []string{"text", "json", "html"}

func formatList() string {
	return strings.Join(validFormats, "|")
}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be one of %s", format, strings.Join(validFormats, ", "))
}
