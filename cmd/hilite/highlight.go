package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jward/hilite"
	"github.com/jward/hilite/internal/props"
	"github.com/jward/hilite/internal/runtime"
)

var (
	flagFiletype    string
	flagDB          string
	flagLineNumbers bool
	flagStats       bool
)

var highlightCmd = &cobra.Command{
	Use:   "highlight <file>...",
	Short: "Print the highlight annotations of files",
	Long: `Parses each file with tree-sitter and classifies its nodes with the rule table
of its filetype. With --db (or [store] path in hilite.toml) the annotations are
kept in a SQLite database and unchanged files are served from it.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runHighlight,
}

func init() {
	highlightCmd.Flags().StringVar(&flagFiletype, "filetype", "", "filetype to use instead of detecting it from the extension")
	highlightCmd.Flags().StringVar(&flagDB, "db", "", "annotation database path")
	highlightCmd.Flags().StringVar(&flagLanguages, "languages", "", "comma-separated filetype filter (e.g. python,bash)")
	highlightCmd.Flags().BoolVar(&flagLineNumbers, "line-numbers", false, "mark lines in html output")
	highlightCmd.Flags().BoolVar(&flagStats, "stats", false, "include pass statistics (not available with --db)")
}

func runHighlight(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	reg, err := newRegistry(ctx)
	if err != nil {
		return outputError("highlight", err)
	}
	defer reg.Close()

	var files []CLIFile
	if dbPath := resolveDBPath(); dbPath != "" {
		files, err = highlightStored(ctx, reg, dbPath, args)
	} else {
		files, err = highlightDirect(ctx, reg, args)
	}
	if err != nil {
		return outputError("highlight", err)
	}
	return outputResult(CLIResult{Command: "highlight", Results: files})
}

// resolveDBPath returns --db or the configured store path.
func resolveDBPath() string {
	if flagDB != "" {
		return flagDB
	}
	return cfg.StorePath()
}

// languageFilter parses --languages.
func languageFilter() []string {
	if flagLanguages == "" {
		return nil
	}
	langs := strings.Split(flagLanguages, ",")
	for i := range langs {
		langs[i] = strings.TrimSpace(langs[i])
	}
	return langs
}

// filetypeFor returns --filetype or the filetype detected from path.
func filetypeFor(path string) (string, error) {
	if flagFiletype != "" {
		return flagFiletype, nil
	}
	ft, ok := runtime.LanguageForFile(path)
	if !ok {
		return "", fmt.Errorf("%w for %s (use --filetype)", hilite.ErrUnknownFiletype, path)
	}
	return ft, nil
}

func included(filetype string, langs []string) bool {
	if langs == nil {
		return true
	}
	for _, l := range langs {
		if l == filetype {
			return true
		}
	}
	return false
}

func highlightDirect(ctx context.Context, reg *hilite.Registry, paths []string) ([]CLIFile, error) {
	langs := languageFilter()
	var files []CLIFile
	for _, path := range paths {
		ft, err := filetypeFor(path)
		if err != nil {
			return nil, err
		}
		if !included(ft, langs) {
			continue
		}
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		res, err := hilite.Highlight(ctx, reg, ft, src, highlightOptions()...)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		f := CLIFile{
			File:        path,
			Filetype:    ft,
			Annotations: toCLIAnnotations(res.Annotations),
			lines:       res.Lines,
		}
		if flagStats {
			f.Stats = &CLIStats{
				Props:            res.Stats.Props,
				Flushes:          res.Stats.Flushes,
				Continuations:    res.Stats.Continuations,
				EmbeddedBlocks:   res.Stats.EmbeddedBlocks,
				EmbeddedFailures: res.Stats.EmbeddedFailures,
				DurationMicros:   res.Stats.Duration.Microseconds(),
			}
		}
		files = append(files, f)
	}
	return files, nil
}

func highlightStored(ctx context.Context, reg *hilite.Registry, dbPath string, paths []string) ([]CLIFile, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	var opts []hilite.EngineOption
	langs := languageFilter()
	if langs != nil {
		opts = append(opts, hilite.WithLanguages(langs...))
	}
	opts = append(opts, hilite.WithHighlightOptions(highlightOptions()...))
	engine, err := hilite.NewEngine(dbPath, reg, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}
	defer engine.Close()

	var files []CLIFile
	for _, path := range paths {
		ft, err := filetypeFor(path)
		if err != nil {
			return nil, err
		}
		if !included(ft, langs) {
			continue
		}
		anns, err := engine.HighlightFile(ctx, path, ft)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		lines, err := readLines(path)
		if err != nil {
			return nil, err
		}
		files = append(files, CLIFile{
			File:        path,
			Filetype:    ft,
			Annotations: toCLIAnnotations(anns),
			lines:       lines,
		})
	}
	return files, nil
}

func readLines(path string) ([]string, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(src) == 0 {
		return nil, nil
	}
	return strings.Split(strings.TrimSuffix(string(src), "\n"), "\n"), nil
}

// annotationsOf returns a file's annotations in engine form.
func annotationsOf(f CLIFile) []props.Annotation {
	return fromCLIAnnotations(f.Annotations)
}
