package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/hilite"
)

var statsCmd = &cobra.Command{
	Use:   "stats <filetype>",
	Short: "Summarize the stored annotations of a filetype",
	Long:  "Lists the files of a filetype kept in the annotation database and counts how often each label occurs across them.",
	Args:  cobra.ExactArgs(1),
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().StringVar(&flagDB, "db", "", "annotation database path")
}

func runStats(cmd *cobra.Command, args []string) error {
	dbPath := resolveDBPath()
	if dbPath == "" {
		return outputError("stats", fmt.Errorf("no database: use --db or set [store] path"))
	}
	reg := hilite.NewRegistry(hilite.WithRulesDir(rulesDir()))
	defer reg.Close()
	engine, err := hilite.NewEngine(dbPath, reg)
	if err != nil {
		return outputError("stats", fmt.Errorf("opening %s: %w", dbPath, err))
	}
	defer engine.Close()

	sum, err := engine.Summary(args[0])
	if err != nil {
		return outputError("stats", err)
	}
	out := CLIFiletypeStats{Filetype: args[0], Labels: sum.Labels, Files: []CLIBuffer{}}
	for _, b := range sum.Buffers {
		out.Files = append(out.Files, CLIBuffer{
			Path:          b.Path,
			Lines:         b.LineCount,
			HighlightedAt: b.HighlightedAt.Format(time.RFC3339),
		})
	}
	return outputResult(CLIResult{Command: "stats", Results: out})
}
