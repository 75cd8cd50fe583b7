package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jward/hilite"
)

var (
	flagLimit      int
	flagOffset     int
	flagPathPrefix string
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query the annotation database",
	Long:  "Run queries against stored annotations. Lines and columns are 1-based; files are named as they were highlighted.",
}

var labelAtCmd = &cobra.Command{
	Use:   "label-at <file> <line> <col>",
	Short: "List the labels covering a position, narrowest first",
	Args:  cobra.ExactArgs(3),
	RunE:  runLabelAt,
}

var findCmd = &cobra.Command{
	Use:   "find <label>",
	Short: "List stored annotations carrying a label",
	Args:  cobra.ExactArgs(1),
	RunE:  runFind,
}

func init() {
	queryCmd.PersistentFlags().StringVar(&flagDB, "db", "", "annotation database path")
	findCmd.Flags().IntVar(&flagLimit, "limit", 50, "pagination limit (max 500)")
	findCmd.Flags().IntVar(&flagOffset, "offset", 0, "pagination offset")
	findCmd.Flags().StringVar(&flagFiletype, "filetype", "", "only files of this filetype")
	findCmd.Flags().StringVar(&flagPathPrefix, "path-prefix", "", "only files under this directory")

	queryCmd.AddCommand(labelAtCmd)
	queryCmd.AddCommand(findCmd)
}

// openQuery opens the engine over the configured database.
func openQuery() (*hilite.Engine, error) {
	dbPath := resolveDBPath()
	if dbPath == "" {
		return nil, fmt.Errorf("no database: use --db or set [store] path")
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("database not found: %s (run 'hilite highlight --db' first)", dbPath)
	}
	return hilite.NewEngine(dbPath, hilite.NewRegistry(hilite.WithRulesDir(rulesDir())))
}

// parsePositionArg parses a positional argument as a 1-based line or column.
func parsePositionArg(value, name string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be a positive integer", name, value)
	}
	if n < 1 {
		return 0, fmt.Errorf("invalid %s %q: must be at least 1", name, value)
	}
	return n, nil
}

func runLabelAt(cmd *cobra.Command, args []string) error {
	line, err := parsePositionArg(args[1], "line")
	if err != nil {
		return outputError("label-at", err)
	}
	col, err := parsePositionArg(args[2], "col")
	if err != nil {
		return outputError("label-at", err)
	}
	engine, err := openQuery()
	if err != nil {
		return outputError("label-at", err)
	}
	defer engine.Close()

	locs, err := engine.Query().LabelsAt(args[0], line, col)
	if err != nil {
		return outputError("label-at", err)
	}
	return outputResult(CLIResult{Command: "label-at", Results: toCLILocations(locs)})
}

func runFind(cmd *cobra.Command, args []string) error {
	engine, err := openQuery()
	if err != nil {
		return outputError("find", err)
	}
	defer engine.Close()

	res, err := engine.Query().FindLabel(args[0],
		hilite.LocationFilter{Filetype: flagFiletype, PathPrefix: flagPathPrefix},
		hilite.Pagination{Limit: flagLimit, Offset: flagOffset},
	)
	if err != nil {
		return outputError("find", err)
	}
	return outputResult(CLIResult{Command: "find", Results: CLIPagedLocations{
		Items:      toCLILocations(res.Items),
		TotalCount: res.TotalCount,
	}})
}

func toCLILocations(locs []hilite.Location) []CLILocation {
	out := make([]CLILocation, 0, len(locs))
	for _, l := range locs {
		out = append(out, CLILocation{
			File: l.File,
			CLIAnnotation: CLIAnnotation{
				Label:     l.Label,
				StartLine: l.StartLine,
				StartCol:  l.StartCol,
				EndLine:   l.EndLine,
				EndCol:    l.EndCol,
			},
		})
	}
	return out
}
