package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jward/hilite"
	"github.com/jward/hilite/internal/match"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect rule tables",
}

var rulesCheckCmd = &cobra.Command{
	Use:   "check [filetype]...",
	Short: "Compile rule tables and report errors",
	Long:  "Compiles the named rule tables (all of them by default) and reports every rule that fails to compile. Exits non-zero when any does.",
	RunE:  runRulesCheck,
}

var rulesDumpCmd = &cobra.Command{
	Use:   "dump <filetype>",
	Short: "Print the compiled match tree of a rule table",
	Args:  cobra.ExactArgs(1),
	RunE:  runRulesDump,
}

func init() {
	rulesCmd.AddCommand(rulesCheckCmd)
	rulesCmd.AddCommand(rulesDumpCmd)
}

func runRulesCheck(cmd *cobra.Command, args []string) error {
	reg := hilite.NewRegistry(hilite.WithRulesDir(rulesDir()))
	defer reg.Close()

	filetypes := args
	if len(filetypes) == 0 {
		filetypes = reg.Filetypes()
	}

	var (
		checks []CLIRulesCheck
		total  int
	)
	for _, ft := range filetypes {
		errs, err := reg.Rebuild(ft)
		if err != nil {
			return outputError("rules check", err)
		}
		c := CLIRulesCheck{Filetype: ft, Labels: len(reg.TableLabels(ft))}
		for _, e := range errs {
			c.Errors = append(c.Errors, e.Error())
		}
		total += len(errs)
		checks = append(checks, c)
	}
	if err := outputResult(CLIResult{Command: "rules check", Results: checks}); err != nil {
		return err
	}
	if total > 0 {
		errorHandled = true
		return fmt.Errorf("rule tables had %d error(s)", total)
	}
	return nil
}

func runRulesDump(cmd *cobra.Command, args []string) error {
	reg := hilite.NewRegistry(hilite.WithRulesDir(rulesDir()))
	defer reg.Close()

	root, err := reg.Table(args[0])
	if err != nil {
		return outputError("rules dump", err)
	}
	var b strings.Builder
	match.Dump(&b, root)
	if flagFormat == "text" {
		fmt.Fprint(stdout, b.String())
		return nil
	}
	lines := strings.Split(strings.TrimSuffix(b.String(), "\n"), "\n")
	return outputResult(CLIResult{Command: "rules dump", Results: lines})
}
