package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"

	"github.com/jward/hilite"
	"github.com/jward/hilite/internal/config"
	"github.com/jward/hilite/internal/runtime"

	_ "github.com/tliron/commonlog/simple"
)

// version is set at build time.
var version = "dev"

var (
	flagFormat    string
	flagVerbose   int
	flagConfig    string
	flagRulesDir  string
	flagNoEmbed   bool
	flagLogFile   string
	flagLanguages string
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

// cfg is the configuration loaded by the root command.
var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "hilite",
	Short:         "Syntax highlighting from tree-sitter parse trees",
	Long:          "Hilite classifies tree-sitter nodes into highlight labels using ancestor-path rule tables, including code embedded in docstrings.",
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := validateFormat(flagFormat); err != nil {
			return err
		}
		c, err := loadConfig()
		if err != nil {
			return err
		}
		cfg = c
		configureLogging(c)
		return nil
	},
	// No Run: prints help by default.
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "text", "output format: "+formatList())
	rootCmd.PersistentFlags().CountVarP(&flagVerbose, "verbose", "v", "increase log verbosity (repeatable)")
	rootCmd.PersistentFlags().StringVar(&flagLogFile, "log-file", "", "write logs to a file instead of stderr")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to hilite.toml (default: search upward from the working directory)")
	rootCmd.PersistentFlags().StringVar(&flagRulesDir, "rules-dir", "", "load rule tables from disk instead of the built-in ones")
	rootCmd.PersistentFlags().BoolVar(&flagNoEmbed, "no-embed", false, "do not classify embedded code blocks")

	rootCmd.AddCommand(highlightCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(treeCmd)
	rootCmd.AddCommand(lspCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(queryCmd)
}

// loadConfig reads --config, or the nearest hilite.toml, or the defaults.
func loadConfig() (*config.Config, error) {
	if flagConfig != "" {
		return config.LoadFile(flagConfig)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	c, err := config.FindAndLoad(wd)
	if err != nil {
		return nil, err
	}
	if c == nil {
		c = config.Default()
	}
	return c, nil
}

// configureLogging applies [log] settings, with -v and --log-file taking
// precedence.
func configureLogging(c *config.Config) {
	verbosity := c.Log.Verbosity
	if flagVerbose > 0 {
		verbosity = flagVerbose
	}
	var path *string
	if flagLogFile != "" {
		path = &flagLogFile
	} else if c.Log.File != "" {
		p := c.Path(c.Log.File)
		path = &p
	}
	commonlog.Configure(verbosity, path)
}

// rulesDir returns --rules-dir or the configured rules directory.
func rulesDir() string {
	if flagRulesDir != "" {
		return flagRulesDir
	}
	return cfg.RulesDir()
}

// newRegistry builds the rule registry and its embedded-code handlers from
// the loaded configuration.
func newRegistry(ctx context.Context) (*hilite.Registry, error) {
	reg := hilite.NewRegistry(hilite.WithRulesDir(rulesDir()))
	if flagNoEmbed {
		return reg, nil
	}
	rt := runtime.NewRuntime(cfg.Dir)
	if err := reg.Configure(ctx, cfg.Embed, rt); err != nil {
		reg.Close()
		return nil, err
	}
	return reg, nil
}

// highlightOptions maps the [engine] section to highlighter options.
func highlightOptions() []hilite.Option {
	return hilite.EngineOptions(cfg.Engine)
}
