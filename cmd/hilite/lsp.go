package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jward/hilite/internal/lsp"
)

var lspCmd = &cobra.Command{
	Use:   "lsp",
	Short: "Run a language server that provides semantic tokens over stdio",
	Long: `Runs a language server on stdin/stdout. Open documents are highlighted
incrementally as they change and served as semantic tokens whose types are
the rule tables' labels.`,
	Args: cobra.NoArgs,
	RunE: runLSP,
}

func runLSP(cmd *cobra.Command, args []string) error {
	reg, err := newRegistry(context.Background())
	if err != nil {
		return err
	}
	defer reg.Close()

	server := lsp.NewServer(reg, version, highlightOptions()...)
	return server.Run()
}
