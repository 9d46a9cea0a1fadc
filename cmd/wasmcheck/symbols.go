package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wippyai/wasm-gate/symbols"
)

func newSymbolsCmd(c *cli) *cobra.Command {
	var opts symbols.Options

	cmd := &cobra.Command{
		Use:   "symbols <file>",
		Short: "List the symbol table of a module",
		Long: `Prints one line per symbol, like nm. With no selection flags, imports
and exports are listed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts == (symbols.Options{}) {
				opts = symbols.PublicOptions
			}
			return c.runSymbols(cmd, args[0], opts)
		},
	}
	cmd.Flags().BoolVar(&opts.Imports, "imports", false, "List imports")
	cmd.Flags().BoolVar(&opts.Exports, "exports", false, "List exports")
	cmd.Flags().BoolVar(&opts.Privates, "privates", false, "List named internal functions")
	cmd.Flags().BoolVar(&opts.Sizes, "sizes", false, "List code size of each function")
	return cmd
}

func (c *cli) runSymbols(cmd *cobra.Command, path string, opts symbols.Options) error {
	code, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	syms, err := c.extract.Extract(code, opts)
	if err != nil {
		return fmt.Errorf("extract %s: %w", path, err)
	}

	out := cmd.OutOrStdout()
	for _, s := range syms {
		fmt.Fprintln(out, s.String())
	}
	return nil
}
