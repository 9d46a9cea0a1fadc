package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wippyai/wasm-gate/compat"
)

// errRejected is returned when at least one module fails the gate.
var errRejected = errors.New("one or more modules rejected")

func newCheckCmd(c *cli) *cobra.Command {
	var explain, compile bool

	cmd := &cobra.Command{
		Use:   "check [file...]",
		Short: "Check modules against the host API contract",
		Long: `Runs the compatibility gate on each module and prints PASS or FAIL.
Exits non-zero if any module is rejected. Arguments may be globs.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runCheck(cmd, args, explain, compile)
		},
	}
	cmd.Flags().BoolVar(&explain, "explain", false, "List the offending imports and exports of rejected modules")
	cmd.Flags().BoolVar(&compile, "compile", false, "Also compile admitted modules with wazero")
	return cmd
}

func (c *cli) runCheck(cmd *cobra.Command, args []string, explain, compile bool) error {
	out := cmd.OutOrStdout()

	paths, err := expandArgs(args)
	if err != nil {
		return err
	}

	check := func(code []byte) error { return c.checker.Check(code) }
	if compile {
		rt, err := c.newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		check = func(code []byte) error {
			mod, err := rt.Load(cmd.Context(), code)
			if err != nil {
				return err
			}
			return mod.Close(cmd.Context())
		}
	}

	rejected := 0
	for _, path := range paths {
		code, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(out, "%s %s: %v\n", c.styles.fail.Render("FAIL"), path, err)
			rejected++
			continue
		}

		verdict := check(code)
		if verdict == nil {
			fmt.Fprintf(out, "%s %s\n", c.styles.pass.Render("PASS"), path)
			continue
		}
		rejected++
		fmt.Fprintf(out, "%s %s: %v\n", c.styles.fail.Render("FAIL"), path, verdict)

		if explain {
			report, err := c.checker.Diagnose(code)
			if err != nil {
				continue
			}
			c.printReport(out, report)
		}
	}

	if rejected > 0 {
		return errRejected
	}
	return nil
}

func (c *cli) printReport(out io.Writer, r *compat.Report) {
	if len(r.UnsupportedImports) > 0 {
		fmt.Fprintf(out, "  %s\n", c.styles.warning.Render(fmt.Sprintf("unsupported imports (contract %s):", r.Version)))
		for _, name := range r.UnsupportedImports {
			fmt.Fprintf(out, "    %s\n", c.styles.name.Render(name))
		}
	}
	if len(r.MissingExports) > 0 {
		fmt.Fprintf(out, "  %s\n", c.styles.warning.Render(fmt.Sprintf("missing exports (contract %s):", r.Version)))
		for _, name := range r.MissingExports {
			fmt.Fprintf(out, "    %s\n", c.styles.name.Render(name))
		}
	}
}

// expandArgs expands globs the shell left alone. A pattern that matches
// nothing is kept as a path so the read error is reported.
func expandArgs(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		if !strings.ContainsAny(arg, "*?[") {
			paths = append(paths, arg)
			continue
		}
		matches, err := filepath.Glob(arg)
		if err != nil {
			return nil, fmt.Errorf("pattern %s: %w", arg, err)
		}
		if len(matches) == 0 {
			paths = append(paths, arg)
		}
		paths = append(paths, matches...)
	}
	return paths, nil
}
