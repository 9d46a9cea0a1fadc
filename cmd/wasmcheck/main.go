// Command wasmcheck checks WebAssembly contracts against the host API.
//
//	wasmcheck check contract.wasm
//	wasmcheck check --explain contract.wasm
//	wasmcheck symbols --privates --sizes contract.wasm
//	wasmcheck contract --against old-contract.yaml
//	wasmcheck watch ./incoming
//	wasmcheck inspect contract.wasm
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-gate/compat"
	"github.com/wippyai/wasm-gate/config"
	"github.com/wippyai/wasm-gate/errors"
	"github.com/wippyai/wasm-gate/runtime"
	"github.com/wippyai/wasm-gate/symbols"
)

// cli holds the flags and the state built from them before a command runs.
type cli struct {
	configPath string
	verbose    bool
	extractor  string
	noColor    bool

	cfg      *config.Config
	logger   *zap.Logger
	checker  *compat.Checker
	extract  symbols.Extractor
	styles   styles
	closeFns []func(context.Context) error
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// run executes one command line and releases everything it opened.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	c := &cli{}
	root := newRootCmd(c)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if cerr := c.teardown(ctx); err == nil {
		err = cerr
	}
	return err
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "wasmcheck",
		Short:         "Check WebAssembly contracts against the host API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
	}

	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "Config file (YAML)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&c.extractor, "extractor", "", "Symbol extractor: scanner or wazero (overrides config)")
	root.PersistentFlags().BoolVar(&c.noColor, "no-color", false, "Disable colored output")

	root.AddCommand(
		newCheckCmd(c),
		newSymbolsCmd(c),
		newContractCmd(c),
		newWatchCmd(c),
		newInspectCmd(c),
	)
	return root
}

func (c *cli) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.extractor != "" {
		cfg.Extractor = c.extractor
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	c.cfg = cfg

	c.logger, err = cfg.Logger(c.verbose)
	if err != nil {
		return err
	}
	c.extract, err = c.newExtractor(cmd.Context())
	if err != nil {
		return err
	}

	c.checker, err = compat.New(cfg.Contract,
		compat.WithExtractor(c.extract),
		compat.WithLogger(c.logger.Named("compat")))
	if err != nil {
		return err
	}

	c.styles = newStyles(cmd.OutOrStdout(), c.noColor)
	return nil
}

func (c *cli) newExtractor(ctx context.Context) (symbols.Extractor, error) {
	switch c.cfg.Extractor {
	case config.ExtractorWazero:
		w := symbols.NewWazeroExtractor(ctx)
		c.closeFns = append(c.closeFns, w.Close)
		return w, nil
	case config.ExtractorScanner:
		return symbols.Scanner{}, nil
	default:
		return nil, errors.Unsupported(errors.PhaseConfig, "extractor "+c.cfg.Extractor)
	}
}

func (c *cli) teardown(ctx context.Context) error {
	var first error
	for i := len(c.closeFns) - 1; i >= 0; i-- {
		if err := c.closeFns[i](ctx); err != nil && first == nil {
			first = err
		}
	}
	c.closeFns = nil
	if c.logger != nil {
		_ = c.logger.Sync()
	}
	return first
}

// newRuntime builds an admission-gated runtime on the configured checker.
func (c *cli) newRuntime(ctx context.Context, opts ...runtime.Option) (*runtime.Runtime, error) {
	opts = append([]runtime.Option{
		runtime.WithConfig(c.cfg.RuntimeOptions()),
		runtime.WithChecker(c.checker),
		runtime.WithLogger(c.logger.Named("runtime")),
	}, opts...)
	rt, err := runtime.New(ctx, opts...)
	if err != nil {
		return nil, err
	}
	c.closeFns = append(c.closeFns, rt.Close)
	return rt, nil
}
