package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-gate/runtime"
	"github.com/wippyai/wasm-gate/watch"
)

func newWatchCmd(c *cli) *cobra.Command {
	var (
		debounce    time.Duration
		metricsAddr string
		initial     bool
	)

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Check modules as they are written to a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runWatch(cmd, args[0], debounce, metricsAddr, initial)
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "Quiet period before a changed file is checked")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	cmd.Flags().BoolVar(&initial, "initial", true, "Check modules already in the directory")
	return cmd
}

func (c *cli) runWatch(cmd *cobra.Command, dir string, debounce time.Duration, metricsAddr string, initial bool) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	rt, err := c.newRuntime(ctx, runtime.WithRegisterer(reg))
	if err != nil {
		return err
	}

	opts := []watch.Option{
		watch.WithDebounce(debounce),
		watch.WithLogger(c.logger.Named("watch")),
	}
	if initial {
		opts = append(opts, watch.WithInitialScan())
	}
	w, err := watch.New(dir, watch.CheckerFunc(rt.Admit), opts...)
	if err != nil {
		return err
	}

	if metricsAddr != "" {
		srv := &http.Server{
			Addr:              metricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				c.logger.Error("metrics server", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s\n", c.styles.title.Render("watching"), dir)
	for res := range w.Results() {
		ts := c.styles.dim.Render(res.At.Format(time.TimeOnly))
		if res.Err != nil {
			fmt.Fprintf(out, "%s %s %s: %v\n", ts, c.styles.fail.Render("FAIL"), res.Path, res.Err)
		} else {
			fmt.Fprintf(out, "%s %s %s\n", ts, c.styles.pass.Render("PASS"), res.Path)
		}
	}
	return nil
}
