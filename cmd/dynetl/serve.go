package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"dynetl/internal/config"
	"dynetl/internal/normalize"
	"dynetl/internal/server"
	"dynetl/internal/storage"
	"dynetl/internal/watch"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP ingest and query API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ing, err := a.openIngester(ctx, func(c *config.Config) {
				if addr != "" {
					c.Server.Addr = addr
				}
			})
			if err != nil {
				return err
			}
			defer a.close()

			srv := server.NewServer(server.Config{
				Addr:           a.cfg.Server.Addr,
				MaxUploadBytes: int64(a.cfg.Server.MaxUploadMB) << 20,
				RatePerSec:     a.cfg.Server.RatePerSec,
				Burst:          a.cfg.Server.Burst,
			}, ing, a.store, a.logger)
			return srv.ListenAndServe(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [dir]",
		Short: "Ingest supported files as they appear in a directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ing, err := a.openIngester(ctx, func(c *config.Config) {
				if len(args) == 1 {
					c.Watch.Dir = args[0]
				}
			})
			if err != nil {
				return err
			}
			defer a.close()
			if a.cfg.Watch.Dir == "" {
				return fmt.Errorf("watch: no directory given (argument or watch.dir)")
			}

			w, err := watch.New(watch.Config{
				Dir:      a.cfg.Watch.Dir,
				Debounce: a.cfg.Watch.Debounce.Std(),
				Accept:   normalize.Supported,
			}, func(ctx context.Context, path string) error {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				res, err := ing.Ingest(ctx, filepath.Base(path), data)
				if err != nil {
					return err
				}
				printResult(a, res)
				return nil
			}, a.logger)
			if err != nil {
				return err
			}
			return w.Run(ctx)
		},
	}
}

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration, printing every issue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.load(); err != nil {
				return err
			}
			kinds := storage.ListKinds()
			if !slices.Contains(kinds, a.cfg.Storage.Kind) {
				return fmt.Errorf("storage kind %q is not compiled in; available: %s",
					a.cfg.Storage.Kind, strings.Join(kinds, ", "))
			}
			fmt.Fprintf(a.stdout, "config ok: job=%s storage=%s metrics=%s events=%s\n",
				a.cfg.Job, a.cfg.Storage.Kind, a.cfg.Metrics.Backend, a.cfg.Events.Kind)
			return nil
		},
	})
	return cmd
}
