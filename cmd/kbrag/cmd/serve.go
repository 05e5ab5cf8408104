package cmd

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"kbrag/internal/domain"
	"kbrag/internal/index"
	"kbrag/internal/server"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		addr  string
		watch bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve retrieval queries over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := opts.cfg
			if addr == "" {
				addr = cfg.Server.Addr
			}
			if !cmd.Flags().Changed("watch") {
				watch = cfg.Index.Watch
			}
			holder := loadHolder(cmd.Context(), opts.logger, cfg.Index.Path)

			srv, err := server.New(server.Config{
				Addr:            addr,
				DefaultTopK:     cfg.Search.TopK,
				MinScore:        cfg.Search.MinScore,
				CacheSize:       cfg.Search.CacheSize,
				RateLimit:       cfg.Server.RateLimit,
				Burst:           cfg.Server.Burst,
				ShutdownTimeout: time.Duration(cfg.Server.ShutdownSecs) * time.Second,
			}, holder, opts.logger)
			if err != nil {
				return err
			}

			g, gctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error { return srv.ListenAndServe(gctx) })
			if watch {
				w := index.NewWatcher(holder, cfg.Index.Path, opts.logger)
				g.Go(func() error {
					if err := w.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
						return err
					}
					return nil
				})
			}
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")
	cmd.Flags().BoolVar(&watch, "watch", false, "Reload the snapshot when it is rebuilt")
	return cmd
}

// loadHolder loads the snapshot at path. Any failure leaves retrieval
// disabled instead of aborting startup.
func loadHolder(ctx context.Context, logger *slog.Logger, path string) *index.Holder {
	holder := index.NewHolder(nil)
	if err := holder.Reload(ctx, path); err != nil {
		if errors.Is(err, domain.ErrIndexNotFound) {
			logger.Warn("index not found, retrieval disabled", slog.String("path", path))
		} else {
			logger.Error("failed to load index, retrieval disabled",
				slog.String("path", path), slog.String("error", err.Error()))
		}
		return holder
	}
	snap := holder.Current()
	logger.Info("index loaded",
		slog.String("path", path),
		slog.Int("chunks", snap.Len()),
		slog.Int("vocab_size", snap.VocabSize()))
	return holder
}
