package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/tagcache/internal/fakeapi"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "serve",
		Short:       "Serve the in-process fake blog API over HTTP",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"standalone": "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := configFrom(cmd)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log := slog.New(slog.NewTextHandler(os.Stderr, nil))
			api := fakeapi.New(fakeapi.WithLatency(cfg.Serve.Latency))
			if cfg.Serve.NotifyEvery > 0 {
				go generate(ctx, api, cfg.Serve.NotifyEvery)
			}

			mux := http.NewServeMux()
			mux.Handle("/fakeApi/", api)
			srv := &http.Server{
				Addr:              cfg.Serve.Addr,
				Handler:           mux,
				ReadHeaderTimeout: 5 * time.Second,
			}
			errc := make(chan error, 1)
			go func() { errc <- srv.ListenAndServe() }()
			log.Info("serving fake api", "addr", cfg.Serve.Addr, "base_url", "http://localhost"+cfg.Serve.Addr+"/fakeApi")

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
			}
			shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdown); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
}

func generate(ctx context.Context, api *fakeapi.Server, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			api.Generate(1)
		}
	}
}
