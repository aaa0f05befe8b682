package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type rootFlags struct {
	config string
	json   bool
}

type appKey struct{}

func newRootCmd() *cobra.Command {
	var (
		flags rootFlags
		v     = viper.New()
	)
	cmd := &cobra.Command{
		Use:   "blogctl",
		Short: "Read and write blog posts through the tag-invalidated query cache",
		Long: `blogctl talks to the blog API through a normalized query cache. Reads are
served from the cache until a mutation invalidates the tags they provided.

Without base_url the commands run against an in-process fake API; use
"blogctl serve" to expose that fake API over HTTP.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v, flags.config)
			if err != nil {
				return err
			}
			if cmd.Annotations["standalone"] == "true" {
				cmd.SetContext(context.WithValue(cmd.Context(), configKey{}, cfg))
				return nil
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, a))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			a, ok := cmd.Context().Value(appKey{}).(*app)
			if !ok {
				return nil
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return a.close(ctx)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.config, "config", "", "config file (default ./blogctl.yaml or $HOME/.blogctl/blogctl.yaml)")
	pf.BoolVar(&flags.json, "json", false, "print JSON instead of a table")
	pf.String("base-url", "", "blog API base URL; empty uses the in-process fake API")
	pf.String("provider", "ristretto", "cache provider: ristretto, bigcache or redis")
	pf.String("genstore", "local", "generation store: local or redis")
	pf.String("encoding", "json", "cached post encoding: json, msgpack or cbor")
	pf.String("log-backend", "slog", "logger: slog, zap or logrus")
	pf.String("log-level", "warn", "log level")
	pf.Bool("log-hooks", false, "log cache events")
	for key, flag := range map[string]string{
		"base_url":       "base-url",
		"cache.provider": "provider",
		"cache.genstore": "genstore",
		"encoding":       "encoding",
		"log.backend":    "log-backend",
		"log.level":      "log-level",
		"log.hooks":      "log-hooks",
	} {
		_ = v.BindPFlag(key, pf.Lookup(flag))
	}

	out := &printer{json: &flags.json}
	cmd.AddCommand(
		newPostsCmd(out),
		newUsersCmd(out),
		newNotificationsCmd(out),
		newServeCmd(),
	)
	return cmd
}

type configKey struct{}

func appFrom(cmd *cobra.Command) *app {
	a, _ := cmd.Context().Value(appKey{}).(*app)
	return a
}

func configFrom(cmd *cobra.Command) config {
	cfg, _ := cmd.Context().Value(configKey{}).(config)
	return cfg
}
