package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/unkn0wn-root/tagcache"
	"github.com/unkn0wn-root/tagcache/blog"
	"github.com/unkn0wn-root/tagcache/genstore"
	asynchook "github.com/unkn0wn-root/tagcache/hooks/async"
	"github.com/unkn0wn-root/tagcache/internal/fakeapi"
	tclogrus "github.com/unkn0wn-root/tagcache/log/logrus"
	tcslog "github.com/unkn0wn-root/tagcache/log/slog"
	tczap "github.com/unkn0wn-root/tagcache/log/zap"
	"github.com/unkn0wn-root/tagcache/provider"
	"github.com/unkn0wn-root/tagcache/provider/bigcache"
	rprov "github.com/unkn0wn-root/tagcache/provider/redis"
	"github.com/unkn0wn-root/tagcache/provider/ristretto"
	"github.com/unkn0wn-root/tagcache/sloghooks"
	"github.com/unkn0wn-root/tagcache/transport"
)

// app is one wired client: backend, provider, generations, logging and the
// blog endpoints. close releases everything in reverse order.
type app struct {
	cfg    config
	client *blog.Client
	fake   *fakeapi.Server // nil when talking to a remote base URL

	closers []func(context.Context) error
}

func newApp(ctx context.Context, cfg config) (a *app, err error) {
	a = &app{cfg: cfg}
	defer func() {
		if err != nil {
			_ = a.close(context.Background())
		}
	}()

	req, err := a.requester()
	if err != nil {
		return nil, err
	}
	logger, err := a.logger()
	if err != nil {
		return nil, err
	}

	var rdb goredis.UniversalClient
	if cfg.Cache.Provider == "redis" || cfg.Cache.GenStore == "redis" {
		rdb = goredis.NewUniversalClient(&goredis.UniversalOptions{
			Addrs:    []string{cfg.Redis.Addr},
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.onClose(func(context.Context) error { return rdb.Close() })
	}

	p, err := a.provider(ctx, rdb)
	if err != nil {
		return nil, err
	}

	opts := tagcache.Options{
		Namespace:     cfg.Namespace,
		Provider:      p,
		Requester:     req,
		TagTypes:      blog.TagTypes,
		Logger:        logger,
		Hooks:         a.hooks(),
		KeepUnusedFor: cfg.KeepUnusedFor,
		DefaultTTL:    cfg.DefaultTTL,
	}
	switch cfg.Cache.GenStore {
	case "", "local":
	case "redis":
		opts.GenStore = genstore.NewRedisGenStore(genstore.RedisConfig{
			Client:    rdb,
			Namespace: cfg.Namespace,
			TTL:       cfg.Redis.GenTTL,
		})
	default:
		_ = p.Close(ctx)
		return nil, fmt.Errorf("unknown genstore %q", cfg.Cache.GenStore)
	}

	api, err := tagcache.New(opts)
	if err != nil {
		_ = p.Close(ctx)
		return nil, err
	}
	// Api.Close closes the provider and genstore; it must run before the
	// redis client is closed.
	a.onClose(api.Close)

	a.client, err = blog.NewClient(api, req,
		blog.WithEncoding(blog.Encoding(cfg.Encoding)),
		blog.WithMaxDecode(cfg.MaxDecode),
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) onClose(f func(context.Context) error) { a.closers = append(a.closers, f) }

func (a *app) close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *app) requester() (transport.Requester, error) {
	if a.cfg.BaseURL == "" {
		a.fake = fakeapi.New(fakeapi.WithLatency(a.cfg.Serve.Latency))
		a.fake.Generate(2)
		return a.fake, nil
	}
	h, err := transport.NewHTTP(transport.Config{BaseURL: a.cfg.BaseURL, Timeout: a.cfg.Timeout})
	if err != nil {
		return nil, err
	}
	a.onClose(func(context.Context) error { return h.Close() })
	return h, nil
}

func (a *app) provider(ctx context.Context, rdb goredis.UniversalClient) (provider.Provider, error) {
	switch a.cfg.Cache.Provider {
	case "", "ristretto":
		return ristretto.New(ristretto.DefaultConfig(a.cfg.Cache.MaxEntries))
	case "bigcache":
		return bigcache.New(ctx, bigcache.Config{LifeWindow: a.cfg.DefaultTTL})
	case "redis":
		return rprov.New(rprov.Config{Client: rdb, Prefix: "blogctl:"})
	default:
		return nil, fmt.Errorf("unknown cache provider %q", a.cfg.Cache.Provider)
	}
}

func (a *app) logger() (tagcache.Logger, error) {
	level := a.cfg.Log.Level
	switch a.cfg.Log.Backend {
	case "", "slog":
		var lv slog.Level
		if err := lv.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lv})
		return tcslog.New(slog.New(h)), nil
	case "zap":
		lv, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		zc := zap.NewProductionConfig()
		zc.Level = zap.NewAtomicLevelAt(lv)
		l, err := zc.Build()
		if err != nil {
			return nil, err
		}
		a.onClose(func(context.Context) error {
			_ = l.Sync()
			return nil
		})
		return tczap.New(l), nil
	case "logrus":
		lv, err := logrus.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		l := logrus.New()
		l.SetOutput(os.Stderr)
		l.SetLevel(lv)
		l.SetFormatter(&logrus.JSONFormatter{})
		return tclogrus.New(l), nil
	default:
		return nil, fmt.Errorf("unknown log backend %q", a.cfg.Log.Backend)
	}
}

// hooks reports cache events as sampled slog lines off the request path.
func (a *app) hooks() tagcache.Hooks {
	if !a.cfg.Log.Hooks {
		return nil
	}
	l := slog.New(slog.NewTextHandler(os.Stderr, nil))
	h := asynchook.New(sloghooks.New(l, sloghooks.Options{RefetchEvery: 1}), 1, 256)
	a.onClose(func(context.Context) error {
		h.Close()
		return nil
	})
	return h
}
