package cli

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/dgallion1/wrnotes/internal/cache"
	"github.com/dgallion1/wrnotes/internal/config"
	"github.com/dgallion1/wrnotes/internal/cookie"
	"github.com/dgallion1/wrnotes/internal/importer"
	"github.com/dgallion1/wrnotes/internal/notebook"
	"github.com/dgallion1/wrnotes/internal/retry"
	"github.com/dgallion1/wrnotes/internal/weread"
)

// app is the wired component graph shared by every command.
type app struct {
	cfg      config.Config
	log      *slog.Logger
	resolver *cookie.Resolver
	client   *weread.Client
	svc      *notebook.Service
	cache    *cache.Redis
}

// launch merges the credential tiers given at startup: explicit flags,
// then the --args payload, then the config file.
func (f *GlobalFlags) launch(cfg config.Config) (cookie.Launch, error) {
	args, err := cookie.ParseLaunchArgs(f.Args)
	if err != nil {
		return cookie.Launch{}, err
	}
	flagged := cookie.Launch{
		Cookie:        f.Cookie,
		VaultURL:      f.VaultURL,
		VaultID:       f.VaultID,
		VaultPassword: f.VaultPassword,
	}
	return flagged.Merge(args).Merge(cfg.Credentials.Launch()), nil
}

func newApp(flags *GlobalFlags, logOut io.Writer) (*app, error) {
	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		return nil, err
	}
	if flags.LogLevel != "" {
		cfg.LogLevel = flags.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	log := cfg.NewLogger(logOut)

	launch, err := flags.launch(cfg)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log}
	a.resolver = cookie.NewResolver(launch, cookie.NewVaultClient(), log.With("component", "cookie"))
	a.client = weread.New(a.resolver, weread.Options{
		BaseURL:    cfg.Upstream.BaseURL,
		HTTPClient: &http.Client{Timeout: cfg.Upstream.Timeout},
		Retry: retry.Policy{
			MaxAttempts: cfg.Upstream.MaxAttempts,
			BaseDelay:   cfg.Upstream.BaseDelay,
			Jitter:      cfg.Upstream.Jitter,
		},
		Logger: log.With("component", "weread"),
		Stats:  weread.NewStats(cfg.Upstream.StatsWindow),
	})

	opts := notebook.Options{
		Highlighter:       importer.NewClient(cfg.HighlighterURL),
		Logger:            log.With("component", "notebook"),
		DetailConcurrency: cfg.DetailConcurrency,
	}
	if cfg.Cache.RedisURL != "" {
		rc, err := cache.NewRedis(cfg.Cache.RedisURL, cfg.Cache.TTL)
		if err != nil {
			log.Warn("redis cache unavailable, continuing without it", "error", err)
		} else {
			a.cache = rc
			opts.Cache = rc
		}
	}
	a.svc = notebook.NewService(a.client, opts)
	return a, nil
}

func (a *app) Close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.log.Warn("close redis", "error", err)
		}
	}
}
