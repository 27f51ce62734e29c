package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/FranksOps/paaplan/internal/config"
	"github.com/FranksOps/paaplan/internal/events"
	"github.com/FranksOps/paaplan/internal/fingerprint"
	"github.com/FranksOps/paaplan/internal/site"
	"github.com/FranksOps/paaplan/internal/storage"
	"github.com/FranksOps/paaplan/internal/storage/open"
	"github.com/FranksOps/paaplan/pkg/httpclient"
	"github.com/FranksOps/paaplan/pkg/proxy"
	"github.com/FranksOps/paaplan/pkg/useragent"
)

// app carries the state shared by all subcommands once the root command
// has resolved configuration.
type app struct {
	v         *viper.Viper
	cfgFile   string
	cfg       *config.Config
	logger    *slog.Logger
	// openStore defaults to open.Open.
	openStore func(ctx context.Context, driver, dsn string) (storage.Backend, error)
}

func newRootCmd() *cobra.Command {
	return newAppCmd(&app{v: config.New(), openStore: open.Open})
}

func newAppCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:               "paaplan",
		Short:             "Plan, generate and publish local SEO pages from search signals",
		SilenceUsage:      true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default ./paaplan.yaml or $HOME/.config/paaplan/paaplan.yaml)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("sites", "", "site profiles YAML file (default built-in profiles)")
	pf.String("storage-driver", "", "run store driver: "+fmt.Sprint(open.Drivers))
	pf.String("storage-dsn", "", "run store path or connection string")
	pf.String("nats-url", "", "NATS server for plan hand-off events")
	pf.Int("metrics-port", 0, "serve Prometheus metrics on this port (0 disables)")
	a.bind(pf.Lookup("log-level"), "log_level")
	a.bind(pf.Lookup("sites"), "sites_file")
	a.bind(pf.Lookup("storage-driver"), "storage.driver")
	a.bind(pf.Lookup("storage-dsn"), "storage.dsn")
	a.bind(pf.Lookup("nats-url"), "nats_url")
	a.bind(pf.Lookup("metrics-port"), "metrics_port")

	root.AddCommand(
		newExtractCmd(a),
		newReportCmd(a),
		newGenerateCmd(a),
		newPublishCmd(a),
		newRunsCmd(a),
	)
	return root
}

// bind makes a flag override the config key. Flag values only win when
// the flag is set on the command line.
func (a *app) bind(f *pflag.Flag, key string) {
	if err := a.v.BindPFlag(key, f); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", key, err))
	}
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level, err := charmlog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	handler := charmlog.NewWithOptions(cmd.ErrOrStderr(), charmlog.Options{
		Level:           level,
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Prefix:          "paaplan",
	})
	a.logger = slog.New(handler)
	slog.SetDefault(a.logger)
	return nil
}

func (a *app) sites() (*site.Registry, error) {
	if a.cfg.SitesFile == "" {
		return site.Default(), nil
	}
	return site.Load(a.cfg.SitesFile)
}

// store opens the configured run store. A nil backend means none is
// configured.
func (a *app) store(ctx context.Context) (storage.Backend, error) {
	if a.cfg.Storage.Driver == "" {
		return nil, nil
	}
	return a.openStore(ctx, a.cfg.Storage.Driver, a.cfg.Storage.DSN)
}

// publisher connects to NATS when a URL is configured. The returned
// publisher is nil, and so disabled, otherwise.
func (a *app) publisher() (*events.Publisher, func(), error) {
	if a.cfg.NATSURL == "" {
		return nil, func() {}, nil
	}
	return events.Connect(a.cfg.NATSURL, a.logger)
}

// browserClient builds an HTTP client that looks like a desktop browser:
// configured TLS fingerprint, rotating User-Agents and, when a proxy list
// is configured, rotating proxies.
func (a *app) browserClient(timeout time.Duration) (*httpclient.Client, error) {
	profile, err := fingerprint.ParseProfile(a.cfg.Fingerprint)
	if err != nil {
		return nil, err
	}

	var pool *proxy.Pool
	opts := fingerprint.Options{}
	if a.cfg.ProxiesFile != "" {
		pool = proxy.NewPool(proxy.Config{})
		if err := pool.LoadFile(a.cfg.ProxiesFile); err != nil {
			return nil, err
		}
		opts.Proxy = proxy.ProxyFunc
		a.logger.Debug("proxy rotation enabled", "proxies", pool.Len())
	}

	rt, err := fingerprint.Transport(profile, opts)
	if err != nil {
		return nil, err
	}
	if pool != nil {
		rt = pool.Wrap(rt)
	}
	return httpclient.New(httpclient.Config{
		Timeout:    timeout,
		Transport:  rt,
		UserAgents: useragent.NewPool(nil),
	}), nil
}
