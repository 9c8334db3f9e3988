package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/letterboxd-client/internal/config"
	"github.com/Sternrassler/letterboxd-client/pkg/fetcher"
	"github.com/Sternrassler/letterboxd-client/pkg/logging"
	"github.com/Sternrassler/letterboxd-client/pkg/metrics"
	"github.com/Sternrassler/letterboxd-client/pkg/pagecache"
	"github.com/Sternrassler/letterboxd-client/pkg/ratelimit"
	"github.com/Sternrassler/letterboxd-client/pkg/session"
	"github.com/Sternrassler/letterboxd-client/pkg/store"
)

type rootFlags struct {
	configPath  string
	logLevel    string
	pretty      bool
	redisAddr   string
	metricsAddr string
	dbPath      string
	noStore     bool
}

// app holds what a command run needs. It is built before the command runs.
type app struct {
	cfg     config.Config
	logger  zerolog.Logger
	session *session.Session
	store   *store.Store
	redis   *redis.Client

	stopMetrics context.CancelFunc
	metricsDone chan error
}

// run executes one command line and releases everything the command
// opened, whether or not it succeeded.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	a := &app{}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	return errors.Join(err, a.close())
}

func newRootCmd(a *app) *cobra.Command {
	var flags rootFlags

	root := &cobra.Command{
		Use:           "boxd",
		Short:         "boxd reads Letterboxd watchlists, diaries, reviews, lists and films.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open(cmd, flags)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "config file (default "+config.DefaultPath+" if present)")
	pf.StringVar(&flags.logLevel, "log-level", "", "debug, info, warn, error or disabled")
	pf.BoolVar(&flags.pretty, "pretty", false, "human-readable logs")
	pf.StringVar(&flags.redisAddr, "redis", "", "Redis address for the shared page cache and cooldown")
	pf.StringVar(&flags.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	pf.StringVar(&flags.dbPath, "db", "", "SQLite database for saved records and films")
	pf.BoolVar(&flags.noStore, "no-store", false, "do not open the database")

	for _, newCmd := range []func(*app) *cobra.Command{
		newWatchlistCmd,
		newDiaryCmd,
		newReviewsCmd,
		newLogsCmd,
		newListCmd,
		newListsCmd,
		newBrowseCmd,
		newFilmCmd,
		newProfileCmd,
		newSavedCmd,
	} {
		root.AddCommand(newCmd(a))
	}
	return root
}

func (a *app) open(cmd *cobra.Command, flags rootFlags) error {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}
	fs := cmd.Flags()
	if fs.Changed("log-level") {
		cfg.LogLevel = flags.logLevel
	}
	if fs.Changed("pretty") {
		cfg.LogPretty = flags.pretty
	}
	if fs.Changed("redis") {
		cfg.RedisAddr = flags.redisAddr
	}
	if fs.Changed("metrics-addr") {
		cfg.MetricsAddr = flags.metricsAddr
	}
	if fs.Changed("db") {
		cfg.DBPath = flags.dbPath
	}
	if flags.noStore {
		cfg.DBPath = ""
	}
	a.cfg = cfg

	logCfg := cfg.Logging()
	logCfg.Output = cmd.ErrOrStderr()
	if a.logger, err = logging.Setup(logCfg); err != nil {
		return err
	}

	fetchCfg, err := cfg.Fetcher()
	if err != nil {
		return err
	}

	if cfg.RedisAddr != "" {
		a.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := a.redis.Ping(cmd.Context()).Err(); err != nil {
			return fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		a.logger.Debug().Str("addr", cfg.RedisAddr).Msg("Connected to Redis")
		fetchCfg.Cache = pagecache.NewManager(a.redis, cfg.CacheTTL())
	}
	fetchCfg.Cooldown = ratelimit.NewTracker(a.redis, a.logger)

	client, err := fetcher.New(fetchCfg)
	if err != nil {
		return err
	}

	opts := []session.Option{session.WithConfig(cfg.Aggregation())}
	if cfg.DBPath != "" {
		if a.store, err = store.Open(cfg.DBPath); err != nil {
			return err
		}
		opts = append(opts, session.WithFilmLayer(a.store))
	}
	a.session = session.New(client, opts...)

	if cfg.MetricsAddr != "" {
		ctx, cancel := context.WithCancel(context.Background())
		a.stopMetrics = cancel
		a.metricsDone = make(chan error, 1)
		go func() { a.metricsDone <- metrics.Serve(ctx, cfg.MetricsAddr) }()
	}
	return nil
}

func (a *app) close() error {
	var errs []error
	if a.stopMetrics != nil {
		a.stopMetrics()
		errs = append(errs, <-a.metricsDone)
		a.stopMetrics = nil
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
		a.store = nil
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
		a.redis = nil
	}
	return errors.Join(errs...)
}

// requireStore fails commands that need the database when it is disabled.
func (a *app) requireStore() (*store.Store, error) {
	if a.store == nil {
		return nil, errors.New("no database configured, set --db or db_path")
	}
	return a.store, nil
}
