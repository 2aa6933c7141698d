package main

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/tgwatch/tgwatch/cache"
	"github.com/tgwatch/tgwatch/db"
	transport "github.com/tgwatch/tgwatch/http"
	"github.com/tgwatch/tgwatch/jobs"
	"github.com/tgwatch/tgwatch/parser"
	"github.com/tgwatch/tgwatch/refresh"
	"github.com/tgwatch/tgwatch/server"
	"github.com/tgwatch/tgwatch/store"
	"github.com/tgwatch/tgwatch/telegram"
)

var version string

func main() {
	// Flag domain.
	fs := pflag.NewFlagSet("default", pflag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "DESCRIPTION\n")
		fmt.Fprintf(os.Stderr, "  tgwatchd collects statistics for Telegram channels and serves them over HTTP.\n")
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "FLAGS\n")
		fs.PrintDefaults()
	}
	var (
		listenAddr              = fs.StringP("listen", "l", ":3030", "Listen address for API clients")
		databaseSource          = fs.String("database-source", "file://tgwatch.db", `Database source name; includes the DB driver as the scheme. The default is a temporary, file-based DB`)
		databaseMigrationsDir   = fs.String("database-migrations", "./db/migrations", "Path to database migration scripts, which are in subdirectories named for each driver")
		accountsPath            = fs.String("accounts", "./accounts.yaml", "Path to the YAML file listing the Telegram gateway and account sessions")
		gatewayTimeout          = fs.Duration("gateway-timeout", 30*time.Second, "Timeout for single requests to the Telegram gateway")
		gatewayRPS              = fs.Int("gateway-rps", 5, "Maximum requests per second per session, to the Telegram gateway")
		gatewayBurst            = fs.Int("gateway-burst", 10, "Maximum burst of requests per session, to the Telegram gateway")
		memcachedHostname       = fs.String("memcached-hostname", "", "Hostname for memcached service to use for caching channel info; caching is disabled when empty")
		memcachedAddresses      = fs.StringSlice("memcached-addresses", nil, "Static list of memcached host:port addresses; takes precedence over SRV discovery via --memcached-hostname")
		memcachedTimeout        = fs.Duration("memcached-timeout", time.Second, "Maximum time to wait before giving up on memcached requests")
		memcachedService        = fs.String("memcached-service", "memcached", "SRV service used to discover memcache servers")
		refreshInterval         = fs.Duration("refresh-interval", time.Hour, "Period between automatic re-parses of every tracked channel; 0 disables them")
		jobRetention            = fs.Duration("job-retention", time.Hour, "How long finished jobs are kept for status queries")
		versionFlag             = fs.Bool("version", false, "Get version number")
	)
	fs.Parse(os.Args)

	if version == "" {
		version = "unversioned"
	}
	if *versionFlag {
		fmt.Println(version)
		os.Exit(0)
	}

	// Logger component.
	var logger log.Logger
	{
		logger = log.NewLogfmtLogger(os.Stderr)
		logger = log.With(logger, "ts", log.DefaultTimestampUTC)
		logger = log.With(logger, "caller", log.DefaultCaller)
	}

	// Initialise database; we must fail if we can't do this, because
	// most things depend on it.
	var dbDriver string
	{
		var version uint64
		u, err := url.Parse(*databaseSource)
		if err == nil {
			version, err = db.Migrate(*databaseSource, *databaseMigrationsDir)
		}

		if err != nil {
			logger.Log("stage", "db init", "err", err)
			os.Exit(1)
		}
		dbDriver = db.DriverForScheme(u.Scheme)
		logger.Log("migrations", "success", "driver", dbDriver, "db-version", fmt.Sprintf("%d", version))
	}

	// Instrumentation.
	var (
		httpDuration  metrics.Histogram
		serverMetrics = server.NewMetrics()
		parserMetrics = parser.NewMetrics()
		workerMetrics = jobs.NewWorkerMetrics()
	)
	{
		httpDuration = prometheus.NewSummaryFrom(stdprometheus.SummaryOpts{
			Namespace: "tgwatch",
			Subsystem: "tgwatchd",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
		}, []string{"method", "status_code"})
	}

	// Channel store.
	var channelStore store.Store
	{
		s, err := store.NewSQL(dbDriver, *databaseSource)
		if err != nil {
			logger.Log("component", "store", "err", err)
			os.Exit(1)
		}
		channelStore = store.Instrumented(s)
	}

	// Job store.
	var jobStore jobs.JobStore
	{
		s, err := jobs.NewDatabaseStore(dbDriver, *databaseSource, *jobRetention)
		if err != nil {
			logger.Log("component", "job store", "err", err)
			os.Exit(1)
		}
		jobStore = jobs.InstrumentedJobStore(s)
	}

	// Telegram session pool.
	var pool *telegram.Pool
	{
		accounts, err := telegram.LoadAccounts(*accountsPath)
		if err != nil {
			logger.Log("component", "telegram", "err", err)
			os.Exit(1)
		}
		pool, err = telegram.NewPoolFromConfig(accounts, telegram.PoolConfig{
			Timeout: *gatewayTimeout,
			RPS:     *gatewayRPS,
			Burst:   *gatewayBurst,
		}, log.With(logger, "component", "telegram"))
		if err != nil {
			logger.Log("component", "telegram", "err", err)
			os.Exit(1)
		}
		logger.Log("component", "telegram", "sessions", len(accounts.Accounts))
	}

	// Channel parser.
	channelParser := parser.New(pool, parserMetrics, log.With(logger, "component", "parser"))

	// Channel info cache.
	var cacheClient cache.Client
	{
		switch {
		case len(*memcachedAddresses) > 0:
			cacheClient = cache.NewFixedServerMemcacheClient(cache.MemcacheConfig{
				Timeout: *memcachedTimeout,
				Logger:  log.With(logger, "component", "memcached"),
			}, *memcachedAddresses...)
			cacheClient = cache.InstrumentMemcacheClient(cacheClient)
			defer cacheClient.Stop()
			logger.Log("cache", "memcached", "addresses", fmt.Sprint(*memcachedAddresses))
		case *memcachedHostname != "":
			cacheClient = cache.NewMemcacheClient(cache.MemcacheConfig{
				Host:           *memcachedHostname,
				Service:        *memcachedService,
				Timeout:        *memcachedTimeout,
				UpdateInterval: 1 * time.Minute,
				Logger:         log.With(logger, "component", "memcached"),
			})
			cacheClient = cache.InstrumentMemcacheClient(cacheClient)
			defer cacheClient.Stop()
			logger.Log("cache", "memcached", "host", *memcachedHostname)
		default:
			logger.Log("cache", "disabled")
		}
	}

	// Job workers.
	{
		worker := jobs.NewWorker(jobStore, workerMetrics, log.With(logger, "component", "worker"), []string{jobs.DefaultQueue})
		worker.Register(jobs.ParseChannelJob, &server.ParseJobHandler{
			Parser: channelParser,
			Store:  channelStore,
			Logger: log.With(logger, "component", "parse-job"),
		})
		worker.Register(jobs.RefreshChannelsJob, &server.RefreshJobHandler{
			Store:  channelStore,
			Logger: log.With(logger, "component", "refresh-job"),
		})
		go worker.Work()
		defer worker.Stop(5 * time.Second)

		cleaner := jobs.NewCleaner(jobStore, log.With(logger, "component", "cleaner"))
		cleanTicker := time.NewTicker(15 * time.Second)
		defer cleanTicker.Stop()
		go cleaner.Clean(cleanTicker.C)
	}

	// Periodic refresh of every tracked channel.
	{
		if *refreshInterval > 0 {
			refresher := refresh.New(jobStore, log.With(logger, "component", "refresh"))
			refreshTicker := time.NewTicker(*refreshInterval)
			defer refreshTicker.Stop()
			go refresher.Run(refreshTicker.C)
		} else {
			logger.Log("refresh", "disabled")
		}
	}

	// The server.
	apiServer := server.New(channelParser, channelStore, jobStore, cacheClient, logger, serverMetrics, version)

	// Mechanical components.
	errc := make(chan error)
	go func() {
		c := make(chan os.Signal)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-c)
	}()

	// HTTP transport component.
	go func() {
		logger.Log("addr", *listenAddr)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.Handle("/", transport.NewHandler(apiServer, transport.NewRouter(), logger, httpDuration))
		errc <- http.ListenAndServe(*listenAddr, mux)
	}()

	// Go!
	logger.Log("exit", <-errc)
}
