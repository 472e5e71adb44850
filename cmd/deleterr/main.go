package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/deleterr/deleterr/internal/api"
	"github.com/deleterr/deleterr/internal/arr"
	"github.com/deleterr/deleterr/internal/cleaner"
	"github.com/deleterr/deleterr/internal/config"
	"github.com/deleterr/deleterr/internal/lists/justwatch"
	"github.com/deleterr/deleterr/internal/lists/mdblist"
	"github.com/deleterr/deleterr/internal/lists/trakt"
	"github.com/deleterr/deleterr/internal/logger"
	"github.com/deleterr/deleterr/internal/notification"
	"github.com/deleterr/deleterr/internal/plex"
	"github.com/deleterr/deleterr/internal/rules"
	"github.com/deleterr/deleterr/internal/scheduler"
	"github.com/deleterr/deleterr/internal/scheduler/tasks"
	"github.com/deleterr/deleterr/internal/seerr"
	"github.com/deleterr/deleterr/internal/startup"
	"github.com/deleterr/deleterr/internal/tautulli"
)

type options struct {
	configPath  string
	runOnce     bool
	scheduler   bool
	printConfig bool
	dryRun      bool
	jwProviders bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "Path to settings file")
	flag.BoolVar(&opts.runOnce, "run-once", false, "Run one cleanup pass and exit, ignoring the scheduler settings")
	flag.BoolVar(&opts.scheduler, "scheduler", false, "Keep running and clean up on the configured schedule")
	flag.BoolVar(&opts.printConfig, "print-config", false, "Print the effective configuration with secrets redacted and exit")
	flag.BoolVar(&opts.dryRun, "dry-run", false, "Log what would be deleted without deleting anything")
	flag.BoolVar(&opts.jwProviders, "jw-providers", false, "Print the JustWatch provider names usable in available_on and exit")
	flag.Parse()

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "deleterr: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.dryRun {
		cfg.DryRun = true
	}

	if opts.printConfig {
		out, err := cfg.Dump()
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(out)
		return err
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	recent := logger.NewRecent(0)
	log := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Path:       cfg.Logging.Path,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	}, recent)
	defer log.Close()

	log.Info().
		Str("version", config.Version).
		Bool("dryRun", cfg.DryRun).
		Int("libraries", len(cfg.Libraries)).
		Msg("starting deleterr")
	if cfg.DryRun {
		log.Warn().Msg("Dry run enabled, nothing will be deleted")
	}

	if opts.jwProviders {
		return printProviders(cfg, log.Logger)
	}

	unlock, err := acquireLock(cfg.LockFile)
	if err != nil {
		return err
	}
	defer unlock()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpClient := newHTTPClient(cfg.SSLVerify)
	app := wire(cfg, httpClient, log.Logger)

	if err := startup.VerifyConnections(ctx, app.checks, startup.DefaultRetryConfig(), log.Logger); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	useScheduler := !opts.runOnce && (opts.scheduler || cfg.Scheduler.Enabled)
	if !useScheduler {
		summary, err := app.runner.Run(ctx)
		if err != nil {
			return err
		}
		if summary.Failed() {
			return errors.New("one or more libraries failed, see the log for details")
		}
		return nil
	}

	return serve(ctx, cfg, app, recent, log.Logger)
}

// serve runs the scheduler and the optional status server until ctx is done.
func serve(ctx context.Context, cfg *config.Config, app *application, recent *logger.Recent, log zerolog.Logger) error {
	sched, err := scheduler.New(cfg.Scheduler, log)
	if err != nil {
		return err
	}
	if err := tasks.RegisterCleanupTask(sched, cfg.Scheduler, app.runner, log); err != nil {
		return err
	}
	if err := sched.Start(); err != nil {
		return err
	}

	var server *api.Server
	serverErr := make(chan error, 1)
	if cfg.StatusServer.Enabled {
		server = api.NewServer(api.Deps{
			Runner:    app.runner,
			Scheduler: sched,
			Logs:      recent,
			DryRun:    cfg.DryRun,
			Version:   config.Version,
		}, log)
		go func() { serverErr <- server.Start(cfg.StatusServer.Address()) }()
	}

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutdown requested")
	case err = <-serverErr:
		if err != nil {
			log.Error().Err(err).Msg("Status server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if server != nil {
		if serr := server.Shutdown(shutdownCtx); serr != nil {
			log.Warn().Err(serr).Msg("Failed to stop status server")
		}
	}
	if serr := sched.Stop(); serr != nil {
		log.Warn().Err(serr).Msg("Failed to stop scheduler")
	}
	return err
}

type application struct {
	runner *cleaner.Runner
	checks []startup.Check
}

// wire builds the clients described by cfg and connects them to the runner.
func wire(cfg *config.Config, httpClient *http.Client, log zerolog.Logger) *application {
	app := &application{}

	plexClient := plex.NewClient(cfg.Plex.URL, cfg.Plex.Token, httpClient, log)
	tautulliClient := tautulli.NewClient(cfg.Tautulli.URL, cfg.Tautulli.APIKey, httpClient, log)
	app.checks = append(app.checks,
		startup.Check{Name: "plex", Ping: plexClient.Ping},
		startup.Check{Name: "tautulli", Ping: tautulliClient.Ping},
	)

	var instances []cleaner.ArrClient
	for _, kind := range []arr.Kind{arr.KindRadarr, arr.KindSonarr} {
		for _, ic := range cfg.Instances(string(kind)) {
			client := arr.New(kind, arr.Settings{Name: ic.Name, URL: ic.URL, APIKey: ic.APIKey}, httpClient, log)
			instances = append(instances, client)
			app.checks = append(app.checks, startup.Check{Name: string(kind) + ":" + ic.Name, Ping: client.Ping})
		}
	}

	c := cleaner.New(cfg, plexClient, tautulliClient, log)
	runner := cleaner.NewRunner(cfg, c, instances, log)

	if cfg.Trakt.Configured() {
		traktClient := trakt.NewClient(cfg.Trakt.ClientID, cfg.Trakt.ClientSecret, httpClient, log)
		c.SetTrakt(traktClient)
		app.checks = append(app.checks, startup.Check{Name: "trakt", Ping: traktClient.Ping})
	}
	if cfg.MDBList.APIKey != "" {
		c.SetMDBList(mdblist.NewClient(cfg.MDBList.APIKey, httpClient, log))
	}
	if usesJustWatch(cfg) {
		jw := justwatch.NewClient(cfg.JustWatch.Country, cfg.JustWatch.Language, httpClient, log)
		c.SetJustWatch(func(country, language string) rules.Availability {
			return jw.Locale(country, language)
		})
		runner.AddResetter(jw)
	}
	if cfg.Seerr.Configured() {
		seerrClient := seerr.NewClient(cfg.Seerr.URL, cfg.Seerr.APIKey, httpClient, log)
		c.SetSeerr(seerrClient)
		runner.AddResetter(seerrClient)
		app.checks = append(app.checks, startup.Check{Name: "seerr", Ping: seerrClient.Ping})
	}

	notifier := notification.NewService(cfg.Notifications, httpClient, log)
	if notifier.Enabled() {
		runner.SetNotifier(notifier)
	}

	app.runner = runner
	return app
}

func usesJustWatch(cfg *config.Config) bool {
	for _, lib := range cfg.Libraries {
		if lib.Exclude.JustWatch.Enabled() {
			return true
		}
	}
	return false
}

func newHTTPClient(sslVerify bool) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !sslVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // self-signed certificates on home servers
	}
	return &http.Client{
		Transport: transport,
		Timeout:   2 * time.Minute,
	}
}

func printProviders(cfg *config.Config, log zerolog.Logger) error {
	country := cfg.JustWatch.Country
	if country == "" {
		country = "US"
	}
	jw := justwatch.NewClient(country, cfg.JustWatch.Language, newHTTPClient(cfg.SSLVerify), log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := jw.Providers(ctx, justwatch.ProviderSamples)
	if err != nil {
		return fmt.Errorf("failed to gather JustWatch providers: %w", err)
	}
	for _, p := range providers {
		fmt.Println(p)
	}
	log.Info().Int("providers", len(providers)).Str("country", country).Msg("Gathered JustWatch providers")
	return nil
}
