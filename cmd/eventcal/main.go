package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"eventcal/internal/calendar"
	"eventcal/internal/capture"
	"eventcal/internal/category"
	"eventcal/internal/config"
	"eventcal/internal/form"
	"eventcal/internal/grid"
	"eventcal/internal/holiday"
	appLog "eventcal/internal/log"
	"eventcal/internal/media"
	"eventcal/internal/mirror"
	"eventcal/internal/model"
	"eventcal/internal/store"
	"eventcal/internal/theme"
	"eventcal/internal/tui"
	"eventcal/internal/web"
)

type flagConfig struct {
	configPath string
	listen     string
	tui        bool
	snapshot   string
	chromePath string
}

// app holds the wired services shared by every run mode.
type app struct {
	cfg      *config.Config
	store    *store.SQLite
	agg      *calendar.Aggregator
	server   *web.Server
	schedule *cron.Cron
}

func main() {
	os.Exit(run(parseFlags()))
}

// run returns the process exit code so deferred cleanup happens first.
func run(flags flagConfig) int {
	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		return 1
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	appLog.Info("eventcal starting",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"week_start", conf.WeekStart,
		"tag_selection", conf.TagSelection,
		"database", conf.Database,
		"mirror", conf.MirrorPath,
		"basic_auth", conf.BasicAuth != nil,
		"tui", flags.tui,
		"snapshot", flags.snapshot,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := build(ctx, conf)
	if err != nil {
		appLog.Error("startup failed", err)
		return 1
	}
	defer a.store.Close()

	a.schedule.Start()
	defer func() { <-a.schedule.Stop().Done() }()

	switch {
	case flags.tui:
		err = runTUI(ctx, a)
	case flags.snapshot != "":
		err = runSnapshot(ctx, a, flags.snapshot, flags.chromePath)
	default:
		err = a.server.Serve(ctx)
	}
	if err != nil {
		appLog.Error("eventcal stopped with error", err)
		return 1
	}
	appLog.Info("eventcal exiting")
	return 0
}

func build(ctx context.Context, conf *config.Config) (*app, error) {
	loc := conf.Location()

	st, err := store.OpenSQLite(conf.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	bucket, err := media.NewDir(conf.MediaDir, conf.MediaURLPrefix)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("open media dir: %w", err)
	}

	var source holiday.Source = holiday.DirSource{Dir: conf.HolidayDir}
	if conf.HolidayURL != "" {
		source = holiday.NewURLSource(conf.HolidayURL, conf.HolidayCacheDir)
	}
	holidays := holiday.NewLoader(source, conf.RecurringHolidays)

	seeds := make([]model.Category, 0, len(conf.SeedCategories))
	for _, c := range conf.SeedCategories {
		seeds = append(seeds, model.Category{Name: c.Name, Color: c.Color})
	}
	categories := category.NewService(st, seeds)
	if err := categories.Seed(ctx); err != nil {
		// The creation page seeds again on every load.
		appLog.Warn("seeding categories failed", "err", err)
	}

	agg := calendar.New(calendar.Options{
		Store:    st,
		Holidays: holidays,
		Mirror:   mirror.NewFile(conf.MirrorPath),
		Bucket:   bucket,
		Location: loc,
		Wait:     conf.ClientWait,
		Poll:     conf.ClientPoll,
	})
	applier := theme.NewApplier(loc)

	server, err := web.NewServer(web.Deps{
		Config:     conf,
		Store:      st,
		Categories: categories,
		Forms:      form.NewService(st, bucket, loc, conf.MultiSelect()),
		Calendar:   agg,
		Theme:      applier,
		Bucket:     bucket,
		Media:      bucket.FS(),
	})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("build web server: %w", err)
	}

	c := cron.New(cron.WithLocation(loc))
	if _, err := applier.Schedule(c); err != nil {
		st.Close()
		return nil, fmt.Errorf("schedule theme: %w", err)
	}
	if _, err := mirror.Schedule(c, conf.MirrorRefresh, func() {
		refreshCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		agg.RefreshMirror(refreshCtx)
	}); err != nil {
		st.Close()
		return nil, fmt.Errorf("schedule mirror refresh: %w", err)
	}

	return &app{
		cfg:      conf,
		store:    st,
		agg:      agg,
		server:   server,
		schedule: c,
	}, nil
}

func weekStart(conf *config.Config) grid.WeekStart {
	if conf.SundayStart() {
		return grid.Sunday
	}
	return grid.Monday
}

const tuiLogPath = "eventcal-tui.log"

func runTUI(ctx context.Context, a *app) error {
	// The TUI owns the terminal; keep the log out of it.
	f, err := os.OpenFile(tuiLogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open tui log: %w", err)
	}
	appLog.SetOutput(f)
	defer func() {
		appLog.SetOutput(os.Stderr)
		f.Close()
	}()

	m := tui.New(a.agg, weekStart(a.cfg), a.cfg.Location(), time.Now())
	return tui.Run(ctx, m)
}

// runSnapshot serves the UI just long enough to capture the current month.
func runSnapshot(ctx context.Context, a *app, out, chromePath string) error {
	srvCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	serveErr := make(chan error, 1)
	go func() { serveErr <- a.server.Serve(srvCtx) }()

	base := "http://" + a.cfg.Listen
	if err := waitHealthy(srvCtx, base+"/health", serveErr); err != nil {
		return err
	}

	m := a.agg.CurrentMonth()
	opts := capture.Options{
		URL:        base + grid.MonthURL(m),
		OutputPath: out,
		ExecPath:   chromePath,
	}
	if a.cfg.BasicAuth != nil {
		opts.Username = a.cfg.BasicAuth.Username
		opts.Password = a.cfg.BasicAuth.Password
	}
	if err := capture.CaptureCalendarPNG(srvCtx, opts); err != nil {
		return err
	}
	appLog.Info("snapshot written", "path", out, "month", m.Key())

	cancel()
	return <-serveErr
}

func waitHealthy(ctx context.Context, url string, serveErr <-chan error) error {
	client := &http.Client{Timeout: time.Second}
	deadline := time.NewTimer(10 * time.Second)
	defer deadline.Stop()
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		if resp, err := client.Do(req); err == nil {
			resp.Body.Close()
			// 503 still means the server is up; the page shows the
			// degraded notice.
			return nil
		}
		select {
		case err := <-serveErr:
			if err == nil {
				err = errors.New("server stopped before becoming healthy")
			}
			return err
		case <-deadline.C:
			return errors.New("server did not become reachable")
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
	}
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.tui, "tui", false, "Browse the calendar in the terminal instead of serving HTTP")
	flag.StringVar(&cfg.snapshot, "snapshot", "", "Write a PNG of the current month to this path and exit")
	flag.StringVar(&cfg.chromePath, "chrome", "", "Chromium binary for -snapshot (default: auto-detect)")

	flag.Parse()

	return cfg
}
