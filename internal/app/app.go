package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"chorebot/internal/chore"
	"chorebot/internal/config"
	"chorebot/internal/httpapi"
	"chorebot/internal/jobs"
	"chorebot/internal/notifier"
	"chorebot/internal/notion"
	rtsup "chorebot/internal/runtime/supervisor"
	"chorebot/internal/schedule"
	"chorebot/internal/storage"
	"chorebot/internal/task/scheduler"
	kit "chorebot/internal/transport"
	telegram "chorebot/internal/transport/telegram/adapter"
	"chorebot/internal/transport/telegram/router"
	logx "chorebot/pkg/logx"
)

const (
	jobRefresh = "refresh"
	jobDigest  = "digest"
)

type App struct {
	cfgPath string

	cfgm *config.ConfigManager
	sup  *rtsup.Supervisor

	log  logx.Logger
	logs *logx.Service

	store   storage.HistoryStore
	adapter *telegram.Adapter // nil when telegram is disabled
	router  *router.Router
	notif   *notifier.Service

	engine    *schedule.Engine
	refresher *jobs.Refresher
	digest    *jobs.Digest
	sched     *scheduler.Service
	http      *httpapi.Server
}

// New loads the config and builds every component. Nothing runs until Start.
func New(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	// Chat forwarding needs the notifier, which needs the logger; start with
	// it off and enable it once the sink is installed.
	bootLogCfg := mapLoggingConfig(cfg)
	bootLogCfg.Chat.Enabled = false
	logSvc, log := logx.New(bootLogCfg, nil)
	root := log
	log = log.With(logx.String("comp", "app"))

	loc, err := time.LoadLocation(timezone(cfg))
	if err != nil {
		return nil, fmt.Errorf("scheduler.timezone: %w", err)
	}

	store, err := storage.Open(mapStorageConfig(cfg), root.With(logx.String("comp", "storage")))
	switch {
	case errors.Is(err, storage.ErrDisabled):
		log.Warn("storage disabled; history is kept in memory only")
		store = storage.NewMemory()
	case err != nil:
		return nil, fmt.Errorf("open storage: %w", err)
	default:
		log.Info("storage enabled", logx.String("driver", cfg.Storage.Driver))
	}

	var (
		ad     *telegram.Adapter
		sender kit.Sender
	)
	if cfg.Telegram.Enabled {
		ad, err = telegram.New(telegram.Config{
			Token:       cfg.Telegram.Token,
			PollTimeout: pollTimeout(cfg),
		}, root.With(logx.String("comp", "telegram")))
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("telegram: %w", err)
		}
		sender = ad
	}

	notif := notifier.New(mapNotifierConfig(cfg), sender, chatTarget(cfg), root.With(logx.String("comp", "notifier")))
	logSvc.SetSink(notif)
	logSvc.Apply(mapLoggingConfig(cfg))

	engine := schedule.New(chore.NewRuleStore(), store, notif,
		engineOptions(cfg, loc, root.With(logx.String("comp", "schedule")))...)

	nc, err := notion.New(mapNotionConfig(cfg), root.With(logx.String("comp", "notion")))
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	refresher := jobs.NewRefresher(engine, nc, root.With(logx.String("comp", "refresh")))
	digest := jobs.NewDigest(engine, notif, mapDigestConfig(cfg), root.With(logx.String("comp", "digest")))

	sched := scheduler.New(mapSchedulerConfig(cfg), root.With(logx.String("comp", "scheduler")))

	rt := router.New(root.With(logx.String("comp", "commands")), commandTimeout(cfg))
	rt.SetAllowedChats(allowedChats(cfg))

	deps := httpapi.Deps{Engine: engine, Refresher: refresher}
	if cfg.Telegram.Enabled {
		deps.Messenger = notif
	}
	srv := httpapi.New(mapHTTPConfig(cfg), deps, root.With(logx.String("comp", "http")))

	a := &App{
		cfgPath:   cfgPath,
		cfgm:      cfgm,
		log:       log,
		logs:      logSvc,
		store:     store,
		adapter:   ad,
		router:    rt,
		notif:     notif,
		engine:    engine,
		refresher: refresher,
		digest:    digest,
		sched:     sched,
		http:      srv,
	}
	rt.Register(chatCommands(engine, refresher, a.runtimeStatus())...)
	return a, nil
}

// Engine exposes the schedule engine.
func (a *App) Engine() *schedule.Engine { return a.engine }

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.NewSupervisor(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	cfg := a.cfgm.Get()

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(c context.Context, cfg *config.Config) error {
		if _, err := scheduler.ParseSchedule(refreshSpec(cfg)); err != nil {
			return fmt.Errorf("scheduler.refresh: %w", err)
		}
		if _, err := scheduler.ParseSchedule(digestSpec(cfg)); err != nil {
			return fmt.Errorf("scheduler.digest: %w", err)
		}
		return nil
	})

	if err := a.registerJobs(cfg); err != nil {
		return err
	}

	if cfg.Scheduler.SkipStartupRefresh {
		a.log.Info("startup refresh skipped")
	} else if _, err := a.refresher.Run(a.sup.Context()); err != nil {
		// The API still serves; the next scheduled refresh retries.
		a.log.Warn("startup refresh failed", logx.Err(err))
	}

	if a.sched.Enabled() {
		a.sched.Start(a.sup.Context())
	}

	if a.adapter != nil {
		a.adapter.SetDispatcher(a.router)
		if err := a.adapter.Start(a.sup.Context()); err != nil {
			return err
		}
		menuCtx, cancel := context.WithTimeout(a.sup.Context(), 10*time.Second)
		if err := a.adapter.UpdateMenuCommands(menuCtx, a.router.Menu()); err != nil {
			a.log.Warn("bot menu update failed", logx.Err(err))
		}
		cancel()
	}

	if cfg.HTTP.Enabled {
		a.http.Start(a.sup.Context())
	}

	// hot reload config fan-out
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config in the channel.
				for drained := false; !drained; {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						drained = true
					}
				}
				a.applyConfig(c, lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	if every := watchdogInterval(); every > 0 {
		a.sup.Go0("systemd.watchdog", func(c context.Context) { runWatchdog(c, every, a.log) })
	}
	sdNotify(a.log, daemon.SdNotifyReady)

	a.log.Info("app started",
		logx.String("tz", a.engine.Location().String()),
		logx.Bool("telegram", a.adapter != nil),
		logx.Bool("http", cfg.HTTP.Enabled),
	)
	return nil
}

// registerJobs (re)installs the refresh and digest triggers for cfg. Adding
// a job under an existing name replaces it.
func (a *App) registerJobs(cfg *config.Config) error {
	timeout := config.DurationOr(cfg.Scheduler.DefaultTimeout, 2*time.Minute)

	if err := a.sched.AddSchedule(jobRefresh, refreshSpec(cfg), timeout, a.refresher.Job()); err != nil {
		return fmt.Errorf("scheduler.refresh: %w", err)
	}

	a.sched.Remove(jobDigest)
	if !cfg.Digest.Enabled {
		return nil
	}
	if err := a.sched.AddSchedule(jobDigest, digestSpec(cfg), timeout, a.digest.Job()); err != nil {
		return fmt.Errorf("scheduler.digest: %w", err)
	}
	return nil
}

func (a *App) applyConfig(ctx context.Context, oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	if restart := config.RequiresRestart(oldCfg, newCfg); len(restart) > 0 {
		a.log.Warn("config changes need a restart to take effect", logx.Strings("sections", restart))
	}

	a.logs.Apply(mapLoggingConfig(newCfg))
	a.notif.Apply(mapNotifierConfig(newCfg), chatTarget(newCfg))
	a.router.SetAllowedChats(allowedChats(newCfg))
	a.digest.SetConfig(mapDigestConfig(newCfg))

	prevSchedEnabled := a.sched.Enabled()
	a.sched.Apply(mapSchedulerConfig(newCfg))
	if oldCfg.Scheduler != newCfg.Scheduler || oldCfg.Digest.Enabled != newCfg.Digest.Enabled {
		if err := a.registerJobs(newCfg); err != nil {
			a.log.Warn("job schedules not updated", logx.Err(err))
		}
	}
	switch {
	case prevSchedEnabled && !newCfg.Scheduler.Enabled:
		a.log.Info("scheduler disabled via config")
		stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		a.sched.Stop(stopCtx)
		cancel()
	case !prevSchedEnabled && newCfg.Scheduler.Enabled:
		a.log.Info("scheduler enabled via config")
		a.sched.Start(ctx)
	}

	switch {
	case oldCfg.HTTP.Enabled && !newCfg.HTTP.Enabled:
		stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		a.http.Stop(stopCtx)
		cancel()
	case newCfg.HTTP.Enabled:
		a.http.Reconfigure(ctx, mapHTTPConfig(newCfg))
		a.http.Start(ctx)
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	sdNotify(a.log, daemon.SdNotifyStopping)

	// First, cancel the app run context so background loops start unwinding immediately.
	a.sup.Cancel()

	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		a.log.Debug("stop step begin", logx.String("name", name), logx.Duration("max", max))

		stepCtx := ctx
		if max > 0 {
			// respect the caller's deadline; never extend it
			if dl, ok := ctx.Deadline(); ok {
				if rem := time.Until(dl); rem < max {
					max = max0(rem)
				}
			}
			if max > 0 {
				var cancel context.CancelFunc
				stepCtx, cancel = context.WithTimeout(ctx, max)
				defer cancel()
			}
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			took := time.Since(start)
			if took >= 500*time.Millisecond {
				a.log.Info("stop step end", logx.String("name", name), logx.Duration("took", took))
			} else {
				a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", took))
			}
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Err(stepCtx.Err()),
				logx.Duration("elapsed", time.Since(start)),
			)
			go func() {
				if err := <-done; err != nil {
					a.log.Warn("stop step finished after deadline", logx.String("name", name), logx.Err(err))
				}
			}()
		}
	}

	step("http", 5*time.Second, func(c context.Context) error { a.http.Stop(c); return nil })
	step("scheduler", 5*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("adapter", 2*time.Second, func(c context.Context) error {
		if a.adapter != nil {
			return a.adapter.Stop(c)
		}
		return nil
	})
	step("storage", 1*time.Second, func(c context.Context) error { return a.store.Close() })

	// Finally, wait for supervised goroutines (config watch/reload, watchdog).
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped")
	if a.logs != nil {
		a.logs.Close()
	}
	return nil
}

func max0(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
