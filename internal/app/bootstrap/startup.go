// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"

	focusstore "github.com/dalemusser/focushub/internal/app/store/focus"
	notifylogstore "github.com/dalemusser/focushub/internal/app/store/notifylog"
	prefstore "github.com/dalemusser/focushub/internal/app/store/preferences"
	"github.com/dalemusser/focushub/internal/app/store/queries/alertqueries"
	"github.com/dalemusser/focushub/internal/app/store/queries/digestqueries"
	tasknotifystore "github.com/dalemusser/focushub/internal/app/store/tasknotify"
	taskstore "github.com/dalemusser/focushub/internal/app/store/tasks"
	teamstore "github.com/dalemusser/focushub/internal/app/store/teams"
	userstore "github.com/dalemusser/focushub/internal/app/store/users"
	"github.com/dalemusser/focushub/internal/app/system/deadlines"
	"github.com/dalemusser/focushub/internal/app/system/digest"
	"github.com/dalemusser/focushub/internal/app/system/dispatch"
	"github.com/dalemusser/focushub/internal/app/system/messenger"
	"github.com/dalemusser/focushub/internal/app/system/ratelimit"
	"github.com/dalemusser/focushub/internal/app/system/tasks"
	"github.com/dalemusser/focushub/internal/app/system/timeouts"
	"github.com/dalemusser/focushub/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// services is everything built once at startup and shared by the handler
// and the background runner.
type services struct {
	Users   *userstore.Store
	Focus   *focusstore.Store
	Tasks   *taskstore.Store
	Teams   *teamstore.Store
	Prefs   *prefstore.Store
	Logs    *notifylogstore.Store
	Builder *digest.Builder
	Sender  messenger.Sender

	Digest    *dispatch.Engine
	Deadlines *deadlines.Notifier

	Limiter *ratelimit.Limiter
	Runner  *workers.Runner

	// CronSecret is empty when cycles must not run, which hides /cron.
	CronSecret string
}

// svc is set by Startup and read by BuildHandler and Shutdown.
var svc *services

// newServices wires stores, engines and the job runner. It starts nothing.
func newServices(appCfg AppConfig, deps DBDeps, logger *zap.Logger) *services {
	db := deps.MongoDatabase
	s := &services{
		Users:   userstore.New(db),
		Focus:   focusstore.New(db),
		Tasks:   taskstore.New(db, logger),
		Teams:   teamstore.New(db, logger),
		Prefs:   prefstore.New(db),
		Logs:    notifylogstore.New(db),
		Builder: digest.NewBuilder(digestqueries.New(db)),
	}

	// Cycles record sends as delivered, so with the log sender they only run
	// under dev bypass.
	cycles := true
	if appCfg.TelegramBotToken != "" {
		s.Sender = messenger.NewTelegram(appCfg.TelegramAPIBase, appCfg.TelegramBotToken, nil, logger)
	} else {
		s.Sender = messenger.LogSender{Log: logger}
		cycles = appCfg.AuthDevBypass
		if !cycles {
			logger.Warn("no bot token outside dev bypass; digest and deadline cycles disabled")
		}
	}
	if cycles {
		s.CronSecret = appCfg.CronSecret
	}

	s.Digest = &dispatch.Engine{
		Prefs:       s.Prefs,
		Users:       s.Users,
		Builder:     s.Builder,
		Sender:      s.Sender,
		Log:         s.Logs,
		Logger:      logger.Named("dispatch"),
		Concurrency: appCfg.DispatchConcurrency,
		Lease:       appCfg.DispatchLease,
	}
	s.Deadlines = &deadlines.Notifier{
		Candidates:  alertqueries.New(db),
		Flags:       tasknotifystore.New(db),
		Teams:       s.Teams,
		Users:       s.Users,
		Offsets:     s.Prefs,
		Sender:      s.Sender,
		Log:         s.Logs,
		Logger:      logger.Named("deadlines"),
		Window:      appCfg.DueSoonWindow,
		Concurrency: appCfg.DispatchConcurrency,
		Lease:       appCfg.DispatchLease,
	}

	if appCfg.APIRateLimit > 0 {
		s.Limiter = ratelimit.New(appCfg.APIRateLimit, appCfg.APIRateWindow)
	}

	var jobs []tasks.Job
	if cycles {
		jobs = append(jobs,
			tasks.DigestJob(s.Digest, logger, appCfg.DigestJobInterval),
			tasks.DeadlineJob(s.Deadlines, logger, appCfg.DeadlineJobInterval),
		)
	}
	if appCfg.NotificationLogRetention > 0 {
		jobs = append(jobs, tasks.LogRetentionJob(s.Logs, logger, appCfg.NotificationLogRetention))
	}
	s.Runner = workers.NewRunner(logger.Named("jobs"), timeouts.Cycle, jobs...)

	return s
}

// Startup runs after DB connections and schema setup are complete, but
// before the HTTP handler is built. It wires the services and starts the
// in-process job runner.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	svc = newServices(appCfg, deps, logger)
	svc.Runner.Start()

	logger.Info("focushub started",
		zap.Bool("telegram", appCfg.TelegramBotToken != ""),
		zap.Bool("cron_endpoints", svc.CronSecret != ""),
		zap.Int("background_jobs", svc.Runner.Len()),
		zap.Duration("digest_interval", appCfg.DigestJobInterval),
		zap.Duration("deadline_interval", appCfg.DeadlineJobInterval))
	return nil
}
