// internal/app/bootstrap/routes.go
package bootstrap

import (
	"errors"
	"net/http"

	cronfeature "github.com/dalemusser/focushub/internal/app/features/cron"
	errorsfeature "github.com/dalemusser/focushub/internal/app/features/errors"
	focusfeature "github.com/dalemusser/focushub/internal/app/features/focus"
	healthfeature "github.com/dalemusser/focushub/internal/app/features/health"
	mefeature "github.com/dalemusser/focushub/internal/app/features/me"
	notificationsfeature "github.com/dalemusser/focushub/internal/app/features/notifications"
	tasksfeature "github.com/dalemusser/focushub/internal/app/features/tasks"
	teamsfeature "github.com/dalemusser/focushub/internal/app/features/teams"
	telegramfeature "github.com/dalemusser/focushub/internal/app/features/telegram"
	"github.com/dalemusser/focushub/internal/app/system/auth"
	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/pantry/fileserver"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup and
// Startup have completed. Everything under /api authenticates with the
// mini-app's signed init data; /cron and /telegram check their own secrets.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	if svc == nil {
		return nil, errors.New("BuildHandler called before Startup")
	}
	return newRouter(appCfg, deps, svc, logger), nil
}

func newRouter(appCfg AppConfig, deps DBDeps, s *services, logger *zap.Logger) chi.Router {
	errLog := errorsfeature.NewErrorLogger(logger)

	mw := auth.NewMiddleware(auth.Config{
		BotToken:  appCfg.TelegramBotToken,
		MaxAge:    appCfg.AuthMaxAge,
		DevBypass: appCfg.AuthDevBypass,
		DevUserID: appCfg.AuthDevUserID,
	}, s.Users, s.Limiter, logger)

	r := chi.NewRouter()

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Mini-app bundle with pre-compressed file support (gzip/brotli)
	r.Handle("/app/*", fileserver.Handler("/app", appCfg.StaticDir))

	// JSON API
	r.Route("/api", func(api chi.Router) {
		meHandler := mefeature.NewHandler(s.Users, errLog, logger)
		api.Mount("/me", mefeature.Routes(meHandler, mw))

		focusHandler := focusfeature.NewHandler(s.Focus, errLog, logger)
		api.Mount("/focus", focusfeature.Routes(focusHandler, mw))

		tasksHandler := tasksfeature.NewHandler(s.Tasks, s.Teams, errLog, logger)
		api.Mount("/tasks", tasksfeature.Routes(tasksHandler, mw))

		teamsHandler := teamsfeature.NewHandler(s.Teams, s.Tasks, s.Users, errLog, logger)
		api.Mount("/teams", teamsfeature.Routes(teamsHandler, mw))

		notifHandler := notificationsfeature.NewHandler(s.Prefs, s.Logs, s.Builder, s.Digest, errLog, logger)
		api.Mount("/notifications", notificationsfeature.Routes(notifHandler, mw))
	})

	// External schedulers
	cronHandler := cronfeature.NewHandler(s.Digest, s.Deadlines, s.CronSecret, appCfg.DispatchBudget, logger)
	r.Mount("/cron", cronfeature.Routes(cronHandler))

	// Bot webhook
	tgHandler := telegramfeature.NewHandler(s.Users, s.Prefs, s.Builder, s.Sender, s.Logs, appCfg.TelegramWebhookSecret, logger)
	r.Mount("/telegram", telegramfeature.Routes(tgHandler))

	return r
}
