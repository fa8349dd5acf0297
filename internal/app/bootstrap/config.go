// internal/app/bootstrap/config.go
package bootstrap

import (
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/focushub/internal/app/system/dispatch"
	"github.com/dalemusser/focushub/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for FocusHub.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, telegram_bot_token, etc.
//   - Environment variables: FOCUSHUB_MONGO_URI, FOCUSHUB_TELEGRAM_BOT_TOKEN, etc.
//   - Command-line flags: --mongo_uri, --telegram_bot_token, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "focushub", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	// Telegram
	{Name: "telegram_bot_token", Default: "", Desc: "Bot token; verifies mini-app init data and sends messages"},
	{Name: "telegram_api_base", Default: "", Desc: "Bot API base URL (blank uses https://api.telegram.org)"},
	{Name: "telegram_webhook_secret", Default: "", Desc: "Secret token expected on webhook calls (blank disables the check)"},

	// Authentication
	{Name: "auth_dev_bypass", Default: false, Desc: "Accept requests without init data (development only)"},
	{Name: "auth_dev_user_id", Default: 0, Desc: "Telegram user id used by the dev bypass when the request names none"},
	{Name: "auth_max_age", Default: "0s", Desc: "Reject init data older than this (0 disables the check)"},
	{Name: "api_rate_limit", Default: 20, Desc: "Rejected auth attempts allowed per client IP per window (0 disables)"},
	{Name: "api_rate_window", Default: "1m", Desc: "Window for api_rate_limit"},

	// Triggers
	{Name: "cron_secret", Default: "", Desc: "Shared secret for /cron endpoints (blank disables them)"},
	{Name: "digest_job_interval", Default: "0s", Desc: "In-process digest cycle interval (0 = external trigger only)"},
	{Name: "deadline_job_interval", Default: "0s", Desc: "In-process deadline cycle interval (0 = external trigger only)"},

	// Cycles
	{Name: "dispatch_concurrency", Default: dispatch.DefaultConcurrency, Desc: "Users or tasks processed in parallel per cycle"},
	{Name: "dispatch_budget", Default: "55s", Desc: "Time budget of one cycle"},
	{Name: "dispatch_lease", Default: "2m", Desc: "How long a claim protects a user or task from an overlapping cycle"},
	{Name: "due_soon_window", Default: "15m", Desc: "How far ahead a task counts as due soon"},

	{Name: "notification_log_retention", Default: "720h", Desc: "Delete notification log entries older than this (0 keeps them)"},

	{Name: "static_dir", Default: "public", Desc: "Directory holding the mini-app bundle served under /app"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig merges .env files, config files,
// FOCUSHUB_* environment variables and flags, with precedence
// flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "FOCUSHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		TelegramBotToken:      appValues.String("telegram_bot_token"),
		TelegramAPIBase:       appValues.String("telegram_api_base"),
		TelegramWebhookSecret: appValues.String("telegram_webhook_secret"),

		AuthDevBypass: appValues.Bool("auth_dev_bypass"),
		AuthDevUserID: int64(appValues.Int("auth_dev_user_id")),
		AuthMaxAge:    appValues.Duration("auth_max_age", 0),
		APIRateLimit:  appValues.Int("api_rate_limit"),
		APIRateWindow: appValues.Duration("api_rate_window", time.Minute),

		CronSecret:          appValues.String("cron_secret"),
		DigestJobInterval:   appValues.Duration("digest_job_interval", 0),
		DeadlineJobInterval: appValues.Duration("deadline_job_interval", 0),

		DispatchConcurrency: appValues.Int("dispatch_concurrency"),
		DispatchBudget:      appValues.Duration("dispatch_budget", timeouts.DefaultCycle),
		DispatchLease:       appValues.Duration("dispatch_lease", dispatch.DefaultLease),
		DueSoonWindow:       appValues.Duration("due_soon_window", 15*time.Minute),

		NotificationLogRetention: appValues.Duration("notification_log_retention", 30*24*time.Hour),

		StaticDir: appValues.String("static_dir"),
	}

	if n := timeouts.ConfigureFromEnv(); n > 0 {
		logger.Info("timeouts overridden from environment", zap.Int("count", n))
	}
	timeouts.Configure(timeouts.Config{Cycle: appCfg.DispatchBudget})

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	if appCfg.AuthDevBypass && coreCfg.Env == "prod" {
		return errors.New("auth_dev_bypass must not be enabled in prod")
	}
	if appCfg.DispatchConcurrency < 0 {
		return fmt.Errorf("dispatch_concurrency must not be negative (got %d)", appCfg.DispatchConcurrency)
	}
	if appCfg.DigestJobInterval < 0 || appCfg.DeadlineJobInterval < 0 {
		return errors.New("job intervals must not be negative")
	}
	if appCfg.TelegramBotToken == "" {
		if !appCfg.AuthDevBypass {
			return errors.New("telegram_bot_token is required unless auth_dev_bypass is enabled")
		}
		logger.Warn("no telegram_bot_token: init data cannot be verified and messages are only logged")
	}

	return nil
}
