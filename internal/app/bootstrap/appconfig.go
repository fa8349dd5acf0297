// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig covers the
// framework side: ports, TLS, logging, CORS and request limits.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Telegram
	TelegramBotToken      string // signs mini-app init data and authenticates sendMessage
	TelegramAPIBase       string // Bot API base URL; blank uses the public endpoint
	TelegramWebhookSecret string // expected X-Telegram-Bot-Api-Secret-Token (blank = unchecked)

	// Authentication
	AuthDevBypass bool
	AuthDevUserID int64
	AuthMaxAge    time.Duration // 0 disables the auth_date age check
	APIRateLimit  int           // rejected attempts per client IP per window (0 = unlimited)
	APIRateWindow time.Duration

	// Triggers
	CronSecret          string        // guards /cron/*; blank hides the endpoints
	DigestJobInterval   time.Duration // 0 = external trigger only
	DeadlineJobInterval time.Duration // 0 = external trigger only

	// Cycles
	DispatchConcurrency int
	DispatchBudget      time.Duration
	DispatchLease       time.Duration
	DueSoonWindow       time.Duration

	// Notification log retention (0 keeps entries forever)
	NotificationLogRetention time.Duration

	// Mini-app bundle directory served under /app
	StaticDir string
}
