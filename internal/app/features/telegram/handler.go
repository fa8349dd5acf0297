package telegram

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/dalemusser/focushub/internal/app/system/httpjson"
	"github.com/dalemusser/focushub/internal/app/system/messenger"
	"github.com/dalemusser/focushub/internal/app/system/timeouts"
	"github.com/dalemusser/focushub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// HeaderSecret is the header the Bot API sets to the webhook secret token.
const HeaderSecret = "X-Telegram-Bot-Api-Secret-Token"

// HelpText answers /start and /help.
const HelpText = "👋 <b>FocusHub</b>\n\n" +
	"Open the app from the menu button to set your daily focus, manage tasks and join teams.\n\n" +
	"/digest - show your digest now\n" +
	"/help - show this message"

// Users resolves a chat sender to a stored user, creating it on first sight.
type Users interface {
	Upsert(ctx context.Context, u models.User) (*models.User, error)
}

// Preferences reads the sender's timezone offset.
type Preferences interface {
	Get(ctx context.Context, userID primitive.ObjectID) (models.NotificationPreference, error)
}

// Builder renders a digest.
type Builder interface {
	Build(ctx context.Context, userID primitive.ObjectID, now time.Time, tzOffsetMinutes int) (string, error)
}

// Log records digest replies.
type Log interface {
	Append(ctx context.Context, entry models.NotificationLog) error
}

// Handler receives Bot API updates. It always acknowledges with 200 once the
// secret matches so the platform does not redeliver; failures are logged.
type Handler struct {
	Users   Users
	Prefs   Preferences
	Builder Builder
	Sender  messenger.Sender
	Logs    Log
	Secret  string
	Log     *zap.Logger

	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

func NewHandler(users Users, prefs Preferences, builder Builder, sender messenger.Sender, logs Log, secret string, logger *zap.Logger) *Handler {
	return &Handler{
		Users:   users,
		Prefs:   prefs,
		Builder: builder,
		Sender:  sender,
		Logs:    logs,
		Secret:  secret,
		Log:     logger,
	}
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

type ack struct {
	OK bool `json:"ok"`
}

// ServeWebhook handles POST /telegram/webhook.
func (h *Handler) ServeWebhook(w http.ResponseWriter, r *http.Request) {
	if h.Secret != "" {
		got := r.Header.Get(HeaderSecret)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.Secret)) != 1 {
			h.Log.Warn("webhook secret mismatch")
			httpjson.Error(w, http.StatusUnauthorized, "auth_rejected", "Authentication failed.")
			return
		}
	}

	var u update
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, httpjson.MaxBody))
	if err := dec.Decode(&u); err != nil {
		h.Log.Warn("webhook: undecodable update", zap.Error(err))
		httpjson.Write(w, http.StatusOK, ack{OK: true})
		return
	}

	if u.Message != nil && u.Message.From != nil && !u.Message.From.IsBot {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), timeouts.Long())
		defer cancel()
		h.handleMessage(ctx, u.UpdateID, *u.Message)
	}
	httpjson.Write(w, http.StatusOK, ack{OK: true})
}

func (h *Handler) handleMessage(ctx context.Context, updateID int64, m message) {
	log := h.Log.With(zap.Int64("update_id", updateID), zap.Int64("telegram_id", m.From.ID))

	user, err := h.Users.Upsert(ctx, models.User{
		TelegramID:   m.From.ID,
		Username:     m.From.Username,
		FirstName:    m.From.FirstName,
		LastName:     m.From.LastName,
		LanguageCode: m.From.LanguageCode,
	})
	if err != nil {
		log.Error("webhook: resolve sender failed", zap.Error(err))
		return
	}

	switch command(m.Text) {
	case "/start", "/help":
		h.reply(ctx, log, m.Chat.ID, HelpText)
	case "/digest":
		h.replyDigest(ctx, log, *user, m.Chat.ID)
	default:
		log.Debug("webhook: message ignored")
	}
}

func (h *Handler) replyDigest(ctx context.Context, log *zap.Logger, user models.User, chatID int64) {
	p, err := h.Prefs.Get(ctx, user.ID)
	if err != nil {
		log.Error("webhook: load preferences failed", zap.Error(err))
		return
	}
	text, err := h.Builder.Build(ctx, user.ID, h.now(), p.TZOffsetMinutes)
	if err != nil {
		log.Error("webhook: build digest failed", zap.Error(err))
		return
	}
	sendErr := h.reply(ctx, log, chatID, text)

	entry := models.NotificationLog{
		UserID:      user.ID,
		Kind:        models.NotificationKindDigest,
		AttemptedAt: h.now(),
		Success:     sendErr == nil,
	}
	if sendErr != nil {
		entry.Error = sendErr.Error()
	}
	if err := h.Logs.Append(ctx, entry); err != nil {
		log.Error("webhook: notification log append failed", zap.Error(err))
	}
}

func (h *Handler) reply(ctx context.Context, log *zap.Logger, chatID int64, text string) error {
	err := h.Sender.Send(ctx, chatID, text)
	if err != nil {
		log.Warn("webhook: reply failed", zap.Error(err))
	}
	return err
}
