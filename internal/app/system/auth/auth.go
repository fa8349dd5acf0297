// Package auth authenticates API requests from the mini-app by their signed
// init data and places the resolved user in the request context.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dalemusser/focushub/internal/app/system/apperr"
	"github.com/dalemusser/focushub/internal/app/system/httpjson"
	"github.com/dalemusser/focushub/internal/app/system/initdata"
	"github.com/dalemusser/focushub/internal/app/system/ratelimit"
	"github.com/dalemusser/focushub/internal/app/system/timeouts"
	"github.com/dalemusser/focushub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Request fields that carry init data or the dev override.
const (
	HeaderInitData = "X-Telegram-Init-Data"
	HeaderDevUser  = "X-Dev-User-Id"
	QueryInitData  = "initData"
	QueryDevUser   = "dev_user_id"
	authScheme     = "tma "
)

// User is the authenticated caller.
type User struct {
	ID         primitive.ObjectID `json:"id"`
	TelegramID int64              `json:"telegram_id"`
	Username   string             `json:"username,omitempty"`
}

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// CurrentUser returns the user & “found?” flag.
func CurrentUser(r *http.Request) (*User, bool) {
	u, ok := r.Context().Value(currentUserKey).(*User)
	return u, ok
}

// WithTestUser places u in the request context. Intended for tests.
func WithTestUser(r *http.Request, u *User) *http.Request {
	return withUser(r, u)
}

func withUser(r *http.Request, u *User) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentUserKey, u))
}

// Resolver maps a platform identity to the stored user, creating it on
// first sight.
type Resolver interface {
	Upsert(ctx context.Context, u models.User) (*models.User, error)
}

// Config controls verification.
type Config struct {
	BotToken string
	// MaxAge rejects payloads whose auth_date is older. Zero disables it.
	MaxAge time.Duration
	// DevBypass accepts requests without init data, taking the platform id
	// from X-Dev-User-Id, dev_user_id or DevUserID. Never enable in prod.
	DevBypass bool
	DevUserID int64
}

// Middleware verifies init data on every request it wraps.
type Middleware struct {
	cfg      Config
	verifier *initdata.Verifier
	users    Resolver
	limiter  *ratelimit.Limiter
	log      *zap.Logger
}

// NewMiddleware builds the middleware. limiter counts rejected attempts per
// client IP; nil disables throttling.
func NewMiddleware(cfg Config, users Resolver, limiter *ratelimit.Limiter, logger *zap.Logger) *Middleware {
	return &Middleware{
		cfg:      cfg,
		verifier: initdata.NewVerifier(cfg.BotToken, cfg.MaxAge),
		users:    users,
		limiter:  limiter,
		log:      logger,
	}
}

var errMissing = fmt.Errorf("%w: no init data", apperr.ErrAuthRejected)

// Require rejects requests that do not authenticate, with 401, or 429
// once the client has been rejected too often.
func (m *Middleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ratelimit.ClientIP(r)
		if m.limiter != nil && m.limiter.Blocked(ip) {
			m.log.Warn("auth throttled", zap.String("ip", ip))
			httpjson.Error(w, http.StatusTooManyRequests, "rate_limited", "Too many failed attempts. Try again later.")
			return
		}

		profile, err := m.principal(r)
		if err != nil {
			if m.limiter != nil {
				m.limiter.Allow(ip)
			}
			m.log.Info("auth rejected",
				zap.String("ip", ip),
				zap.String("path", r.URL.Path),
				zap.Error(err))
			httpjson.Error(w, http.StatusUnauthorized, "auth_rejected", "Authentication failed.")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
		defer cancel()
		stored, err := m.users.Upsert(ctx, profile)
		if err != nil {
			m.log.Error("resolve user failed", zap.Int64("telegram_id", profile.TelegramID), zap.Error(err))
			httpjson.Error(w, http.StatusInternalServerError, "storage_failure", "Could not load your account.")
			return
		}

		next.ServeHTTP(w, withUser(r, &User{
			ID:         stored.ID,
			TelegramID: stored.TelegramID,
			Username:   stored.Username,
		}))
	})
}

// principal returns the platform identity of the request. A present
// payload is always verified, even with the dev bypass on.
func (m *Middleware) principal(r *http.Request) (models.User, error) {
	raw := Payload(r)
	if raw == "" {
		if m.cfg.DevBypass {
			return m.devPrincipal(r)
		}
		return models.User{}, errMissing
	}

	data, err := m.verifier.Verify(raw)
	if err != nil {
		return models.User{}, err
	}
	return models.User{
		TelegramID:   data.User.ID,
		Username:     data.User.Username,
		FirstName:    data.User.FirstName,
		LastName:     data.User.LastName,
		LanguageCode: data.User.LanguageCode,
	}, nil
}

func (m *Middleware) devPrincipal(r *http.Request) (models.User, error) {
	s := strings.TrimSpace(r.Header.Get(HeaderDevUser))
	if s == "" {
		s = query.Get(r, QueryDevUser)
	}
	id := m.cfg.DevUserID
	if s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n <= 0 {
			return models.User{}, fmt.Errorf("%w: bad dev user id", apperr.ErrAuthRejected)
		}
		id = n
	}
	if id <= 0 {
		return models.User{}, errors.Join(errMissing, errors.New("no dev user configured"))
	}
	return models.User{TelegramID: id, Username: "dev" + strconv.FormatInt(id, 10)}, nil
}

// Payload extracts raw init data from the header, the tma authorization
// scheme or the initData query parameter, in that order.
func Payload(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get(HeaderInitData)); v != "" {
		return v
	}
	if v := r.Header.Get("Authorization"); len(v) > len(authScheme) && strings.EqualFold(v[:len(authScheme)], authScheme) {
		return strings.TrimSpace(v[len(authScheme):])
	}
	return query.Get(r, QueryInitData)
}
