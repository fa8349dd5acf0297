package cron

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/focushub/internal/app/system/httpjson"
	"github.com/dalemusser/focushub/internal/app/system/tasks"
	"go.uber.org/zap"
)

// HeaderSecret carries the trigger secret when the caller cannot set
// an Authorization header.
const HeaderSecret = "X-Cron-Secret"

// Handler lets an external scheduler trigger one digest or deadline cycle.
type Handler struct {
	Digest    tasks.DigestCycle
	Deadlines tasks.DeadlineCycle
	Secret    string
	Budget    time.Duration
	Log       *zap.Logger
}

func NewHandler(digest tasks.DigestCycle, deadlines tasks.DeadlineCycle, secret string, budget time.Duration, logger *zap.Logger) *Handler {
	return &Handler{
		Digest:    digest,
		Deadlines: deadlines,
		Secret:    secret,
		Budget:    budget,
		Log:       logger,
	}
}

func presentedSecret(r *http.Request) string {
	if s := r.Header.Get(HeaderSecret); s != "" {
		return s
	}
	const prefix = "bearer "
	authz := r.Header.Get("Authorization")
	if len(authz) > len(prefix) && strings.EqualFold(authz[:len(prefix)], prefix) {
		return strings.TrimSpace(authz[len(prefix):])
	}
	return ""
}

// authorized writes the rejection itself and reports whether to continue.
// Triggers are hidden entirely when no secret is configured.
func (h *Handler) authorized(w http.ResponseWriter, r *http.Request) bool {
	if h.Secret == "" {
		httpjson.Error(w, http.StatusNotFound, "not_found", "Not Found")
		return false
	}
	got := presentedSecret(r)
	if subtle.ConstantTimeCompare([]byte(got), []byte(h.Secret)) != 1 {
		h.Log.Warn("cron trigger rejected", zap.String("path", r.URL.Path))
		httpjson.Error(w, http.StatusUnauthorized, "auth_rejected", "Authentication failed.")
		return false
	}
	return true
}

// cycleContext detaches the cycle from the request so a caller hanging up
// does not abort sends half way, and bounds it by the cycle budget.
func (h *Handler) cycleContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(r.Context()), h.Budget)
}

// ServeDigest handles POST /cron/digest.
func (h *Handler) ServeDigest(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(w, r) {
		return
	}
	ctx, cancel := h.cycleContext(r)
	defer cancel()

	start := time.Now()
	res, err := h.Digest.Run(ctx)
	if err != nil {
		h.Log.Error("digest cycle failed", zap.Error(err))
		httpjson.Error(w, http.StatusInternalServerError, "storage_failure", "Digest cycle failed.")
		return
	}
	h.Log.Info("digest cycle triggered",
		zap.Int("considered", res.Considered),
		zap.Int("sent", res.Sent),
		zap.Int("failed", res.Failed),
		zap.Duration("elapsed", time.Since(start)))
	httpjson.Write(w, http.StatusOK, res)
}

// ServeDeadlines handles POST /cron/deadlines.
func (h *Handler) ServeDeadlines(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(w, r) {
		return
	}
	ctx, cancel := h.cycleContext(r)
	defer cancel()

	start := time.Now()
	res, err := h.Deadlines.Run(ctx)
	if err != nil {
		h.Log.Error("deadline cycle failed", zap.Error(err))
		httpjson.Error(w, http.StatusInternalServerError, "storage_failure", "Deadline cycle failed.")
		return
	}
	h.Log.Info("deadline cycle triggered",
		zap.Int("alerted", res.Alerted),
		zap.Int("deliveries", res.Deliveries),
		zap.Int("failed", res.Failed),
		zap.Duration("elapsed", time.Since(start)))
	httpjson.Write(w, http.StatusOK, res)
}
