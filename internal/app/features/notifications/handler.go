package notifications

import (
	"time"

	uierrors "github.com/dalemusser/focushub/internal/app/features/errors"
	notifylogstore "github.com/dalemusser/focushub/internal/app/store/notifylog"
	prefstore "github.com/dalemusser/focushub/internal/app/store/preferences"
	"github.com/dalemusser/focushub/internal/app/system/digest"
	"github.com/dalemusser/focushub/internal/app/system/dispatch"
	"go.uber.org/zap"
)

// Handler serves notification settings, digest preview, the attempt log and
// on-demand test sends.
type Handler struct {
	Prefs   *prefstore.Store
	Logs    *notifylogstore.Store
	Builder *digest.Builder
	Engine  *dispatch.Engine
	ErrLog  *uierrors.ErrorLogger
	Log     *zap.Logger

	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

func NewHandler(prefs *prefstore.Store, logs *notifylogstore.Store, builder *digest.Builder, engine *dispatch.Engine, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Prefs:   prefs,
		Logs:    logs,
		Builder: builder,
		Engine:  engine,
		ErrLog:  errLog,
		Log:     logger,
	}
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}
