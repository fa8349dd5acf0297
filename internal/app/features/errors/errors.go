// Package errors writes API failures as JSON bodies and logs them.
package errors

import (
	"net/http"

	"github.com/dalemusser/focushub/internal/app/system/apperr"
	"github.com/dalemusser/focushub/internal/app/system/auth"
	"github.com/dalemusser/focushub/internal/app/system/httpjson"
	"go.uber.org/zap"
)

// ErrorLogger logs a failure with request context and writes the JSON body.
type ErrorLogger struct {
	Log *zap.Logger
}

// NewErrorLogger constructs an ErrorLogger.
func NewErrorLogger(logger *zap.Logger) *ErrorLogger {
	return &ErrorLogger{Log: logger}
}

func (e *ErrorLogger) fields(r *http.Request, err error) []zap.Field {
	fs := []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
	}
	if u, ok := auth.CurrentUser(r); ok {
		fs = append(fs, zap.String("user_id", u.ID.Hex()))
	}
	if err != nil {
		fs = append(fs, zap.Error(err))
	}
	return fs
}

func write(w http.ResponseWriter, status int, code, msg string) {
	httpjson.Error(w, status, code, msg)
}

// LogServerError logs at error level and writes 500.
func (e *ErrorLogger) LogServerError(w http.ResponseWriter, r *http.Request, logMsg string, err error, userMsg string) {
	e.Log.Error(logMsg, e.fields(r, err)...)
	write(w, http.StatusInternalServerError, "storage_failure", userMsg)
}

// LogBadRequest logs at info level and writes 400.
func (e *ErrorLogger) LogBadRequest(w http.ResponseWriter, r *http.Request, logMsg string, err error, userMsg string) {
	e.Log.Info(logMsg, e.fields(r, err)...)
	write(w, http.StatusBadRequest, "validation_error", userMsg)
}

// LogUnauthorized logs at warn level and writes 401.
func (e *ErrorLogger) LogUnauthorized(w http.ResponseWriter, r *http.Request, logMsg string, err error) {
	e.Log.Warn(logMsg, e.fields(r, err)...)
	write(w, http.StatusUnauthorized, "auth_rejected", "Authentication failed.")
}

// LogForbidden logs at warn level and writes 403.
func (e *ErrorLogger) LogForbidden(w http.ResponseWriter, r *http.Request, logMsg string, err error, userMsg string) {
	e.Log.Warn(logMsg, e.fields(r, err)...)
	write(w, http.StatusForbidden, "forbidden", userMsg)
}

// LogNotFound logs at debug level and writes 404.
func (e *ErrorLogger) LogNotFound(w http.ResponseWriter, r *http.Request, logMsg string, userMsg string) {
	e.Log.Debug(logMsg, e.fields(r, nil)...)
	write(w, http.StatusNotFound, "not_found", userMsg)
}

// LogError classifies err with apperr and writes the matching status. The
// message of a validation error is shown to the caller; other categories
// get a generic message.
func (e *ErrorLogger) LogError(w http.ResponseWriter, r *http.Request, logMsg string, err error) {
	status := apperr.Status(err)
	code := apperr.Code(err)
	msg := http.StatusText(status)

	switch {
	case status >= 500:
		e.Log.Error(logMsg, e.fields(r, err)...)
	case status == http.StatusBadRequest:
		e.Log.Info(logMsg, e.fields(r, err)...)
		msg = err.Error()
	default:
		e.Log.Warn(logMsg, e.fields(r, err)...)
	}
	write(w, status, code, msg)
}
