// Package messenger delivers text messages to chat recipients.
package messenger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/focushub/internal/app/system/apperr"
	"go.uber.org/zap"
)

// Sender sends one message to a chat. Any error wraps apperr.ErrTransport.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// DefaultAPIBase is the public Bot API endpoint.
const DefaultAPIBase = "https://api.telegram.org"

// Telegram sends messages through the Bot API sendMessage method using
// HTML parse mode.
type Telegram struct {
	base   string
	token  string
	client *http.Client
	log    *zap.Logger
}

// NewTelegram returns a Telegram sender. An empty base uses DefaultAPIBase.
func NewTelegram(base, token string, client *http.Client, logger *zap.Logger) *Telegram {
	if base == "" {
		base = DefaultAPIBase
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Telegram{
		base:   strings.TrimRight(base, "/"),
		token:  token,
		client: client,
		log:    logger,
	}
}

type sendMessageRequest struct {
	ChatID                int64  `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
}

// Send posts text to chatID. Non-2xx responses, a false "ok" field and
// network errors are reported as transport failures.
func (t *Telegram) Send(ctx context.Context, chatID int64, text string) error {
	body, err := json.Marshal(sendMessageRequest{
		ChatID:                chatID,
		Text:                  text,
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("%w: encode: %v", apperr.ErrTransport, err)
	}

	url := t.base + "/bot" + t.token + "/sendMessage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", apperr.ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		// The URL carries the token; never surface it.
		return fmt.Errorf("%w: %s", apperr.ErrTransport, redact(err.Error(), t.token))
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var ar apiResponse
	_ = json.Unmarshal(raw, &ar)

	if resp.StatusCode < 200 || resp.StatusCode > 299 || !ar.OK {
		desc := ar.Description
		if desc == "" {
			desc = http.StatusText(resp.StatusCode)
		}
		t.log.Warn("telegram sendMessage failed",
			zap.Int64("chat_id", chatID),
			zap.Int("status", resp.StatusCode),
			zap.String("description", desc))
		return fmt.Errorf("%w: status %d: %s", apperr.ErrTransport, resp.StatusCode, desc)
	}
	return nil
}

func redact(s, token string) string {
	if token == "" {
		return s
	}
	return strings.ReplaceAll(s, token, "<token>")
}

// LogSender writes messages to the log instead of delivering them. It is
// used when no bot token is configured. Since every send succeeds, callers
// that record deliveries only run it under dev bypass.
type LogSender struct {
	Log *zap.Logger
}

// Send logs the message and always succeeds.
func (s LogSender) Send(ctx context.Context, chatID int64, text string) error {
	s.Log.Info("message (not delivered, no bot token)",
		zap.Int64("chat_id", chatID),
		zap.Int("length", len(text)))
	return nil
}
