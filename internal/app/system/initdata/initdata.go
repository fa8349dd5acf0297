// Package initdata verifies the signed init data a Telegram mini-app sends
// with every request and extracts the user it was issued for.
//
// The check follows the WebAppData scheme:
//
//	secret   = HMAC_SHA256(key = "WebAppData", msg = botToken)
//	expected = hex(HMAC_SHA256(key = secret, msg = checkString))
//
// where checkString is every field except "hash", sorted by key and joined
// as "key=value" lines separated by "\n".
package initdata

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dalemusser/focushub/internal/app/system/apperr"
)

const webAppDataKey = "WebAppData"

// Principal is the user embedded in the "user" field of the init data.
type Principal struct {
	ID           int64  `json:"id"`
	Username     string `json:"username,omitempty"`
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
	IsBot        bool   `json:"is_bot,omitempty"`
}

// Data is the verified content of an init data payload.
type Data struct {
	User     Principal
	AuthDate time.Time // zero when auth_date is absent
	QueryID  string
}

var (
	errNoSecret   = fmt.Errorf("%w: verifier has no bot token", apperr.ErrAuthRejected)
	errEmpty      = fmt.Errorf("%w: empty payload", apperr.ErrAuthRejected)
	errMalformed  = fmt.Errorf("%w: malformed payload", apperr.ErrAuthRejected)
	errNoHash     = fmt.Errorf("%w: missing hash", apperr.ErrAuthRejected)
	errMismatch   = fmt.Errorf("%w: signature mismatch", apperr.ErrAuthRejected)
	errNoUser     = fmt.Errorf("%w: missing user", apperr.ErrAuthRejected)
	errBadUser    = fmt.Errorf("%w: malformed user", apperr.ErrAuthRejected)
	errExpired    = fmt.Errorf("%w: payload expired", apperr.ErrAuthRejected)
	errBadAuthDay = fmt.Errorf("%w: malformed auth_date", apperr.ErrAuthRejected)
)

// Verifier checks init data against one bot token. It holds no mutable
// state and is safe for concurrent use.
type Verifier struct {
	key    []byte
	maxAge time.Duration
	now    func() time.Time
}

// NewVerifier returns a Verifier for botToken. A positive maxAge rejects
// payloads whose auth_date is older than maxAge; zero disables the check.
// An empty botToken yields a Verifier that rejects everything.
func NewVerifier(botToken string, maxAge time.Duration) *Verifier {
	v := &Verifier{maxAge: maxAge, now: time.Now}
	if botToken != "" {
		v.key = secretKey(botToken)
	}
	return v
}

// Verify validates raw and returns its content. Every failure wraps
// apperr.ErrAuthRejected and carries no part of the payload.
func (v *Verifier) Verify(raw string) (Data, error) {
	if len(v.key) == 0 {
		return Data{}, errNoSecret
	}
	if strings.TrimSpace(raw) == "" {
		return Data{}, errEmpty
	}

	values, err := url.ParseQuery(raw)
	if err != nil {
		return Data{}, errMalformed
	}
	for _, vs := range values {
		if len(vs) != 1 {
			return Data{}, errMalformed
		}
	}

	got := values.Get("hash")
	if got == "" {
		return Data{}, errNoHash
	}
	values.Del("hash")

	want := sign(v.key, checkString(values))
	if !hmac.Equal([]byte(got), []byte(want)) {
		return Data{}, errMismatch
	}

	var d Data
	rawUser := values.Get("user")
	if rawUser == "" {
		return Data{}, errNoUser
	}
	if err := json.Unmarshal([]byte(rawUser), &d.User); err != nil || d.User.ID == 0 {
		return Data{}, errBadUser
	}
	d.QueryID = values.Get("query_id")

	if s := values.Get("auth_date"); s != "" {
		secs, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Data{}, errBadAuthDay
		}
		d.AuthDate = time.Unix(secs, 0).UTC()
	}
	if v.maxAge > 0 {
		if d.AuthDate.IsZero() || v.now().Sub(d.AuthDate) > v.maxAge {
			return Data{}, errExpired
		}
	}

	return d, nil
}

// Sign returns values encoded as an init data string carrying a valid hash
// for botToken. Any existing "hash" is replaced.
func Sign(values url.Values, botToken string) string {
	clean := url.Values{}
	for k, vs := range values {
		if k == "hash" || len(vs) == 0 {
			continue
		}
		clean.Set(k, vs[0])
	}
	hash := sign(secretKey(botToken), checkString(clean))
	clean.Set("hash", hash)
	return clean.Encode()
}

func secretKey(botToken string) []byte {
	m := hmac.New(sha256.New, []byte(webAppDataKey))
	m.Write([]byte(botToken))
	return m.Sum(nil)
}

func sign(key []byte, msg string) string {
	m := hmac.New(sha256.New, key)
	m.Write([]byte(msg))
	return hex.EncodeToString(m.Sum(nil))
}

func checkString(values url.Values) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+values.Get(k))
	}
	return strings.Join(lines, "\n")
}
