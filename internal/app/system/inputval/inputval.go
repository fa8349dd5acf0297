// Package inputval cleans and checks fields decoded from JSON request bodies.
//
// Every failure wraps apperr.ErrValidation, so handlers can pass it straight
// to ErrorLogger.LogError and the caller receives a 400.
package inputval

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dalemusser/focushub/internal/app/system/apperr"
	"github.com/dalemusser/focushub/internal/app/system/htmlsanitize"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Length limits, in runes, after sanitizing.
const (
	MaxTitle    = 200
	MaxFocus    = 500
	MaxTeamName = 80
	MaxToken    = 64
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{apperr.ErrValidation}, args...)...)
}

// Text strips markup from s and checks the result is non-empty and at most
// max runes long.
func Text(field, s string, max int) (string, error) {
	clean := htmlsanitize.PlainText(s)
	if clean == "" {
		return "", invalid("%s is required", field)
	}
	if utf8.RuneCountInString(clean) > max {
		return "", invalid("%s must be at most %d characters", field, max)
	}
	return clean, nil
}

// ObjectID parses a hex object id.
func ObjectID(field, s string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(strings.TrimSpace(s))
	if err != nil {
		return primitive.NilObjectID, invalid("%s is not a valid id", field)
	}
	return oid, nil
}

// OptionalObjectID parses s when present. A nil or blank s yields nil.
func OptionalObjectID(field string, s *string) (*primitive.ObjectID, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	oid, err := ObjectID(field, *s)
	if err != nil {
		return nil, err
	}
	return &oid, nil
}

// Token checks an opaque join token: non-blank, bounded, no whitespace.
func Token(field, s string) (string, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return "", invalid("%s is required", field)
	case len(s) > MaxToken, strings.ContainsAny(s, " \t\r\n"):
		return "", invalid("%s is malformed", field)
	}
	return s, nil
}

// Bool parses an optional boolean query value. Blank means unset.
func Bool(field, s string) (*bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return nil, nil
	case "true", "1", "yes":
		v := true
		return &v, nil
	case "false", "0", "no":
		v := false
		return &v, nil
	}
	return nil, invalid("%s must be true or false", field)
}
