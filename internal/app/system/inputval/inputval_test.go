package inputval

import (
	"errors"
	"strings"
	"testing"

	"github.com/dalemusser/focushub/internal/app/system/apperr"
)

func TestText(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		max     int
		want    string
		wantErr bool
	}{
		{"plain", "Write report", 200, "Write report", false},
		{"trimmed", "  spaced  ", 200, "spaced", false},
		{"markup stripped", "<b>bold</b> move", 200, "bold move", false},
		{"entities decoded", "R&amp;D", 200, "R&D", false},
		{"empty", "", 200, "", true},
		{"only whitespace", "   ", 200, "", true},
		{"only markup", "<script>x</script>", 200, "", true},
		{"at limit", strings.Repeat("я", 5), 5, strings.Repeat("я", 5), false},
		{"over limit", strings.Repeat("я", 6), 5, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Text("title", tt.in, tt.max)
			if tt.wantErr {
				if !errors.Is(err, apperr.ErrValidation) {
					t.Fatalf("Text(%q): got err %v, want validation error", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Text(%q): unexpected error %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("Text(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestText_MessageNamesField(t *testing.T) {
	_, err := Text("focus", "", MaxFocus)
	if err == nil || !strings.Contains(err.Error(), "focus is required") {
		t.Errorf("error %v should name the field", err)
	}
}

func TestObjectID(t *testing.T) {
	if _, err := ObjectID("team_id", "65f0c0ffee00000000000001"); err != nil {
		t.Errorf("valid id rejected: %v", err)
	}
	for _, s := range []string{"", "nope", "65f0c0ffee0000000000000"} {
		if _, err := ObjectID("team_id", s); !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("ObjectID(%q): got %v, want validation error", s, err)
		}
	}
}

func TestOptionalObjectID(t *testing.T) {
	got, err := OptionalObjectID("assignee_id", nil)
	if err != nil || got != nil {
		t.Errorf("nil input: got %v, %v; want nil, nil", got, err)
	}
	blank := "  "
	got, err = OptionalObjectID("assignee_id", &blank)
	if err != nil || got != nil {
		t.Errorf("blank input: got %v, %v; want nil, nil", got, err)
	}
	hex := "65f0c0ffee00000000000001"
	got, err = OptionalObjectID("assignee_id", &hex)
	if err != nil || got == nil || got.Hex() != hex {
		t.Errorf("hex input: got %v, %v", got, err)
	}
	bad := "zz"
	if _, err := OptionalObjectID("assignee_id", &bad); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("bad input: got %v, want validation error", err)
	}
}

func TestToken(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"3f2b0c8e-5d1a-4c55-9a53-2a9b0f1e7d10", false},
		{"  padded  ", false},
		{"", true},
		{"has space", true},
		{strings.Repeat("x", MaxToken+1), true},
	}
	for _, tt := range tests {
		_, err := Token("token", tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("Token(%q): err=%v, wantErr %v", tt.in, err, tt.wantErr)
		}
	}
}

func TestBool(t *testing.T) {
	tests := []struct {
		in      string
		want    *bool
		wantErr bool
	}{
		{"", nil, false},
		{"true", ptr(true), false},
		{"FALSE", ptr(false), false},
		{"1", ptr(true), false},
		{"maybe", nil, true},
	}
	for _, tt := range tests {
		got, err := Bool("done", tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("Bool(%q): err=%v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		switch {
		case tt.want == nil && got != nil:
			t.Errorf("Bool(%q) = %v, want nil", tt.in, *got)
		case tt.want != nil && (got == nil || *got != *tt.want):
			t.Errorf("Bool(%q) = %v, want %v", tt.in, got, *tt.want)
		}
	}
}

func ptr(b bool) *bool { return &b }
