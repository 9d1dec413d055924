package noise

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/jonaddams/document-generator/internal/logging"
)

type stackErr struct {
	msg   string
	stack string
}

func (e stackErr) Error() string { return e.msg }
func (e stackErr) Stack() string { return e.stack }

func TestSuppressedMatchesMessageAndStack(t *testing.T) {
	f := New(logging.Nop())

	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("template not found"), false},
		{"message", errors.New("TypeError: Cannot read properties of null (reading 'x')"), true},
		{"wrapped", fmt.Errorf("binding editor: %w", errors.New("docauth-impl crashed")), true},
		{"stack", stackErr{msg: "callback failed", stack: "at IntersectionObserver.observe"}, true},
		{"stack-clean", stackErr{msg: "callback failed", stack: "at render"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := f.Suppressed(tc.err); got != tc.want {
				t.Errorf("Suppressed(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestSurface(t *testing.T) {
	f := New(nil)
	real := errors.New("populate failed")
	if got := f.Surface("preview", real); got != real {
		t.Errorf("Surface should pass real errors through, got %v", got)
	}
	if got := f.Surface("preview", errors.New("IntersectionObserver timing")); got != nil {
		t.Errorf("Surface should swallow known defects, got %v", got)
	}
	if f.Count() != 1 {
		t.Errorf("Count() = %d, want 1", f.Count())
	}
}

func TestExtraPatterns(t *testing.T) {
	f := New(nil, " ResizeObserver loop ", "")
	if len(f.Patterns()) != len(DefaultPatterns)+1 {
		t.Fatalf("unexpected patterns: %v", f.Patterns())
	}
	if !f.Suppressed(errors.New("ResizeObserver loop limit exceeded")) {
		t.Error("extra pattern should be matched")
	}
}

func TestNilFilter(t *testing.T) {
	var f *Filter
	if f.Suppressed(errors.New("IntersectionObserver")) {
		t.Error("nil filter suppresses nothing")
	}
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"short", "short"},
		{strings.Repeat("é", 150), strings.Repeat("é", 100)},
		{"a" + strings.Repeat("é", 150), "a" + strings.Repeat("é", 99)},
		{strings.Repeat("x", 250), strings.Repeat("x", 200)},
	}
	for _, tt := range tests {
		got := truncate(tt.in, maxLoggedError)
		if got != tt.want {
			t.Errorf("truncate(%d bytes) = %d bytes, want %d", len(tt.in), len(got), len(tt.want))
		}
		if !utf8.ValidString(got) {
			t.Errorf("truncate(%d bytes) produced invalid UTF-8", len(tt.in))
		}
	}
}
