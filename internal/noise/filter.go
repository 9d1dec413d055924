// Package noise filters errors caused by known third-party engine defects so
// they never reach the user-visible error surface.
package noise

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/jonaddams/document-generator/internal/logging"
)

// DefaultPatterns are the substrings of known, harmless engine defects: the
// authoring widget's IntersectionObserver timing bug and the null-property
// reads it triggers while a container is torn down.
var DefaultPatterns = []string{
	"IntersectionObserver",
	"docauth-impl",
	"nutrient-viewer.js",
	"Cannot read properties of null",
}

// StackTracer is implemented by errors that carry an engine stack trace.
type StackTracer interface {
	Stack() string
}

// Filter is the single suppression policy shared by every step.
type Filter struct {
	mu         sync.Mutex
	patterns   []string
	logger     logging.Logger
	suppressed int
}

// New creates a Filter with DefaultPatterns plus any extra patterns.
func New(logger logging.Logger, extra ...string) *Filter {
	if logger == nil {
		logger = logging.Nop()
	}
	patterns := make([]string, 0, len(DefaultPatterns)+len(extra))
	patterns = append(patterns, DefaultPatterns...)
	for _, p := range extra {
		if p = strings.TrimSpace(p); p != "" {
			patterns = append(patterns, p)
		}
	}
	return &Filter{patterns: patterns, logger: logger}
}

// Suppressed reports whether err matches a known defect. Every error in the
// chain and any attached stack trace are checked.
func (f *Filter) Suppressed(err error) bool {
	if f == nil || err == nil {
		return false
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		if f.matches(e.Error()) {
			return true
		}
		if st, ok := e.(StackTracer); ok && f.matches(st.Stack()) {
			return true
		}
	}
	return false
}

// Surface returns nil for suppressed errors (logging them at warn level) and
// err unchanged otherwise.
func (f *Filter) Surface(op string, err error) error {
	if !f.Suppressed(err) {
		return err
	}
	f.mu.Lock()
	f.suppressed++
	f.mu.Unlock()

	f.logger.Warn("engine error suppressed", map[string]any{"op": op, "error": truncate(err.Error(), maxLoggedError)})
	return nil
}

// Count returns how many errors Surface has swallowed.
func (f *Filter) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.suppressed
}

// Patterns returns a copy of the active patterns.
func (f *Filter) Patterns() []string {
	return append([]string(nil), f.patterns...)
}

func (f *Filter) matches(s string) bool {
	for _, p := range f.patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// String describes the filter for diagnostics.
func (f *Filter) String() string {
	return fmt.Sprintf("noise.Filter(%d patterns)", len(f.patterns))
}

// maxLoggedError caps the bytes of a suppressed error written to the log.
const maxLoggedError = 200

// truncate shortens s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
