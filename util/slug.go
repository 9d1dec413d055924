// Package util provides small helpers shared by the commands, the server
// and the wizard steps.
package util

import (
	"fmt"
	"regexp"
	"strings"
)

var nonAlphanum = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases name and joins its alphanumeric runs with single
// hyphens, so "Food & Beverage" becomes "food-beverage".
func Slugify(name string) string {
	s := nonAlphanum.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
	return strings.Trim(s, "-")
}

// FileName returns the slug of name with ext appended, falling back to
// fallback when name slugs to nothing.
func FileName(name, fallback, ext string) string {
	s := Slugify(name)
	if s == "" {
		s = fallback
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return s + ext
}

// HumanBytes formats n the way upload limits are shown to users.
func HumanBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.2f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	}
	return fmt.Sprintf("%d B", n)
}
