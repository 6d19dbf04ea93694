package metrics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/torosent/cosweep/internal/command"
)

// FailureReason returns a short, stable label for an invocation error.
func FailureReason(err error) string {
	if err == nil {
		return ""
	}

	var exitErr *command.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Error()
	}
	var startErr *command.StartError
	if errors.As(err, &startErr) {
		return "Start error"
	}
	switch {
	case errors.Is(err, context.Canceled):
		return "Interrupted"
	case errors.Is(err, context.DeadlineExceeded):
		return "Context deadline exceeded"
	}
	return FriendlyErrorName(fmt.Sprintf("%T", err))
}

// FriendlyErrorName returns a human-friendly label for a Go error type.
func FriendlyErrorName(typeName string) string {
	cleaned := strings.TrimSpace(typeName)
	if cleaned == "" {
		return "Unknown error"
	}
	cleaned = strings.TrimPrefix(cleaned, "*")
	if idx := strings.LastIndex(cleaned, "/"); idx != -1 {
		cleaned = cleaned[idx+1:]
	}

	pkg := ""
	name := cleaned
	if idx := strings.Index(name, "."); idx != -1 {
		pkg = name[:idx]
		name = name[idx+1:]
	}

	pretty := humanizeTypeName(name)
	if pretty == "" {
		pretty = name
	}
	if pkg != "" && pkg != "main" {
		return fmt.Sprintf("%s (%s)", pretty, pkg)
	}
	return pretty
}

func humanizeTypeName(name string) string {
	if name == "" {
		return ""
	}

	var words []string
	var current []rune
	runes := []rune(name)

	appendWord := func() {
		if len(current) == 0 {
			return
		}
		word := string(current)
		if isAllUpper(word) {
			words = append(words, word)
		} else {
			words = append(words, capitalize(word))
		}
		current = current[:0]
	}

	for i, r := range runes {
		if i > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsUpper(r) && (unicode.IsLower(prev) || (unicode.IsUpper(prev) && nextLower)) {
				appendWord()
			} else if unicode.IsDigit(r) && !unicode.IsDigit(prev) {
				appendWord()
			}
		}
		current = append(current, r)
	}
	appendWord()

	return strings.Join(words, " ")
}

func isAllUpper(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}

func capitalize(s string) string {
	if s == "" {
		return ""
	}
	lower := strings.ToLower(s)
	runes := []rune(lower)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
