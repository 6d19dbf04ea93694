// Package environ extends search-path variables in a process environment.
//
// Paths are always appended after the inherited value, so whatever the
// caller's shell already exported keeps precedence.
package environ

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Extension names a search-path variable and the entries to append to it.
type Extension struct {
	Key   string
	Paths []string
}

// Extend returns a copy of base with every extension applied. base is in
// os.Environ form ("KEY=value"). The last occurrence of a key wins, as it
// does for exec.Cmd.
func Extend(base []string, exts ...Extension) []string {
	env := make([]string, 0, len(base)+len(exts))
	index := make(map[string]int, len(base))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if pos, ok := index[key]; ok {
			env[pos] = kv
			continue
		}
		index[key] = len(env)
		env = append(env, kv)
	}

	for _, ext := range exts {
		if ext.Key == "" || len(ext.Paths) == 0 {
			continue
		}
		var prior string
		pos, ok := index[ext.Key]
		if ok {
			_, prior, _ = strings.Cut(env[pos], "=")
		}
		kv := ext.Key + "=" + Join(prior, ext.Paths...)
		if ok {
			env[pos] = kv
		} else {
			index[ext.Key] = len(env)
			env = append(env, kv)
		}
	}
	return env
}

// Join appends paths to prior using the OS list separator. Empty entries
// are dropped.
func Join(prior string, paths ...string) string {
	parts := make([]string, 0, len(paths)+1)
	if prior != "" {
		parts = append(parts, prior)
	}
	for _, p := range paths {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, string(os.PathListSeparator))
}

// Resolve makes every relative path in exts absolute against dir.
func Resolve(dir string, exts ...Extension) ([]Extension, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve search paths: %w", err)
		}
		dir = wd
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve search paths: %w", err)
	}
	out := make([]Extension, 0, len(exts))
	for _, ext := range exts {
		resolved := Extension{Key: ext.Key, Paths: make([]string, 0, len(ext.Paths))}
		for _, p := range ext.Paths {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			if !filepath.IsAbs(p) {
				p = filepath.Join(dir, p)
			}
			resolved.Paths = append(resolved.Paths, filepath.Clean(p))
		}
		out = append(out, resolved)
	}
	return out, nil
}

// Lookup returns the value of key in env, honouring last-wins semantics.
func Lookup(env []string, key string) (string, bool) {
	var (
		val   string
		found bool
	)
	for _, kv := range env {
		k, v, _ := strings.Cut(kv, "=")
		if k == key {
			val, found = v, true
		}
	}
	return val, found
}
