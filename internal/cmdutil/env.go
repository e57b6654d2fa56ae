package cmdutil

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Env reads prefixed environment overrides such as SSCP_LISTEN.
// Lookup defaults to os.LookupEnv.
type Env struct {
	Prefix string
	Lookup func(key string) (string, bool)
}

// Key returns the full variable name for name.
func (e Env) Key(name string) string { return e.Prefix + name }

func (e Env) raw(name string) (string, string) {
	key := e.Key(name)
	lookup := e.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	v, _ := lookup(key)
	return key, strings.TrimSpace(v)
}

// String returns the trimmed value, or fallback when unset or blank.
func (e Env) String(name string, fallback string) string {
	if _, v := e.raw(name); v != "" {
		return v
	}
	return fallback
}

func (e Env) Bool(name string, fallback bool) (bool, error) {
	key, raw := e.raw(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, &UsageError{Msg: fmt.Sprintf("invalid %s: %v", key, err)}
	}
	return v, nil
}

func (e Env) Int(name string, fallback int) (int, error) {
	key, raw := e.raw(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &UsageError{Msg: fmt.Sprintf("invalid %s: %v", key, err)}
	}
	return v, nil
}

func (e Env) Duration(name string, fallback time.Duration) (time.Duration, error) {
	key, raw := e.raw(name)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, &UsageError{Msg: fmt.Sprintf("invalid %s: %v", key, err)}
	}
	return d, nil
}

// List splits a comma-separated value into trimmed, non-empty parts.
func (e Env) List(name string) []string {
	_, raw := e.raw(name)
	if raw == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
