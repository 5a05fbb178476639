package ioformat

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/plomsys/plom/errs"
)

// Value is a coerced configuration value: exactly one of the typed fields
// is meaningful, selected by Kind.
type Value struct {
	Kind   ValueKind
	Float  float64
	Bool   bool
	String string
}

// ValueKind tags which field of Value holds the coerced result.
type ValueKind int

const (
	KindFloat ValueKind = iota
	KindBool
	KindNone
	KindString
)

// Config is the parsed key=value mapping, coerced per the int -> float ->
// bool -> None -> string ladder.
type Config struct {
	raw map[string]Value
}

// Get returns the raw coerced value for key, and whether it was present.
func (c *Config) Get(key string) (Value, bool) {
	v, ok := c.raw[key]
	return v, ok
}

// Float returns key as a float64, falling back to def if absent or not a
// float.
func (c *Config) Float(key string, def float64) float64 {
	v, ok := c.raw[key]
	if !ok || v.Kind != KindFloat {
		return def
	}
	return v.Float
}

// Int is Float truncated to int.
func (c *Config) Int(key string, def int) int {
	return int(c.Float(key, float64(def)))
}

// Bool returns key as a bool, falling back to def if absent or not a bool.
func (c *Config) Bool(key string, def bool) bool {
	v, ok := c.raw[key]
	if !ok || v.Kind != KindBool {
		return def
	}
	return v.Bool
}

// String returns key's string representation, falling back to def if
// absent.
func (c *Config) String(key, def string) string {
	v, ok := c.raw[key]
	if !ok {
		return def
	}
	switch v.Kind {
	case KindString:
		return v.String
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	default:
		return def
	}
}

// ParseConfig reads key=value text configuration: lines beginning with *
// or # are comments, inline # comments are stripped, quoted string values
// are unquoted, and every value is coerced int -> float -> bool -> None ->
// string, in that order.
func ParseConfig(r io.Reader) (*Config, error) {
	cfg := &Config{raw: make(map[string]Value)}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()

		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "*") || strings.HasPrefix(trimmed, "#") {
			continue
		}

		if idx := strings.Index(line, "#"); idx >= 0 {
			line = line[:idx]
		}

		eq := strings.Index(line, "=")
		if eq < 0 {
			return nil, &errs.ConfigError{Stage: "ioformat.ParseConfig", Err: fmt.Errorf("line %d: missing '='", lineNo)}
		}

		key := strings.TrimSpace(line[:eq])
		valStr := strings.TrimSpace(line[eq+1:])
		if key == "" {
			return nil, &errs.ConfigError{Stage: "ioformat.ParseConfig", Err: fmt.Errorf("line %d: empty key", lineNo)}
		}

		cfg.raw[key] = coerce(unquote(valStr))
	}
	if err := scanner.Err(); err != nil {
		return nil, &errs.ConfigError{Stage: "ioformat.ParseConfig", Err: err}
	}

	return cfg, nil
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

func coerce(s string) Value {
	if s == "" {
		return Value{Kind: KindString, String: s}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return Value{Kind: KindFloat, Float: f}
	}
	switch strings.ToLower(s) {
	case "true", "yes":
		return Value{Kind: KindBool, Bool: true}
	case "false", "no":
		return Value{Kind: KindBool, Bool: false}
	case "none", "null":
		return Value{Kind: KindNone}
	}
	return Value{Kind: KindString, String: s}
}
