// Package hashing implements C1, the deterministic canonical record hasher.
//
// It generalises the teacher repo's internal/trustledger hash-chaining
// primitives (which hash a fixed Entry struct field-by-field) into a hasher
// that canonicalises an arbitrary record — map keys sorted by codepoint,
// numbers in one canonical rendering, ISO-8601 timestamps, NFC-normalised
// UTF-8 strings — before hashing, so any verifier can recompute the same
// hash from the same logical content regardless of map iteration order or
// field encoding choices made upstream.
package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// ErrInvalidField is returned when a record contains a non-finite number or
// invalid UTF-8, per spec.md §4.1's failure contract.
type ErrInvalidField struct {
	Path   string
	Reason string
}

func (e *ErrInvalidField) Error() string {
	return fmt.Sprintf("invalid field %q: %s", e.Path, e.Reason)
}

// Hash canonicalises v (built from maps, slices, strings, bools, numbers,
// and time.Time values) and returns its SHA-256 digest as a lowercase
// 64-character hex string. Hash never fails on valid input; it rejects
// non-finite numbers and non-UTF-8 strings with *ErrInvalidField.
func Hash(v any) (string, error) {
	var buf []byte
	b, err := canonicalAppend(nil, "$", v)
	if err != nil {
		return "", err
	}
	buf = b
	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:]), nil
}

// MustHash panics on invalid input. Reserved for call sites that have
// already validated the record (e.g. re-hashing a value this process built).
func MustHash(v any) string {
	h, err := Hash(v)
	if err != nil {
		panic(err)
	}
	return h
}

// canonicalAppend writes a canonical, self-delimiting encoding of v to buf.
// The encoding is not meant to be parsed back — only to be a stable,
// unambiguous byte sequence two independent implementations would produce
// identically from the same logical record.
func canonicalAppend(buf []byte, path string, v any) ([]byte, error) {
	switch t := v.(type) {
	case nil:
		return append(buf, "null"...), nil
	case bool:
		if t {
			return append(buf, "true"...), nil
		}
		return append(buf, "false"...), nil
	case string:
		if !utf8.ValidString(t) {
			return nil, &ErrInvalidField{Path: path, Reason: "not valid UTF-8"}
		}
		norm := norm.NFC.String(t)
		buf = append(buf, '"')
		buf = append(buf, []byte(norm)...)
		buf = append(buf, '"')
		return buf, nil
	case int:
		return strconv.AppendInt(buf, int64(t), 10), nil
	case int32:
		return strconv.AppendInt(buf, int64(t), 10), nil
	case int64:
		return strconv.AppendInt(buf, t, 10), nil
	case uint64:
		return strconv.AppendUint(buf, t, 10), nil
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil, &ErrInvalidField{Path: path, Reason: "non-finite number"}
		}
		if t == math.Trunc(t) && math.Abs(t) < 1e15 {
			return strconv.AppendInt(buf, int64(t), 10), nil
		}
		// Fixed precision canonical decimal rendering (6 digits, matching
		// spec.md's native-unit precision) so the same logical value never
		// hashes two different ways due to float formatting differences.
		return strconv.AppendFloat(buf, roundTo(t, 6), 'f', 6, 64), nil
	case time.Time:
		buf = append(buf, '"')
		buf = append(buf, []byte(t.UTC().Format(time.RFC3339Nano))...)
		buf = append(buf, '"')
		return buf, nil
	case []any:
		buf = append(buf, '[')
		for i, item := range t {
			if i > 0 {
				buf = append(buf, ',')
			}
			var err error
			buf, err = canonicalAppend(buf, fmt.Sprintf("%s[%d]", path, i), item)
			if err != nil {
				return nil, err
			}
		}
		buf = append(buf, ']')
		return buf, nil
	case []string:
		items := make([]any, len(t))
		for i, s := range t {
			items[i] = s
		}
		return canonicalAppend(buf, path, items)
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys) // ascending by codepoint, per spec.md §4.1
		buf = append(buf, '{')
		for i, k := range keys {
			if i > 0 {
				buf = append(buf, ',')
			}
			var err error
			buf, err = canonicalAppend(buf, path+"."+k, k)
			if err != nil {
				return nil, err
			}
			buf = append(buf, ':')
			buf, err = canonicalAppend(buf, path+"."+k, t[k])
			if err != nil {
				return nil, err
			}
		}
		buf = append(buf, '}')
		return buf, nil
	case map[string]string:
		m := make(map[string]any, len(t))
		for k, v := range t {
			m[k] = v
		}
		return canonicalAppend(buf, path, m)
	default:
		return nil, &ErrInvalidField{Path: path, Reason: fmt.Sprintf("unsupported type %T", v)}
	}
}

func roundTo(f float64, digits int) float64 {
	mult := math.Pow(10, float64(digits))
	return math.Round(f*mult) / mult
}
