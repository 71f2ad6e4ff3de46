// Package lex turns raw manifest text into a slice of m3u8.Line values.
// It knows nothing about which tags mean what; it only knows the four
// argument shapes a tag's payload after ':' can take, and tries them in a
// fixed precedence order, exactly mirroring the grammar of the reference
// parser this module was ported from.
package lex

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/snapetech/hlsfetch/internal/m3u8"
)

// maxLineSize bounds a single manifest line; bufio.Scanner's default token
// buffer is too small for some attribute-heavy EXT-X-STREAM-INF lines seen
// in the wild. Grounded on the same pattern as the teacher's indexer, which
// widens its scanner buffer for long M3U lines.
const maxLineSize = 64 * 1024

// SyntaxError reports a line the lexer could not parse as any known shape.
type SyntaxError struct {
	Line int
	Text string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("m3u8: syntax error at line %d: %q", e.Line, e.Text)
}

// InvalidHexError reports a malformed 0x... hex sequence.
type InvalidHexError struct {
	Line int
	Text string
}

func (e *InvalidHexError) Error() string {
	return fmt.Sprintf("m3u8: invalid hex sequence at line %d: %q", e.Line, e.Text)
}

// Lex reads a full manifest and returns its Lines in order. Blank lines and
// non-EXT comment lines ("#" not followed by "EXT") are dropped silently.
// Lex does not reject unrecognised text: a tag payload that matches no
// other shape is kept as an opaque string, and every line not starting
// with '#' is a URI, so it never returns a *SyntaxError. Its only error is
// a malformed attribute value (an odd-length hex sequence): Lex logs that
// line, stops, and returns the lines lexed so far with the error wrapped
// with its line number.
func Lex(r io.Reader) ([]m3u8.Line, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 4096), maxLineSize)

	var lines []m3u8.Line
	lineNo := 0
	var residual []string

	for sc.Scan() {
		lineNo++
		raw := strings.TrimRight(sc.Text(), "\r\n")
		if raw == "" {
			continue
		}

		if strings.HasPrefix(raw, "#") {
			if !strings.HasPrefix(raw, "#EXT") {
				continue // plain comment
			}
			line, err := lexTagLine(raw)
			if err != nil {
				residual = append(residual, raw)
				if len(residual) <= 3 {
					log.Printf("m3u8: failed to parse line %d, residual: %q", lineNo, raw)
				}
				return lines, fmt.Errorf("line %d: %w", lineNo, err)
			}
			lines = append(lines, line)
			continue
		}

		lines = append(lines, m3u8.Line{IsURI: true, URI: raw})
	}
	if err := sc.Err(); err != nil {
		return lines, fmt.Errorf("m3u8: scan: %w", err)
	}
	return lines, nil
}

func lexTagLine(raw string) (m3u8.Line, error) {
	name, rest, hasArgs := splitTagName(raw)
	tag := m3u8.Tag{Name: name}
	if !hasArgs {
		tag.Args = m3u8.TagArgs{Kind: m3u8.ArgsNone}
		return m3u8.Line{Tag: tag}, nil
	}

	args, err := parseTagArgs(rest)
	if err != nil {
		return m3u8.Line{}, err
	}
	tag.Args = args
	return m3u8.Line{Tag: tag}, nil
}

// splitTagName splits "#EXT-X-FOO:BAR" into ("EXT-X-FOO", "BAR", true), or
// "#EXTM3U" into ("EXTM3U", "", false) when there is no ':'.
func splitTagName(raw string) (name, rest string, hasArgs bool) {
	body := strings.TrimPrefix(raw, "#")
	idx := strings.IndexByte(body, ':')
	if idx < 0 {
		return body, "", false
	}
	return body[:idx], body[idx+1:], true
}

// parseTagArgs tries the four argument shapes in precedence order: the
// EXTINF duration form, an attribute list, a bare integer spanning the
// whole remainder, then an opaque string.
func parseTagArgs(s string) (m3u8.TagArgs, error) {
	if f, title, ok := parseDurationForm(s); ok {
		return m3u8.TagArgs{Kind: m3u8.ArgsDuration, Duration: f, Title: title}, nil
	}
	attrs, rest, attrErr, matched := parseAttrs(s)
	if matched {
		if attrErr != nil {
			return m3u8.TagArgs{}, attrErr
		}
		if strings.TrimSpace(rest) == "" {
			return m3u8.TagArgs{Kind: m3u8.ArgsAttributes, Attrs: attrs}, nil
		}
	}
	if n, rest, ok := parseInteger(s); ok && rest == "" {
		return m3u8.TagArgs{Kind: m3u8.ArgsInteger, Int: n}, nil
	}
	return m3u8.TagArgs{Kind: m3u8.ArgsString, Str: s}, nil
}

// parseDurationForm parses the EXTINF special form: <float>,<title>.
func parseDurationForm(s string) (float64, string, bool) {
	f, rest, ok := parseFloat(s)
	if !ok {
		return 0, "", false
	}
	if !strings.HasPrefix(rest, ",") {
		return 0, "", false
	}
	return f, rest[1:], true
}

// parseInteger implements dec_digit1: "0" | [1-9][0-9]*. A leading "0"
// consumes only that digit and leaves the rest, matching the reference
// grammar's handling of inputs like "007".
func parseInteger(s string) (int64, string, bool) {
	if s == "" {
		return 0, s, false
	}
	if s[0] == '0' {
		return 0, s[1:], true
	}
	if s[0] < '1' || s[0] > '9' {
		return 0, s, false
	}
	i := 1
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	n, err := strconv.ParseInt(s[:i], 10, 64)
	if err != nil {
		return 0, s, false
	}
	return n, s[i:], true
}

// parseFloat parses an optional '-', digits, '.', digits.
func parseFloat(s string) (float64, string, bool) {
	i := 0
	if i < len(s) && s[i] == '-' {
		i++
	}
	start := i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i >= len(s) || s[i] != '.' {
		return 0, s, false
	}
	i++
	fracStart := i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == fracStart {
		return 0, s, false
	}
	_ = start
	f, err := strconv.ParseFloat(s[:i], 64)
	if err != nil {
		return 0, s, false
	}
	return f, s[i:], true
}

// parseHex parses a 0x/0X-prefixed hex sequence into bytes.
func parseHex(s string) ([]byte, string, error, bool) {
	if len(s) < 2 || s[0] != '0' || (s[1] != 'x' && s[1] != 'X') {
		return nil, s, nil, false
	}
	i := 2
	for i < len(s) && isHexDigit(s[i]) {
		i++
	}
	digits := s[2:i]
	if len(digits)%2 != 0 {
		return nil, s, &InvalidHexError{Text: s[:i]}, true
	}
	b, err := decodeHex(digits)
	if err != nil {
		return nil, s, &InvalidHexError{Text: s[:i]}, true
	}
	return b, s[i:], nil, true
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func decodeHex(s string) ([]byte, error) {
	out := make([]byte, len(s)/2)
	for i := 0; i < len(out); i++ {
		hi, ok1 := hexVal(s[2*i])
		lo, ok2 := hexVal(s[2*i+1])
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("invalid hex digit")
		}
		out[i] = hi<<4 | lo
	}
	return out, nil
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}

// parseResolution parses "<int>x<int>".
func parseResolution(s string) (w, h int64, rest string, ok bool) {
	w, rest, ok = parseInteger(s)
	if !ok || !strings.HasPrefix(rest, "x") {
		return 0, 0, s, false
	}
	h, rest2, ok2 := parseInteger(rest[1:])
	if !ok2 {
		return 0, 0, s, false
	}
	return w, h, rest2, true
}

// parseQuotedString parses a "..."-delimited string excluding '"', '\r', '\n'.
func parseQuotedString(s string) (string, string, bool) {
	if len(s) == 0 || s[0] != '"' {
		return "", s, false
	}
	i := 1
	for i < len(s) && s[i] != '"' && s[i] != '\r' && s[i] != '\n' {
		i++
	}
	if i >= len(s) || s[i] != '"' {
		return "", s, false
	}
	return s[1:i], s[i+1:], true
}

// parseKeyword parses a bare identifier: letters, digits, '-', '.'.
func parseKeyword(s string) (string, string, bool) {
	i := 0
	for i < len(s) && (isKeywordChar(s[i])) {
		i++
	}
	if i == 0 {
		return "", s, false
	}
	return s[:i], s[i:], true
}

func isKeywordChar(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '-' || c == '.'
}

// parseAttrValue tries, in order: hex sequence, resolution, float, integer,
// quoted string, keyword. The order matters: a resolution and a hex
// sequence are both valid prefixes of a decimal integer, so the more
// specific shapes must be tried first.
func parseAttrValue(s string) (m3u8.AttributeValue, string, error, bool) {
	if b, rest, err, matched := parseHex(s); matched {
		if err != nil {
			return m3u8.AttributeValue{}, s, err, true
		}
		return m3u8.AttributeValue{Kind: m3u8.AttrHex, Hex: b}, rest, nil, true
	}
	if w, h, rest, ok := parseResolution(s); ok {
		return m3u8.AttributeValue{Kind: m3u8.AttrResolution, ResWidth: int(w), ResHeight: int(h)}, rest, nil, true
	}
	if f, rest, ok := parseFloat(s); ok {
		return m3u8.AttributeValue{Kind: m3u8.AttrFloat, Float: f}, rest, nil, true
	}
	if n, rest, ok := parseInteger(s); ok {
		return m3u8.AttributeValue{Kind: m3u8.AttrInteger, Int: n}, rest, nil, true
	}
	if str, rest, ok := parseQuotedString(s); ok {
		return m3u8.AttributeValue{Kind: m3u8.AttrQuotedString, Str: str}, rest, nil, true
	}
	if kw, rest, ok := parseKeyword(s); ok {
		return m3u8.AttributeValue{Kind: m3u8.AttrKeyword, Str: kw}, rest, nil, true
	}
	return m3u8.AttributeValue{}, s, nil, false
}

// parseAttrs parses a comma-separated KEY=VALUE list. matched is false when
// s does not even begin with a KEY= prefix (a different tag-args shape
// should be tried instead); err is non-nil when the attribute-list shape
// matched but one of its values was malformed (e.g. an odd-length hex
// sequence), which the caller must surface rather than silently fall
// through to a different shape.
func parseAttrs(s string) (attrs m3u8.Attributes, rest string, err error, matched bool) {
	attrs = m3u8.NewAttributes()
	key, r, ok := parseKeyword(s)
	if !ok || !strings.HasPrefix(r, "=") {
		return attrs, s, nil, false
	}
	r = r[1:]
	val, r, verr, vmatched := parseAttrValue(r)
	if !vmatched {
		return attrs, s, nil, false
	}
	if verr != nil {
		return attrs, s, verr, true
	}
	attrs.Set(key, val)
	rest = r

	for strings.HasPrefix(rest, ",") {
		next := rest[1:]
		k, r2, ok := parseKeyword(next)
		if !ok || !strings.HasPrefix(r2, "=") {
			break
		}
		r2 = r2[1:]
		v, r3, verr, vmatched := parseAttrValue(r2)
		if !vmatched {
			break
		}
		if verr != nil {
			return attrs, rest, verr, true
		}
		attrs.Set(k, v)
		rest = r3
	}
	return attrs, rest, nil, true
}
