package utils

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Field is one key/value pair of an ordered dict literal.
type Field struct {
	Key   string
	Value any
}

// Dict is a dict literal whose keys render in slice order.
type Dict []Field

// Number is a numeric literal kept as its source text.
type Number string

// ReprEncoder renders Go values the way Python's repr() prints the
// equivalent literals. With Unicode set, strings get the u'' prefix and
// non-ASCII runes are escaped, matching Python 2 unicode objects.
type ReprEncoder struct {
	Unicode bool
}

// Encode renders v. Supported values are nil, bool, ints, float64, string,
// Number, json.Number, Dict, []string, [][]string and []any; anything else
// falls back to its fmt representation quoted as a string.
func (e ReprEncoder) Encode(v any) string {
	var b strings.Builder
	e.write(&b, v)
	return b.String()
}

func (e ReprEncoder) write(b *strings.Builder, v any) {
	switch val := v.(type) {
	case nil:
		b.WriteString("None")
	case bool:
		if val {
			b.WriteString("True")
		} else {
			b.WriteString("False")
		}
	case int:
		b.WriteString(strconv.Itoa(val))
	case int64:
		b.WriteString(strconv.FormatInt(val, 10))
	case float64:
		b.WriteString(ReprFloat(val))
	case Number:
		b.WriteString(string(val))
	case json.Number:
		b.WriteString(val.String())
	case string:
		b.WriteString(e.quote(val))
	case Dict:
		b.WriteByte('{')
		for i, f := range val {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(e.quote(f.Key))
			b.WriteString(": ")
			e.write(b, f.Value)
		}
		b.WriteByte('}')
	case []string:
		b.WriteByte('[')
		for i, s := range val {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(e.quote(s))
		}
		b.WriteByte(']')
	case [][]string:
		b.WriteByte('[')
		for i, s := range val {
			if i > 0 {
				b.WriteString(", ")
			}
			e.write(b, s)
		}
		b.WriteByte(']')
	case []any:
		b.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				b.WriteString(", ")
			}
			e.write(b, item)
		}
		b.WriteByte(']')
	case fmt.Stringer:
		b.WriteString(e.quote(val.String()))
	default:
		if i, ok := asInt(v); ok {
			b.WriteString(strconv.FormatInt(i, 10))
			return
		}
		b.WriteString(e.quote(fmt.Sprint(v)))
	}
}

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	}
	return 0, false
}

// quote follows repr(): single quotes unless the text holds a single quote
// and no double quote.
func (e ReprEncoder) quote(s string) string {
	q := byte('\'')
	if strings.ContainsRune(s, '\'') && !strings.ContainsRune(s, '"') {
		q = '"'
	}

	var b strings.Builder
	if e.Unicode {
		b.WriteByte('u')
	}
	b.WriteByte(q)
	for _, r := range s {
		switch {
		case r == '\\':
			b.WriteString(`\\`)
		case r == rune(q):
			b.WriteByte('\\')
			b.WriteByte(q)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\t':
			b.WriteString(`\t`)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&b, `\x%02x`, r)
		case r > 0x7e && e.Unicode:
			switch {
			case r < 0x100:
				fmt.Fprintf(&b, `\x%02x`, r)
			case r < 0x10000:
				fmt.Fprintf(&b, `\u%04x`, r)
			default:
				fmt.Fprintf(&b, `\U%08x`, r)
			}
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte(q)
	return b.String()
}

// ReprFloat formats f the way Python's repr() does: shortest round-trip
// digits, always with a decimal point, exponent form outside [1e-4, 1e16).
func ReprFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}

	abs := math.Abs(f)
	if abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// LiteralSyntaxError reports where ParseLiteral gave up.
type LiteralSyntaxError struct {
	Offset int
	Msg    string
}

func (e *LiteralSyntaxError) Error() string {
	return fmt.Sprintf("literal: offset %d: %s", e.Offset, e.Msg)
}

// ParseLiteral parses a Python literal (as printed by repr/str) or a JSON
// value into a tree of map[string]any, []any, string, Number, bool and nil.
// Tuples come back as []any.
func ParseLiteral(s string) (any, error) {
	p := &literalParser{src: s}
	p.skipSpace()
	v, err := p.value()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, p.errorf("unexpected trailing %q", p.peekN(10))
	}
	return v, nil
}

type literalParser struct {
	src string
	pos int
}

func (p *literalParser) errorf(format string, args ...any) error {
	return &LiteralSyntaxError{Offset: p.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *literalParser) peekN(n int) string {
	end := p.pos + n
	if end > len(p.src) {
		end = len(p.src)
	}
	return p.src[p.pos:end]
}

func (p *literalParser) skipSpace() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *literalParser) value() (any, error) {
	if p.pos >= len(p.src) {
		return nil, p.errorf("unexpected end of input")
	}
	c := p.src[p.pos]
	switch {
	case c == '{':
		return p.dict()
	case c == '[':
		return p.sequence('[', ']')
	case c == '(':
		return p.sequence('(', ')')
	case c == '\'' || c == '"':
		return p.str(false)
	case c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9'):
		return p.number()
	case isIdentStart(c):
		return p.identOrPrefixed()
	}
	return nil, p.errorf("unexpected character %q", c)
}

func (p *literalParser) dict() (any, error) {
	p.pos++
	out := make(map[string]any)
	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == '}' {
		p.pos++
		return out, nil
	}
	for {
		p.skipSpace()
		k, err := p.value()
		if err != nil {
			return nil, err
		}
		key, ok := literalKey(k)
		if !ok {
			return nil, p.errorf("unsupported dict key %v", k)
		}
		p.skipSpace()
		if p.pos >= len(p.src) || p.src[p.pos] != ':' {
			return nil, p.errorf("expected ':' after key %q", key)
		}
		p.pos++
		p.skipSpace()
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		out[key] = v

		p.skipSpace()
		if p.pos >= len(p.src) {
			return nil, p.errorf("unterminated dict")
		}
		switch p.src[p.pos] {
		case ',':
			p.pos++
			p.skipSpace()
			if p.pos < len(p.src) && p.src[p.pos] == '}' {
				p.pos++
				return out, nil
			}
		case '}':
			p.pos++
			return out, nil
		default:
			return nil, p.errorf("expected ',' or '}' in dict")
		}
	}
}

func literalKey(k any) (string, bool) {
	switch key := k.(type) {
	case string:
		return key, true
	case Number:
		return string(key), true
	case bool:
		if key {
			return "True", true
		}
		return "False", true
	}
	return "", false
}

func (p *literalParser) sequence(open, closing byte) (any, error) {
	p.pos++
	out := make([]any, 0)
	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == closing {
		p.pos++
		return out, nil
	}
	for {
		p.skipSpace()
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		out = append(out, v)

		p.skipSpace()
		if p.pos >= len(p.src) {
			return nil, p.errorf("unterminated %c", open)
		}
		switch p.src[p.pos] {
		case ',':
			p.pos++
			p.skipSpace()
			if p.pos < len(p.src) && p.src[p.pos] == closing {
				p.pos++
				return out, nil
			}
		case closing:
			p.pos++
			return out, nil
		default:
			return nil, p.errorf("expected ',' or %q", closing)
		}
	}
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func (p *literalParser) identOrPrefixed() (any, error) {
	start := p.pos
	for p.pos < len(p.src) && (isIdentStart(p.src[p.pos]) || (p.src[p.pos] >= '0' && p.src[p.pos] <= '9')) {
		p.pos++
	}
	word := p.src[start:p.pos]

	if p.pos < len(p.src) && (p.src[p.pos] == '\'' || p.src[p.pos] == '"') {
		prefix := strings.ToLower(word)
		if len(prefix) <= 2 && strings.Trim(prefix, "ubr") == "" {
			return p.str(strings.Contains(prefix, "r"))
		}
	}

	switch word {
	case "True", "true":
		return true, nil
	case "False", "false":
		return false, nil
	case "None", "null":
		return nil, nil
	}
	p.pos = start
	return nil, p.errorf("unknown identifier %q", word)
}

func (p *literalParser) str(raw bool) (any, error) {
	q := p.src[p.pos]
	p.pos++

	var b strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == q:
			p.pos++
			return b.String(), nil
		case c == '\\' && p.pos+1 < len(p.src):
			if raw {
				b.WriteByte(c)
				b.WriteByte(p.src[p.pos+1])
				p.pos += 2
				continue
			}
			if err := p.escape(&b); err != nil {
				return nil, err
			}
		default:
			r, size := utf8.DecodeRuneInString(p.src[p.pos:])
			b.WriteRune(r)
			p.pos += size
		}
	}
	return nil, p.errorf("unterminated string")
}

func (p *literalParser) escape(b *strings.Builder) error {
	esc := p.src[p.pos+1]
	p.pos += 2
	switch esc {
	case '\\', '\'', '"', '/':
		b.WriteByte(esc)
	case 'n':
		b.WriteByte('\n')
	case 'r':
		b.WriteByte('\r')
	case 't':
		b.WriteByte('\t')
	case 'b':
		b.WriteByte('\b')
	case 'f':
		b.WriteByte('\f')
	case '0':
		b.WriteByte(0)
	case 'x':
		return p.hexRune(b, 2)
	case 'u':
		return p.hexRune(b, 4)
	case 'U':
		return p.hexRune(b, 8)
	default:
		b.WriteByte('\\')
		b.WriteByte(esc)
	}
	return nil
}

func (p *literalParser) hexRune(b *strings.Builder, n int) error {
	if p.pos+n > len(p.src) {
		return p.errorf("short \\x/\\u escape")
	}
	code, err := strconv.ParseUint(p.src[p.pos:p.pos+n], 16, 32)
	if err != nil {
		return p.errorf("bad escape %q", p.src[p.pos:p.pos+n])
	}
	p.pos += n
	b.WriteRune(rune(code))
	return nil
}

func (p *literalParser) number() (any, error) {
	start := p.pos
	if p.src[p.pos] == '-' || p.src[p.pos] == '+' {
		p.pos++
	}
	digits := 0
scan:
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c >= '0' && c <= '9':
			digits++
			p.pos++
		case c == '.':
			p.pos++
		case c == 'e' || c == 'E':
			p.pos++
			if p.pos < len(p.src) && (p.src[p.pos] == '-' || p.src[p.pos] == '+') {
				p.pos++
			}
		default:
			break scan
		}
	}
	text := p.src[start:p.pos]
	// Python 2 longs print with a trailing L.
	if p.pos < len(p.src) && (p.src[p.pos] == 'L' || p.src[p.pos] == 'l') {
		p.pos++
	}
	if digits == 0 {
		return nil, p.errorf("malformed number %q", text)
	}
	if _, err := strconv.ParseFloat(text, 64); err != nil {
		return nil, p.errorf("malformed number %q", text)
	}
	return Number(text), nil
}
