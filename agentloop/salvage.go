package agentloop

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// SalvageStatus reports how much of the input the salvage parser accepted.
type SalvageStatus int

const (
	// SalvageComplete means the input was one well-formed value.
	SalvageComplete SalvageStatus = iota
	// SalvageTruncated means the input ended mid-value and open tokens were
	// closed implicitly.
	SalvageTruncated
	// SalvageTrailing means a value was parsed but text remains after it.
	SalvageTrailing
	// SalvageFailed means the first non-whitespace character starts no value.
	SalvageFailed
)

func (s SalvageStatus) String() string {
	switch s {
	case SalvageComplete:
		return "complete"
	case SalvageTruncated:
		return "truncated"
	case SalvageTrailing:
		return "trailing"
	default:
		return "failed"
	}
}

// SalvageResult is the outcome of Salvage.
type SalvageResult struct {
	Value  any
	Status SalvageStatus
	// Offset is where parsing stopped.
	Offset int
	Err    error
}

// OK reports whether the whole input was consumed.
func (r SalvageResult) OK() bool {
	return r.Status == SalvageComplete || r.Status == SalvageTruncated
}

const maxSalvageDepth = 512

// Salvage parses JSON that may have been cut off mid-stream. Unterminated
// strings, arrays and objects are closed at end of input and partial
// literals (tr, fals, nu) are accepted. Values decode to the same Go types
// as encoding/json does for an any target.
func Salvage(s string) SalvageResult {
	p := &salvager{src: s}
	p.skipSpace()
	v, err := p.value(0)
	if err == nil {
		err = p.fatal
	}
	if err != nil {
		return SalvageResult{Status: SalvageFailed, Offset: p.pos, Err: err}
	}
	p.skipSpace()
	switch {
	case p.pos < len(p.src):
		return SalvageResult{Value: v, Status: SalvageTrailing, Offset: p.pos}
	case p.truncated:
		return SalvageResult{Value: v, Status: SalvageTruncated, Offset: p.pos}
	default:
		return SalvageResult{Value: v, Status: SalvageComplete, Offset: p.pos}
	}
}

type salvager struct {
	src       string
	pos       int
	truncated bool
	// fatal stops every enclosing container, unlike a missing parse rule
	// which only ends the innermost one.
	fatal error
}

func (p *salvager) eof() bool { return p.pos >= len(p.src) }

func (p *salvager) peek() byte { return p.src[p.pos] }

func (p *salvager) skipSpace() {
	for !p.eof() {
		switch p.peek() {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

// value parses the value at the cursor. It fails without consuming input
// when no rule matches the current character.
func (p *salvager) value(depth int) (any, error) {
	if depth > maxSalvageDepth {
		p.fatal = fmt.Errorf("nesting deeper than %d", maxSalvageDepth)
		return nil, p.fatal
	}
	p.skipSpace()
	if p.eof() {
		return nil, fmt.Errorf("unexpected end of input at offset %d", p.pos)
	}
	switch c := p.peek(); {
	case c == '{':
		return p.object(depth), nil
	case c == '[':
		return p.array(depth), nil
	case c == '"':
		return p.str()
	case c == '-' || c == '.' || (c >= '0' && c <= '9'):
		return p.number(), nil
	case c == 't':
		return p.literal("true", true)
	case c == 'f':
		return p.literal("false", false)
	case c == 'n':
		return p.literal("null", nil)
	default:
		return nil, fmt.Errorf("no parse rule for %q at offset %d", c, p.pos)
	}
}

func (p *salvager) array(depth int) []any {
	p.pos++ // [
	acc := []any{}
	for p.fatal == nil {
		p.skipSpace()
		if p.eof() {
			p.truncated = true
			return acc
		}
		if p.peek() == ']' {
			p.pos++
			return acc
		}
		v, err := p.value(depth + 1)
		if err != nil {
			// Leave the cursor on the offending character.
			return acc
		}
		acc = append(acc, v)
		p.skipSpace()
		if !p.eof() && p.peek() == ',' {
			p.pos++
		}
	}
	return acc
}

func (p *salvager) object(depth int) map[string]any {
	p.pos++ // {
	acc := map[string]any{}
	for p.fatal == nil {
		p.skipSpace()
		if p.eof() {
			p.truncated = true
			return acc
		}
		if p.peek() == '}' {
			p.pos++
			return acc
		}

		k, err := p.value(depth + 1)
		if err != nil {
			return acc
		}
		key, ok := k.(string)
		if !ok {
			key = fmt.Sprint(k)
		}

		p.skipSpace()
		if p.eof() {
			acc[key] = nil
			p.truncated = true
			return acc
		}
		if p.peek() != ':' {
			acc[key] = nil
			return acc
		}
		p.pos++ // :
		p.skipSpace()
		if p.eof() {
			acc[key] = nil
			p.truncated = true
			return acc
		}

		v, err := p.value(depth + 1)
		if err != nil {
			acc[key] = nil
			return acc
		}
		acc[key] = v

		p.skipSpace()
		if !p.eof() && p.peek() == ',' {
			p.pos++
		}
	}
	return acc
}

func (p *salvager) str() (string, error) {
	start := p.pos
	for i := start + 1; i < len(p.src); i++ {
		switch p.src[i] {
		case '\\':
			i++
		case '"':
			p.pos = i + 1
			return decodeString(p.src[start : i+1])
		}
	}

	// Unterminated: close it, dropping a dangling escape.
	p.pos = len(p.src)
	p.truncated = true
	body := p.src[start:]
	if trailingBackslashes(body)%2 == 1 {
		body = body[:len(body)-1]
	}
	return decodeString(body + `"`)
}

func trailingBackslashes(s string) int {
	n := 0
	for i := len(s) - 1; i >= 0 && s[i] == '\\'; i-- {
		n++
	}
	return n
}

// decodeString decodes a quoted JSON string, tolerating raw control
// characters inside it.
func decodeString(quoted string) (string, error) {
	var out string
	if err := json.Unmarshal([]byte(quoted), &out); err == nil {
		return out, nil
	}
	escaped := strings.NewReplacer("\n", `\n`, "\r", `\r`, "\t", `\t`).Replace(quoted)
	if err := json.Unmarshal([]byte(escaped), &out); err != nil {
		return "", fmt.Errorf("decode string %s: %w", quoted, err)
	}
	return out, nil
}

func isNumberChar(c byte) bool {
	return (c >= '0' && c <= '9') || c == '-' || c == '+' || c == '.' || c == 'e' || c == 'E'
}

func (p *salvager) number() any {
	start := p.pos
	for !p.eof() && isNumberChar(p.peek()) {
		p.pos++
	}
	text := p.src[start:p.pos]
	if f, err := strconv.ParseFloat(text, 64); err == nil {
		return f
	}
	// A number cut short, like "12." or "3e".
	trimmed := strings.TrimRight(text, ".eE+-")
	if trimmed == "" {
		return float64(0)
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		p.truncated = p.truncated || p.eof()
		return f
	}
	return text
}

// literal accepts token or any non-empty prefix of it.
func (p *salvager) literal(token string, val any) (any, error) {
	rest := p.src[p.pos:]
	for i := len(token); i >= 1; i-- {
		if strings.HasPrefix(rest, token[:i]) {
			p.pos += i
			if i < len(token) {
				p.truncated = true
			}
			return val, nil
		}
	}
	return nil, fmt.Errorf("no parse rule for %q at offset %d", rest[0], p.pos)
}
