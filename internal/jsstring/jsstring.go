// Package jsstring converts between Go strings and JavaScript string literals.
//
// Quote produces a single-quoted literal that is safe to splice into a script
// evaluated by the browser. Unquote reverses one layer of quoting on a value
// that came back from the page, accepting both JSON and JavaScript escapes.
package jsstring

import (
	"errors"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// ErrSyntax is returned by Unquote for a malformed escape sequence.
var ErrSyntax = errors.New("invalid escape sequence")

const hexDigits = "0123456789abcdef"

// Quote returns s as a single-quoted JavaScript string literal.
// Quotes, backslashes, control characters and the two line terminators
// JavaScript treats as newlines (U+2028, U+2029) are escaped; everything else
// is copied as is.
func Quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '\'':
			b.WriteString(`\'`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		case '\u2028':
			b.WriteString(`\u2028`)
		case '\u2029':
			b.WriteString(`\u2029`)
		default:
			if r < 0x20 || r == 0x7f {
				b.WriteString(`\u00`)
				b.WriteByte(hexDigits[r>>4])
				b.WriteByte(hexDigits[r&0x0f])
				continue
			}
			b.WriteRune(r)
		}
	}
	b.WriteByte('\'')
	return b.String()
}

// Unquote strips one pair of matching enclosing quotes (" or ') if present and
// decodes backslash escapes. Unknown escapes decode to the escaped character,
// as in JavaScript. A value without quotes, such as null, is returned with
// only its escapes decoded.
func Unquote(raw string) (string, error) {
	s := raw
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		s = s[1 : len(s)-1]
	}
	if !strings.ContainsRune(s, '\\') {
		return s, nil
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			i++
			continue
		}
		if i+1 >= len(s) {
			return "", ErrSyntax
		}
		esc := s[i+1]
		i += 2
		switch esc {
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'v':
			b.WriteByte('\v')
		case '0':
			b.WriteByte(0)
		case 'x':
			v, err := parseHex(s, i, 2)
			if err != nil {
				return "", err
			}
			b.WriteRune(rune(v))
			i += 2
		case 'u':
			r, n, err := decodeUnicode(s, i)
			if err != nil {
				return "", err
			}
			b.WriteRune(r)
			i += n
		default:
			// \\, \', \", \/ and any unknown escape decode to the character itself.
			r, size := utf8.DecodeRuneInString(s[i-1:])
			b.WriteRune(r)
			i += size - 1
		}
	}
	return b.String(), nil
}

// decodeUnicode decodes the body of a \u escape starting at s[i]: either
// {hex...} or four hex digits, joining a following low surrogate if present.
// It returns the rune and the number of bytes consumed.
func decodeUnicode(s string, i int) (rune, int, error) {
	if i < len(s) && s[i] == '{' {
		end := strings.IndexByte(s[i:], '}')
		if end < 2 {
			return 0, 0, ErrSyntax
		}
		v, err := strconv.ParseUint(s[i+1:i+end], 16, 32)
		if err != nil || v > utf8.MaxRune {
			return 0, 0, ErrSyntax
		}
		return rune(v), end + 1, nil
	}

	v, err := parseHex(s, i, 4)
	if err != nil {
		return 0, 0, err
	}
	r := rune(v)
	if !utf16.IsSurrogate(r) {
		return r, 4, nil
	}
	if i+10 <= len(s) && s[i+4] == '\\' && s[i+5] == 'u' {
		lo, err := parseHex(s, i+6, 4)
		if err == nil {
			if pair := utf16.DecodeRune(r, rune(lo)); pair != utf8.RuneError {
				return pair, 10, nil
			}
		}
	}
	return utf8.RuneError, 4, nil
}

func parseHex(s string, i, n int) (uint64, error) {
	if i+n > len(s) {
		return 0, ErrSyntax
	}
	v, err := strconv.ParseUint(s[i:i+n], 16, 32)
	if err != nil {
		return 0, ErrSyntax
	}
	return v, nil
}
