package mmdrender

import "strings"

// Data URL prefixes. Documents are inlined so no step depends on the network.
const (
	htmlDataPrefix = "data:text/html;charset=utf-8,"
	svgDataPrefix  = "data:image/svg+xml,"
)

// htmlDataURL inlines an HTML document.
func htmlDataURL(doc string) string {
	return htmlDataPrefix + percentEncode(doc)
}

// svgDataURL inlines SVG markup as an image document.
func svgDataURL(svg string) string {
	return svgDataPrefix + percentEncode(svg)
}

// percentEncode escapes every byte except RFC 3986 unreserved characters,
// so '#', '%', '?' and whitespace cannot truncate or corrupt a data URL.
func percentEncode(s string) string {
	const hex = "0123456789ABCDEF"

	var b strings.Builder
	b.Grow(len(s) * 3 / 2)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0F])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	case c == '-', c == '.', c == '_', c == '~':
		return true
	}
	return false
}
