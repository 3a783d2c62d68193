package content

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// DecodeQuotedPrintable decodes =XX escapes and soft line breaks. The
// decoded bytes are validated as UTF-8 with a Latin-1 reinterpretation
// fallback; malformed escapes pass through literally and the function never
// fails.
func DecodeQuotedPrintable(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '=' {
			b.WriteByte(c)
			continue
		}
		// Soft break: "=\r\n" or "=\n" joins lines.
		if i+1 < len(s) && s[i+1] == '\n' {
			i++
			continue
		}
		if i+2 < len(s) && s[i+1] == '\r' && s[i+2] == '\n' {
			i += 2
			continue
		}
		if i+2 < len(s) {
			if v, err := strconv.ParseUint(s[i+1:i+3], 16, 8); err == nil {
				b.WriteByte(byte(v))
				i += 2
				continue
			}
		}
		b.WriteByte(c)
	}

	decoded := b.String()
	if utf8.ValidString(decoded) {
		return decoded
	}
	return bestEffortUTF8(decoded)
}
