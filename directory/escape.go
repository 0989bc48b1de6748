package directory

import (
	"strconv"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// EscapeFilter escapes LDAP filter metacharacters (\ * ( ) and NUL) in a
// value to their protocol hex representation per RFC 4515, so that user input
// can never alter the boundaries of a filter clause.
func EscapeFilter(value string) string {
	return ldap.EscapeFilter(value)
}

// UnescapeFilter reverses EscapeFilter, converting \xx hex escapes back to
// their literal characters. Malformed escape sequences are left untouched.
func UnescapeFilter(value string) string {
	if !strings.Contains(value, `\`) {
		return value
	}

	var b strings.Builder
	b.Grow(len(value))

	for i := 0; i < len(value); i++ {
		if value[i] == '\\' && i+2 < len(value) {
			if n, err := strconv.ParseUint(value[i+1:i+3], 16, 8); err == nil {
				b.WriteByte(byte(n))
				i += 2
				continue
			}
		}
		b.WriteByte(value[i])
	}

	return b.String()
}
