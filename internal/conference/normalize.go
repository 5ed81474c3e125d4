package conference

import (
	"errors"
	"strings"
)

// ErrBadNumber means the input cannot be shaped into an E.164 number.
var ErrBadNumber = errors.New("number cannot be normalized to E.164")

// NormalizeE164 shapes user-entered phone numbers into E.164:
//
//	"+..." passthrough, "(239) 426-7058" -> "+12394267058",
//	"12394267058" -> "+12394267058".
//
// NANP defaults: bare 10-digit numbers get a +1 prefix.
func NormalizeE164(raw string) (string, error) {
	var b strings.Builder
	for i, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && b.Len() == 0 && i == 0:
			b.WriteRune(r)
		}
	}
	n := b.String()

	switch {
	case strings.HasPrefix(n, "+"):
		if len(n) < 9 || len(n) > 16 {
			return "", ErrBadNumber
		}
		return n, nil
	case len(n) == 10:
		return "+1" + n, nil
	case len(n) == 11 && n[0] == '1':
		return "+" + n, nil
	default:
		return "", ErrBadNumber
	}
}
