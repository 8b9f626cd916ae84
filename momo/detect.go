// Package momo maps Zambian phone numbers to their mobile-money
// providers using static prefix tables.
package momo

import (
	"regexp"
	"strings"
)

// mobilePattern matches a Zambian mobile number in national format,
// with or without the leading zero.
var mobilePattern = regexp.MustCompile(`^0?(95|96|76|97|77|75|55|56|57)\d{7}$`)

// Normalize strips everything except digits from a raw phone string.
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Detect maps a raw phone-number string to its mobile-money provider.
// Input that is too short after normalization, or that does not look
// like a Zambian mobile number, yields ok=false. That is a negative
// result, not an error: callers surface it through their own input
// validation flow.
func Detect(raw string) (Provider, bool) {
	number := Normalize(raw)
	if len(number) < 3 {
		return Provider{}, false
	}
	if !mobilePattern.MatchString(number) {
		return Provider{}, false
	}
	for _, p := range Providers {
		for _, prefix := range p.Prefixes {
			if strings.HasPrefix(number, prefix) {
				return p, true
			}
		}
	}
	return Provider{}, false
}
