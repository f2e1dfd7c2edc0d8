package domain

import (
	"fmt"
	"strings"
)

var suffixByPrefix = []struct {
	prefixes []string
	suffix   string
}{
	{[]string{"00", "30", "15", "16", "18", "12"}, "SZ"}, // Shenzhen
	{[]string{"60", "68", "11"}, "SH"},                   // Shanghai
	{[]string{"83", "43"}, "BJ"},                         // Beijing
}

// AddSuffix appends the exchange suffix for a six-digit China A-share code,
// e.g. "000001" -> "000001.SZ".
func AddSuffix(code string) (string, error) {
	code = strings.TrimSpace(code)
	if len(code) != 6 || !isDigits(code) {
		return "", fmt.Errorf("stock code must be 6 digits, got %q", code)
	}
	for _, group := range suffixByPrefix {
		for _, p := range group.prefixes {
			if strings.HasPrefix(code, p) {
				return code + "." + group.suffix, nil
			}
		}
	}
	return "", fmt.Errorf("unrecognised stock code prefix: %s", code)
}

// NormalizeSymbol returns the canonical exchange-qualified form of s. Symbols
// that already carry a suffix are upper-cased; bare codes get one inferred.
func NormalizeSymbol(s string) (string, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ".") {
		return strings.ToUpper(s), nil
	}
	return AddSuffix(s)
}

// StripSuffix returns the bare code of s ("000001.SZ" -> "000001").
func StripSuffix(s string) string {
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		return s[:i]
	}
	return s
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
