package spot

import (
	"regexp"
	"strings"
	"unicode"
)

var callsignPattern = regexp.MustCompile(`^[A-Z0-9]+(?:[/-][A-Z0-9#]+)*$`)

// NormalizeCallsign uppercases the string and trims surrounding whitespace.
func NormalizeCallsign(call string) string {
	return strings.ToUpper(strings.TrimSpace(call))
}

// StripNodeSuffix removes trailing network-node decorations from a spotter
// callsign: "W3LPL-1" and "W3LPL-#" both become "W3LPL". Only suffixes made
// of digits and '#' are stripped so portable designators like "/P" survive.
func StripNodeSuffix(call string) string {
	call = NormalizeCallsign(call)
	for {
		idx := strings.LastIndexByte(call, '-')
		if idx <= 0 {
			return call
		}
		suffix := call[idx+1:]
		if suffix == "" {
			return call[:idx]
		}
		if !isNodeSuffix(suffix) {
			return call
		}
		call = call[:idx]
	}
}

func isNodeSuffix(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '#' || (c >= '0' && c <= '9') {
			continue
		}
		return false
	}
	return true
}

// IsValidCallsign applies format checks to make sure the string looks like an
// amateur callsign: 3-10 chars, at least one digit, letters/digits/slashes.
func IsValidCallsign(call string) bool {
	normalized := NormalizeCallsign(call)
	if len(normalized) < 3 || len(normalized) > 10 {
		return false
	}
	if strings.IndexFunc(normalized, unicode.IsDigit) < 0 {
		return false
	}
	return callsignPattern.MatchString(normalized)
}
