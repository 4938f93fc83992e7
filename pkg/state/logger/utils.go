package logger

import (
	"strings"
	"unicode/utf8"
)

// headers whose values never reach the log, even masked
var sensitiveHeaders = map[string]bool{
	"token":         true,
	"authorization": true,
	"cookie":        true,
}

func maskedValue(v string) string {
	if v == "" {
		return ""
	}
	l := utf8.RuneCountInString(v)
	if l <= 2 {
		return "<redacted>"
	}
	first, _ := utf8.DecodeRuneInString(v)
	last, _ := utf8.DecodeLastRuneInString(v)
	return string(first) + "*****" + string(last)
}

func redactHeaderValue(k string, v string) string {
	if v == "" {
		return ""
	}
	if sensitiveHeaders[strings.ToLower(k)] {
		return "<redacted>"
	}
	return maskedValue(v)
}

// MaskToken shortens a push token for log lines.
func MaskToken(token string) string {
	if len(token) <= 12 {
		return maskedValue(token)
	}
	return token[:6] + "..." + token[len(token)-4:]
}
