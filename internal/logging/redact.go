package logging

import (
	"regexp"
	"strings"
)

var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(api[_-]?key|access[_-]?token|secret|password)([=:\s]+)["']?([^\s"',]+)["']?`),
	regexp.MustCompile(`sk-[A-Za-z0-9_-]{16,}`), // OpenAI keys
}

// MaskCredential keeps the first and last four characters of long values.
func MaskCredential(value string) string {
	switch {
	case value == "":
		return ""
	case len(value) <= 4:
		return strings.Repeat("*", len(value))
	case len(value) <= 8:
		return value[:2] + strings.Repeat("*", len(value)-2)
	}
	return value[:4] + strings.Repeat("*", len(value)-8) + value[len(value)-4:]
}

// Redact masks credentials that upstream APIs echo back in error messages.
func Redact(s string) string {
	s = secretPatterns[0].ReplaceAllStringFunc(s, func(match string) string {
		m := secretPatterns[0].FindStringSubmatch(match)
		return m[1] + m[2] + MaskCredential(m[3])
	})
	return secretPatterns[1].ReplaceAllStringFunc(s, MaskCredential)
}
