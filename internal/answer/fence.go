package answer

import "strings"

// FenceMarker opens and closes a fenced block in model output.
const FenceMarker = "```"

// StripFence removes a surrounding code fence from s. The opening marker may
// carry a language tag ("```json"). The result is trimmed. ok reports whether
// an opening marker was found.
func StripFence(s string) (body string, ok bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, FenceMarker) {
		return s, false
	}

	rest := s[len(FenceMarker):]
	rest = rest[languageTagLen(rest):]
	rest = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(rest), FenceMarker))
	return rest, true
}

// languageTagLen returns the length of a leading info string such as "json" or "js".
func languageTagLen(s string) int {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_', c == '+':
		default:
			return i
		}
	}
	return len(s)
}
