package answer

import (
	"strings"

	"advisor-chat/internal/domain"
)

const (
	BulletMarker  = "• "
	WarningMarker = "⚠ "
)

// Assemble renders sections as one display string: the answer, a blank line,
// one bullet per tip, a blank line, one warning line per disclaimer. When the
// result is empty the trimmed fallback is returned instead.
func Assemble(s domain.AnswerSections, fallback string) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(s.Answer))

	if tips := singleLines(s.Tips); len(tips) > 0 {
		if b.Len() > 0 {
			if !endsWithTerminal(b.String()) {
				b.WriteByte('.')
			}
			b.WriteString("\n\n")
		}
		writeLines(&b, BulletMarker, tips)
	}

	if disclaimers := singleLines(s.Disclaimers); len(disclaimers) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		writeLines(&b, WarningMarker, disclaimers)
	}

	if b.Len() == 0 {
		return strings.TrimSpace(fallback)
	}
	return b.String()
}

func writeLines(b *strings.Builder, marker string, lines []string) {
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(marker)
		b.WriteString(line)
	}
}

func endsWithTerminal(s string) bool {
	return strings.HasSuffix(s, ".") || strings.HasSuffix(s, "!") || strings.HasSuffix(s, "?")
}

// singleLines collapses internal line breaks so each item renders on one line.
func singleLines(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if line := strings.Join(strings.Fields(item), " "); line != "" {
			out = append(out, line)
		}
	}
	return out
}
