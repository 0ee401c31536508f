// Package answer reconciles advisor payloads of any schema generation into a
// section-triple and renders it as display text.
package answer

import (
	"encoding/json"
	"strings"

	"advisor-chat/internal/domain"
)

// Payload is a decoded advisor response object.
type Payload = map[string]any

// Strategy is one pure extraction step. Strategies are tried in order until
// one returns a non-empty triple.
type Strategy struct {
	Name    string
	Extract func(Payload) domain.AnswerSections
}

// Strategies is the resolution order: canonical fields first, then the
// legacy answerJson field as structured data, then as plain text.
var Strategies = []Strategy{
	{Name: "canonical", Extract: canonical},
	{Name: "legacy-json", Extract: legacyJSON},
	{Name: "legacy-text", Extract: legacyText},
}

var answerFields = []string{"formattedContent", "formattedAnswer", "answer"}

// Extract returns the section-triple for payload. It never panics; a fully
// empty result means the payload is malformed and the caller must say so.
func Extract(payload Payload) domain.AnswerSections {
	for _, s := range Strategies {
		if sections := s.Extract(payload); !sections.IsEmpty() {
			return sections
		}
	}
	return emptySections()
}

// DecodePayload turns a response body into a Payload. A body that is a JSON
// string, or not JSON at all, is handed to the legacy strategies as answerJson.
func DecodePayload(raw []byte) Payload {
	var payload Payload
	if err := json.Unmarshal(raw, &payload); err == nil && payload != nil {
		return payload
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return Payload{"answerJson": text}
	}
	if !json.Valid(raw) {
		return Payload{"answerJson": string(raw)}
	}
	return Payload{}
}

func canonical(p Payload) domain.AnswerSections {
	return domain.AnswerSections{
		Answer:      firstString(p, answerFields...),
		Tips:        stringList(p["tips"]),
		Disclaimers: stringList(p["disclaimers"]),
	}
}

func legacyJSON(p Payload) domain.AnswerSections {
	switch v := p["answerJson"].(type) {
	case map[string]any:
		return canonical(v)
	case string:
		body, _ := StripFence(v)
		var decoded any
		if err := json.Unmarshal([]byte(body), &decoded); err != nil {
			return emptySections()
		}
		switch d := decoded.(type) {
		case map[string]any:
			return canonical(d)
		case string:
			return domain.AnswerSections{Answer: strings.TrimSpace(d), Tips: []string{}, Disclaimers: []string{}}
		}
	}
	return emptySections()
}

func legacyText(p Payload) domain.AnswerSections {
	raw, ok := p["answerJson"].(string)
	if !ok {
		return emptySections()
	}
	text := strings.TrimSpace(raw)
	if looksStructured(text) {
		return emptySections()
	}
	return domain.AnswerSections{Answer: text, Tips: []string{}, Disclaimers: []string{}}
}

func looksStructured(s string) bool {
	return strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[") || strings.HasPrefix(s, FenceMarker)
}

func firstString(p Payload, keys ...string) string {
	for _, key := range keys {
		if s, ok := p[key].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

// stringList keeps trimmed, non-empty string entries and drops everything else.
func stringList(v any) []string {
	out := []string{}
	switch items := v.(type) {
	case []any:
		for _, item := range items {
			if s, ok := item.(string); ok {
				if s = strings.TrimSpace(s); s != "" {
					out = append(out, s)
				}
			}
		}
	case []string:
		for _, s := range items {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func emptySections() domain.AnswerSections {
	return domain.AnswerSections{Tips: []string{}, Disclaimers: []string{}}
}
