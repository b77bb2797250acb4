package llm

import "strings"

// sanitizeJSONResponse strips markdown code fences and any leading preamble
// a chat model wraps its JSON output in, ported from the Gemini client's
// own sanitation step and shared by every provider variant.
func sanitizeJSONResponse(text string) string {
	text = strings.TrimSpace(text)

	if strings.Contains(text, "```json") {
		start := strings.Index(text, "```json")
		text = text[start+7:]
		if end := strings.Index(text, "```"); end != -1 {
			text = text[:end]
		}
		text = strings.TrimSpace(text)
	} else if strings.Contains(text, "```") {
		start := strings.Index(text, "```")
		text = text[start+3:]
		if end := strings.Index(text, "```"); end != -1 {
			text = text[:end]
		}
		text = strings.TrimSpace(text)
	}

	if !strings.HasPrefix(text, "{") && !strings.HasPrefix(text, "[") {
		if start := strings.Index(text, "{"); start != -1 {
			text = text[start:]
		}
	}

	return text
}
