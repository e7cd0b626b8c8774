package extraction

import (
	"encoding/json"
	"strings"
)

var textKeys = []string{"text", "value", "content"}

// ResponseText pulls the generated text out of a chat completion body.
//
// Shapes are tried in order:
//   - choices[0].message.content
//   - choices[0].text or choices[0].content
//   - the same message/text/content keys on the top-level object
//
// Content itself may be a string, a list of parts (strings or objects with
// a text, value or content key) joined by newlines, or a single such
// object. Anything else yields "".
func ResponseText(body []byte) string {
	var payload interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}

	root, ok := payload.(map[string]interface{})
	if !ok {
		return ""
	}

	choice := root
	if choices, ok := root["choices"].([]interface{}); ok {
		if len(choices) == 0 {
			return ""
		}
		first, ok := choices[0].(map[string]interface{})
		if !ok {
			return ""
		}
		choice = first
	}

	return contentText(choiceContent(choice))
}

func choiceContent(choice map[string]interface{}) interface{} {
	if msg, ok := choice["message"].(map[string]interface{}); ok && msg["content"] != nil {
		return msg["content"]
	}
	if text := choice["text"]; !isFalsy(text) {
		return text
	}
	return choice["content"]
}

func contentText(content interface{}) string {
	switch v := content.(type) {
	case string:
		return strings.TrimSpace(v)
	case []interface{}:
		parts := make([]string, 0, len(v))
		for _, part := range v {
			var s string
			switch p := part.(type) {
			case string:
				s = p
			case map[string]interface{}:
				s = firstText(p)
			}
			if s != "" {
				parts = append(parts, s)
			}
		}
		return strings.TrimSpace(strings.Join(parts, "\n"))
	case map[string]interface{}:
		return strings.TrimSpace(firstText(v))
	default:
		return ""
	}
}

// firstText returns the first non-empty text-like value of m. Nested
// objects such as {"text": {"value": "..."}} are followed.
func firstText(m map[string]interface{}) string {
	for _, key := range textKeys {
		switch v := m[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case map[string]interface{}:
			if s := firstText(v); s != "" {
				return s
			}
		}
	}
	return ""
}

func isFalsy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []interface{}:
		return len(t) == 0
	}
	return false
}

// StripFences removes a leading ```json or ``` marker and a trailing ```
// marker.
func StripFences(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
