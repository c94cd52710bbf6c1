package upstream

import (
	"encoding/json"
	"strings"
)

// maxUnwrapDepth caps how many times a nested body field is unwrapped, so
// adversarial payloads cannot recurse unboundedly.
const maxUnwrapDepth = 3

// ExtractMessage pulls a displayable message out of an answer service
// response. The response envelope is not contractually fixed, so extraction
// is shape-tolerant: the configured top-level fields are checked in order,
// then a nested body field (possibly a JSON-encoded string, unwrapped
// recursively), then a messages[0].content array shape. The first non-empty
// string wins. A body that is not JSON at all is returned verbatim as plain
// text. ErrNoReply is returned when nothing matches.
func ExtractMessage(body []byte, fields []string) (string, error) {
	return extract(body, fields, 0)
}

func extract(body []byte, fields []string, depth int) (string, error) {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return "", ErrNoReply
	}

	var payload any
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		// Not JSON: the whole body is the message.
		return text, nil
	}

	switch v := payload.(type) {
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return s, nil
		}
		return "", ErrNoReply
	case map[string]any:
		return extractFromObject(v, fields, depth)
	default:
		return "", ErrNoReply
	}
}

func extractFromObject(obj map[string]any, fields []string, depth int) (string, error) {
	for _, field := range fields {
		if s, ok := obj[field].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s), nil
		}
	}

	// API-gateway style envelopes nest the real payload under "body",
	// sometimes as a JSON-encoded string.
	if depth < maxUnwrapDepth {
		switch inner := obj["body"].(type) {
		case string:
			if s, err := extract([]byte(inner), fields, depth+1); err == nil {
				return s, nil
			}
		case map[string]any:
			if s, err := extractFromObject(inner, fields, depth+1); err == nil {
				return s, nil
			}
		}
	}

	// Chat-completion style: messages[0].content.
	if msgs, ok := obj["messages"].([]any); ok && len(msgs) > 0 {
		if first, ok := msgs[0].(map[string]any); ok {
			if s, ok := first["content"].(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s), nil
			}
		}
	}

	return "", ErrNoReply
}
