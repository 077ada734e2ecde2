package intent

import (
	"encoding/json"
	"strings"
)

// Message is a chat message as posted by the UI. Content may be any JSON
// value; only a string is considered.
type Message struct {
	Role    string            `json:"role"`
	Content any               `json:"content,omitempty"`
	Parts   []json.RawMessage `json:"parts,omitempty"`
}

// UnmarshalJSON accepts any JSON value. Non-objects decode to an empty
// Message and fields of an unexpected type are left zero.
func (m *Message) UnmarshalJSON(data []byte) error {
	*m = Message{}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil
	}
	if raw, ok := fields["role"]; ok {
		_ = json.Unmarshal(raw, &m.Role)
	}
	if raw, ok := fields["content"]; ok {
		_ = json.Unmarshal(raw, &m.Content)
	}
	if raw, ok := fields["parts"]; ok {
		if err := json.Unmarshal(raw, &m.Parts); err != nil {
			m.Parts = nil
		}
	}
	return nil
}

type messagePart struct {
	Type string `json:"type"`
	Text any    `json:"text"`
}

// ExtractLatestUserText returns the text of the newest user message that has
// any, preferring string content over the text parts.
func ExtractLatestUserText(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		if msg.Role != "user" {
			continue
		}

		if content, ok := msg.Content.(string); ok {
			if trimmed := strings.TrimSpace(content); trimmed != "" {
				return trimmed
			}
		}

		texts := make([]string, 0, len(msg.Parts))
		for _, raw := range msg.Parts {
			var part messagePart
			if err := json.Unmarshal(raw, &part); err != nil {
				texts = append(texts, "")
				continue
			}
			text, ok := part.Text.(string)
			if part.Type != "text" || !ok {
				text = ""
			}
			texts = append(texts, text)
		}
		if joined := strings.TrimSpace(strings.Join(texts, "\n")); joined != "" {
			return joined
		}
	}
	return ""
}
