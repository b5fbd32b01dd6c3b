package httpadapter

import (
	"bytes"
	"encoding/json"
	"strings"
)

// messageContent accepts both content shapes of the chat API: a plain
// string or a list of typed parts. Only text parts are kept.
type messageContent string

func (c *messageContent) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*c = ""
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = messageContent(strings.TrimSpace(s))
		return nil
	}

	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}
	texts := make([]string, 0, len(parts))
	for _, raw := range parts {
		var part struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}
		var plain string
		switch {
		case json.Unmarshal(raw, &plain) == nil:
			part.Text = plain
		case json.Unmarshal(raw, &part) != nil:
			continue
		}
		if part.Type != "" && part.Type != "text" {
			continue
		}
		if t := strings.TrimSpace(part.Text); t != "" {
			texts = append(texts, t)
		}
	}
	*c = messageContent(strings.Join(texts, "\n"))
	return nil
}

// latestUserQuestion returns the last user turn with text. Earlier turns are
// not forwarded: every question is routed on its own.
func latestUserQuestion(messages []chatMessage) (string, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" && messages[i].Content != "" {
			return string(messages[i].Content), true
		}
	}
	return "", false
}
