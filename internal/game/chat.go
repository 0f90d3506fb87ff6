package game

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/woozymasta/mcpanel/internal/models"
)

// formatPrefix starts a legacy two-character formatting code.
const formatPrefix = '§'

// DecodeMotd converts a status "description" field into the Motd union.
// A JSON string without formatting codes is PlainText; chat components and
// strings carrying codes are Rich with the cleaned text.
func DecodeMotd(raw json.RawMessage) models.Motd {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return models.Motd{}
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return MotdFromText(text)
	}

	var component any
	if err := json.Unmarshal(raw, &component); err != nil {
		return models.Motd{}
	}

	var sb strings.Builder
	flattenComponent(&sb, component)

	clean := strings.TrimSpace(StripFormatting(sb.String()))
	if clean == "" {
		return models.Motd{}
	}

	return models.RichMotd(clean, append(json.RawMessage(nil), raw...))
}

// MotdFromText converts a bare message (status string or query hostname) into the Motd union.
func MotdFromText(text string) models.Motd {
	if !strings.ContainsRune(text, formatPrefix) {
		return models.PlainMotd(strings.TrimSpace(text))
	}

	clean := strings.TrimSpace(StripFormatting(text))
	if clean == "" {
		return models.Motd{}
	}

	raw, _ := json.Marshal(text)
	return models.RichMotd(clean, raw)
}

// flattenComponent writes the text of a chat component and its children in order.
func flattenComponent(sb *strings.Builder, c any) {
	switch v := c.(type) {
	case string:
		sb.WriteString(v)
	case []any:
		for _, child := range v {
			flattenComponent(sb, child)
		}
	case map[string]any:
		if text, ok := v["text"].(string); ok {
			sb.WriteString(text)
		} else if tr, ok := v["translate"].(string); ok {
			sb.WriteString(tr)
		}
		if extra, ok := v["extra"].([]any); ok {
			for _, child := range extra {
				flattenComponent(sb, child)
			}
		}
	}
}

// StripFormatting removes legacy §x formatting codes.
func StripFormatting(s string) string {
	if !strings.ContainsRune(s, formatPrefix) {
		return s
	}

	var sb strings.Builder
	sb.Grow(len(s))

	skip := false
	for _, r := range s {
		switch {
		case skip:
			skip = false
		case r == formatPrefix:
			skip = true
		default:
			sb.WriteRune(r)
		}
	}

	return sb.String()
}
