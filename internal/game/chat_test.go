package game

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/woozymasta/mcpanel/internal/models"
)

func TestDecodeMotd(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		kind  models.MotdKind
		clean string
	}{
		{name: "absent", raw: ``, kind: models.MotdAbsent},
		{name: "null", raw: `null`, kind: models.MotdAbsent},
		{name: "plain string", raw: `"A Minecraft Server"`, kind: models.MotdPlain, clean: "A Minecraft Server"},
		{name: "string with codes", raw: `"§6Gold §lServer"`, kind: models.MotdRich, clean: "Gold Server"},
		{name: "component", raw: `{"text":"Hello"}`, kind: models.MotdRich, clean: "Hello"},
		{
			name:  "component with extra",
			raw:   `{"text":"","extra":[{"text":"§aA Minecraft"},{"text":" Server","bold":true},"!"]}`,
			kind:  models.MotdRich,
			clean: "A Minecraft Server!",
		},
		{name: "nested extra", raw: `{"text":"a","extra":[{"text":"b","extra":[{"text":"c"}]}]}`, kind: models.MotdRich, clean: "abc"},
		{name: "array", raw: `["x",{"text":"y"}]`, kind: models.MotdRich, clean: "xy"},
		{name: "empty component", raw: `{"text":""}`, kind: models.MotdAbsent},
		{name: "number", raw: `42`, kind: models.MotdAbsent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := DecodeMotd(json.RawMessage(tt.raw))
			assert.Equal(t, tt.kind, m.Kind)
			assert.Equal(t, tt.clean, m.Display())
			assert.Equal(t, tt.kind != models.MotdAbsent, m.Present())
		})
	}
}

func TestRichMotdKeepsRawComponent(t *testing.T) {
	raw := json.RawMessage(`{"text":"Hello","color":"gold"}`)
	m := DecodeMotd(raw)
	assert.JSONEq(t, string(raw), string(m.Raw))
}

func TestStripFormatting(t *testing.T) {
	assert.Equal(t, "plain", StripFormatting("plain"))
	assert.Equal(t, "Red Bold", StripFormatting("§cRed §lBold§r"))
	assert.Equal(t, "trailing", StripFormatting("trailing§"))
}
