package report

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woozymasta/mcpanel/internal/models"
)

func labels(lines []Line) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, l.Label)
	}
	return out
}

func TestLinesFull(t *testing.T) {
	st := &models.ServerStatus{
		RealHost:      "mc.example.test",
		Port:          30000,
		PlayersOnline: 3,
		PlayersMax:    100,
		Motd:          models.RichMotd("A Minecraft Server", json.RawMessage(`{"text":"A Minecraft Server"}`)),
		Version:       models.StructuredVersion("Paper 1.20.4", 765),
		PluginNames:   []string{"WorldEdit 7.2.19", "LuckPerms 5.4.117"},
		Latency:       42 * time.Millisecond,
		Online:        true,
	}

	lines := Lines(st)
	assert.Equal(t,
		[]string{"Real IP", "Real port", "Players", "MOTD", "Version", "Plugins", "Latency", "Status"},
		labels(lines))
	assert.Equal(t, "3 / 100", lines[2].Value)
	assert.Equal(t, "A Minecraft Server", lines[3].Value)
	assert.Equal(t, "Paper 1.20.4", lines[4].Value)
	assert.Equal(t, "WorldEdit 7.2.19, LuckPerms 5.4.117", lines[5].Value)
	assert.Equal(t, "Online", lines[len(lines)-1].Value)
	assert.True(t, lines[len(lines)-1].Good)
}

func TestLinesOmitMissingFields(t *testing.T) {
	st := &models.ServerStatus{Port: 25565, PluginNames: []string{}, Online: true}

	lines := Lines(st)
	assert.Equal(t, []string{"Real IP", "Real port", "Players", "Status"}, labels(lines))
	assert.Equal(t, "Unknown", lines[0].Value)
	assert.Equal(t, "0 / 0", lines[2].Value)
}

func TestLinesSimpleVersionAndPlainMotd(t *testing.T) {
	st := &models.ServerStatus{
		RealHost: "h",
		Version:  models.SimpleVersion("1.20.4"),
		Motd:     models.PlainMotd("Hi"),
		Online:   true,
	}

	lines := Lines(st)
	assert.Contains(t, lines, Line{Label: "Version", Value: "1.20.4"})
	assert.Contains(t, lines, Line{Label: "MOTD", Value: "Hi"})
}

func TestRenderWithoutColour(t *testing.T) {
	var buf bytes.Buffer
	st := &models.ServerStatus{RealHost: "h", Port: 1, Online: true}

	require.NoError(t, Render(&buf, st, Palette{}))

	out := buf.String()
	assert.Contains(t, out, "=== Server information ===")
	assert.Contains(t, out, "Real IP: h\n")
	assert.Contains(t, out, "Status: Online\n")
	assert.NotContains(t, out, "\x1b[")
}

func TestRenderWithColour(t *testing.T) {
	var buf bytes.Buffer
	st := &models.ServerStatus{RealHost: "h", Port: 1, Online: true}

	require.NoError(t, Render(&buf, st, Palette{Enabled: true}))
	assert.Contains(t, buf.String(), ansiGreen+"Online"+ansiReset)
}
