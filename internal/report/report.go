// Package report formats a ServerStatus into the lines shown to the operator.
// It makes no decisions: absent fields are simply left out.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/woozymasta/mcpanel/internal/models"
)

// Line is one labelled row of the report.
type Line struct {
	Label string
	Value string
	// Good marks the value for highlighting (the online status).
	Good bool
}

// Lines returns the report rows for st in display order.
func Lines(st *models.ServerStatus) []Line {
	host := st.RealHost
	if host == "" {
		host = "Unknown"
	}

	lines := []Line{
		{Label: "Real IP", Value: host},
		{Label: "Real port", Value: fmt.Sprint(st.Port)},
		{Label: "Players", Value: fmt.Sprintf("%d / %d", st.PlayersOnline, st.PlayersMax)},
	}

	if st.Motd.Present() {
		lines = append(lines, Line{Label: "MOTD", Value: st.Motd.Display()})
	}
	if st.Version.Present() {
		lines = append(lines, Line{Label: "Version", Value: st.Version.Display()})
	}
	if st.Software != "" {
		lines = append(lines, Line{Label: "Software", Value: st.Software})
	}
	if st.Map != "" {
		lines = append(lines, Line{Label: "Map", Value: st.Map})
	}
	if len(st.PluginNames) > 0 {
		lines = append(lines, Line{Label: "Plugins", Value: strings.Join(st.PluginNames, ", ")})
	}
	if st.Country != "" {
		lines = append(lines, Line{Label: "Country", Value: st.Country})
	}
	if st.Latency > 0 {
		lines = append(lines, Line{Label: "Latency", Value: st.Latency.Round(time.Millisecond).String()})
	}

	status := "Offline"
	if st.Online {
		status = "Online"
	}
	lines = append(lines, Line{Label: "Status", Value: status, Good: st.Online})

	return lines
}

// Render writes the report for st to w.
func Render(w io.Writer, st *models.ServerStatus, p Palette) error {
	var sb strings.Builder

	sb.WriteString("\n")
	sb.WriteString(p.Bold("=== Server information ==="))
	sb.WriteString("\n")

	for _, l := range Lines(st) {
		value := l.Value
		if l.Good {
			value = p.Green(value)
		}
		fmt.Fprintf(&sb, "%s %s\n", p.Yellow(l.Label+":"), value)
	}
	sb.WriteString("\n")

	_, err := io.WriteString(w, sb.String())
	return err
}
