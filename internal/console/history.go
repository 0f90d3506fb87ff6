package console

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/woozymasta/mcpanel/internal/models"
	"github.com/woozymasta/mcpanel/internal/report"
)

// historyLine formats one recorded query for the history view.
func historyLine(e models.HistoryEntry, p report.Palette) string {
	var sb strings.Builder

	target := e.Host
	if e.Port > 0 {
		target = models.Endpoint{Host: e.Host, Port: e.Port}.String()
	}
	resolved := models.Endpoint{Host: e.RealHost, Port: e.RealPort}.String()

	fmt.Fprintf(&sb, "%-16s %s -> %s [%s] ", humanize.Time(e.QueriedAt), target, resolved, e.Mode)

	if !e.Online {
		sb.WriteString(p.Red("offline"))
		if e.Error != "" {
			sb.WriteString(": " + e.Error)
		}
		return sb.String()
	}

	sb.WriteString(p.Green("online"))
	fmt.Fprintf(&sb, " %s/%s players", humanize.Comma(int64(e.PlayersOnline)), humanize.Comma(int64(e.PlayersMax)))
	if e.LatencyMS > 0 {
		fmt.Fprintf(&sb, ", %dms", e.LatencyMS)
	}
	if e.Error != "" {
		sb.WriteString(" " + p.Yellow("("+e.Error+")"))
	}

	return sb.String()
}
