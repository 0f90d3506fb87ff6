// Package models defines the data structures shared by the resolver, the query flow,
// the report renderer and the history store.
package models

import (
	"encoding/json"
	"net"
	"strconv"
	"time"
)

// DefaultPort is the Minecraft Java edition port used when neither an explicit port
// nor a discovery record is available.
const DefaultPort = 25565

// Endpoint is the resolved address of a server. It is immutable once obtained.
type Endpoint struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// String returns the endpoint in host:port form.
func (e Endpoint) String() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// Target is what the operator asked for: a host and an optional explicit port (0 = resolve).
type Target struct {
	Host string `json:"host"`
	Port int    `json:"port,omitempty"`
}

// Mode selects how much of the server is queried.
type Mode string

const (
	// ModeStatus performs only the status handshake.
	ModeStatus Mode = "status"

	// ModeQuery performs the status handshake and the extended query.
	ModeQuery Mode = "query"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeStatus || m == ModeQuery
}

// VersionKind tags the Version union.
type VersionKind uint8

const (
	// VersionAbsent means the server did not report a version.
	VersionAbsent VersionKind = iota
	// VersionSimple is a bare version string.
	VersionSimple
	// VersionStructured is a {name, protocol} pair.
	VersionStructured
)

// Version is either Simple(name) or Structured(name, protocol).
type Version struct {
	Name     string      `json:"name,omitempty"`
	Protocol int         `json:"protocol,omitempty"`
	Kind     VersionKind `json:"-"`
}

// SimpleVersion builds the Simple variant.
func SimpleVersion(name string) Version {
	if name == "" {
		return Version{}
	}
	return Version{Kind: VersionSimple, Name: name}
}

// StructuredVersion builds the Structured variant.
func StructuredVersion(name string, protocol int) Version {
	return Version{Kind: VersionStructured, Name: name, Protocol: protocol}
}

// Present reports whether a version was reported.
func (v Version) Present() bool {
	return v.Kind != VersionAbsent && v.Name != ""
}

// Display returns the text shown to the operator.
func (v Version) Display() string {
	return v.Name
}

// MotdKind tags the Motd union.
type MotdKind uint8

const (
	// MotdAbsent means the server sent no message of the day.
	MotdAbsent MotdKind = iota
	// MotdPlain is a plain text message.
	MotdPlain
	// MotdRich is a chat component with formatting.
	MotdRich
)

// Motd is either PlainText(text) or Rich(clean, raw).
type Motd struct {
	Raw   json.RawMessage `json:"raw,omitempty"`
	Clean string          `json:"clean"`
	Kind  MotdKind        `json:"-"`
}

// PlainMotd builds the PlainText variant.
func PlainMotd(text string) Motd {
	if text == "" {
		return Motd{}
	}
	return Motd{Kind: MotdPlain, Clean: text}
}

// RichMotd builds the Rich variant from its cleaned text and the original component.
func RichMotd(clean string, raw json.RawMessage) Motd {
	return Motd{Kind: MotdRich, Clean: clean, Raw: raw}
}

// Present reports whether there is something to display.
func (m Motd) Present() bool {
	return m.Kind != MotdAbsent && m.Clean != ""
}

// Display returns the text shown to the operator.
func (m Motd) Display() string {
	return m.Clean
}

// ServerStatus is the result of one query. It is constructed fresh per query.
type ServerStatus struct {
	QueriedAt     time.Time     `json:"queried_at"`
	Version       Version       `json:"version"`
	Motd          Motd          `json:"motd"`
	RealHost      string        `json:"real_host"`
	Software      string        `json:"software,omitempty"`
	Map           string        `json:"map,omitempty"`
	Country       string        `json:"country,omitempty"`
	Warning       string        `json:"warning,omitempty"`
	QueryID       string        `json:"query_id"`
	PluginNames   []string      `json:"plugins"`
	PlayerSample  []string      `json:"player_sample,omitempty"`
	Port          int           `json:"port"`
	PlayersOnline int           `json:"players_online"`
	PlayersMax    int           `json:"players_max"`
	Latency       time.Duration `json:"latency"`
	Mode          Mode          `json:"mode"`
	Online        bool          `json:"online"`
	HasFavicon    bool          `json:"has_favicon"`
	Degraded      bool          `json:"degraded"`
}

// Endpoint returns the resolved endpoint the status was obtained from.
func (s *ServerStatus) Endpoint() Endpoint {
	return Endpoint{Host: s.RealHost, Port: s.Port}
}

// HistoryEntry is one row of the query journal kept in the database.
type HistoryEntry struct {
	QueriedAt     time.Time `json:"queried_at"`
	ID            string    `json:"id"`
	Host          string    `json:"host"`
	RealHost      string    `json:"real_host"`
	Mode          Mode      `json:"mode"`
	Motd          string    `json:"motd"`
	Version       string    `json:"version"`
	Plugins       string    `json:"plugins"`
	Error         string    `json:"error,omitempty"`
	EndpointKey   uint64    `json:"endpoint_key"`
	Port          int       `json:"port"`
	RealPort      int       `json:"real_port"`
	PlayersOnline int       `json:"players_online"`
	PlayersMax    int       `json:"players_max"`
	LatencyMS     int64     `json:"latency_ms"`
	Online        bool      `json:"online"`
}
