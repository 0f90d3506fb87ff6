package game

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math/rand"
	"net"
	"strconv"
	"strings"

	"github.com/woozymasta/mcpanel/internal/config"
	"github.com/woozymasta/mcpanel/internal/models"
)

const (
	queryTypeHandshake byte = 0x09
	queryTypeStat      byte = 0x00

	// sessionMask keeps session ids within the range servers echo back reliably.
	sessionMask = 0x0F0F0F0F

	// queryBufferSize fits any datagram the server may send.
	queryBufferSize = 65535
)

var (
	queryMagic = []byte{0xFE, 0xFD}

	// statPadding precedes the key/value section of a full-stat response.
	statPadding = []byte("splitnum\x00\x80\x00")

	// playerPadding precedes the player section of a full-stat response.
	playerPadding = []byte("\x01player_\x00\x00")
)

// QueryResponse is the decoded full-stat answer.
type QueryResponse struct {
	Motd          models.Motd
	Version       models.Version
	GameType      string
	GameID        string
	Map           string
	Software      string
	HostIP        string
	Plugins       []string
	Players       []string
	PlayersOnline int
	PlayersMax    int
	HostPort      int
}

// FullQuery performs the extended query handshake over UDP.
// The server must have enable-query set; otherwise the call times out.
func FullQuery(ctx context.Context, ep models.Endpoint, options config.Query) (*QueryResponse, error) {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "udp", ep.String())
	if err != nil {
		return nil, err
	}
	defer func() { _ = conn.Close() }()

	stop := bindContext(ctx, conn)
	defer stop()

	if err := conn.SetDeadline(deadline(ctx, timeout)); err != nil {
		return nil, err
	}

	session := rand.Int31() & sessionMask
	buf := make([]byte, queryBufferSize)

	// Challenge token
	if _, err := conn.Write(queryRequest(queryTypeHandshake, session, nil)); err != nil {
		return nil, ctxErr(ctx, fmt.Errorf("write handshake: %w", err))
	}
	n, err := conn.Read(buf)
	if err != nil {
		return nil, ctxErr(ctx, fmt.Errorf("read handshake: %w", err))
	}
	token, err := parseChallenge(buf[:n], session)
	if err != nil {
		return nil, err
	}

	// Full stat: challenge token followed by four padding bytes
	payload := binary.BigEndian.AppendUint32(nil, uint32(token))
	payload = append(payload, 0, 0, 0, 0)
	if _, err := conn.Write(queryRequest(queryTypeStat, session, payload)); err != nil {
		return nil, ctxErr(ctx, fmt.Errorf("write full stat: %w", err))
	}
	n, err = conn.Read(buf)
	if err != nil {
		return nil, ctxErr(ctx, fmt.Errorf("read full stat: %w", err))
	}

	return ParseFullStat(buf[:n], session)
}

// queryRequest builds a query datagram.
func queryRequest(kind byte, session int32, payload []byte) []byte {
	b := make([]byte, 0, 7+len(payload))
	b = append(b, queryMagic...)
	b = append(b, kind)
	b = binary.BigEndian.AppendUint32(b, uint32(session))
	return append(b, payload...)
}

// checkHeader validates the type byte and the echoed session id and returns the payload.
func checkHeader(b []byte, kind byte, session int32) ([]byte, error) {
	if len(b) < 5 {
		return nil, fmt.Errorf("%w: datagram too short", ErrMalformed)
	}
	if b[0] != kind {
		return nil, fmt.Errorf("%w: unexpected type 0x%02x", ErrMalformed, b[0])
	}
	if got := int32(binary.BigEndian.Uint32(b[1:5])); got != session {
		return nil, fmt.Errorf("%w: session mismatch", ErrMalformed)
	}
	return b[5:], nil
}

// parseChallenge extracts the numeric challenge token from a handshake response.
func parseChallenge(b []byte, session int32) (int32, error) {
	payload, err := checkHeader(b, queryTypeHandshake, session)
	if err != nil {
		return 0, err
	}

	token, err := strconv.ParseInt(string(bytes.TrimRight(payload, "\x00")), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: challenge token: %v", ErrMalformed, err)
	}

	return int32(token), nil
}

// ParseFullStat decodes a full-stat response datagram.
func ParseFullStat(b []byte, session int32) (*QueryResponse, error) {
	payload, err := checkHeader(b, queryTypeStat, session)
	if err != nil {
		return nil, err
	}

	if !bytes.HasPrefix(payload, statPadding) {
		return nil, fmt.Errorf("%w: missing stat padding", ErrMalformed)
	}
	payload = payload[len(statPadding):]

	kv := make(map[string]string)
	for {
		key, rest, ok := cutString(payload)
		if !ok {
			return nil, fmt.Errorf("%w: truncated key/value section", ErrMalformed)
		}
		payload = rest
		if key == "" {
			break
		}

		value, rest, ok := cutString(payload)
		if !ok {
			return nil, fmt.Errorf("%w: truncated value for %q", ErrMalformed, key)
		}
		payload = rest
		kv[key] = value
	}

	resp := &QueryResponse{
		Motd:     MotdFromText(kv["hostname"]),
		Version:  models.SimpleVersion(kv["version"]),
		GameType: kv["gametype"],
		GameID:   kv["game_id"],
		Map:      kv["map"],
		HostIP:   kv["hostip"],
	}
	resp.PlayersOnline, _ = strconv.Atoi(kv["numplayers"])
	resp.PlayersMax, _ = strconv.Atoi(kv["maxplayers"])
	resp.HostPort, _ = strconv.Atoi(kv["hostport"])
	resp.Software, resp.Plugins = ParsePlugins(kv["plugins"])

	// The player section is optional in practice; tolerate its absence.
	if bytes.HasPrefix(payload, playerPadding) {
		payload = payload[len(playerPadding):]
		for {
			name, rest, ok := cutString(payload)
			if !ok || name == "" {
				break
			}
			payload = rest
			resp.Players = append(resp.Players, name)
		}
	}

	return resp, nil
}

// ParsePlugins splits the plugins value ("<software>: A 1.0; B 2.0") into the server
// software and the ordered plugin entries. Vanilla servers send an empty value.
// A ": " inside parentheses belongs to the software name, as in "Paper (MC: 1.20.4)".
func ParsePlugins(value string) (string, []string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil
	}

	sep := pluginSeparator(value)
	if sep < 0 {
		return strings.TrimSpace(strings.TrimSuffix(value, ":")), nil
	}

	var plugins []string
	for _, p := range strings.Split(value[sep+2:], "; ") {
		if p = strings.TrimSpace(p); p != "" {
			plugins = append(plugins, p)
		}
	}

	return strings.TrimSpace(value[:sep]), plugins
}

// pluginSeparator returns the index of the first ": " outside parentheses, or -1.
func pluginSeparator(s string) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case ':':
			if depth == 0 && i+1 < len(s) && s[i+1] == ' ' {
				return i
			}
		}
	}
	return -1
}

// cutString splits a NUL-terminated string off the front of b.
func cutString(b []byte) (string, []byte, bool) {
	i := bytes.IndexByte(b, 0)
	if i < 0 {
		return "", nil, false
	}
	return string(b[:i]), b[i+1:], true
}
