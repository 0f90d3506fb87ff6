// Package game implements the Minecraft Java edition status handshake (Server List Ping)
// over TCP and the GameSpy4 full-stat query over UDP.
package game

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/mcpanel/internal/config"
	"github.com/woozymasta/mcpanel/internal/models"
)

// DefaultTimeout applies when the configured timeout is not positive.
const DefaultTimeout = 5 * time.Second

const (
	packetHandshake int32 = 0x00
	packetStatus    int32 = 0x00
	packetPing      int32 = 0x01

	nextStateStatus int32 = 1
)

// StatusResponse is the decoded status handshake answer.
type StatusResponse struct {
	Version       models.Version
	Motd          models.Motd
	Favicon       string
	RemoteIP      string
	PlayerSample  []string
	PlayersOnline int
	PlayersMax    int
	Latency       time.Duration
}

// rawStatus mirrors the JSON document sent by the server.
type rawStatus struct {
	Version     json.RawMessage `json:"version"`
	Description json.RawMessage `json:"description"`
	Players     *struct {
		Sample []struct {
			Name string `json:"name"`
			ID   string `json:"id"`
		} `json:"sample"`
		Max    int `json:"max"`
		Online int `json:"online"`
	} `json:"players"`
	Favicon string `json:"favicon"`
}

// StatusPing connects to the server over TCP and performs the status handshake.
// The ping/pong latency probe that follows is best effort: its failure leaves Latency at zero.
func StatusPing(ctx context.Context, ep models.Endpoint, options config.Query) (*StatusResponse, error) {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", ep.String())
	if err != nil {
		return nil, err
	}
	defer func() { _ = conn.Close() }()

	stop := bindContext(ctx, conn)
	defer stop()

	if err := conn.SetDeadline(deadline(ctx, timeout)); err != nil {
		return nil, err
	}

	// Handshake followed by the empty status request
	handshake := AppendVarInt(nil, options.ProtocolVersion)
	handshake = AppendString(handshake, ep.Host)
	handshake = appendUint16(handshake, uint16(ep.Port))
	handshake = AppendVarInt(handshake, nextStateStatus)

	out := EncodePacket(packetHandshake, handshake)
	out = append(out, EncodePacket(packetStatus, nil)...)
	if _, err := conn.Write(out); err != nil {
		return nil, ctxErr(ctx, fmt.Errorf("write handshake: %w", err))
	}

	reader := bufio.NewReader(conn)
	id, body, err := ReadPacket(reader)
	if err != nil {
		return nil, ctxErr(ctx, fmt.Errorf("read status: %w", err))
	}
	if id != packetStatus {
		return nil, fmt.Errorf("%w: unexpected packet id 0x%02x", ErrMalformed, id)
	}

	doc, err := ReadString(body)
	if err != nil {
		return nil, fmt.Errorf("read status: %w", err)
	}

	resp, err := ParseStatus([]byte(doc))
	if err != nil {
		return nil, err
	}
	if addr, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
		resp.RemoteIP = addr.IP.String()
	}

	latency, err := ping(conn, reader)
	if err != nil {
		log.Debug().Err(err).Str("endpoint", ep.String()).Msg("Latency probe failed")
	} else {
		resp.Latency = latency
	}

	return resp, nil
}

// ParseStatus decodes the status JSON document into the tagged unions used by the rest of the program.
func ParseStatus(doc []byte) (*StatusResponse, error) {
	var raw rawStatus
	if err := json.Unmarshal(doc, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	resp := &StatusResponse{
		Version: decodeVersion(raw.Version),
		Motd:    DecodeMotd(raw.Description),
		Favicon: raw.Favicon,
	}

	if raw.Players != nil {
		resp.PlayersOnline = raw.Players.Online
		resp.PlayersMax = raw.Players.Max
		for _, p := range raw.Players.Sample {
			if p.Name != "" {
				resp.PlayerSample = append(resp.PlayerSample, StripFormatting(p.Name))
			}
		}
	}

	return resp, nil
}

// decodeVersion accepts both the {name, protocol} object and a bare string.
func decodeVersion(raw json.RawMessage) models.Version {
	if len(raw) == 0 {
		return models.Version{}
	}

	var structured struct {
		Name     string `json:"name"`
		Protocol int    `json:"protocol"`
	}
	if err := json.Unmarshal(raw, &structured); err == nil {
		if structured.Name == "" {
			return models.Version{}
		}
		return models.StructuredVersion(StripFormatting(structured.Name), structured.Protocol)
	}

	var simple string
	if err := json.Unmarshal(raw, &simple); err == nil {
		return models.SimpleVersion(StripFormatting(simple))
	}

	return models.Version{}
}

// ping sends a ping packet and waits for the matching pong.
func ping(conn net.Conn, reader *bufio.Reader) (time.Duration, error) {
	start := time.Now()
	payload := start.UnixMilli()

	if _, err := conn.Write(EncodePacket(packetPing, appendInt64(nil, payload))); err != nil {
		return 0, err
	}

	id, body, err := ReadPacket(reader)
	if err != nil {
		return 0, err
	}
	if id != packetPing || body.Len() != 8 {
		return 0, fmt.Errorf("%w: unexpected pong", ErrMalformed)
	}

	return time.Since(start), nil
}

// deadline returns the earlier of now+timeout and the context deadline.
func deadline(ctx context.Context, timeout time.Duration) time.Time {
	d := time.Now().Add(timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(d) {
		return dl
	}
	return d
}

// bindContext expires the connection deadline as soon as ctx is cancelled,
// unblocking any pending read or write.
func bindContext(ctx context.Context, conn net.Conn) func() bool {
	return context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0))
	})
}

// ctxErr prefers the context error over the I/O error it caused.
func ctxErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %v", ctx.Err(), err)
	}
	return err
}
