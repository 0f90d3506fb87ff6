// Package fake provides an in-process Minecraft server that answers the status handshake
// over TCP and the full-stat query over UDP with canned data. It backs the tests and the
// hidden --fake-server demo flag.
package fake

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/mcpanel/internal/game"
	"github.com/woozymasta/mcpanel/internal/models"
)

// DefaultStatus is a status document shaped like a Paper server's answer.
const DefaultStatus = `{
	"version": {"name": "Paper 1.20.4", "protocol": 765},
	"players": {"max": 100, "online": 3, "sample": [{"name": "Steve", "id": "8667ba71-b85a-4004-af54-457a9734eed7"}]},
	"description": {"text": "", "extra": [{"text": "§aA Minecraft"}, {"text": " Server", "bold": true}]},
	"favicon": "data:image/png;base64,iVBORw0KGgo="
}`

// Handshake records what a client sent in its status handshake.
type Handshake struct {
	Host     string
	Port     uint16
	Protocol int32
}

// QueryData is the full-stat payload. Keys keep their order on the wire.
type QueryData struct {
	Keys    []string
	Values  map[string]string
	Players []string
	Token   int32
}

// DefaultQuery returns full-stat data matching DefaultStatus.
func DefaultQuery() *QueryData {
	return &QueryData{
		Keys: []string{"hostname", "gametype", "game_id", "version", "plugins", "map", "numplayers", "maxplayers", "hostport", "hostip"},
		Values: map[string]string{
			"hostname":   "§aA Minecraft Server",
			"gametype":   "SMP",
			"game_id":    "MINECRAFT",
			"version":    "1.20.4",
			"plugins":    "Paper on git-Paper-496 (MC: 1.20.4): WorldEdit 7.2.19; LuckPerms 5.4.117",
			"map":        "world",
			"numplayers": "3",
			"maxplayers": "100",
			"hostport":   "25565",
			"hostip":     "127.0.0.1",
		},
		Players: []string{"Steve", "Alex", "Notch"},
		Token:   9513307,
	}
}

// Options configure the fake server.
type Options struct {
	// Query enables the UDP full-stat responder; nil leaves the UDP port closed.
	Query *QueryData

	// Address to listen on; defaults to 127.0.0.1:0.
	Address string

	// Status is the raw status JSON document; defaults to DefaultStatus.
	Status string

	// StatusDelay holds the status response back, to exercise timeouts.
	StatusDelay time.Duration

	// DropPong skips the answer to the latency probe.
	DropPong bool

	// GarbageQuery answers the full-stat request with an unparsable datagram.
	GarbageQuery bool
}

// Server is a running fake Minecraft server.
type Server struct {
	listener   net.Listener
	packetConn net.PacketConn
	done       chan struct{}
	conns      map[net.Conn]struct{}
	opts       Options
	handshakes []Handshake
	wg         sync.WaitGroup
	mu         sync.Mutex
	queries    int
	port       int
}

// Start launches the server. TCP and UDP share the same port number.
func Start(opts Options) (*Server, error) {
	if opts.Address == "" {
		opts.Address = "127.0.0.1:0"
	}
	if opts.Status == "" {
		opts.Status = DefaultStatus
	}

	s := &Server{opts: opts, done: make(chan struct{}), conns: make(map[net.Conn]struct{})}

	const attempts = 10
	var err error
	for i := 0; i < attempts; i++ {
		if err = s.listen(); err == nil {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	s.wg.Add(1)
	go s.acceptLoop()

	if s.packetConn != nil {
		s.wg.Add(1)
		go s.queryLoop()
	}

	log.Debug().Int("port", s.port).Bool("query", opts.Query != nil).Msg("Fake server started")

	return s, nil
}

// listen binds TCP and, when enabled, UDP on the same port.
func (s *Server) listen() error {
	ln, err := net.Listen("tcp", s.opts.Address)
	if err != nil {
		return err
	}

	addr, ok := ln.Addr().(*net.TCPAddr)
	if !ok {
		_ = ln.Close()
		return fmt.Errorf("unexpected listener address %s", ln.Addr())
	}

	if s.opts.Query != nil {
		pc, err := net.ListenPacket("udp", net.JoinHostPort(addr.IP.String(), strconv.Itoa(addr.Port)))
		if err != nil {
			_ = ln.Close()
			return err
		}
		s.packetConn = pc
	}

	s.listener = ln
	s.port = addr.Port
	return nil
}

// Endpoint returns the address clients should query.
func (s *Server) Endpoint() models.Endpoint {
	host, _, _ := net.SplitHostPort(s.listener.Addr().String())
	return models.Endpoint{Host: host, Port: s.port}
}

// Handshakes returns the status handshakes received so far.
func (s *Server) Handshakes() []Handshake {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Handshake(nil), s.handshakes...)
}

// Queries returns the number of full-stat requests answered.
func (s *Server) Queries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries
}

// Close stops the server and waits for its goroutines.
func (s *Server) Close() error {
	close(s.done)
	err := s.listener.Close()
	if s.packetConn != nil {
		err = errors.Join(err, s.packetConn.Close())
	}

	s.mu.Lock()
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	return err
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}

		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(conn)

			s.mu.Lock()
			delete(s.conns, conn)
			s.mu.Unlock()
		}()
	}
}

// serveConn answers handshake, status request and ping on one connection.
func (s *Server) serveConn(conn net.Conn) {
	defer func() { _ = conn.Close() }()
	_ = conn.SetDeadline(time.Now().Add(10 * time.Second))

	r := bufio.NewReader(conn)

	id, body, err := game.ReadPacket(r)
	if err != nil || id != 0x00 {
		return
	}
	hs, next, err := parseHandshake(body)
	if err != nil {
		log.Debug().Err(err).Msg("Fake server got a bad handshake")
		return
	}

	s.mu.Lock()
	s.handshakes = append(s.handshakes, hs)
	s.mu.Unlock()

	if next != 1 {
		return
	}

	if id, _, err = game.ReadPacket(r); err != nil || id != 0x00 {
		return
	}

	if s.opts.StatusDelay > 0 {
		select {
		case <-time.After(s.opts.StatusDelay):
		case <-s.done:
			return
		}
	}

	if _, err := conn.Write(game.EncodePacket(0x00, game.AppendString(nil, s.opts.Status))); err != nil {
		return
	}

	if s.opts.DropPong {
		_, _ = io.Copy(io.Discard, r)
		return
	}

	id, body, err = game.ReadPacket(r)
	if err != nil || id != 0x01 {
		return
	}
	payload, _ := io.ReadAll(body)
	_, _ = conn.Write(game.EncodePacket(0x01, payload))
}

func parseHandshake(body *bytes.Reader) (Handshake, int32, error) {
	var hs Handshake
	var err error

	if hs.Protocol, err = game.ReadVarInt(body); err != nil {
		return hs, 0, err
	}
	if hs.Host, err = game.ReadString(body); err != nil {
		return hs, 0, err
	}
	if err = binary.Read(body, binary.BigEndian, &hs.Port); err != nil {
		return hs, 0, err
	}
	next, err := game.ReadVarInt(body)
	return hs, next, err
}

// queryLoop answers the UDP handshake and full-stat requests.
func (s *Server) queryLoop() {
	defer s.wg.Done()

	buf := make([]byte, 1500)
	for {
		n, addr, err := s.packetConn.ReadFrom(buf)
		if err != nil {
			return
		}

		req := buf[:n]
		if len(req) < 7 || req[0] != 0xFE || req[1] != 0xFD {
			continue
		}
		kind, session := req[2], req[3:7]

		var resp []byte
		switch kind {
		case 0x09:
			resp = append([]byte{0x09}, session...)
			resp = append(resp, strconv.Itoa(int(s.opts.Query.Token))...)
			resp = append(resp, 0)
		case 0x00:
			if len(req) < 11 || int32(binary.BigEndian.Uint32(req[7:11])) != s.opts.Query.Token {
				continue
			}
			s.mu.Lock()
			s.queries++
			s.mu.Unlock()
			if s.opts.GarbageQuery {
				resp = append([]byte{0x00}, session...)
				resp = append(resp, "garbage"...)
			} else {
				resp = s.fullStat(session)
			}
		default:
			continue
		}

		_, _ = s.packetConn.WriteTo(resp, addr)
	}
}

func (s *Server) fullStat(session []byte) []byte {
	q := s.opts.Query

	resp := append([]byte{0x00}, session...)
	resp = append(resp, "splitnum\x00\x80\x00"...)
	for _, k := range q.Keys {
		resp = append(resp, k...)
		resp = append(resp, 0)
		resp = append(resp, q.Values[k]...)
		resp = append(resp, 0)
	}
	resp = append(resp, 0)

	resp = append(resp, "\x01player_\x00\x00"...)
	for _, p := range q.Players {
		resp = append(resp, p...)
		resp = append(resp, 0)
	}
	return append(resp, 0)
}
