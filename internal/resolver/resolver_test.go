package resolver

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woozymasta/mcpanel/internal/models"
)

type fakeLookuper struct {
	err     error
	records map[string][]*net.SRV
	calls   []string
}

func (f *fakeLookuper) LookupSRV(_ context.Context, service, proto, name string) (string, []*net.SRV, error) {
	qname := "_" + service + "._" + proto + "." + name
	f.calls = append(f.calls, qname)
	if f.err != nil {
		return "", nil, f.err
	}
	recs, ok := f.records[qname]
	if !ok {
		return "", nil, &net.DNSError{Err: "no such host", Name: qname, IsNotFound: true}
	}
	return qname, recs, nil
}

func TestResolveWithoutRecordFallsBackToDefaultPort(t *testing.T) {
	lk := &fakeLookuper{}
	r := NewWithLookuper(lk, time.Second)

	ep := r.Resolve(context.Background(), "example.test", 0)

	require.Equal(t, models.Endpoint{Host: "example.test", Port: 25565}, ep)
	require.Equal(t, []string{"_minecraft._tcp.example.test"}, lk.calls)
}

func TestResolveUsesSRVRecord(t *testing.T) {
	lk := &fakeLookuper{records: map[string][]*net.SRV{
		"_minecraft._tcp.example.test": {{Target: "mc.example.test.", Port: 30000}},
	}}
	r := NewWithLookuper(lk, time.Second)

	ep := r.Resolve(context.Background(), "example.test", 0)

	require.Equal(t, models.Endpoint{Host: "mc.example.test", Port: 30000}, ep)
}

func TestResolveFirstRecordWins(t *testing.T) {
	lk := &fakeLookuper{records: map[string][]*net.SRV{
		"_minecraft._tcp.example.test": {
			{Target: "b.example.test.", Port: 30001, Priority: 20},
			{Target: "a.example.test.", Port: 30000, Priority: 0, Weight: 100},
		},
	}}
	r := NewWithLookuper(lk, time.Second)

	ep := r.Resolve(context.Background(), "example.test", 0)

	require.Equal(t, models.Endpoint{Host: "b.example.test", Port: 30001}, ep)
}

func TestResolveExplicitPortSkipsLookup(t *testing.T) {
	lk := &fakeLookuper{records: map[string][]*net.SRV{
		"_minecraft._tcp.example.test": {{Target: "mc.example.test.", Port: 30000}},
	}}
	r := NewWithLookuper(lk, time.Second)

	ep := r.Resolve(context.Background(), "example.test", 25570)

	require.Equal(t, models.Endpoint{Host: "example.test", Port: 25570}, ep)
	require.Empty(t, lk.calls)
}

func TestResolveAbsorbsErrors(t *testing.T) {
	cases := map[string]*fakeLookuper{
		"dns error":    {err: errors.New("server misbehaving")},
		"timeout":      {err: &net.DNSError{Err: "i/o timeout", IsTimeout: true}},
		"empty answer": {records: map[string][]*net.SRV{"_minecraft._tcp.example.test": {}}},
		"nil record":   {records: map[string][]*net.SRV{"_minecraft._tcp.example.test": {nil}}},
		"empty target": {records: map[string][]*net.SRV{"_minecraft._tcp.example.test": {{Target: ".", Port: 1}}}},
	}

	for name, lk := range cases {
		t.Run(name, func(t *testing.T) {
			ep := NewWithLookuper(lk, time.Second).Resolve(context.Background(), "example.test", 0)
			assert.Equal(t, models.Endpoint{Host: "example.test", Port: 25565}, ep)
		})
	}
}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		in      string
		host    string
		port    int
		wantErr bool
	}{
		{in: "play.example.test", host: "play.example.test"},
		{in: " play.example.test:25570 ", host: "play.example.test", port: 25570},
		{in: "[::1]:25565", host: "::1", port: 25565},
		{in: "::1", host: "::1"},
		{in: "", wantErr: true},
		{in: ":25565", wantErr: true},
		{in: "host:0", wantErr: true},
		{in: "host:70000", wantErr: true},
		{in: "host:abc", wantErr: true},
	}

	for _, tt := range tests {
		host, port, err := ParseAddress(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.host, host, tt.in)
		assert.Equal(t, tt.port, port, tt.in)
	}
}

func TestParsePort(t *testing.T) {
	p, err := ParsePort("")
	require.NoError(t, err)
	require.Zero(t, p)

	p, err = ParsePort("30000")
	require.NoError(t, err)
	require.Equal(t, 30000, p)

	_, err = ParsePort("-1")
	require.Error(t, err)
}
