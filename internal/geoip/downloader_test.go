package geoip

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureDBDownloadsMissingFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("mmdb-bytes"))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "country.mmdb")
	require.NoError(t, EnsureDB(context.Background(), path, srv.URL, time.Hour))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "mmdb-bytes", string(data))

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestEnsureDBSkipsFreshFile(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		_, _ = w.Write([]byte("new"))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "country.mmdb")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0600))

	require.NoError(t, EnsureDB(context.Background(), path, srv.URL, time.Hour))
	assert.Zero(t, hits)

	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	require.NoError(t, EnsureDB(context.Background(), path, srv.URL, time.Hour))
	assert.Equal(t, 1, hits)
}

func TestEnsureDBBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "country.mmdb")
	require.Error(t, EnsureDB(context.Background(), path, srv.URL, time.Hour))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestOpenMissingDatabase(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.mmdb"))
	require.Error(t, err)
}

func TestRoutableIP(t *testing.T) {
	for _, s := range []string{"", "nope", "127.0.0.1", "10.1.2.3", "192.168.0.10", "0.0.0.0", "::1", "fe80::1"} {
		assert.Nil(t, routableIP(s), s)
	}
	assert.NotNil(t, routableIP("203.0.113.7"))
	assert.NotNil(t, routableIP("2001:db8::1"))
}
