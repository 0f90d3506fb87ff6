package maintenance

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woozymasta/mcpanel/internal/config"
	"github.com/woozymasta/mcpanel/internal/models"
	"github.com/woozymasta/mcpanel/internal/status"
)

type fakeStore struct {
	targets []models.Target
	cutoff  time.Time
	deleted int64
}

func (f *fakeStore) Targets() ([]models.Target, error) { return f.targets, nil }

func (f *fakeStore) DeleteBefore(t time.Time) (int64, error) {
	f.cutoff = t
	return f.deleted, nil
}

type fakeQuerier struct {
	down     map[string]bool
	seen     []status.Request
	inFlight atomic.Int32
	peak     atomic.Int32
	mu       sync.Mutex
}

func (q *fakeQuerier) Query(_ context.Context, req status.Request) (*models.ServerStatus, error) {
	n := q.inFlight.Add(1)
	defer q.inFlight.Add(-1)
	for {
		p := q.peak.Load()
		if n <= p || q.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	q.mu.Lock()
	q.seen = append(q.seen, req)
	q.mu.Unlock()

	if q.down[req.Host] {
		return nil, &status.QueryError{Err: errors.New("refused")}
	}
	return &models.ServerStatus{Online: true}, nil
}

func TestCheckAll(t *testing.T) {
	targets := []models.Target{{Host: "a"}, {Host: "b", Port: 25570}, {Host: "c"}, {Host: "d"}, {Host: "e"}}
	q := &fakeQuerier{down: map[string]bool{"b": true, "d": true}}

	sum := CheckAll(context.Background(), targets, q, 2)

	assert.Equal(t, Summary{Total: 5, Online: 3, Offline: 2}, sum)
	assert.LessOrEqual(t, q.peak.Load(), int32(2))
	require.Len(t, q.seen, 5)
	for _, req := range q.seen {
		assert.Equal(t, models.ModeStatus, req.Mode)
		if req.Host == "b" {
			assert.Equal(t, 25570, req.Port)
		}
	}
}

func TestRunPrune(t *testing.T) {
	cfg := &config.Config{Storage: config.Storage{Prune: 24 * time.Hour}}
	store := &fakeStore{deleted: 3}

	require.True(t, Run(context.Background(), cfg, store, &fakeQuerier{}))
	assert.WithinDuration(t, time.Now().Add(-24*time.Hour), store.cutoff, time.Minute)
}

func TestRunCheckAll(t *testing.T) {
	cfg := &config.Config{Storage: config.Storage{CheckAll: true, Workers: 4}}
	store := &fakeStore{targets: []models.Target{{Host: "a"}, {Host: "b"}}}
	q := &fakeQuerier{}

	require.True(t, Run(context.Background(), cfg, store, q))
	assert.Len(t, q.seen, 2)
}

func TestRunNothingToDo(t *testing.T) {
	require.False(t, Run(context.Background(), &config.Config{}, &fakeStore{}, &fakeQuerier{}))
}
