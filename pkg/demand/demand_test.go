package demand

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cmsdynamo/dynamo/pkg/adapters"
)

func TestIsLocked(t *testing.T) {
	m := New(Config{})
	m.SetLocks([]adapters.LockEntry{{Dataset: "/a/b/c"}})
	assert.True(t, m.IsLocked("/a/b/c"))
	assert.False(t, m.IsLocked("/x/y/z"))
}

func TestRequestRankCountsPendingRequests(t *testing.T) {
	m := New(Config{})
	m.SetPendingRequests([]adapters.PendingRequest{
		{Dataset: "/a/b/c"}, {Dataset: "/a/b/c"}, {Dataset: "/d/e/f"},
	})
	assert.Equal(t, 2.0, m.RequestRank("/a/b/c"))
	assert.Equal(t, 1.0, m.RequestRank("/d/e/f"))
	assert.Equal(t, 0.0, m.RequestRank("/unknown"))
}

func TestAccessRankWeightsRecentBinsMore(t *testing.T) {
	fixedNow := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	clockNow = func() time.Time { return fixedNow }
	defer func() { clockNow = time.Now }()

	m := New(Config{
		WeightTimeBins: []TimeBin{
			{Delta: 7 * 24 * time.Hour, Weight: 1.0},
			{Delta: 1 * 24 * time.Hour, Weight: 5.0},
		},
	})

	recentDay := fixedNow.Add(-12 * time.Hour).Unix() / 86400
	oldDay := fixedNow.Add(-5 * 24 * time.Hour).Unix() / 86400

	m.SetAccessHistory([]adapters.AccessRecord{
		{Dataset: "/a/b/c", Day: recentDay, Count: 2},
		{Dataset: "/a/b/c", Day: oldDay, Count: 10},
	})

	rank := m.AccessRank("/a/b/c")
	assert.InDelta(t, 2*5.0+10*1.0, rank, 1e-9)
}

func TestGlobalUsageRankCombinesSignals(t *testing.T) {
	m := New(Config{})
	m.SetPendingRequests([]adapters.PendingRequest{{Dataset: "/a/b/c"}})
	rank := m.GlobalUsageRank("/a/b/c")
	assert.Equal(t, 1.0, rank)
}

func TestSourcesStaleWithNoExpirationNeverStale(t *testing.T) {
	m := New(Config{})
	assert.False(t, m.SourcesStale())
}

func TestSourcesStaleBeforeAnyFetch(t *testing.T) {
	m := New(Config{SourceExpiration: time.Minute})
	assert.True(t, m.SourcesStale())
}
