// Package demand fuses the three raw signals pkg/adapters' demand adapters
// collect — locks, access history, and the pending request queue — into a
// single global_usage_rank per dataset, the key Detox sorts deletion
// candidates by (§4.5).
package demand

import (
	"sync"
	"time"

	"github.com/cmsdynamo/dynamo/pkg/adapters"
	"github.com/cmsdynamo/dynamo/pkg/log"
)

var demandLog = log.WithComponent("demand")

// TimeBin is one weighted window of the access-rank sum: accesses in
// [now-Delta, now-nextDelta) contribute Weight * count, where nextDelta is
// the Delta of the following (more recent) bin; the last bin's window ends
// at now. Bins are configured oldest-first, so Delta strictly decreases
// along the slice.
type TimeBin struct {
	Delta  time.Duration
	Weight float64
}

// Config is the demand manager's static configuration (§6).
type Config struct {
	WeightTimeBins   []TimeBin
	AccessIncrement  time.Duration
	AccessMaxBack    time.Duration
	SourceExpiration time.Duration // how long a cached source is trusted before a refresh is required
}

type accessBin struct {
	day   int64 // unix day
	count int
}

// Manager holds the fused demand signals. Each source has its own
// expiration clock: a stale lock list does not block a fresh access
// history update, and vice versa.
type Manager struct {
	mu sync.RWMutex

	cfg Config

	locks          map[string]bool
	locksFetchedAt time.Time

	access          map[string][]accessBin
	accessFetchedAt time.Time

	pending          map[string]int
	pendingFetchedAt time.Time
}

// New returns a Manager with empty signal caches.
func New(cfg Config) *Manager {
	return &Manager{
		cfg:     cfg,
		locks:   make(map[string]bool),
		access:  make(map[string][]accessBin),
		pending: make(map[string]int),
	}
}

// SetLocks replaces the lock cache from a fresh fetch across every
// configured lock source.
func (m *Manager) SetLocks(entries []adapters.LockEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locks = make(map[string]bool, len(entries))
	for _, e := range entries {
		m.locks[e.Dataset] = true
	}
	m.locksFetchedAt = clockNow()
}

// SetAccessHistory replaces the access-history cache from a fresh fetch.
func (m *Manager) SetAccessHistory(records []adapters.AccessRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.access = make(map[string][]accessBin, len(records))
	for _, r := range records {
		m.access[r.Dataset] = append(m.access[r.Dataset], accessBin{day: r.Day, count: r.Count})
	}
	m.accessFetchedAt = clockNow()
}

// SetPendingRequests replaces the pending-request cache from a fresh
// fetch.
func (m *Manager) SetPendingRequests(reqs []adapters.PendingRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = make(map[string]int, len(reqs))
	for _, r := range reqs {
		m.pending[r.Dataset]++
	}
	m.pendingFetchedAt = clockNow()
}

// clockNow is the single indirection point for "now" so tests can swap it;
// production code always uses the wall clock.
var clockNow = time.Now

// IsLocked reports whether the dataset appears in any configured lock
// source (§4.5's boolean lock signal).
func (m *Manager) IsLocked(dataset string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.locks[dataset]
}

// AccessRank computes the weighted time-bin sum for dataset using the
// currently-cached access history and the configured bins.
func (m *Manager) AccessRank(dataset string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bins := m.access[dataset]
	if len(bins) == 0 || len(m.cfg.WeightTimeBins) == 0 {
		return 0
	}

	now := clockNow()
	var rank float64
	for i, tb := range m.cfg.WeightTimeBins {
		windowStart := now.Add(-tb.Delta)
		var windowEnd time.Time
		if i == len(m.cfg.WeightTimeBins)-1 {
			windowEnd = now
		} else {
			windowEnd = now.Add(-m.cfg.WeightTimeBins[i+1].Delta)
		}
		for _, b := range bins {
			t := time.Unix(b.day*86400, 0).UTC()
			if !t.Before(windowStart) && t.Before(windowEnd) {
				rank += tb.Weight * float64(b.count)
			}
		}
	}
	return rank
}

// RequestRank returns the count of pending requests for dataset from the
// global request queue.
func (m *Manager) RequestRank(dataset string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return float64(m.pending[dataset])
}

// GlobalUsageRank combines access rank and request rank into the single
// score Detox sorts deletion candidates by (ascending, so the least
// demanded replica is evicted first). Locked datasets
// are never eligible for deletion regardless of rank; callers must check
// IsLocked separately before consulting this rank.
func (m *Manager) GlobalUsageRank(dataset string) float64 {
	return m.AccessRank(dataset) + m.RequestRank(dataset)
}

// SourcesStale reports whether any cached source is older than
// cfg.SourceExpiration, meaning a refresh should run before this rank is
// trusted for a policy decision.
func (m *Manager) SourcesStale() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cfg.SourceExpiration <= 0 {
		return false
	}
	now := clockNow()
	oldest := m.locksFetchedAt
	if m.accessFetchedAt.Before(oldest) {
		oldest = m.accessFetchedAt
	}
	if m.pendingFetchedAt.Before(oldest) {
		oldest = m.pendingFetchedAt
	}
	if oldest.IsZero() {
		return true
	}
	stale := now.Sub(oldest) > m.cfg.SourceExpiration
	if stale {
		demandLog.Warn().Dur("age", now.Sub(oldest)).Msg("demand sources stale")
	}
	return stale
}
