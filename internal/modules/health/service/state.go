package service

import (
	"sync"
	"sync/atomic"
	"time"
)

type State struct {
	ready     atomic.Bool
	startedAt time.Time

	brokerConnected atomic.Bool

	mu       sync.RWMutex
	lastJobs map[string]time.Time // job -> время последнего завершённого запуска
}

// Snapshot: то, что отдаёт /healthz и /status.
type Snapshot struct {
	Ready           bool                 `json:"ready"`
	BrokerConnected bool                 `json:"broker_connected"`
	UptimeSec       int64                `json:"uptime_sec"`
	LastJobs        map[string]time.Time `json:"last_jobs"`
}

func NewState() *State {
	s := &State{startedAt: time.Now(), lastJobs: make(map[string]time.Time)}
	// до первого неудачного heartbeat считаем брокер доступным
	s.brokerConnected.Store(true)
	return s
}

func (s *State) SetReady(v bool) { s.ready.Store(v) }

// Ready: супервизор запущен и брокер на связи.
func (s *State) Ready() bool { return s.ready.Load() && s.brokerConnected.Load() }

func (s *State) SetBrokerConnected(v bool) { s.brokerConnected.Store(v) }
func (s *State) BrokerConnected() bool     { return s.brokerConnected.Load() }

func (s *State) TouchJob(job string, at time.Time) {
	s.mu.Lock()
	s.lastJobs[job] = at
	s.mu.Unlock()
}

func (s *State) LastJob(job string) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastJobs[job]
}

func (s *State) Uptime() time.Duration { return time.Since(s.startedAt) }

func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	jobs := make(map[string]time.Time, len(s.lastJobs))
	for k, v := range s.lastJobs {
		jobs[k] = v
	}
	s.mu.RUnlock()

	return Snapshot{
		Ready:           s.Ready(),
		BrokerConnected: s.BrokerConnected(),
		UptimeSec:       int64(s.Uptime().Seconds()),
		LastJobs:        jobs,
	}
}
