package publish

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Backdating window, in days before now.
const (
	MinBackdateDays = 1
	MaxBackdateDays = 180
)

// Scheduler hands out publish dates spread over the past half year so a
// batch of pages does not appear on one day.
type Scheduler struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// NewScheduler creates a Scheduler. A fixed seed and clock make the
// sequence reproducible; nil now means time.Now.
func NewScheduler(seed uint64, now func() time.Time) *Scheduler {
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		now: now,
	}
}

// Next returns a timestamp between MinBackdateDays and MaxBackdateDays
// days ago, truncated to the second.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	days := MinBackdateDays + s.rng.IntN(MaxBackdateDays-MinBackdateDays+1)
	s.mu.Unlock()

	return s.now().AddDate(0, 0, -days).Truncate(time.Second)
}
