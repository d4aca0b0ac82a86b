package core

import (
	"context"
	"time"
)

// DefaultClearInterval is the decay period used when none is configured.
const DefaultClearInterval = 5 * time.Second

// RunDecay clears the error queue and notice on every tick until ctx is done.
// Entries are not aged individually: whatever is queued at a tick is dropped.
func (s *Store) RunDecay(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultClearInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.ClearTransient()
		case <-ctx.Done():
			return
		}
	}
}
