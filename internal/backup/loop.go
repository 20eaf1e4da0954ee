package backup

import (
	"context"
	"time"

	"github.com/dshills/docsync/internal/buffer"
)

// Start begins snapshotting the buffer returned by current at every
// interval. current reports false when no buffer is active.
func (s *Snapshotter) Start(current func() (buffer.ID, bool)) {
	s.loopMu.Lock()
	defer s.loopMu.Unlock()

	if s.running {
		return
	}

	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go s.loop(current)
}

// Stop ends the loop started by Start and waits for the pass in flight.
func (s *Snapshotter) Stop() {
	s.loopMu.Lock()
	if !s.running {
		s.loopMu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	s.loopMu.Unlock()

	<-s.done
}

// IsRunning reports whether the loop is active.
func (s *Snapshotter) IsRunning() bool {
	s.loopMu.Lock()
	defer s.loopMu.Unlock()
	return s.running
}

func (s *Snapshotter) loop(current func() (buffer.ID, bool)) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	ctx := context.Background()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			id, ok := current()
			if !ok {
				continue
			}
			if _, err := s.Snapshot(ctx, id); err != nil {
				s.logger.Warn("snapshot of #%d failed: %v", id, err)
			}
		}
	}
}
