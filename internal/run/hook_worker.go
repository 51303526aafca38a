package run

import (
	"context"
	"time"
)

// hookWorker drains hookCh one job at a time until ctx ends. Jobs still
// queued at shutdown are discarded.
func (s *Server) hookWorker(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			if n := len(s.hookCh); n > 0 {
				s.logger.Debugf("hook: discarding %d queued job(s) on shutdown", n)
			}
			return
		case job := <-s.hookCh:
			began := time.Now()
			if err := s.hook.Run(ctx, job); err != nil {
				s.logger.Errorf("hook (window %d): %v", job.Window, err)
				continue
			}
			s.logger.Debugf("hook (window %d) done in %s", job.Window, time.Since(began).Round(time.Millisecond))
			s.incSent()
		}
	}
}
