// Package background runs long-lived maintenance goroutines next to the HTTP server.
// Each service is started with a stop channel and stops when that channel is closed.
package background

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Pruner drops state that is no longer needed and reports how many entries it removed.
type Pruner interface {
	Prune() int
}

// StartPruner calls p.Prune every interval until stopChan is closed.
// The returned WaitGroup is done once the goroutine has exited.
func StartPruner(name string, p Pruner, interval time.Duration, stopChan <-chan struct{}, log zerolog.Logger) *sync.WaitGroup {
	log = log.With().Str("worker", name).Logger()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer log.Debug().Msg("pruner stopped")

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if removed := p.Prune(); removed > 0 {
					log.Debug().Int("removed", removed).Msg("pruned stale entries")
				}
			case <-stopChan:
				return
			}
		}
	}()

	log.Info().Dur("interval", interval).Msg("pruner started")
	return &wg
}
