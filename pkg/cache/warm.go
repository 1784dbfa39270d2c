package cache

import (
	"context"
	"sync"
	"time"
)

// WarmConfig holds product warm-up configuration.
type WarmConfig struct {
	// MaxConcurrency is the number of parallel cache writers.
	MaxConcurrency int
}

// DefaultWarmConfig returns a safe default warm-up configuration.
func DefaultWarmConfig() WarmConfig {
	return WarmConfig{MaxConcurrency: 8}
}

// WarmProducts pre-populates product snapshots using a bounded worker pool,
// typically after a catalog mutation invalidated them. Warming is
// best-effort: individual write failures are logged and skipped. Returns
// the number of products cached.
func (s *Service) WarmProducts(ctx context.Context, products map[string]any, cfg WarmConfig) int {
	if len(products) == 0 {
		return 0
	}
	workers := cfg.MaxConcurrency
	if workers <= 0 {
		workers = DefaultWarmConfig().MaxConcurrency
	}
	if workers > len(products) {
		workers = len(products)
	}

	start := time.Now()

	type job struct {
		id   string
		data any
	}
	jobs := make(chan job, len(products))
	for id, data := range products {
		jobs <- job{id: id, data: data}
	}
	close(jobs)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		warmed int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}

				if err := s.CacheProduct(ctx, j.id, j.data); err != nil {
					s.logger.Warn().
						Err(err).
						Str("product_id", j.id).
						Msg("Product warm-up write failed")
					continue
				}
				mu.Lock()
				warmed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	s.logger.Info().
		Int("warmed", warmed).
		Int("requested", len(products)).
		Dur("duration", time.Since(start)).
		Msg("Product warm-up complete")
	return warmed
}
