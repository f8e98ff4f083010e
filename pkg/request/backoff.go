package request

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// ProviderBackoff holds back a provider after failed requests. Each consecutive
// failure doubles the penalty up to a cap; one success clears it.
type ProviderBackoff struct {
	baseDelay, maxDelay time.Duration

	mu        sync.Mutex
	penalties map[string]penalty
}

type penalty struct {
	strikes int
	until   time.Time
}

// NewProviderBackoff creates a backoff that starts at baseDelay and never exceeds
// maxDelay plus jitter. A zero baseDelay disables it.
func NewProviderBackoff(baseDelay, maxDelay time.Duration) *ProviderBackoff {
	return &ProviderBackoff{baseDelay: baseDelay, maxDelay: maxDelay, penalties: make(map[string]penalty)}
}

// Wait blocks until the provider's penalty has elapsed or ctx ends.
func (b *ProviderBackoff) Wait(ctx context.Context, provider string) error {
	b.mu.Lock()
	wait := time.Until(b.penalties[provider].until)
	b.mu.Unlock()
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RecordFailure adds a strike and extends the penalty.
func (b *ProviderBackoff) RecordFailure(provider string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p := b.penalties[provider]
	p.strikes++
	p.until = time.Now().Add(b.delay(p.strikes))
	b.penalties[provider] = p
}

// RecordSuccess clears the provider's penalty.
func (b *ProviderBackoff) RecordSuccess(provider string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.penalties, provider)
}

// delay is base * 2^(strikes-1), capped, plus up to 10% jitter.
func (b *ProviderBackoff) delay(strikes int) time.Duration {
	if b.baseDelay <= 0 {
		return 0
	}
	d := b.maxDelay
	if strikes < 32 {
		if exp := b.baseDelay << (strikes - 1); exp > 0 && exp < b.maxDelay {
			d = exp
		}
	}
	return d + time.Duration(rand.Float64()*0.1*float64(d))
}

// GetState returns the strike count and the end of the current penalty.
func (b *ProviderBackoff) GetState(provider string) (strikes int, until time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p := b.penalties[provider]
	return p.strikes, p.until
}
