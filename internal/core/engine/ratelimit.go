package engine

import (
	"context"
	"math"

	"golang.org/x/time/rate"
)

// Pacer bounds the outbound request rate across all credentials.
// A nil Pacer never blocks.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer returns a pacer allowing rps requests per second scaled by margin
// (0-1]. It returns nil when rps is not positive.
func NewPacer(rps float64, margin float64) *Pacer {
	if rps <= 0 {
		return nil
	}
	if margin > 0 && margin <= 1 {
		rps *= margin
	}
	burst := int(math.Max(1, math.Floor(rps)))
	return &Pacer{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Wait blocks until a request may be issued or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil || p.limiter == nil {
		return nil
	}
	return p.limiter.Wait(ctx)
}

// Limit returns the effective requests per second, 0 when unpaced.
func (p *Pacer) Limit() float64 {
	if p == nil || p.limiter == nil {
		return 0
	}
	return float64(p.limiter.Limit())
}
