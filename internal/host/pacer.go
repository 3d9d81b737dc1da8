package host

import "time"

// pacer converts elapsed wall time into a whole number of events at a fixed
// rate, carrying the remainder into the next call.
type pacer struct {
	period  time.Duration
	pending time.Duration
}

func newPacer(hz int) *pacer {
	return &pacer{
		period: time.Second / time.Duration(hz),
	}
}

func (p *pacer) advance(elapsed time.Duration) int {
	p.pending += elapsed
	n := p.pending / p.period
	p.pending -= n * p.period
	return int(n)
}

func (p *pacer) reset() {
	p.pending = 0
}
