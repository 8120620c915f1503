package transform

import "sync/atomic"

// Gauge tracks how many decoded images are alive and the highest value
// seen. A nil *Gauge is a no-op.
type Gauge struct {
	cur  atomic.Int64
	peak atomic.Int64
}

// Acquire marks one more decoded image alive.
func (g *Gauge) Acquire() {
	if g == nil {
		return
	}
	n := g.cur.Add(1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			return
		}
	}
}

// Release marks a decoded image as dropped.
func (g *Gauge) Release() {
	if g == nil {
		return
	}
	g.cur.Add(-1)
}

// Current returns the number of decoded images alive now.
func (g *Gauge) Current() int {
	if g == nil {
		return 0
	}
	return int(g.cur.Load())
}

// Peak returns the highest number of decoded images alive at once.
func (g *Gauge) Peak() int {
	if g == nil {
		return 0
	}
	return int(g.peak.Load())
}
