package clock

import (
	"context"
	"math/rand"
	"time"
)

// Window is a closed range of randomized delay.
type Window struct {
	Min time.Duration
	Max time.Duration
}

// Pacer inserts randomized delays between network calls.
type Pacer struct {
	clock Clock
	rand  func() float64
}

// NewPacer wires a clock; rnd defaults to math/rand.Float64.
func NewPacer(c Clock, rnd func() float64) *Pacer {
	if c == nil {
		c = Real{}
	}
	if rnd == nil {
		rnd = rand.Float64
	}
	return &Pacer{clock: c, rand: rnd}
}

// Pick returns a duration uniformly drawn from w.
func (p *Pacer) Pick(w Window) time.Duration {
	if w.Max <= w.Min {
		return w.Min
	}
	span := float64(w.Max - w.Min)
	return w.Min + time.Duration(p.rand()*span)
}

// Wait sleeps for a random duration within w.
func (p *Pacer) Wait(ctx context.Context, w Window) error {
	return p.clock.Sleep(ctx, p.Pick(w))
}

// Sleep sleeps for exactly d on the underlying clock.
func (p *Pacer) Sleep(ctx context.Context, d time.Duration) error {
	return p.clock.Sleep(ctx, d)
}

// Clock exposes the underlying time source.
func (p *Pacer) Clock() Clock {
	return p.clock
}
