package engine

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/leapupsert/pkg/core"
)

// emitter releases outcomes to the sink strictly in input order. A record
// is enqueued when it enters the engine; its outcome is held back until
// every earlier record has been emitted.
type emitter struct {
	sink    Sink
	summary *Summary

	base    int // Seq of pending[0]
	pending []slot
}

type slot struct {
	outcome core.Outcome
	done    bool
}

func newEmitter(sink Sink, summary *Summary) *emitter {
	return &emitter{sink: sink, summary: summary}
}

// enqueue reserves the next position. Records must arrive in Seq order.
func (e *emitter) enqueue(rec core.Record) {
	if len(e.pending) == 0 {
		e.base = rec.Seq
	}
	e.pending = append(e.pending, slot{outcome: core.Outcome{Record: rec}})
	e.summary.Records++
}

// resolve records an outcome and emits every outcome that is now in order.
func (e *emitter) resolve(ctx context.Context, o core.Outcome) error {
	i := o.Record.Seq - e.base
	if i < 0 || i >= len(e.pending) || e.pending[i].done {
		return fmt.Errorf("unexpected outcome for record %d", o.Record.Seq)
	}
	e.pending[i] = slot{outcome: o, done: true}
	return e.drain(ctx)
}

func (e *emitter) drain(ctx context.Context) error {
	n := 0
	for n < len(e.pending) && e.pending[n].done {
		o := e.pending[n].outcome
		if err := e.sink.Emit(ctx, o); err != nil {
			e.advance(n)
			return fmt.Errorf("emit outcome: %w", err)
		}
		e.count(o)
		n++
	}
	e.advance(n)
	return nil
}

func (e *emitter) advance(n int) {
	e.pending = e.pending[n:]
	e.base += n
}

func (e *emitter) count(o core.Outcome) {
	switch o.Status {
	case core.StatusSuccess:
		e.summary.Succeeded++
	case core.StatusFailure:
		e.summary.Failed++
	case core.StatusApplicationError:
		e.summary.AppErrors++
	}
}

// drop discards every outcome not yet emitted and returns how many.
func (e *emitter) drop() int {
	n := len(e.pending)
	e.advance(n)
	return n
}

// waiting returns the number of records without an emitted outcome.
func (e *emitter) waiting() int {
	return len(e.pending)
}
