package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapupsert/pkg/core"
)

func outcome(seq int, status core.Status) core.Outcome {
	return core.Outcome{Record: core.Record{Seq: seq}, Status: status}
}

func seqs(outcomes []core.Outcome) []int {
	out := make([]int, len(outcomes))
	for i, o := range outcomes {
		out[i] = o.Record.Seq
	}
	return out
}

func TestEmitter_HoldsOutcomesUntilInOrder(t *testing.T) {
	ctx := context.Background()
	sink := &CollectSink{}
	summary := &Summary{}
	em := newEmitter(sink, summary)

	for i := 0; i < 5; i++ {
		em.enqueue(core.Record{Seq: i})
	}

	require.NoError(t, em.resolve(ctx, outcome(1, core.StatusApplicationError)))
	require.NoError(t, em.resolve(ctx, outcome(3, core.StatusApplicationError)))
	assert.Empty(t, sink.Outcomes)

	require.NoError(t, em.resolve(ctx, outcome(0, core.StatusSuccess)))
	assert.Equal(t, []int{0, 1}, seqs(sink.Outcomes))

	require.NoError(t, em.resolve(ctx, outcome(2, core.StatusFailure)))
	assert.Equal(t, []int{0, 1, 2, 3}, seqs(sink.Outcomes))
	assert.Equal(t, 1, em.waiting())

	require.NoError(t, em.resolve(ctx, outcome(4, core.StatusSuccess)))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, seqs(sink.Outcomes))

	assert.Equal(t, 5, summary.Records)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 2, summary.AppErrors)
}

func TestEmitter_RejectsUnknownOrDuplicateOutcome(t *testing.T) {
	ctx := context.Background()
	em := newEmitter(&CollectSink{}, &Summary{})
	em.enqueue(core.Record{Seq: 0})
	em.enqueue(core.Record{Seq: 1})

	assert.Error(t, em.resolve(ctx, outcome(7, core.StatusSuccess)))
	require.NoError(t, em.resolve(ctx, outcome(1, core.StatusSuccess)))
	assert.Error(t, em.resolve(ctx, outcome(1, core.StatusSuccess)))

	require.NoError(t, em.resolve(ctx, outcome(0, core.StatusSuccess)))
	// already emitted
	assert.Error(t, em.resolve(ctx, outcome(0, core.StatusSuccess)))
}

func TestEmitter_DropDiscardsPending(t *testing.T) {
	ctx := context.Background()
	sink := &CollectSink{}
	em := newEmitter(sink, &Summary{})
	for i := 0; i < 3; i++ {
		em.enqueue(core.Record{Seq: i})
	}
	require.NoError(t, em.resolve(ctx, outcome(0, core.StatusSuccess)))
	require.NoError(t, em.resolve(ctx, outcome(2, core.StatusApplicationError)))

	assert.Equal(t, 2, em.drop())
	assert.Equal(t, 0, em.waiting())
	assert.Len(t, sink.Outcomes, 1)
}

func TestEmitter_SinkError(t *testing.T) {
	boom := errors.New("sink closed")
	em := newEmitter(SinkFunc(func(context.Context, core.Outcome) error { return boom }), &Summary{})
	em.enqueue(core.Record{Seq: 0})

	err := em.resolve(context.Background(), outcome(0, core.StatusSuccess))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, em.waiting())
}
