package filter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beaverdb/tsdb-core/pkg/types"
)

type fixedFilter struct {
	name    string
	ok      bool
	err     error
	calls   int
}

func (f *fixedFilter) Name() string { return f.name }

func (f *fixedFilter) ShouldCompact(ctx context.Context, partition types.PartitionID) (bool, error) {
	f.calls++
	return f.ok, f.err
}

func TestPipelineShortCircuitsOnFalse(t *testing.T) {
	first := &fixedFilter{name: "a", ok: false}
	second := &fixedFilter{name: "b", ok: true}
	p := NewPipeline(first, second)

	ok, err := p.Run(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 0, second.calls, "pipeline stops after the first rejecting filter")
}

func TestPipelineShortCircuitsOnError(t *testing.T) {
	boom := errors.New("boom")
	first := &fixedFilter{name: "a", ok: true}
	second := &fixedFilter{name: "b", err: boom}
	third := &fixedFilter{name: "c", ok: true}
	p := NewPipeline(first, second, third)

	_, err := p.Run(context.Background(), 1)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, third.calls)
}

func TestPipelineAllPass(t *testing.T) {
	p := NewPipeline(&fixedFilter{name: "a", ok: true}, &fixedFilter{name: "b", ok: true})
	ok, err := p.Run(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, ok)
}

type countingMetrics struct {
	counts map[[2]string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{counts: make(map[[2]string]int)}
}

func (m *countingMetrics) PartitionFilterResult(result, filterType string) {
	m.counts[[2]string{result, filterType}]++
}

func TestMetricsWrapperPassThroughAndCounts(t *testing.T) {
	boom := errors.New("boom")
	cases := []struct {
		name   string
		inner  *fixedFilter
		result string
	}{
		{"pass", &fixedFilter{name: "f", ok: true}, "pass"},
		{"filter", &fixedFilter{name: "f", ok: false}, "filter"},
		{"error", &fixedFilter{name: "f", err: boom}, "error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := newCountingMetrics()
			w := WrapWithMetrics(tc.inner, m)

			ok, err := w.ShouldCompact(context.Background(), 1)
			innerOK, innerErr := tc.inner.ok, tc.inner.err

			assert.Equal(t, innerOK, ok, "bit-identical pass-through value")
			assert.Equal(t, innerErr, err, "bit-identical pass-through error")
			assert.Equal(t, 1, m.counts[[2]string{tc.result, "f"}])

			total := 0
			for _, c := range m.counts {
				total += c
			}
			assert.Equal(t, 1, total, "exactly one of pass/filter/error increments")
		})
	}
}

func TestCheckPossibleProgressSkipsWhenActionPresent(t *testing.T) {
	err := CheckPossibleProgress(1, false, []types.ParquetFile{{SizeBytes: 1000, MinTime: 1, MaxTime: 1}}, 10)
	assert.NoError(t, err)
}

func TestCheckPossibleProgressNoProgressNoStuckFile(t *testing.T) {
	err := CheckPossibleProgress(1, true, nil, 10)
	assert.NoError(t, err)
}

func TestCheckPossibleProgressOutOfMemory(t *testing.T) {
	kept := []types.ParquetFile{{SizeBytes: 11, MinTime: 5, MaxTime: 5}}
	err := CheckPossibleProgress(1, true, kept, 10)
	require.Error(t, err)
	assert.Equal(t, types.ErrOutOfMemory, types.KindOf(err))
	assert.Contains(t, err.Error(), "partition 1")
	assert.Contains(t, err.Error(), "limit 10")
}
