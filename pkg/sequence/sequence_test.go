package sequence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue[string](2)
	require.True(t, q.IsEmpty())

	assert.True(t, q.Enqueue("a"), "first element becomes head")
	assert.False(t, q.Enqueue("b"))
	assert.False(t, q.Enqueue("c"))

	head, ok := q.Peek()
	require.True(t, ok)
	assert.Equal(t, "a", head)

	v, ok := q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, "a", v)
	assert.Equal(t, []string{"b", "c"}, q.Items())

	assert.Equal(t, 1, q.RemoveFunc(func(s string) bool { return s == "b" }))
	assert.Equal(t, []string{"c"}, q.Items())

	_, _ = q.Dequeue()
	_, ok = q.Dequeue()
	assert.False(t, ok)
	_, ok = q.Peek()
	assert.False(t, ok)
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name       string
		total      int
		parts      int
		minPerPart int
		want       []Span
	}{
		{name: "empty", total: 0, parts: 4, minPerPart: 40, want: nil},
		{name: "below minimum", total: 30, parts: 4, minPerPart: 40, want: []Span{{0, 30}}},
		{name: "minimum wins", total: 100, parts: 8, minPerPart: 40, want: []Span{{0, 40}, {40, 40}, {80, 20}}},
		{name: "balanced", total: 200, parts: 2, minPerPart: 40, want: []Span{{0, 100}, {100, 100}}},
		{name: "zero parts", total: 10, parts: 0, minPerPart: 1, want: []Span{{0, 10}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Split(tt.total, tt.parts, tt.minPerPart)
			assert.Equal(t, tt.want, got)

			covered := 0
			for _, s := range got {
				assert.Equal(t, covered, s.Start)
				covered = s.End()
			}
			assert.Equal(t, max(tt.total, 0), covered)
		})
	}
}

func TestSpanContains(t *testing.T) {
	s := Span{Start: 10, Count: 5}
	assert.True(t, s.Contains(10))
	assert.True(t, s.Contains(14))
	assert.False(t, s.Contains(15))
	assert.False(t, s.Contains(9))
}
