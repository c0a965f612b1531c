package matchmaking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_EnqueueIsIdempotent(t *testing.T) {
	p := NewPool()

	assert.True(t, p.Enqueue("a"))
	assert.False(t, p.Enqueue("a"))
	assert.True(t, p.Enqueue("b"))

	assert.Equal(t, []string{"a", "b"}, p.Snapshot())
}

func TestPool_Remove(t *testing.T) {
	p := NewPool()
	p.Enqueue("a")
	p.Enqueue("b")
	p.Enqueue("c")

	assert.True(t, p.Remove("b"))
	assert.False(t, p.Remove("b"))
	assert.False(t, p.Contains("b"))
	assert.Equal(t, []string{"a", "c"}, p.Snapshot())
}

func TestPool_PopPairPreservesOrder(t *testing.T) {
	p := NewPool()
	for _, id := range []string{"a", "b", "c", "d"} {
		p.Enqueue(id)
	}

	a, b, ok := p.PopPair(func(a, b string) bool { return b == "c" })
	require.True(t, ok)
	assert.Equal(t, "a", a)
	assert.Equal(t, "c", b)
	assert.Equal(t, []string{"b", "d"}, p.Snapshot())
	assert.False(t, p.Contains("a"))
	assert.False(t, p.Contains("c"))
}

func TestPool_PopPairNoCandidateLeavesPool(t *testing.T) {
	p := NewPool()
	p.Enqueue("a")
	p.Enqueue("b")

	_, _, ok := p.PopPair(func(a, b string) bool { return false })
	assert.False(t, ok)
	assert.Equal(t, []string{"a", "b"}, p.Snapshot())
}

func TestPool_PopPairNeedsTwo(t *testing.T) {
	p := NewPool()
	p.Enqueue("a")

	_, _, ok := p.PopPair(func(a, b string) bool { return true })
	assert.False(t, ok)
}

func TestPool_PushFront(t *testing.T) {
	p := NewPool()
	p.Enqueue("b")
	p.PushFront("a")
	p.PushFront("b")

	assert.Equal(t, []string{"a", "b"}, p.Snapshot())
}

func TestCooldownLedger(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	l := NewCooldownLedger(time.Hour)

	assert.False(t, l.Active("a", "b", now))

	until := l.Set("b", "a", now)
	assert.Equal(t, now.Add(time.Hour), until)
	assert.True(t, l.Active("a", "b", now))
	assert.True(t, l.Active("b", "a", now.Add(59*time.Minute)))
	assert.False(t, l.Active("a", "b", now.Add(time.Hour)))

	got, ok := l.Until("a", "b")
	require.True(t, ok)
	assert.Equal(t, until, got)

	l.Set("a|b", "c", now)
	assert.False(t, l.Active("a", "b|c", now), "ids containing separators must not share a record")
}

func TestCooldownLedger_Purge(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	l := NewCooldownLedger(time.Hour)
	l.Set("a", "b", now)
	l.Set("c", "d", now.Add(30*time.Minute))

	assert.Equal(t, 1, l.Purge(now.Add(time.Hour)))
	assert.Equal(t, 1, l.Len())
	assert.True(t, l.Active("c", "d", now.Add(time.Hour)))
}

func TestPairKeyIsOrderIndependent(t *testing.T) {
	assert.Equal(t, PairKey("x", "y"), PairKey("y", "x"))
	assert.Equal(t, Pair{Low: "x", High: "y"}, PairKey("y", "x"))
	assert.NotEqual(t, PairKey("a|b", "c"), PairKey("a", "b|c"))
}
