package presence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_LastRegistrationWins(t *testing.T) {
	reg := NewRegistry()
	handles := []*fakeHandle{newFakeHandle("a"), newFakeHandle("b"), newFakeHandle("c")}
	for i, h := range handles {
		prev, replaced := reg.Register("u1", h)
		if i == 0 {
			assert.False(t, replaced)
			assert.Nil(t, prev)
			continue
		}
		assert.True(t, replaced)
		assert.Same(t, handles[i-1], prev)
	}

	got, ok := reg.Lookup("u1")
	require.True(t, ok)
	assert.Same(t, handles[2], got)
	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_ReconnectWithNewHandle(t *testing.T) {
	reg := NewRegistry()
	h1, h1b := newFakeHandle("h1"), newFakeHandle("h1b")
	reg.Register("u1", h1)
	reg.Register("u1", h1b)

	got, ok := reg.Lookup("u1")
	require.True(t, ok)
	assert.Same(t, h1b, got)
	assert.NotSame(t, h1, got)
}

func TestRegistry_UnregisterUnknownIsNoop(t *testing.T) {
	reg := NewRegistry()
	h2 := newFakeHandle("h2")
	reg.Register("u2", h2)

	reg.Unregister("ghost")
	reg.Unregister("ghost")

	assert.Equal(t, 1, reg.Len())
	got, ok := reg.Lookup("u2")
	require.True(t, ok)
	assert.Same(t, h2, got)
}

func TestRegistry_UnregisterTwice(t *testing.T) {
	reg := NewRegistry()
	reg.Register("u1", newFakeHandle("h1"))
	reg.Unregister("u1")
	reg.Unregister("u1")

	_, ok := reg.Lookup("u1")
	assert.False(t, ok)
	assert.Zero(t, reg.Len())
}

func TestRegistry_SnapshotIDs(t *testing.T) {
	reg := NewRegistry()
	assert.Empty(t, reg.SnapshotIDs())

	reg.Register("u2", newFakeHandle("h2"))
	reg.Register("u1", newFakeHandle("h1"))
	reg.Register("u3", newFakeHandle("h3"))
	reg.Unregister("u3")

	assert.Equal(t, []string{"u1", "u2"}, reg.SnapshotIDs())
}
