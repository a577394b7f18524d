package rooms

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterUnregister(t *testing.T) {
	reg := NewRegistry()
	reg.Register("a")
	require.True(t, reg.Known("a"))

	_, added, err := reg.AddRoom("a", "m1", func() int { return 1 })
	require.NoError(t, err)
	assert.True(t, added)
	_, added, err = reg.AddRoom("a", "m2", func() int { return 1 })
	require.NoError(t, err)
	assert.True(t, added)

	var swept []string
	affected := reg.Unregister("a", func(matchID string) { swept = append(swept, matchID) })
	sort.Strings(affected)
	sort.Strings(swept)
	assert.Equal(t, []string{"m1", "m2"}, affected)
	assert.Equal(t, []string{"m1", "m2"}, swept)

	assert.False(t, reg.Known("a"))
	assert.Empty(t, reg.RoomsOf("a"))
}

func TestRegistry_DoubleRegisterKeepsMembership(t *testing.T) {
	reg := NewRegistry()
	reg.Register("a")
	_, _, err := reg.AddRoom("a", "m1", func() int { return 1 })
	require.NoError(t, err)

	reg.Register("a") // protocol violation, must be a no-op

	assert.Equal(t, []string{"m1"}, reg.RoomsOf("a"))
}

func TestRegistry_UnknownConnection(t *testing.T) {
	reg := NewRegistry()

	_, _, err := reg.AddRoom("ghost", "m1", func() int { return 1 })
	assert.ErrorIs(t, err, ErrUnknownConnection)

	_, _, err = reg.DropRoom("ghost", "m1", func() int { return 0 })
	assert.ErrorIs(t, err, ErrUnknownConnection)

	assert.Empty(t, reg.RoomsOf("ghost"))
	assert.Nil(t, reg.Unregister("ghost", func(string) {}))
}

func TestRegistry_DropRoomNonMember(t *testing.T) {
	reg := NewRegistry()
	reg.Register("a")

	size, removed, err := reg.DropRoom("a", "m1", func() int { return 0 })
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Equal(t, 0, size)
}

func TestRegistry_AddRoomIdempotent(t *testing.T) {
	reg := NewRegistry()
	reg.Register("a")

	_, added, err := reg.AddRoom("a", "m1", func() int { return 1 })
	require.NoError(t, err)
	assert.True(t, added)

	_, added, err = reg.AddRoom("a", "m1", func() int { return 1 })
	require.NoError(t, err)
	assert.False(t, added, "re-adding the same room is not a membership change")
	assert.Equal(t, []string{"m1"}, reg.RoomsOf("a"))
}

func TestRegistry_JoinAfterUnregisterRejected(t *testing.T) {
	reg := NewRegistry()
	reg.Register("a")
	reg.Unregister("a", func(string) {})

	_, _, err := reg.AddRoom("a", "m1", func() int { return 1 })
	assert.ErrorIs(t, err, ErrUnknownConnection)
}

func TestRegistry_Count(t *testing.T) {
	reg := NewRegistry()
	assert.Equal(t, 0, reg.Count())
	reg.Register("a")
	reg.Register("b")
	assert.Equal(t, 2, reg.Count())
	reg.Unregister("a", func(string) {})
	assert.Equal(t, 1, reg.Count())
}
