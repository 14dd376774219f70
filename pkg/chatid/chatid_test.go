package chatid

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDirectIsCommutative(t *testing.T) {
	pairs := [][2]string{
		{"a1", "b2"},
		{"zeta", "alpha"},
		{"Xy9", "xy9"},
		{"0193a1f2", "0193a1f1"},
	}
	for _, pair := range pairs {
		require.Equal(t, Direct(pair[0], pair[1]), Direct(pair[1], pair[0]))
	}
}

func TestDirectSortsLexicographically(t *testing.T) {
	require.Equal(t, "a1_b2", Direct("b2", "a1"))
	require.True(t, IsDirect("a1_b2", "b2", "a1"))
	require.False(t, IsDirect("b2_a1", "b2", "a1"))
}

func TestResolveValidatesParticipants(t *testing.T) {
	_, err := Resolve("", "b")
	require.ErrorIs(t, err, ErrEmptyParticipant)

	_, err = Resolve("a", "a")
	require.ErrorIs(t, err, ErrSameParticipant)

	_, err = Resolve("a_x", "b")
	require.ErrorIs(t, err, ErrInvalidParticipant)

	id, err := Resolve(" b2 ", "a1")
	require.NoError(t, err)
	require.Equal(t, "a1_b2", id)
}

func TestParticipantsRoundTrip(t *testing.T) {
	first, second, ok := Participants(Direct("u9", "u1"))
	require.True(t, ok)
	require.Equal(t, "u1", first)
	require.Equal(t, "u9", second)

	_, _, ok = Participants("channel-42")
	require.False(t, ok)
}
