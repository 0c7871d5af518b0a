package history_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"hermannm.dev/cube/history"
)

func TestChannels(t *testing.T) {
	db, err := history.OpenBadger("")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	channels := map[string]history.Channel{
		"memory": history.NewMemory(),
		"badger": history.NewBadger(db, "test"),
	}

	for name, channel := range channels {
		t.Run(name, func(t *testing.T) {
			_, ok, err := channel.Current()
			require.NoError(t, err)
			assert.False(t, ok)

			for _, entry := range []string{"a", "b", "c"} {
				require.NoError(t, channel.Push(entry))
			}
			assertCurrent(t, channel, "c")

			entry, ok, err := channel.Back()
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "b", entry)

			entry, ok, err = channel.Back()
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "a", entry)

			_, ok, err = channel.Back()
			require.NoError(t, err)
			assert.False(t, ok)
			assertCurrent(t, channel, "a")

			entry, ok, err = channel.Forward()
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "b", entry)

			// Pushing discards entries ahead of the cursor.
			require.NoError(t, channel.Push("d"))
			_, ok, err = channel.Forward()
			require.NoError(t, err)
			assert.False(t, ok)

			entry, _, err = channel.Back()
			require.NoError(t, err)
			assert.Equal(t, "b", entry)
		})
	}
}

func TestBadgerSessionsAreSeparate(t *testing.T) {
	db, err := history.OpenBadger("")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	first := history.NewBadger(db, "first")
	second := history.NewBadger(db, "second")

	require.NoError(t, first.Push("a"))
	_, ok, err := second.Current()
	require.NoError(t, err)
	assert.False(t, ok)

	// A new handle on the same session sees the stored history.
	assertCurrent(t, history.NewBadger(db, "first"), "a")
}

func assertCurrent(t *testing.T, channel history.Channel, expected string) {
	t.Helper()

	entry, ok, err := channel.Current()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, expected, entry)
}
