package db

import (
	"fmt"
	"strconv"
	"sync"
	. "testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lindend/lstack/internal/lso"
)

func testOptions() lso.Options {
	return lso.Options{
		Mode:          lso.ModeList,
		ChunkEntryMax: 4,
		HotMax:        5,
		HotTransfer:   3,
		WarmMax:       3,
		WarmTransfer:  2,
		ColdFanMax:    3,
	}
}

func values(from, to int) [][]byte {
	out := [][]byte{}
	for i := from; i <= to; i++ {
		out = append(out, []byte(strconv.Itoa(i)))
	}
	return out
}

func newest(from, to int) [][]byte {
	out := [][]byte{}
	for i := to; i >= from; i-- {
		out = append(out, []byte(strconv.Itoa(i)))
	}
	return out
}

func TestCollectionSurvivesReopen(t *T) {
	root := t.TempDir()

	c, err := NewCollection(root, "test")
	require.NoError(t, err)
	require.NoError(t, c.Create("events", testOptions()))
	require.NoError(t, c.PushAll("events", values(1, 200), nil))
	require.NoError(t, c.Trim("events", 150))
	require.NoError(t, c.Close())

	c, err = NewCollection(root, "test")
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, []string{"events"}, c.Bins())
	size, err := c.Size("events")
	require.NoError(t, err)
	assert.Equal(t, int64(150), size)

	top, err := c.Peek("events", 3, nil)
	require.NoError(t, err)
	assert.Equal(t, newest(198, 200), top)

	all, err := c.Scan("events", nil)
	require.NoError(t, err)
	assert.Equal(t, newest(51, 200), all)
	assert.NoError(t, c.Verify("events"))

	opts, err := c.Config("events")
	require.NoError(t, err)
	assert.Equal(t, testOptions(), opts)
}

func TestCollectionErrors(t *T) {
	c, err := NewCollection(t.TempDir(), "test")
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Peek("missing", 1, nil)
	assert.ErrorIs(t, err, lso.ErrNotFound)

	require.NoError(t, c.Create("events", testOptions()))
	assert.ErrorIs(t, c.Create("events", testOptions()), lso.ErrAlreadyExists)
	assert.ErrorIs(t, c.Create("bad", lso.Options{}), lso.ErrInvalidConfig)
}

func TestCollectionDestroy(t *T) {
	root := t.TempDir()
	c, err := NewCollection(root, "test")
	require.NoError(t, err)
	require.NoError(t, c.Create("events", testOptions()))
	require.NoError(t, c.PushAll("events", values(1, 100), nil))

	stats, err := c.Stats("events")
	require.NoError(t, err)
	assert.Greater(t, stats.ColdPages, 0)

	require.NoError(t, c.Destroy("events"))
	assert.Empty(t, c.Bins())
	require.NoError(t, c.Close())

	c, err = NewCollection(root, "test")
	require.NoError(t, err)
	defer c.Close()
	_, err = c.Size("events")
	assert.ErrorIs(t, err, lso.ErrNotFound)
}

func TestCollectionConcurrentPushes(t *T) {
	c, err := NewCollection(t.TempDir(), "test")
	require.NoError(t, err)
	defer c.Close()

	const bins = 4
	const writers = 3
	const pushes = 40
	for b := 0; b < bins; b++ {
		require.NoError(t, c.Create(fmt.Sprintf("bin-%d", b), testOptions()))
	}

	wg := sync.WaitGroup{}
	errs := make(chan error, bins*writers*pushes)
	for b := 0; b < bins; b++ {
		for w := 0; w < writers; w++ {
			wg.Add(1)
			go func(bin string, w int) {
				defer wg.Done()
				for i := 0; i < pushes; i++ {
					errs <- c.Push(bin, []byte(fmt.Sprintf("%d-%d", w, i)), nil)
				}
			}(fmt.Sprintf("bin-%d", b), w)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	for b := 0; b < bins; b++ {
		bin := fmt.Sprintf("bin-%d", b)
		size, err := c.Size(bin)
		require.NoError(t, err)
		assert.Equal(t, int64(writers*pushes), size)
		assert.NoError(t, c.Verify(bin))

		// Each writer's values come back in reverse push order
		all, err := c.Scan(bin, nil)
		require.NoError(t, err)
		last := map[byte]int{}
		for _, v := range all {
			var w, i int
			_, err := fmt.Sscanf(string(v), "%d-%d", &w, &i)
			require.NoError(t, err)
			if prev, seen := last[byte(w)]; seen {
				assert.Less(t, i, prev)
			}
			last[byte(w)] = i
		}
	}
}
