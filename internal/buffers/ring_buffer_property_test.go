package buffers

import (
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/require"
)

func TestCapacityNeverExceeded(t *testing.T) {
	t.Parallel()
	f := func(items []int, capHint uint8) bool {
		rb := NewRingBuffer[int](int(capHint) + 1)
		for _, item := range items {
			rb.WriteOne(item)
		}
		return rb.Len() <= rb.Cap()
	}
	require.NoError(t, quick.Check(f, &quick.Config{MaxCount: 1000}))
}

func TestReadAllKeepsNewestInWriteOrder(t *testing.T) {
	t.Parallel()
	f := func(items []int, capHint uint8) bool {
		capacity := int(capHint) + 1
		rb := NewRingBuffer[int](capacity)
		for _, item := range items {
			rb.WriteOne(item)
		}

		got := rb.ReadAll()
		want := items
		if len(want) > capacity {
			want = want[len(want)-capacity:]
		}
		if len(got) != len(want) {
			return false
		}
		for i := range want {
			if got[i] != want[i] {
				return false
			}
		}
		return true
	}
	require.NoError(t, quick.Check(f, &quick.Config{MaxCount: 1000}))
}

func TestPositionIsMonotonic(t *testing.T) {
	t.Parallel()
	rb := NewRingBuffer[int](4)
	last := rb.Position()
	for i := 0; i < 20; i++ {
		rb.WriteOne(i)
		pos := rb.Position()
		require.Greater(t, pos, last)
		last = pos
	}
}

func TestReadFromResumesAfterEviction(t *testing.T) {
	t.Parallel()
	rb := NewRingBuffer[int](3)
	rb.Write([]int{1, 2, 3})

	first, cursor := rb.ReadFrom(0)
	require.Equal(t, []int{1, 2, 3}, first)

	// Overflow the buffer so part of the cursor's range is evicted.
	rb.Write([]int{4, 5, 6, 7})
	second, cursor2 := rb.ReadFrom(cursor)
	require.Equal(t, []int{5, 6, 7}, second)

	third, _ := rb.ReadFrom(cursor2)
	require.Empty(t, third)
}

func TestReadLastReturnsNewestOldestFirst(t *testing.T) {
	t.Parallel()
	rb := NewRingBuffer[int](5)
	rb.Write([]int{1, 2, 3, 4, 5, 6})

	require.Equal(t, []int{5, 6}, rb.ReadLast(2))
	require.Equal(t, []int{2, 3, 4, 5, 6}, rb.ReadLast(10))
	require.Nil(t, rb.ReadLast(0))
}

func TestClearDropsEntriesKeepsPosition(t *testing.T) {
	t.Parallel()
	rb := NewRingBuffer[int](4)
	rb.Write([]int{1, 2, 3})
	pos := rb.Position()

	rb.Clear()
	require.Zero(t, rb.Len())
	require.Equal(t, pos, rb.Position())

	rb.WriteOne(9)
	require.Equal(t, []int{9}, rb.ReadAll())
}

func TestReadAllIsNonDestructive(t *testing.T) {
	t.Parallel()
	rb := NewRingBuffer[int](4)
	rb.Write([]int{1, 2})
	require.Equal(t, rb.ReadAll(), rb.ReadAll())
	require.Equal(t, 2, rb.Len())
}
