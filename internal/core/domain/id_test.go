package domain

import (
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientIDsStartAtZeroAndIncrease(t *testing.T) {
	var ids ClientIDs
	assert.Equal(t, ClientID(0), ids.Next())
	assert.Equal(t, ClientID(1), ids.Next())
	assert.Equal(t, ClientID(2), ids.Next())
	assert.Equal(t, "3", ids.Next().String())
}

func TestClientIDsAreDistinctUnderConcurrency(t *testing.T) {
	var ids ClientIDs
	const n = 200

	var (
		mu  sync.Mutex
		got []int
		wg  sync.WaitGroup
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := ids.Next()
			mu.Lock()
			got = append(got, int(id))
			mu.Unlock()
		}()
	}
	wg.Wait()

	sort.Ints(got)
	require.Len(t, got, n)
	for i, id := range got {
		assert.Equal(t, i, id)
	}
}

func TestConnIDsDiffer(t *testing.T) {
	assert.NotEqual(t, NewConnID().String(), NewConnID().String())
}
