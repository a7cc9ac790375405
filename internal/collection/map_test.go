package collection

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSyncMap(t *testing.T) {
	m := NewSyncMap[string, int]()
	m.Put("b", 2)
	m.Put("a", 1)
	v, ok := m.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	stored, added := m.PutIfAbsent("a", 10)
	assert.False(t, added)
	assert.Equal(t, 1, stored)

	assert.Equal(t, []string{"a", "b"}, SortedKeys(m))
	assert.Equal(t, 2, m.Len())

	// range may mutate the map
	m.Range(func(key string, value int) bool {
		m.Delete(key)
		return true
	})
	assert.Equal(t, 0, m.Len())
}

func TestSyncMap_DeleteFunc(t *testing.T) {
	m := NewSyncMap[int, bool]()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.Put(i, i%2 == 0)
		}(i)
	}
	wg.Wait()
	removed := m.DeleteFunc(func(key int, even bool) bool { return even })
	assert.Equal(t, 50, removed)
	assert.Equal(t, 50, m.Len())
	assert.Len(t, m.Values(), 50)
}

func TestSyncMap_Take(t *testing.T) {
	m := NewSyncMap[string, int]()
	m.Put("a", 1)
	v, ok := m.Take("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	_, ok = m.Take("a")
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len())
}
