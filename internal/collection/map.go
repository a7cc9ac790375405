package collection

import (
	"sort"
	"sync"
)

// SyncMap is a map guarded by RWMutex; readers never block each other
type SyncMap[K comparable, V any] struct {
	m   map[K]V
	mux sync.RWMutex
}

func (m *SyncMap[K, V]) Get(k K) (V, bool) {
	m.mux.RLock()
	defer m.mux.RUnlock()
	v, ok := m.m[k]
	return v, ok
}

func (m *SyncMap[K, V]) Put(k K, v V) {
	m.mux.Lock()
	defer m.mux.Unlock()
	m.m[k] = v
}

// PutIfAbsent stores v unless k is already present, returns the stored value
func (m *SyncMap[K, V]) PutIfAbsent(k K, v V) (V, bool) {
	m.mux.Lock()
	defer m.mux.Unlock()
	if prev, ok := m.m[k]; ok {
		return prev, false
	}
	m.m[k] = v
	return v, true
}

func (m *SyncMap[K, V]) Delete(k K) {
	m.mux.Lock()
	defer m.mux.Unlock()
	delete(m.m, k)
}

// Take removes k and returns its value, ok is false when k was absent
func (m *SyncMap[K, V]) Take(k K) (V, bool) {
	m.mux.Lock()
	defer m.mux.Unlock()
	v, ok := m.m[k]
	if ok {
		delete(m.m, k)
	}
	return v, ok
}

// DeleteFunc removes every entry for which f returns true, returns removed count
func (m *SyncMap[K, V]) DeleteFunc(f func(key K, value V) bool) int {
	m.mux.Lock()
	defer m.mux.Unlock()
	removed := 0
	for k, v := range m.m {
		if f(k, v) {
			delete(m.m, k)
			removed++
		}
	}
	return removed
}

// Range iterates over a snapshot, so f may call back into the map
func (m *SyncMap[K, V]) Range(f func(key K, value V) bool) {
	m.mux.RLock()
	snapshot := make(map[K]V, len(m.m))
	for k, v := range m.m {
		snapshot[k] = v
	}
	m.mux.RUnlock()
	for k, v := range snapshot {
		if !f(k, v) {
			return
		}
	}
}

func (m *SyncMap[K, V]) Len() int {
	m.mux.RLock()
	defer m.mux.RUnlock()
	return len(m.m)
}

// Values returns all values
func (m *SyncMap[K, V]) Values() []V {
	m.mux.RLock()
	defer m.mux.RUnlock()
	result := make([]V, 0, len(m.m))
	for _, v := range m.m {
		result = append(result, v)
	}
	return result
}

func NewSyncMap[K comparable, V any]() *SyncMap[K, V] {
	return &SyncMap[K, V]{m: make(map[K]V)}
}

// SortedKeys returns string keys in ascending order
func SortedKeys[V any](m *SyncMap[string, V]) []string {
	m.mux.RLock()
	keys := make([]string, 0, len(m.m))
	for k := range m.m {
		keys = append(keys, k)
	}
	m.mux.RUnlock()
	sort.Strings(keys)
	return keys
}
