package collections

import (
	"math/rand"
	"sync"

	"golang.org/x/exp/constraints"
)

const defaultLayerProbability = 0.5

type SkiplistElement[TKey constraints.Ordered, TValue any] struct {
	key   TKey
	value TValue
	next  []*SkiplistElement[TKey, TValue]
}

func (e *SkiplistElement[TKey, TValue]) Next() *SkiplistElement[TKey, TValue] {
	return e.next[0]
}

func (e *SkiplistElement[TKey, TValue]) Key() TKey {
	return e.key
}

func (e *SkiplistElement[TKey, TValue]) Value() TValue {
	return e.value
}

// A SkipList keeps its elements ordered by key. Lookups, inserts and
// deletes are O(log n) on average, and elements can be iterated over
// in ascending key order.
type SkipList[TKey constraints.Ordered, TValue any] struct {
	head             *SkiplistElement[TKey, TValue]
	numLayers        int
	layerProbability float32
	numEntries       int
	lock             *sync.RWMutex
}

func NewSkipList[TKey constraints.Ordered, TValue any](numLayers int) *SkipList[TKey, TValue] {
	if numLayers < 1 {
		numLayers = 1
	}
	return &SkipList[TKey, TValue]{
		head: &SkiplistElement[TKey, TValue]{
			next: make([]*SkiplistElement[TKey, TValue], numLayers),
		},
		numLayers:        numLayers,
		layerProbability: defaultLayerProbability,
		lock:             &sync.RWMutex{},
	}
}

// Returns, for every layer, the last element whose key is less than key.
func (l *SkipList[TKey, TValue]) predecessors(key TKey) []*SkiplistElement[TKey, TValue] {
	update := make([]*SkiplistElement[TKey, TValue], l.numLayers)
	node := l.head
	for i := l.numLayers - 1; i >= 0; i-- {
		for node.next[i] != nil && node.next[i].key < key {
			node = node.next[i]
		}
		update[i] = node
	}
	return update
}

func (l *SkipList[TKey, TValue]) Get(key TKey) (TValue, bool) {
	l.lock.RLock()
	defer l.lock.RUnlock()

	node := l.head
	for i := l.numLayers - 1; i >= 0; i-- {
		for node.next[i] != nil && node.next[i].key < key {
			node = node.next[i]
		}
	}

	final := node.next[0]
	if final != nil && final.key == key {
		return final.value, true
	}
	var zero TValue
	return zero, false
}

func (l *SkipList[TKey, TValue]) randomNumLevels() int {
	levels := 1

	for rand.Float32() < l.layerProbability && levels < l.numLayers {
		levels += 1
	}

	return levels
}

// Inserts an item into the SkipList, or updates an existing item if the key already
// exists. Returns the old value and true in case of an update.
func (l *SkipList[TKey, TValue]) Insert(key TKey, value TValue) (TValue, bool) {
	l.lock.Lock()
	defer l.lock.Unlock()

	update := l.predecessors(key)

	final := update[0].next[0]
	if final != nil && final.key == key {
		oldValue := final.value
		final.value = value
		return oldValue, true
	}

	numLevels := l.randomNumLevels()
	newNode := &SkiplistElement[TKey, TValue]{
		key:   key,
		value: value,
		next:  make([]*SkiplistElement[TKey, TValue], numLevels),
	}
	for i := 0; i < numLevels; i++ {
		newNode.next[i] = update[i].next[i]
		update[i].next[i] = newNode
	}
	l.numEntries += 1

	var zero TValue
	return zero, false
}

// Removes key from the SkipList. Returns the removed value and whether
// the key was present.
func (l *SkipList[TKey, TValue]) Delete(key TKey) (TValue, bool) {
	l.lock.Lock()
	defer l.lock.Unlock()

	update := l.predecessors(key)

	final := update[0].next[0]
	if final == nil || final.key != key {
		var zero TValue
		return zero, false
	}

	for i := 0; i < len(final.next); i++ {
		if update[i].next[i] == final {
			update[i].next[i] = final.next[i]
		}
	}
	l.numEntries -= 1

	return final.value, true
}

// First element in key order, nil when the list is empty. The list must
// not be modified while iterating.
func (l *SkipList[TKey, TValue]) Iterate() *SkiplistElement[TKey, TValue] {
	return l.head.next[0]
}

func (l *SkipList[TKey, TValue]) Len() int {
	l.lock.RLock()
	defer l.lock.RUnlock()
	return l.numEntries
}
