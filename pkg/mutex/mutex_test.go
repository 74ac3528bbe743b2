package mutex

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	var (
		km      KeyedMutex
		wg      sync.WaitGroup
		counter int
	)

	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			km.Lock("a")
			defer km.Unlock("a")
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Empty(t, km.locks)
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	var km KeyedMutex

	km.Lock("a")
	km.Lock("b")
	assert.Len(t, km.locks, 2)

	km.Unlock("a")
	km.Unlock("b")
	assert.Empty(t, km.locks)

	km.Unlock("missing")
}
