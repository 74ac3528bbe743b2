package mutex

import "sync"

// KeyedMutex hands out one lock per key. Entries are dropped once nobody holds
// or waits for them. The zero value is ready to use.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

func (km *KeyedMutex) Lock(key string) {
	km.mu.Lock()
	if km.locks == nil {
		km.locks = make(map[string]*entry)
	}
	en, ok := km.locks[key]
	if !ok {
		en = &entry{}
		km.locks[key] = en
	}
	en.refs++
	km.mu.Unlock()

	en.mu.Lock()
}

func (km *KeyedMutex) Unlock(key string) {
	km.mu.Lock()
	en, ok := km.locks[key]
	if !ok {
		km.mu.Unlock()
		return
	}
	en.refs--
	if en.refs == 0 {
		delete(km.locks, key)
	}
	km.mu.Unlock()

	en.mu.Unlock()
}
