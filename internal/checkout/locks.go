package checkout

import "sync"

// keyedMutex serializes work per key.  An entry lives only while a caller
// holds or waits for it.
type keyedMutex struct {
    mu    sync.Mutex
    locks map[string]*refLock
}

type refLock struct {
    mu   sync.Mutex
    refs int
}

// lock blocks until key is free and returns the matching unlock.
func (k *keyedMutex) lock(key string) func() {
    k.mu.Lock()
    if k.locks == nil {
        k.locks = make(map[string]*refLock)
    }
    l, ok := k.locks[key]
    if !ok {
        l = &refLock{}
        k.locks[key] = l
    }
    l.refs++
    k.mu.Unlock()

    l.mu.Lock()
    return func() {
        l.mu.Unlock()
        k.mu.Lock()
        l.refs--
        if l.refs == 0 {
            delete(k.locks, key)
        }
        k.mu.Unlock()
    }
}

func (k *keyedMutex) size() int {
    k.mu.Lock()
    defer k.mu.Unlock()
    return len(k.locks)
}
