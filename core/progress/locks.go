package progress

import "sync"

// keyedMutex serializes writers per (user, lesson) key. Two concurrent
// submissions for the same key would otherwise both read quiz_attempts = N
// before either writes N+1, bypassing the attempt cap.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*entry)}
}

// lock acquires the mutex for key and returns its unlock func.
func (km *keyedMutex) lock(key string) func() {
	km.mu.Lock()
	e, ok := km.locks[key]
	if !ok {
		e = &entry{}
		km.locks[key] = e
	}
	e.refs++
	km.mu.Unlock()

	e.Lock()
	return func() {
		e.Unlock()
		km.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(km.locks, key)
		}
		km.mu.Unlock()
	}
}
