package service

import (
	"sync"

	"github.com/google/uuid"
)

const lockStripes = 64

// keyedMutex serializes per-action mutation with lock striping: two requests
// for the same action id always contend on the same stripe, so concurrent
// transitions cannot both win against a stale current-state read.
type keyedMutex struct {
	stripes [lockStripes]sync.Mutex
}

func (k *keyedMutex) lock(id uuid.UUID) func() {
	var h uint32
	for _, b := range id {
		h = h*31 + uint32(b)
	}
	m := &k.stripes[h%lockStripes]
	m.Lock()
	return m.Unlock
}
