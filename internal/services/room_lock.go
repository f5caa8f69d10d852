package services

import (
	"hash/fnv"
	"sync"
)

const roomLockStripes = 64

// roomLocks serialises the write and the broadcast of one room so clients
// see events in the order the writes completed. Rooms share a fixed set of
// stripes.
type roomLocks struct {
	stripes [roomLockStripes]sync.Mutex
}

func (l *roomLocks) lock(room string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(room))
	mu := &l.stripes[h.Sum32()%roomLockStripes]
	mu.Lock()
	return mu.Unlock
}
