package roomlock_test

import (
	"sync"
	"testing"
	"time"

	"github.com/hmajid2301/banter-bus-core-api/internal/v1/roomlock"
	"github.com/hmajid2301/banter-bus-core-api/internal/v1/types"
	"github.com/stretchr/testify/assert"
)

func TestWithLockSerializesSameRoom(t *testing.T) {
	table := roomlock.NewTable()
	room := types.RoomID("room-1")

	var order []int
	var wg sync.WaitGroup

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			table.WithLock(room, func() {
				order = append(order, n)
				time.Sleep(time.Millisecond)
			})
		}(i)
	}

	wg.Wait()
	assert.Len(t, order, 5)
}

func TestDistinctRoomsDoNotBlockEachOther(t *testing.T) {
	table := roomlock.NewTable()

	unlockA := table.Lock(types.RoomID("room-a"))
	defer unlockA()

	done := make(chan struct{})
	go func() {
		table.WithLock(types.RoomID("room-b"), func() {})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("locking a distinct room should not block on room-a's lock")
	}
}

func TestLockIsReentrantSafeAcrossSequentialCalls(t *testing.T) {
	table := roomlock.NewTable()
	room := types.RoomID("room-1")

	unlock := table.Lock(room)
	unlock()

	unlock2 := table.Lock(room)
	unlock2()
}
