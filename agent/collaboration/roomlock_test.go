package collaboration

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomLocker_SerializesSameRoom(t *testing.T) {
	l := NewRoomLocker()
	var inside, maxInside int32
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), "room")
			if err != nil {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxInside))
	assert.False(t, l.Busy("room"))
}

func TestRoomLocker_IndependentRooms(t *testing.T) {
	l := NewRoomLocker()
	a, err := l.Lock(context.Background(), "a")
	require.NoError(t, err)
	defer a()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	b, err := l.Lock(ctx, "b")
	require.NoError(t, err)
	b()
	assert.True(t, l.Busy("a"))
	assert.False(t, l.Busy("b"))
}

func TestRoomLocker_ContextDone(t *testing.T) {
	l := NewRoomLocker()
	unlock, err := l.Lock(context.Background(), "room")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "room")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	cancelled, cancelNow := context.WithCancel(context.Background())
	cancelNow()
	_, err = l.Lock(cancelled, "free-room")
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, l.Busy("free-room"))

	// 重复释放无副作用
	unlock()
	unlock()
	assert.False(t, l.Busy("room"))

	again, err := l.Lock(context.Background(), "room")
	require.NoError(t, err)
	again()
}
