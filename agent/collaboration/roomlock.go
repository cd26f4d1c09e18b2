package collaboration

import (
	"context"
	"sync"
)

// RoomLocker 按房间串行化协作：同一房间同一时间只有一个协作在进行。
// 每个房间一个容量为 1 的信号量，无人持有或等待时回收。
type RoomLocker struct {
	mu    sync.Mutex
	rooms map[string]*roomSlot
}

type roomSlot struct {
	sem  chan struct{}
	refs int
}

// NewRoomLocker 创建房间锁
func NewRoomLocker() *RoomLocker {
	return &RoomLocker{rooms: make(map[string]*roomSlot)}
}

// Lock 获取房间锁，返回释放函数。ctx 结束前未获取到则返回 ctx.Err()。
func (l *RoomLocker) Lock(ctx context.Context, room string) (func(), error) {
	l.mu.Lock()
	slot, ok := l.rooms[room]
	if !ok {
		slot = &roomSlot{sem: make(chan struct{}, 1)}
		l.rooms[room] = slot
	}
	slot.refs++
	l.mu.Unlock()

	if err := ctx.Err(); err != nil {
		l.release(room, slot)
		return nil, err
	}

	select {
	case slot.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(room, slot)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-slot.sem
			l.release(room, slot)
		})
	}, nil
}

func (l *RoomLocker) release(room string, slot *roomSlot) {
	l.mu.Lock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.rooms, room)
	}
	l.mu.Unlock()
}

// Busy 报告房间当前是否有协作在进行或等待
func (l *RoomLocker) Busy(room string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.rooms[room]
	return ok
}
