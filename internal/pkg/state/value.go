package state

import (
	"sync"
)

// Value 可观察的单值状态，值变化时通知订阅者
type Value[T comparable] struct {
	mu     sync.RWMutex
	value  T
	nextID int
	subs   map[int]func(old, cur T)
}

func NewValue[T comparable](initial T) *Value[T] {
	return &Value[T]{
		value: initial,
		subs:  make(map[int]func(old, cur T)),
	}
}

func (v *Value[T]) Get() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.value
}

// Set 写入新值，返回是否发生变化；回调在锁外同步执行
func (v *Value[T]) Set(cur T) bool {
	v.mu.Lock()
	old := v.value
	if old == cur {
		v.mu.Unlock()
		return false
	}
	v.value = cur
	subs := make([]func(old, cur T), 0, len(v.subs))
	for _, fn := range v.subs {
		subs = append(subs, fn)
	}
	v.mu.Unlock()

	for _, fn := range subs {
		fn(old, cur)
	}
	return true
}

// Subscribe 注册变更回调，返回取消函数
func (v *Value[T]) Subscribe(fn func(old, cur T)) func() {
	v.mu.Lock()
	id := v.nextID
	v.nextID++
	v.subs[id] = fn
	v.mu.Unlock()

	return func() {
		v.mu.Lock()
		delete(v.subs, id)
		v.mu.Unlock()
	}
}
