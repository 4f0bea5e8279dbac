package store

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemoryTable 是进程内实现，保持写入顺序。
type MemoryTable[T any] struct {
	mu    sync.RWMutex
	order []string
	items map[string]T
}

// NewMemoryTable 构造空的内存集合。
func NewMemoryTable[T any]() *MemoryTable[T] {
	return &MemoryTable[T]{items: make(map[string]T)}
}

// Get 读取一条记录。
func (t *MemoryTable[T]) Get(_ context.Context, key string) (T, error) {
	key = strings.TrimSpace(key)
	t.mu.RLock()
	defer t.mu.RUnlock()

	value, ok := t.items[key]
	if !ok {
		var zero T
		return zero, ErrNotFound
	}
	return value, nil
}

// Put 写入或覆盖一条记录，覆盖时保留原有位置。
func (t *MemoryTable[T]) Put(_ context.Context, key string, value T) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrEmptyKey
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.items[key]; !exists {
		t.order = append(t.order, key)
	}
	t.items[key] = value
	return nil
}

// Insert 以新生成的 uuid 为键写入记录。
func (t *MemoryTable[T]) Insert(ctx context.Context, value T) (string, error) {
	key := uuid.NewString()
	if err := t.Put(ctx, key, value); err != nil {
		return "", err
	}
	return key, nil
}

// Query 线性扫描全部记录。
func (t *MemoryTable[T]) Query(_ context.Context, q Query[T]) ([]Record[T], error) {
	t.mu.RLock()
	records := make([]Record[T], 0, len(t.order))
	for _, key := range t.order {
		records = append(records, Record[T]{Key: key, Value: t.items[key]})
	}
	t.mu.RUnlock()

	return apply(records, q), nil
}

// Delete 删除记录，不存在时返回 ErrNotFound。
func (t *MemoryTable[T]) Delete(_ context.Context, key string) error {
	key = strings.TrimSpace(key)
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.items[key]; !ok {
		return ErrNotFound
	}
	delete(t.items, key)
	for i, candidate := range t.order {
		if candidate == key {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return nil
}
