// Package store 提供按集合划分的键值存储，支持按谓词查询。
// 内存实现用于测试与演示，gorm 实现把记录以 JSON 存入 documents 表，两者可互换。
package store

import (
	"context"
	"errors"
	"sort"
)

// ErrNotFound 表示指定键不存在。
var ErrNotFound = errors.New("record not found")

// ErrEmptyKey 表示写入时未提供键。
var ErrEmptyKey = errors.New("key is required")

// Record 是带键的记录。
type Record[T any] struct {
	Key   string
	Value T
}

// Query 描述一次线性扫描查询：Where 为空表示全部，Less 为空时保持写入顺序，Limit<=0 表示不限制。
type Query[T any] struct {
	Where func(T) bool
	Less  func(a, b T) bool
	Limit int
}

// Table 是单个集合的存取接口。
type Table[T any] interface {
	Get(ctx context.Context, key string) (T, error)
	Put(ctx context.Context, key string, value T) error
	Insert(ctx context.Context, value T) (string, error)
	Query(ctx context.Context, q Query[T]) ([]Record[T], error)
	Delete(ctx context.Context, key string) error
}

// apply 对已按写入顺序排列的记录执行过滤、排序与截断。
func apply[T any](records []Record[T], q Query[T]) []Record[T] {
	result := make([]Record[T], 0, len(records))
	for _, record := range records {
		if q.Where == nil || q.Where(record.Value) {
			result = append(result, record)
		}
	}

	if q.Less != nil {
		sort.SliceStable(result, func(i, j int) bool {
			return q.Less(result[i].Value, result[j].Value)
		})
	}

	if q.Limit > 0 && len(result) > q.Limit {
		result = result[:q.Limit]
	}
	return result
}

// Values 丢弃键，只返回值。
func Values[T any](records []Record[T]) []T {
	values := make([]T, 0, len(records))
	for _, record := range records {
		values = append(values, record.Value)
	}
	return values
}
