package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/studentpulse/internal/db"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormTable 把记录序列化为 JSON 存进 documents 表的某个集合。
type GormTable[T any] struct {
	db         *gorm.DB
	collection string
}

// NewGormTable 构造指定集合的持久化实现。
func NewGormTable[T any](gdb *gorm.DB, collection string) *GormTable[T] {
	return &GormTable[T]{db: gdb, collection: strings.TrimSpace(collection)}
}

// Get 读取一条记录。
func (t *GormTable[T]) Get(ctx context.Context, key string) (T, error) {
	var zero T
	key = strings.TrimSpace(key)

	var doc db.Document
	if err := t.db.WithContext(ctx).
		Where("collection = ? AND key = ?", t.collection, key).
		First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return zero, ErrNotFound
		}
		return zero, fmt.Errorf("get %s/%s: %w", t.collection, key, err)
	}

	var value T
	if err := json.Unmarshal(doc.Body, &value); err != nil {
		return zero, fmt.Errorf("decode %s/%s: %w", t.collection, key, err)
	}
	return value, nil
}

// Put 写入或覆盖一条记录。
func (t *GormTable[T]) Put(ctx context.Context, key string, value T) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrEmptyKey
	}

	body, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", t.collection, key, err)
	}

	doc := db.Document{Collection: t.collection, Key: key, Body: datatypes.JSON(body)}
	if err := t.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "collection"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"body", "updated_at"}),
	}).Create(&doc).Error; err != nil {
		return fmt.Errorf("put %s/%s: %w", t.collection, key, err)
	}
	return nil
}

// Insert 以新生成的 uuid 为键写入记录。
func (t *GormTable[T]) Insert(ctx context.Context, value T) (string, error) {
	key := uuid.NewString()
	if err := t.Put(ctx, key, value); err != nil {
		return "", err
	}
	return key, nil
}

// Query 按写入顺序读出整个集合后在内存中过滤。
func (t *GormTable[T]) Query(ctx context.Context, q Query[T]) ([]Record[T], error) {
	var docs []db.Document
	if err := t.db.WithContext(ctx).
		Where("collection = ?", t.collection).
		Order("id ASC").
		Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("query %s: %w", t.collection, err)
	}

	records := make([]Record[T], 0, len(docs))
	for _, doc := range docs {
		var value T
		if err := json.Unmarshal(doc.Body, &value); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", t.collection, doc.Key, err)
		}
		records = append(records, Record[T]{Key: doc.Key, Value: value})
	}

	return apply(records, q), nil
}

// Delete 物理删除记录，键可以被再次使用。
func (t *GormTable[T]) Delete(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	result := t.db.WithContext(ctx).Unscoped().
		Where("collection = ? AND key = ?", t.collection, key).
		Delete(&db.Document{})
	if result.Error != nil {
		return fmt.Errorf("delete %s/%s: %w", t.collection, key, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
