package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/studentpulse/internal/store"
)

// DirectoryCollection 是用户目录在文档表中的集合名
const DirectoryCollection = "users"

var (
	// ErrDirectoryUserNotFound 在目录中找不到用户时返回
	ErrDirectoryUserNotFound = errors.New("directory user not found")
	// ErrDirectoryInvalidInput 表示目录用户字段不合法
	ErrDirectoryInvalidInput = errors.New("invalid directory user")
	// ErrDirectoryEmailTaken 表示邮箱已被其他用户使用
	ErrDirectoryEmailTaken = errors.New("email already registered")
)

// DirectoryUser 是用户目录中的一条记录
type DirectoryUser struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Age       *int      `json:"age,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DirectoryInput 是创建或更新目录用户时的字段，nil 表示不修改
type DirectoryInput struct {
	Name  *string
	Email *string
	Age   *int
}

// DirectoryService 是基于 store.Table 的用户目录
type DirectoryService struct {
	table store.Table[DirectoryUser]
	now   func() time.Time
}

// NewDirectoryService 构造 DirectoryService
func NewDirectoryService(table store.Table[DirectoryUser]) *DirectoryService {
	return &DirectoryService{table: table, now: time.Now}
}

// Create 新建目录用户，name 与 email 必填
func (s *DirectoryService) Create(ctx context.Context, input DirectoryInput) (*DirectoryUser, error) {
	if input.Name == nil || input.Email == nil {
		return nil, fmt.Errorf("%w: name and email are required", ErrDirectoryInvalidInput)
	}

	user := DirectoryUser{ID: uuid.NewString()}
	if err := applyDirectoryInput(&user, input); err != nil {
		return nil, err
	}
	if err := s.ensureEmailFree(ctx, user.Email, ""); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	if err := s.table.Put(ctx, user.ID, user); err != nil {
		return nil, fmt.Errorf("create directory user: %w", err)
	}
	return &user, nil
}

// Get 根据 ID 获取
func (s *DirectoryService) Get(ctx context.Context, id string) (*DirectoryUser, error) {
	user, err := s.table.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrDirectoryUserNotFound
		}
		return nil, fmt.Errorf("get directory user: %w", err)
	}
	return &user, nil
}

// GetByEmail 按邮箱查找，忽略大小写
func (s *DirectoryService) GetByEmail(ctx context.Context, email string) (*DirectoryUser, error) {
	target := strings.ToLower(strings.TrimSpace(email))
	records, err := s.table.Query(ctx, store.Query[DirectoryUser]{
		Where: func(u DirectoryUser) bool { return strings.ToLower(u.Email) == target },
		Limit: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("query directory user: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrDirectoryUserNotFound
	}
	user := records[0].Value
	return &user, nil
}

// List 返回全部目录用户，按创建时间排序
func (s *DirectoryService) List(ctx context.Context) ([]DirectoryUser, error) {
	records, err := s.table.Query(ctx, store.Query[DirectoryUser]{
		Less: func(a, b DirectoryUser) bool { return a.CreatedAt.Before(b.CreatedAt) },
	})
	if err != nil {
		return nil, fmt.Errorf("list directory users: %w", err)
	}
	return store.Values(records), nil
}

// Update 合并更新
func (s *DirectoryService) Update(ctx context.Context, id string, input DirectoryInput) (*DirectoryUser, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyDirectoryInput(user, input); err != nil {
		return nil, err
	}
	if input.Email != nil {
		if err := s.ensureEmailFree(ctx, user.Email, user.ID); err != nil {
			return nil, err
		}
	}

	user.UpdatedAt = s.now().UTC()
	if err := s.table.Put(ctx, user.ID, *user); err != nil {
		return nil, fmt.Errorf("update directory user: %w", err)
	}
	return user, nil
}

// Delete 删除目录用户
func (s *DirectoryService) Delete(ctx context.Context, id string) error {
	if err := s.table.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrDirectoryUserNotFound
		}
		return fmt.Errorf("delete directory user: %w", err)
	}
	return nil
}

func (s *DirectoryService) ensureEmailFree(ctx context.Context, email, selfID string) error {
	existing, err := s.GetByEmail(ctx, email)
	if errors.Is(err, ErrDirectoryUserNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.ID != selfID {
		return ErrDirectoryEmailTaken
	}
	return nil
}

func applyDirectoryInput(user *DirectoryUser, input DirectoryInput) error {
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return fmt.Errorf("%w: name is required", ErrDirectoryInvalidInput)
		}
		user.Name = name
	}
	if input.Email != nil {
		email := strings.TrimSpace(*input.Email)
		if !strings.Contains(email, "@") {
			return fmt.Errorf("%w: email is invalid", ErrDirectoryInvalidInput)
		}
		user.Email = email
	}
	if input.Age != nil {
		if *input.Age < 0 || *input.Age > 150 {
			return fmt.Errorf("%w: age must be between 0 and 150", ErrDirectoryInvalidInput)
		}
		age := *input.Age
		user.Age = &age
	}
	return nil
}
