package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/studentpulse/internal/auth"
	"github.com/studentpulse/internal/db"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	// ErrInvalidCredentials 表示用户名或密码错误
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrInvalidRole 表示角色名未知
	ErrInvalidRole = errors.New("invalid role")
	// ErrUsernameTaken 表示用户名已存在
	ErrUsernameTaken = errors.New("username already exists")
	// ErrUserInvalidInput 表示账号字段不完整
	ErrUserInvalidInput = errors.New("invalid user input")
)

// UserInput 定义创建账号时可配置字段
type UserInput struct {
	Username    string
	Password    string
	Role        string
	DisplayName string
	Email       string
	StudentCode string
}

// UserService 负责账号登录与后台账号管理
type UserService struct {
	db       *gorm.DB
	students *StudentRepository
}

// NewUserService 构造 UserService
func NewUserService(gdb *gorm.DB, students *StudentRepository) *UserService {
	return &UserService{db: gdb, students: students}
}

// Authenticate 校验用户名与密码
func (s *UserService) Authenticate(username, password string) (*db.User, error) {
	var user db.User
	if err := s.db.Where("username = ?", strings.TrimSpace(username)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// Get 根据 ID 获取账号
func (s *UserService) Get(id uint) (*db.User, error) {
	var user db.User
	if err := s.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// List 返回全部账号，可按角色过滤
func (s *UserService) List(role string) ([]db.User, error) {
	query := s.db.Model(&db.User{})
	if strings.TrimSpace(role) != "" {
		if !auth.ValidRole(role) {
			return nil, ErrInvalidRole
		}
		query = query.Where("role = ?", auth.NormalizeRole(role))
	}

	var users []db.User
	if err := query.Order("username ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// Create 新建账号，学生账号可通过学号关联档案
func (s *UserService) Create(input UserInput) (*db.User, error) {
	username := strings.TrimSpace(input.Username)
	password := strings.TrimSpace(input.Password)
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", ErrUserInvalidInput)
	}
	role := db.RoleStudent
	if strings.TrimSpace(input.Role) != "" {
		if !auth.ValidRole(input.Role) {
			return nil, ErrInvalidRole
		}
		role = auth.NormalizeRole(input.Role)
	}

	user := db.User{
		Username:    username,
		Role:        role,
		DisplayName: strings.TrimSpace(input.DisplayName),
		Email:       strings.TrimSpace(input.Email),
	}
	if code := strings.TrimSpace(input.StudentCode); code != "" {
		student, err := s.students.Resolve(code)
		if err != nil {
			return nil, err
		}
		user.StudentID = &student.ID
	}

	var count int64
	if err := s.db.Model(&db.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if count > 0 {
		return nil, ErrUsernameTaken
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user.Password = string(hashed)

	if err := s.db.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &user, nil
}

// SetRole 修改账号角色
func (s *UserService) SetRole(id uint, role string) (*db.User, error) {
	if !auth.ValidRole(role) {
		return nil, ErrInvalidRole
	}
	user, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	user.Role = auth.NormalizeRole(role)
	if err := s.db.Model(user).Update("role", user.Role).Error; err != nil {
		return nil, fmt.Errorf("update role: %w", err)
	}
	return user, nil
}

// StudentCode 返回学生账号关联的学号，未关联时为空
func (s *UserService) StudentCode(user *db.User) string {
	if user == nil || user.StudentID == nil {
		return ""
	}
	student, err := s.students.ResolveID(*user.StudentID)
	if err != nil {
		return ""
	}
	return student.Code
}
