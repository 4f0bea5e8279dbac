package db

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// 账号角色，权限由低到高。
const (
	RoleStudent    = "student"
	RoleCounsellor = "counsellor"
	RoleMentor     = "mentor"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
)

// User 定义了登录账号。学生账号通过 StudentID 关联学生档案。
type User struct {
	gorm.Model
	Username    string `gorm:"unique;not null"`
	Password    string `gorm:"not null"`
	Role        string `gorm:"size:32;not null;default:student;index"`
	DisplayName string
	Email       string
	StudentID   *uint `gorm:"index"`
}

// EnsureUser 存在性检查：若提供的用户名与密码均非空且不存在对应账号，则以给定角色创建一个 bcrypt 哈希的用户。
func EnsureUser(username, password, role string) error {
	trimmedUser := strings.TrimSpace(username)
	trimmedPassword := strings.TrimSpace(password)
	if trimmedUser == "" || trimmedPassword == "" {
		return nil
	}

	if DB == nil {
		return errors.New("database not initialized")
	}

	role = strings.TrimSpace(role)
	if role == "" {
		role = RoleStudent
	}

	var existing User
	if err := DB.Where("username = ?", trimmedUser).First(&existing).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(trimmedPassword), bcrypt.DefaultCost)
		if err != nil {
			return err
		}

		return DB.Create(&User{Username: trimmedUser, Password: string(hashed), Role: role}).Error
	}

	return nil
}
