package auth

import (
	"strings"

	"github.com/studentpulse/internal/db"
)

var roleRank = map[string]int{
	db.RoleStudent:    1,
	db.RoleCounsellor: 2,
	db.RoleMentor:     3,
	db.RoleAdmin:      4,
	db.RoleSuperAdmin: 5,
}

// NormalizeRole 规范化角色名，未知角色降级为 student。
func NormalizeRole(role string) string {
	role = strings.ToLower(strings.TrimSpace(role))
	if _, ok := roleRank[role]; ok {
		return role
	}
	return db.RoleStudent
}

// ValidRole 判断是否为已知角色。
func ValidRole(role string) bool {
	_, ok := roleRank[strings.ToLower(strings.TrimSpace(role))]
	return ok
}

// IsAtLeast 判断 role 的权限是否不低于 required。
func IsAtLeast(role, required string) bool {
	return roleRank[NormalizeRole(role)] >= roleRank[NormalizeRole(required)]
}

// Roles 按权限从低到高返回全部角色。
func Roles() []string {
	return []string{db.RoleStudent, db.RoleCounsellor, db.RoleMentor, db.RoleAdmin, db.RoleSuperAdmin}
}
