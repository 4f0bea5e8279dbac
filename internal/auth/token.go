// Package auth 负责 API 令牌与角色层级。
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/studentpulse/internal/db"
)

// DefaultTokenTTL 是访问令牌的默认有效期。
const DefaultTokenTTL = 24 * time.Hour

var (
	// ErrInvalidToken 表示令牌无法解析、签名不符或已过期。
	ErrInvalidToken = errors.New("invalid token")
	// ErrSecretMissing 表示未配置签名密钥。
	ErrSecretMissing = errors.New("jwt secret is required")
)

// Claims 是令牌中携带的身份信息。
type Claims struct {
	UserID    uint   `json:"user_id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	StudentID *uint  `json:"student_id,omitempty"`

	jwt.RegisteredClaims
}

// TokenManager 使用 HS256 签发与校验令牌。
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager 构造 TokenManager，ttl<=0 时使用 DefaultTokenTTL。
func NewTokenManager(secret string, ttl time.Duration) (*TokenManager, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, ErrSecretMissing
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue 为用户签发访问令牌。
func (m *TokenManager) Issue(user db.User) (string, error) {
	now := m.now()
	claims := &Claims{
		UserID:    user.ID,
		Username:  user.Username,
		Role:      NormalizeRole(user.Role),
		StudentID: user.StudentID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate 解析并校验令牌。
func (m *TokenManager) Validate(tokenString string) (*Claims, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// BearerToken 从 Authorization 头中取出令牌。
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
