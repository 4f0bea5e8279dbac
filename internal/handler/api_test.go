package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/studentpulse/internal/analytics"
	"github.com/studentpulse/internal/auth"
	"github.com/studentpulse/internal/db"
	"github.com/studentpulse/internal/metrics"
	"github.com/studentpulse/internal/service"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeHTTPClient struct {
	handler func(*http.Request) (*http.Response, error)
}

func (f fakeHTTPClient) Do(req *http.Request) (*http.Response, error) {
	if f.handler == nil {
		return nil, errors.New("no handler configured")
	}
	return f.handler(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func setupTestAPI(t *testing.T) *API {
	t.Helper()
	gin.SetMode(gin.TestMode)

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	gdb, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:handler_%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	db.DB = gdb
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})

	if err := service.NewStudentRepository(gdb).EnsureDemoStudent(); err != nil {
		t.Fatalf("failed to seed demo student: %v", err)
	}

	tokens, err := auth.NewTokenManager("test-secret", 0)
	if err != nil {
		t.Fatalf("failed to create token manager: %v", err)
	}

	return NewAPI(gdb, Options{
		UploadDir: t.TempDir(),
		UploadURL: "/static/uploads",
		Tokens:    tokens,
		Warehouse: analytics.NewMemoryWarehouse(),
		Metrics:   metrics.New(),
	})
}

// newTestContext 构造带请求体、路由参数与登录身份的 gin 上下文。
func newTestContext(method, target string, body any, identity *Identity, params ...gin.Param) (*gin.Context, *httptest.ResponseRecorder) {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Params = params
	if identity != nil {
		c.Set(identityContextKey, *identity)
	}
	return c, w
}

func studentParam(code string) gin.Param {
	return gin.Param{Key: "id", Value: code}
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
	return payload
}

func createUser(t *testing.T, api *API, username, role string) *db.User {
	t.Helper()
	user, err := api.users.Create(service.UserInput{Username: username, Password: "secret", Role: role})
	if err != nil {
		t.Fatalf("failed to create %s: %v", username, err)
	}
	return user
}
