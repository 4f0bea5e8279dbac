package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/studentpulse/internal/analytics"
	"github.com/studentpulse/internal/auth"
	"github.com/studentpulse/internal/config"
	"github.com/studentpulse/internal/db"
	"github.com/studentpulse/internal/events"
	"github.com/studentpulse/internal/handler"
	"github.com/studentpulse/internal/metrics"
	"github.com/studentpulse/internal/router"
	"github.com/studentpulse/internal/service"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("studentpulse: %v", err)
	}
}

func run() error {
	cfg := config.Load()
	gin.SetMode(cfg.GinMode)

	// 初始化数据库
	if err := db.Init(cfg.DatabasePath); err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	if err := db.EnsureUser(cfg.SuperRootUserName, cfg.SuperRootPassword, db.RoleSuperAdmin); err != nil {
		return fmt.Errorf("ensure super admin: %w", err)
	}
	if cfg.SeedDemoData {
		if err := service.NewStudentRepository(db.DB).EnsureDemoStudent(); err != nil {
			return fmt.Errorf("seed demo student: %w", err)
		}
	}

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return fmt.Errorf("create kafka publisher: %w", err)
		}
		publisher = kafka
		log.Printf("[EVENTS] publishing to %v topic %s", cfg.KafkaBrokers, cfg.KafkaTopic)
	}
	defer publisher.Close()

	tokens, err := auth.NewTokenManager(cfg.JWTSecret, auth.DefaultTokenTTL)
	if err != nil {
		return fmt.Errorf("create token manager: %w", err)
	}

	api := handler.NewAPI(db.DB, handler.Options{
		UploadDir:        cfg.UploadDir,
		UploadURL:        cfg.UploadURLPath,
		AIProvider:       cfg.AIProvider,
		AIAPIKey:         cfg.AIAPIKey,
		AIBaseURL:        cfg.AIBaseURL,
		AIModel:          cfg.AIModel,
		AITimeout:        cfg.AITimeout,
		ERPBaseURL:       cfg.ERPBaseURL,
		StreakResetOnGap: cfg.StreakResetOnGap,
		Tokens:           tokens,
		Warehouse:        analytics.NewGormWarehouse(db.DB),
		Publisher:        publisher,
		Metrics:          metrics.New(),
	})

	// 设置并运行 Gin 服务器
	r := router.SetupRouter(api, cfg.SessionSecret, cfg.UploadDir, cfg.UploadURLPath)
	srv := &http.Server{Addr: cfg.ListenAddr, Handler: r}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, srv, 10*time.Second)
}

// serve 运行服务直到 ctx 结束或监听失败，监听失败时返回错误而不是直接退出。
func serve(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration) error {
	serveErr := make(chan error, 1)
	go func() {
		log.Printf("studentpulse listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("run server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
