package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/studentpulse/internal/analytics"
	"github.com/studentpulse/internal/auth"
	"github.com/studentpulse/internal/events"
	"github.com/studentpulse/internal/metrics"
	"github.com/studentpulse/internal/service"
	"github.com/studentpulse/internal/store"
	"gorm.io/gorm"
)

// Options 描述构造 API 时的可选依赖与运行参数。
type Options struct {
	UploadDir string
	UploadURL string

	AIProvider string
	AIAPIKey   string
	AIBaseURL  string
	AIModel    string
	AITimeout  time.Duration

	ERPBaseURL       string
	StreakResetOnGap bool

	Tokens    *auth.TokenManager
	Warehouse *analytics.Warehouse
	Publisher events.Publisher
	Metrics   *metrics.Metrics
}

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db          *gorm.DB
	students    *service.StudentRepository
	checkins    *service.CheckInService
	assignments *service.AssignmentService
	engagement  *service.EngagementService
	streaks     *service.StreakService
	dashboards  *service.DashboardService
	profiles    *service.ProfileService
	assessor    *service.RiskAssessor
	predictor   *service.RiskPredictor
	mentors     *service.MentorService
	users       *service.UserService
	directory   *service.DirectoryService
	erp         *service.ERPClient
	warehouse   *analytics.Warehouse
	system      *service.SystemSettingService
	tokens      *auth.TokenManager
	metrics     *metrics.Metrics
}

// NewAPI constructs a handler set with shared services.
func NewAPI(gdb *gorm.DB, opts Options) *API {
	warehouse := opts.Warehouse
	if warehouse == nil {
		warehouse = analytics.NewGormWarehouse(gdb)
	}

	students := service.NewStudentRepository(gdb)

	systemService := service.NewSystemSettingService(gdb)
	systemService.SetEnvDefaults(opts.AIProvider, opts.AIAPIKey, opts.AIModel)

	assessor := service.NewRiskAssessor(systemService)
	assessor.SetMetrics(opts.Metrics)
	if base := strings.TrimSpace(opts.AIBaseURL); base != "" {
		provider := strings.ToLower(strings.TrimSpace(opts.AIProvider))
		assessor.SetBaseURL(provider, base)
		if provider == service.AIProviderDeepSeek {
			systemService.SetDeepSeekBaseURL(base)
		} else {
			systemService.SetOpenAIBaseURL(base)
		}
	}

	checkins := service.NewCheckInService(gdb, students)
	checkins.SetWarehouse(warehouse)
	checkins.SetPublisher(opts.Publisher)
	checkins.SetMetrics(opts.Metrics)
	checkins.SetStreakResetOnGap(opts.StreakResetOnGap)

	assignments := service.NewAssignmentService(gdb, students)
	assignments.SetPublisher(opts.Publisher)
	assignments.SetStreakResetOnGap(opts.StreakResetOnGap)

	predictor := service.NewRiskPredictor(gdb, students, assessor, opts.AITimeout)
	predictor.SetWarehouse(warehouse)
	predictor.SetPublisher(opts.Publisher)
	predictor.SetMetrics(opts.Metrics)

	erp := service.NewERPClient(opts.ERPBaseURL)
	erp.SetMetrics(opts.Metrics)

	return &API{
		db:          gdb,
		students:    students,
		checkins:    checkins,
		assignments: assignments,
		engagement:  service.NewEngagementService(gdb, students),
		streaks:     service.NewStreakService(gdb, opts.StreakResetOnGap),
		dashboards:  service.NewDashboardService(students),
		profiles:    service.NewProfileService(gdb, students, opts.UploadDir, opts.UploadURL),
		assessor:    assessor,
		predictor:   predictor,
		mentors:     service.NewMentorService(gdb, students, warehouse),
		users:       service.NewUserService(gdb, students),
		directory:   service.NewDirectoryService(store.NewGormTable[service.DirectoryUser](gdb, service.DirectoryCollection)),
		erp:         erp,
		warehouse:   warehouse,
		system:      systemService,
		tokens:      opts.Tokens,
		metrics:     opts.Metrics,
	}
}

// DB exposes the underlying gorm instance.
func (a *API) DB() *gorm.DB {
	return a.db
}

// Metrics 返回指标收集器，未配置时为 nil。
func (a *API) Metrics() *metrics.Metrics {
	return a.metrics
}

// MetricsHandler 返回 Prometheus 抓取端点，未配置指标时返回 404。
func (a *API) MetricsHandler() http.Handler {
	if a.metrics == nil {
		return http.NotFoundHandler()
	}
	return a.metrics.Handler()
}
