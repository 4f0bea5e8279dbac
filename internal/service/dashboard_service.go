package service

import (
	"github.com/studentpulse/internal/scoring"
)

// Dashboard 是学生首页需要的全部计算结果
type Dashboard struct {
	Profile     StudentProfile             `json:"profile"`
	RiskLevel   scoring.RiskLevel          `json:"riskLevel"`
	RiskMessage string                     `json:"riskMessage"`
	Balance     scoring.BalanceResult      `json:"balance"`
	SubjectRisk []scoring.SubjectRiskEntry `json:"subjectRisk"`
	Correlation scoring.CorrelationResult  `json:"correlation"`
	Streaks     StreakSummary              `json:"streaks"`
	Goals       Goals                      `json:"goals"`
	Tips        []TipCard                  `json:"tips"`
	Pending     int                        `json:"pendingAssignments"`
	Latest      LatestSnapshot             `json:"latest"`
	IsDefault   bool                       `json:"isDefault"`
}

// LatestSnapshot 是最新一次出勤、成绩与自评
type LatestSnapshot struct {
	Attendance float64                  `json:"attendance"`
	Marks      float64                  `json:"marks"`
	WellBeing  *scoring.WellBeingRecord `json:"wellBeing,omitempty"`
}

// DashboardService 组合学生数据与评分函数
type DashboardService struct {
	students *StudentRepository
}

// NewDashboardService 构造 DashboardService
func NewDashboardService(students *StudentRepository) *DashboardService {
	return &DashboardService{students: students}
}

// Build 读取学生数据并计算首页指标。读取失败时使用内置演示数据。
func (s *DashboardService) Build(code string) Dashboard {
	data, isDefault := s.students.LoadOrDefault(code)
	dashboard := ComposeDashboard(data)
	dashboard.IsDefault = isDefault
	return dashboard
}

// ComposeDashboard 是纯计算部分，便于单独测试
func ComposeDashboard(data StudentData) Dashboard {
	latest := LatestSnapshot{
		Attendance: scoring.LatestAttendance(data.Attendance),
		Marks:      scoring.LatestMarks(data.Marks),
		WellBeing:  scoring.LatestWellBeing(data.WellBeing),
	}
	level := scoring.CalculateRiskLevel(latest.Attendance, latest.Marks, latest.WellBeing)

	dashboard := Dashboard{
		Profile:     data.Profile,
		RiskLevel:   level,
		RiskMessage: scoring.RiskMessage(level, data.Subjects, data.Assignments),
		Balance:     scoring.BalanceMeter(latest.Attendance, latest.WellBeing, data.Assignments),
		SubjectRisk: scoring.SubjectRiskMap(data.Subjects),
		Correlation: scoring.CorrelateHistory(data.WellBeing, data.Attendance, data.Marks),
		Streaks:     SummarizeStreaks(data.Streaks),
		Goals:       data.Goals,
		Pending:     scoring.PendingAssignments(data.Assignments),
		Latest:      latest,
		Tips:        []TipCard{},
	}
	if latest.WellBeing != nil {
		dashboard.Tips = tipCards(*latest.WellBeing)
	}
	// 页面最多展示 3 条解读
	if len(dashboard.Correlation.Insights) > scoring.MaxTips {
		dashboard.Correlation.Insights = dashboard.Correlation.Insights[:scoring.MaxTips]
	}
	return dashboard
}
