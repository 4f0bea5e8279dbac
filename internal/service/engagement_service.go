package service

import (
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/studentpulse/internal/db"
	"github.com/studentpulse/internal/view"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrReflectionIncomplete 表示复盘的两个问题没有都填写
	ErrReflectionIncomplete = errors.New("both reflection answers are required")
	// ErrInvalidFocusDuration 表示专注时长不是 25/40/60 分钟
	ErrInvalidFocusDuration = errors.New("focus duration must be 25, 40 or 60 minutes")
	// ErrInvalidScheduleItem 表示日程条目缺少字段或类型未知
	ErrInvalidScheduleItem = errors.New("invalid schedule item")
)

// FocusDurations 是允许的专注时长（分钟）
var FocusDurations = []int{25, 40, 60}

var scheduleTypes = map[string]bool{"class": true, "assignment": true, "test": true}

// ReflectionView 是带渲染结果的复盘
type ReflectionView struct {
	Reflection
	WentWellHTML  template.HTML `json:"wentWellHtml"`
	ToImproveHTML template.HTML `json:"toImproveHtml"`
}

// DaySchedule 是某天的日程与各类型计数
type DaySchedule struct {
	Date   string         `json:"date"`
	Items  []ScheduleItem `json:"items"`
	Counts map[string]int `json:"counts"`
}

// FocusSummary 汇总专注记录
type FocusSummary struct {
	Sessions     []FocusSession `json:"sessions"`
	TotalMinutes int            `json:"totalMinutes"`
	Count        int            `json:"count"`
}

// EngagementService 负责每周复盘、专注计时与日程。
type EngagementService struct {
	db       *gorm.DB
	students *StudentRepository
	now      func() time.Time
}

// NewEngagementService 构造 EngagementService
func NewEngagementService(gdb *gorm.DB, students *StudentRepository) *EngagementService {
	return &EngagementService{db: gdb, students: students, now: time.Now}
}

// SaveReflection 按 ISO 周一去重保存复盘，重复提交覆盖。
func (s *EngagementService) SaveReflection(code string, date time.Time, wentWell, toImprove string) (*ReflectionView, error) {
	wentWell = strings.TrimSpace(wentWell)
	toImprove = strings.TrimSpace(toImprove)
	if wentWell == "" || toImprove == "" {
		return nil, ErrReflectionIncomplete
	}

	student, err := s.students.Resolve(code)
	if err != nil {
		return nil, err
	}

	if date.IsZero() {
		date = s.now()
	}
	record := db.WeeklyReflection{
		StudentID: student.ID,
		WeekStart: weekStart(date),
		WentWell:  wentWell,
		ToImprove: toImprove,
	}

	if err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "student_id"}, {Name: "week_start"}},
		DoUpdates: clause.AssignmentColumns([]string{"went_well", "to_improve", "updated_at", "deleted_at"}),
	}).Create(&record).Error; err != nil {
		return nil, fmt.Errorf("upsert reflection: %w", err)
	}

	if err := s.db.Where("student_id = ? AND week_start = ?", student.ID, record.WeekStart).First(&record).Error; err != nil {
		return nil, fmt.Errorf("reload reflection: %w", err)
	}
	return renderReflection(reflectionFromModel(record))
}

// Reflections 返回复盘列表，最近一周在前
func (s *EngagementService) Reflections(code string) ([]ReflectionView, error) {
	student, err := s.students.Resolve(code)
	if err != nil {
		return nil, err
	}

	var rows []db.WeeklyReflection
	if err := s.db.Where("student_id = ?", student.ID).Order("week_start DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list reflections: %w", err)
	}

	result := make([]ReflectionView, 0, len(rows))
	for _, row := range rows {
		rendered, err := renderReflection(reflectionFromModel(row))
		if err != nil {
			return nil, err
		}
		result = append(result, *rendered)
	}
	return result, nil
}

// RecordFocusSession 追加一次完成的专注计时
func (s *EngagementService) RecordFocusSession(code, subject string, minutes int) (*FocusSession, error) {
	if !validFocusDuration(minutes) {
		return nil, ErrInvalidFocusDuration
	}
	student, err := s.students.Resolve(code)
	if err != nil {
		return nil, err
	}

	row := db.FocusSession{
		StudentID:       student.ID,
		Subject:         strings.TrimSpace(subject),
		DurationMinutes: minutes,
		CompletedAt:     s.now().UTC(),
	}
	if err := s.db.Create(&row).Error; err != nil {
		return nil, fmt.Errorf("create focus session: %w", err)
	}

	result := focusSessionFromModel(row)
	return &result, nil
}

// FocusSessions 返回专注记录与总时长
func (s *EngagementService) FocusSessions(code string) (FocusSummary, error) {
	student, err := s.students.Resolve(code)
	if err != nil {
		return FocusSummary{}, err
	}

	var rows []db.FocusSession
	if err := s.db.Where("student_id = ?", student.ID).Order("completed_at DESC").Find(&rows).Error; err != nil {
		return FocusSummary{}, fmt.Errorf("list focus sessions: %w", err)
	}

	summary := FocusSummary{Sessions: make([]FocusSession, 0, len(rows)), Count: len(rows)}
	for _, row := range rows {
		summary.Sessions = append(summary.Sessions, focusSessionFromModel(row))
		summary.TotalMinutes += row.DurationMinutes
	}
	return summary, nil
}

// AddScheduleItem 新增一条日程
func (s *EngagementService) AddScheduleItem(code string, item ScheduleItem) (*ScheduleItem, error) {
	day, err := parseDate(item.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScheduleItem, err)
	}
	if _, err := time.Parse("15:04", item.Time); err != nil {
		return nil, fmt.Errorf("%w: time must be HH:MM", ErrInvalidScheduleItem)
	}
	itemType := strings.ToLower(strings.TrimSpace(item.Type))
	if strings.TrimSpace(item.Title) == "" || !scheduleTypes[itemType] {
		return nil, fmt.Errorf("%w: title and type class|assignment|test are required", ErrInvalidScheduleItem)
	}

	student, err := s.students.Resolve(code)
	if err != nil {
		return nil, err
	}

	row := db.ScheduleItem{
		StudentID: student.ID,
		Day:       day,
		Time:      item.Time,
		Title:     strings.TrimSpace(item.Title),
		Type:      itemType,
	}
	if err := s.db.Create(&row).Error; err != nil {
		return nil, fmt.Errorf("create schedule item: %w", err)
	}

	result := scheduleFromModel(row)
	return &result, nil
}

// Schedule 返回某天的日程，按时间排序
func (s *EngagementService) Schedule(code string, date time.Time) (DaySchedule, error) {
	student, err := s.students.Resolve(code)
	if err != nil {
		return DaySchedule{}, err
	}

	day := normalizeToDate(date)
	var rows []db.ScheduleItem
	if err := s.db.Where("student_id = ? AND day = ?", student.ID, day).Order("time ASC").Find(&rows).Error; err != nil {
		return DaySchedule{}, fmt.Errorf("list schedule: %w", err)
	}

	result := DaySchedule{
		Date:   formatDate(day),
		Items:  make([]ScheduleItem, 0, len(rows)),
		Counts: map[string]int{"class": 0, "assignment": 0, "test": 0},
	}
	for _, row := range rows {
		result.Items = append(result.Items, scheduleFromModel(row))
		result.Counts[row.Type]++
	}
	return result, nil
}

func renderReflection(reflection Reflection) (*ReflectionView, error) {
	wentWell, err := view.RenderMarkdown(reflection.WentWell)
	if err != nil {
		return nil, fmt.Errorf("render reflection: %w", err)
	}
	toImprove, err := view.RenderMarkdown(reflection.ToImprove)
	if err != nil {
		return nil, fmt.Errorf("render reflection: %w", err)
	}
	return &ReflectionView{Reflection: reflection, WentWellHTML: wentWell, ToImproveHTML: toImprove}, nil
}

func validFocusDuration(minutes int) bool {
	for _, allowed := range FocusDurations {
		if minutes == allowed {
			return true
		}
	}
	return false
}
