package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/studentpulse/internal/db"
	"gorm.io/gorm"
)

// ErrUnknownStreakType 表示连续记录类别不在 attendance/assignment/checkin 之内
var ErrUnknownStreakType = errors.New("unknown streak type")

// StreakSummary 汇总所有连续记录
type StreakSummary struct {
	Streaks []Streak `json:"streaks"`
	Total   int      `json:"total"`
	Best    int      `json:"best"`
	Message string   `json:"message"`
}

// StreakService 维护学生的连续记录。
// resetOnGap 为 false 时 current 只增不减，为 true 时间隔超限从 1 重新计数。
type StreakService struct {
	db         *gorm.DB
	resetOnGap bool
}

// NewStreakService 构造 StreakService
func NewStreakService(gdb *gorm.DB, resetOnGap bool) *StreakService {
	return &StreakService{db: gdb, resetOnGap: resetOnGap}
}

// Bump 记录一次积极行为，返回更新后的连续记录。
func (s *StreakService) Bump(studentID uint, streakType string, date time.Time) (Streak, error) {
	var result Streak
	err := s.db.Transaction(func(tx *gorm.DB) error {
		row, err := bumpStreak(tx, studentID, streakType, date, s.resetOnGap)
		if err != nil {
			return err
		}
		result = streakFromModel(*row)
		return nil
	})
	return result, err
}

// Summary 返回学生的全部连续记录与鼓励语
func (s *StreakService) Summary(studentID uint) (StreakSummary, error) {
	var rows []db.Streak
	if err := s.db.Where("student_id = ?", studentID).Order("id ASC").Find(&rows).Error; err != nil {
		return StreakSummary{}, fmt.Errorf("list streaks: %w", err)
	}

	streaks := make([]Streak, 0, len(rows))
	for _, row := range rows {
		streaks = append(streaks, streakFromModel(row))
	}
	return SummarizeStreaks(streaks), nil
}

// SummarizeStreaks 计算总连续次数与最佳记录
func SummarizeStreaks(streaks []Streak) StreakSummary {
	summary := StreakSummary{Streaks: streaks}
	for _, streak := range streaks {
		summary.Total += streak.Current
		if streak.Best > summary.Best {
			summary.Best = streak.Best
		}
	}
	if summary.Total >= 10 {
		summary.Message = "Amazing consistency! Keep going!"
	} else {
		summary.Message = "Great streak! Keep it up!"
	}
	return summary
}

// bumpStreak 在给定事务中更新连续记录，供打卡与作业切换复用。
func bumpStreak(tx *gorm.DB, studentID uint, streakType string, date time.Time, resetOnGap bool) (*db.Streak, error) {
	if !validStreakType(streakType) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStreakType, streakType)
	}

	day := normalizeToDate(date)

	var row db.Streak
	err := tx.Where("student_id = ? AND type = ?", studentID, streakType).First(&row).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find streak: %w", err)
	}
	row.StudentID = studentID
	row.Type = streakType

	if row.LastDate != nil {
		last := normalizeToDate(*row.LastDate)
		// 同一天的出勤与打卡不重复计数
		if last.Equal(day) && streakType != db.StreakAssignment {
			return &row, nil
		}
		if resetOnGap && day.Sub(last) > streakGap(streakType) {
			row.Current = 0
		}
	}

	row.Current++
	if row.Current > row.Best {
		row.Best = row.Current
	}
	row.LastDate = &day

	if err := tx.Save(&row).Error; err != nil {
		return nil, fmt.Errorf("save streak: %w", err)
	}
	return &row, nil
}

func streakGap(streakType string) time.Duration {
	if streakType == db.StreakAssignment {
		return 7 * 24 * time.Hour
	}
	return 24 * time.Hour
}

func validStreakType(streakType string) bool {
	switch streakType {
	case db.StreakAttendance, db.StreakAssignment, db.StreakCheckIn:
		return true
	}
	return false
}
