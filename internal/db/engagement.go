package db

import (
	"time"

	"gorm.io/gorm"
)

// 连续记录的类别。
const (
	StreakAttendance = "attendance"
	StreakAssignment = "assignment"
	StreakCheckIn    = "checkin"
)

// Streak 记录某类积极行为的连续次数。
// StudentID + Type 唯一。
type Streak struct {
	gorm.Model
	StudentID uint   `gorm:"index:idx_streak_unique,unique;not null"`
	Type      string `gorm:"size:32;index:idx_streak_unique,unique"`
	Current   int
	Best      int
	LastDate  *time.Time
}

// WeeklyReflection 是每周复盘，按 ISO 周一去重。
type WeeklyReflection struct {
	gorm.Model
	StudentID uint      `gorm:"index:idx_reflection_unique,unique;not null"`
	WeekStart time.Time `gorm:"index:idx_reflection_unique,unique"`
	WentWell  string    `gorm:"type:text"`
	ToImprove string    `gorm:"type:text"`
}

// FocusSession 是一次完成的专注计时。
type FocusSession struct {
	gorm.Model
	StudentID       uint `gorm:"index;not null"`
	Subject         string
	DurationMinutes int
	CompletedAt     time.Time `gorm:"index"`
}

// ScheduleItem 是某天的日程条目，Type 取 class/assignment/test。
type ScheduleItem struct {
	gorm.Model
	StudentID uint      `gorm:"index:idx_schedule_student_day;not null"`
	Day       time.Time `gorm:"index:idx_schedule_student_day"`
	Time      string    `gorm:"size:5"`
	Title     string
	Type      string `gorm:"size:16"`
}
