package db

import (
	"time"

	"gorm.io/gorm"
)

// Student 是学生档案，同时保存每周目标。
// Code 是对外使用的学号（如 STU001），与自增主键分开。
type Student struct {
	gorm.Model
	Code           string `gorm:"size:32;uniqueIndex;not null"`
	Name           string `gorm:"not null"`
	Email          string
	Course         string
	Semester       int
	Section        string
	RollNumber     string `gorm:"size:32;index"`
	PhotoURL       string
	WeeklyTarget   int `gorm:"not null;default:10"`
	GoalsCompleted int `gorm:"not null;default:0"`
}

// Subject 是某个学生在一门课上的当前快照。
type Subject struct {
	gorm.Model
	StudentID        uint   `gorm:"index;not null"`
	Name             string `gorm:"not null"`
	Code             string
	Attendance       float64
	InternalMarks    float64
	AssignmentsDone  int
	TotalAssignments int
}

// AttendanceRecord 记录某一天的出勤百分比，按日期追加。
type AttendanceRecord struct {
	gorm.Model
	StudentID  uint      `gorm:"index:idx_attendance_student_date;not null"`
	Date       time.Time `gorm:"index:idx_attendance_student_date"`
	Percentage float64
}

// MarksRecord 记录某一天的平均成绩。
type MarksRecord struct {
	gorm.Model
	StudentID uint      `gorm:"index:idx_marks_student_date;not null"`
	Date      time.Time `gorm:"index:idx_marks_student_date"`
	Average   float64
}

// WellBeingRecord 是每日身心自评。
// StudentID + Date 唯一，同一天重复提交会覆盖。
type WellBeingRecord struct {
	gorm.Model
	StudentID  uint      `gorm:"index:idx_wellbeing_unique,unique;not null"`
	Date       time.Time `gorm:"index:idx_wellbeing_unique,unique"`
	Mood       int
	Stress     int
	Sleep      int
	Motivation int
}

// TableName 固定表名以保证唯一索引作用到 student_id + date
func (WellBeingRecord) TableName() string {
	return "wellbeing_records"
}

// Assignment 是一项作业，主键使用 uuid 字符串。
type Assignment struct {
	ID          string `gorm:"primaryKey;size:36"`
	StudentID   uint   `gorm:"index;not null"`
	Title       string `gorm:"not null"`
	Subject     string
	DueDate     time.Time
	Completed   bool `gorm:"not null;default:false"`
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
