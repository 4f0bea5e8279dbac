package service

import (
	"github.com/studentpulse/internal/db"
	"github.com/studentpulse/internal/scoring"
)

// DemoStudentCode 是内置演示学生的学号。
const DemoStudentCode = "STU001"

// StudentProfile 是学生档案的对外表示。
type StudentProfile struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	Photo      string `json:"photo"`
	Course     string `json:"course"`
	Semester   int    `json:"semester"`
	Section    string `json:"section"`
	RollNumber string `json:"rollNumber"`
}

// Goals 是每周目标，Completed 始终落在 [0, WeeklyTarget]。
type Goals struct {
	WeeklyTarget int `json:"weeklyTarget"`
	Completed    int `json:"completed"`
}

// Streak 是某类行为的连续记录。
type Streak struct {
	Type     string `json:"type"`
	Current  int    `json:"current"`
	Best     int    `json:"best"`
	LastDate string `json:"lastDate,omitempty"`
}

// Reflection 是一条每周复盘。
type Reflection struct {
	WeekStart string `json:"weekStart"`
	WentWell  string `json:"wentWell"`
	ToImprove string `json:"toImprove"`
}

// FocusSession 是一次完成的专注计时。
type FocusSession struct {
	Subject         string `json:"subject"`
	DurationMinutes int    `json:"durationMinutes"`
	CompletedAt     string `json:"completedAt"`
}

// ScheduleItem 是日程中的一项。
type ScheduleItem struct {
	Date  string `json:"date"`
	Time  string `json:"time"`
	Title string `json:"title"`
	Type  string `json:"type"`
}

// StudentData 是一个学生的完整数据快照，导入导出时作为单个 JSON 文档。
type StudentData struct {
	Profile       StudentProfile             `json:"profile"`
	Attendance    []scoring.AttendanceRecord `json:"attendance"`
	Marks         []scoring.MarksRecord      `json:"marks"`
	WellBeing     []scoring.WellBeingRecord  `json:"wellBeing"`
	Assignments   []scoring.Assignment       `json:"assignments"`
	Subjects      []scoring.SubjectData      `json:"subjects"`
	Schedule      []ScheduleItem             `json:"schedule"`
	Streaks       []Streak                   `json:"streaks"`
	Reflections   []Reflection               `json:"reflections"`
	FocusSessions []FocusSession             `json:"focusSessions"`
	Goals         Goals                      `json:"goals"`
}

// DefaultStudentData 返回内置的演示数据集，每次调用都是新副本。
func DefaultStudentData() StudentData {
	return StudentData{
		Profile: StudentProfile{
			ID:         DemoStudentCode,
			Name:       "Aryan Sharma",
			Course:     "B.Tech CSE",
			Semester:   5,
			Section:    "A",
			RollNumber: "0201CS211001",
		},
		Attendance: []scoring.AttendanceRecord{
			{Date: "2024-11-18", Percentage: 78},
			{Date: "2024-11-25", Percentage: 82},
			{Date: "2024-12-02", Percentage: 75},
			{Date: "2024-12-09", Percentage: 80},
			{Date: "2024-12-16", Percentage: 85},
			{Date: "2024-12-23", Percentage: 79},
		},
		Marks: []scoring.MarksRecord{
			{Date: "2024-11-18", Average: 72},
			{Date: "2024-11-25", Average: 75},
			{Date: "2024-12-02", Average: 70},
			{Date: "2024-12-09", Average: 78},
			{Date: "2024-12-16", Average: 82},
			{Date: "2024-12-23", Average: 76},
		},
		WellBeing: []scoring.WellBeingRecord{
			{Date: "2024-11-18", Mood: 4, Stress: 3, Sleep: 3, Motivation: 4},
			{Date: "2024-11-25", Mood: 3, Stress: 4, Sleep: 2, Motivation: 3},
			{Date: "2024-12-02", Mood: 3, Stress: 3, Sleep: 3, Motivation: 3},
			{Date: "2024-12-09", Mood: 4, Stress: 2, Sleep: 4, Motivation: 4},
			{Date: "2024-12-16", Mood: 5, Stress: 2, Sleep: 4, Motivation: 5},
			{Date: "2024-12-23", Mood: 4, Stress: 3, Sleep: 3, Motivation: 4},
		},
		Assignments: []scoring.Assignment{
			{ID: "1", Title: "Data Structures Lab Report", Subject: "DSA", DueDate: "2024-12-28"},
			{ID: "2", Title: "DBMS Project Submission", Subject: "DBMS", DueDate: "2024-12-30"},
			{ID: "3", Title: "Software Engineering Case Study", Subject: "SE", DueDate: "2025-01-02"},
		},
		Subjects: []scoring.SubjectData{
			{ID: "1", Name: "Data Structures", Code: "DSA", Attendance: 82, InternalMarks: 75, AssignmentsDone: 2, TotalAssignments: 3},
			{ID: "2", Name: "Database Management", Code: "DBMS", Attendance: 72, InternalMarks: 68, AssignmentsDone: 1, TotalAssignments: 2},
			{ID: "3", Name: "Software Engineering", Code: "SE", Attendance: 88, InternalMarks: 80, AssignmentsDone: 2, TotalAssignments: 2},
			{ID: "4", Name: "Operating Systems", Code: "OS", Attendance: 68, InternalMarks: 58, AssignmentsDone: 1, TotalAssignments: 3},
		},
		Schedule: []ScheduleItem{
			{Date: "2024-12-23", Time: "09:00", Title: "Data Structures Lecture", Type: "class"},
			{Date: "2024-12-23", Time: "11:00", Title: "DBMS Lab", Type: "class"},
			{Date: "2024-12-23", Time: "14:00", Title: "Submit DSA Lab Report", Type: "assignment"},
			{Date: "2024-12-23", Time: "16:00", Title: "Operating Systems Quiz", Type: "test"},
		},
		Streaks: []Streak{
			{Type: db.StreakAttendance, Current: 5, Best: 8, LastDate: "2024-12-23"},
			{Type: db.StreakAssignment, Current: 3, Best: 6, LastDate: "2024-12-20"},
			{Type: db.StreakCheckIn, Current: 6, Best: 12, LastDate: "2024-12-23"},
		},
		Reflections:   []Reflection{},
		FocusSessions: []FocusSession{},
		Goals:         Goals{WeeklyTarget: 10, Completed: 7},
	}
}

// mergeWithDefaults 用默认数据补齐缺失的顶层字段，已有字段保持不变。
func mergeWithDefaults(data StudentData) StudentData {
	defaults := DefaultStudentData()

	if data.Profile.ID == "" {
		data.Profile.ID = defaults.Profile.ID
	}
	if data.Profile.Name == "" {
		data.Profile.Name = defaults.Profile.Name
	}
	if data.Attendance == nil {
		data.Attendance = defaults.Attendance
	}
	if data.Marks == nil {
		data.Marks = defaults.Marks
	}
	if data.WellBeing == nil {
		data.WellBeing = defaults.WellBeing
	}
	if data.Assignments == nil {
		data.Assignments = defaults.Assignments
	}
	if data.Subjects == nil {
		data.Subjects = defaults.Subjects
	}
	if data.Schedule == nil {
		data.Schedule = defaults.Schedule
	}
	if data.Streaks == nil {
		data.Streaks = defaults.Streaks
	}
	if data.Reflections == nil {
		data.Reflections = defaults.Reflections
	}
	if data.FocusSessions == nil {
		data.FocusSessions = defaults.FocusSessions
	}
	if data.Goals.WeeklyTarget <= 0 {
		data.Goals = defaults.Goals
	}
	data.Goals.Completed = clampInt(data.Goals.Completed, 0, data.Goals.WeeklyTarget)
	return data
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
