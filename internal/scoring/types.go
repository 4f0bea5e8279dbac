// Package scoring 汇集学生风险与平衡度评估的纯函数。
//
// 所有函数只依赖入参，不访问存储或网络；记录切片按时间升序排列，
// 最后一个元素视为“最新”记录。日期统一使用 2006-01-02 格式的字符串。
package scoring

import "math"

// DateLayout 是记录日期使用的格式。
const DateLayout = "2006-01-02"

// RiskLevel 表示三档风险等级。
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Valid 判断风险等级是否为已知取值。
func (l RiskLevel) Valid() bool {
	switch l {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

// AttendanceRecord 是某一天的出勤百分比。
type AttendanceRecord struct {
	Date       string  `json:"date"`
	Percentage float64 `json:"percentage"`
}

// MarksRecord 是某一天的平均成绩百分比。
type MarksRecord struct {
	Date    string  `json:"date"`
	Average float64 `json:"average"`
}

// WellBeingRecord 是每日一次的身心状态自评，各项取值 1-5。
type WellBeingRecord struct {
	Date       string `json:"date"`
	Mood       int    `json:"mood"`
	Stress     int    `json:"stress"`
	Sleep      int    `json:"sleep"`
	Motivation int    `json:"motivation"`
}

// Assignment 是一项作业。
type Assignment struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Subject   string `json:"subject"`
	DueDate   string `json:"dueDate"`
	Completed bool   `json:"completed"`
}

// SubjectData 是单个科目的当前快照，而非时间序列。
type SubjectData struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Code             string  `json:"code"`
	Attendance       float64 `json:"attendance"`
	InternalMarks    float64 `json:"internalMarks"`
	AssignmentsDone  int     `json:"assignmentsDone"`
	TotalAssignments int     `json:"totalAssignments"`
}

// ValidScale 判断自评分值是否落在 1-5。
func ValidScale(v int) bool {
	return v >= 1 && v <= 5
}

// Valid 校验四项自评均在 1-5 之间。
func (r WellBeingRecord) Valid() bool {
	return ValidScale(r.Mood) && ValidScale(r.Stress) && ValidScale(r.Sleep) && ValidScale(r.Motivation)
}

// ClampPercent 将百分比限制在 [0,100]。
func ClampPercent(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(100, v))
}

// LatestAttendance 返回最新出勤百分比，没有记录时为 0。
func LatestAttendance(records []AttendanceRecord) float64 {
	if len(records) == 0 {
		return 0
	}
	return records[len(records)-1].Percentage
}

// LatestMarks 返回最新平均成绩，没有记录时为 0。
func LatestMarks(records []MarksRecord) float64 {
	if len(records) == 0 {
		return 0
	}
	return records[len(records)-1].Average
}

// LatestWellBeing 返回最新自评记录，没有记录时为 nil。
func LatestWellBeing(records []WellBeingRecord) *WellBeingRecord {
	if len(records) == 0 {
		return nil
	}
	latest := records[len(records)-1]
	return &latest
}

// PendingAssignments 统计未完成作业数量。
func PendingAssignments(assignments []Assignment) int {
	pending := 0
	for _, a := range assignments {
		if !a.Completed {
			pending++
		}
	}
	return pending
}
