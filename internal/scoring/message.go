package scoring

import (
	"fmt"
	"strings"
)

// LowAttendanceThreshold 是科目出勤提示的阈值。
const LowAttendanceThreshold = 75

const (
	lowRiskMessage  = "Great progress! Keep up the excellent work and maintain your momentum!"
	highRiskMessage = "We're here to help! Let's work together to get back on track. Reach out to your mentor."
)

// LowAttendanceSubjects 返回出勤低于阈值的科目名称，保持输入顺序。
func LowAttendanceSubjects(subjects []SubjectData) []string {
	names := make([]string, 0, len(subjects))
	for _, subject := range subjects {
		if subject.Attendance < LowAttendanceThreshold {
			name := strings.TrimSpace(subject.Name)
			if name == "" {
				name = subject.Code
			}
			names = append(names, name)
		}
	}
	return names
}

// RiskMessage 根据风险等级生成提示语。low 与 high 固定文案；
// medium 视是否存在低出勤科目选择模板，并带上未完成作业数。
func RiskMessage(level RiskLevel, subjects []SubjectData, assignments []Assignment) string {
	switch level {
	case RiskLow:
		return lowRiskMessage
	case RiskHigh:
		return highRiskMessage
	}

	pending := PendingAssignments(assignments)
	pendingText := pendingPhrase(pending)

	if low := LowAttendanceSubjects(subjects); len(low) > 0 {
		return fmt.Sprintf("Medium risk: Attendance is below %d%% in %s. %s You've got this!",
			LowAttendanceThreshold, strings.Join(low, ", "), pendingText)
	}
	return fmt.Sprintf("Medium risk: Some areas need attention. %s Small steps lead to big improvements!", pendingText)
}

func pendingPhrase(pending int) string {
	switch pending {
	case 0:
		return "All assignments are done."
	case 1:
		return "1 assignment is pending."
	default:
		return fmt.Sprintf("%d assignments are pending.", pending)
	}
}
