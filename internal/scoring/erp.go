package scoring

import (
	"math"
	"strconv"
	"strings"
)

// 教务系统中的学籍状态。
const (
	ERPStatusRegular       = "Regular"
	ERPStatusLowAttendance = "Low Attendance"
	ERPStatusDetained      = "Detained"
)

// ParseCIEMarks 把 "18/20" 形式的平时成绩转为四舍五入的百分比。
// 格式无法解析或总分为 0 时返回 0。
func ParseCIEMarks(raw string) int {
	obtainedText, totalText, ok := strings.Cut(strings.TrimSpace(raw), "/")
	if !ok {
		return 0
	}
	obtained, err := strconv.ParseFloat(strings.TrimSpace(obtainedText), 64)
	if err != nil {
		return 0
	}
	total, err := strconv.ParseFloat(strings.TrimSpace(totalText), 64)
	if err != nil || total == 0 {
		return 0
	}
	return int(math.Round(obtained / total * 100))
}

// ERPRiskLevel 根据学籍状态、出勤和平时成绩判断风险等级。
func ERPRiskLevel(status string, attendance float64, cieMarks string) RiskLevel {
	marks := ParseCIEMarks(cieMarks)
	switch {
	case status == ERPStatusDetained || attendance < 65 || marks < 50:
		return RiskHigh
	case status == ERPStatusLowAttendance || attendance < 75 || marks < 60:
		return RiskMedium
	default:
		return RiskLow
	}
}
