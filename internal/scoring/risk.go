package scoring

// RiskScore 按出勤、成绩、身心状态三条独立阶梯累加风险分。
// wellBeing 为 nil 时身心部分不计分。
func RiskScore(attendance, marks float64, wellBeing *WellBeingRecord) int {
	score := 0

	switch {
	case attendance < 65:
		score += 3
	case attendance < 75:
		score += 2
	case attendance < 85:
		score += 1
	}

	switch {
	case marks < 50:
		score += 3
	case marks < 60:
		score += 2
	case marks < 70:
		score += 1
	}

	if wellBeing != nil {
		avg := float64(wellBeing.Mood+wellBeing.Sleep+wellBeing.Motivation) / 3
		switch {
		case avg < 2:
			score += 2
		case avg < 3:
			score += 1
		}

		switch {
		case wellBeing.Stress > 4:
			score += 2
		case wellBeing.Stress > 3:
			score += 1
		}
	}

	return score
}

// CalculateRiskLevel 将风险分映射为等级：>=5 high，>=3 medium，其余 low。
func CalculateRiskLevel(attendance, marks float64, wellBeing *WellBeingRecord) RiskLevel {
	score := RiskScore(attendance, marks, wellBeing)
	switch {
	case score >= 5:
		return RiskHigh
	case score >= 3:
		return RiskMedium
	default:
		return RiskLow
	}
}

// RiskLevelFromHistory 取各序列的最新记录计算风险等级。
func RiskLevelFromHistory(attendance []AttendanceRecord, marks []MarksRecord, wellBeing []WellBeingRecord) RiskLevel {
	return CalculateRiskLevel(LatestAttendance(attendance), LatestMarks(marks), LatestWellBeing(wellBeing))
}
