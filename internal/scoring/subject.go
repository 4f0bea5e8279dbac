package scoring

// SubjectRiskEntry 是科目风险图中的一项。
type SubjectRiskEntry struct {
	Subject SubjectData `json:"subject"`
	Risk    RiskLevel   `json:"risk"`
	Pending int         `json:"pendingAssignments"`
}

// SubjectRisk 计算单个科目的风险等级：
// 出勤 <65 +2、<75 +1；成绩 <50 +2、<60 +1；作业未做完 +1。
// 分数 >=3 high，>=2 medium，其余 low。
func SubjectRisk(subject SubjectData) RiskLevel {
	score := 0

	switch {
	case subject.Attendance < 65:
		score += 2
	case subject.Attendance < 75:
		score++
	}

	switch {
	case subject.InternalMarks < 50:
		score += 2
	case subject.InternalMarks < 60:
		score++
	}

	if subject.AssignmentsDone < subject.TotalAssignments {
		score++
	}

	switch {
	case score >= 3:
		return RiskHigh
	case score >= 2:
		return RiskMedium
	default:
		return RiskLow
	}
}

// SubjectRiskMap 逐科目独立评估，不做跨科目汇总。
func SubjectRiskMap(subjects []SubjectData) []SubjectRiskEntry {
	entries := make([]SubjectRiskEntry, 0, len(subjects))
	for _, subject := range subjects {
		pending := subject.TotalAssignments - subject.AssignmentsDone
		if pending < 0 {
			pending = 0
		}
		entries = append(entries, SubjectRiskEntry{
			Subject: subject,
			Risk:    SubjectRisk(subject),
			Pending: pending,
		})
	}
	return entries
}
