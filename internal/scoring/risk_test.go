package scoring

import "testing"

func rank(level RiskLevel) int {
	switch level {
	case RiskHigh:
		return 2
	case RiskMedium:
		return 1
	default:
		return 0
	}
}

func TestCalculateRiskLevelExamples(t *testing.T) {
	tests := []struct {
		name       string
		attendance float64
		marks      float64
		wellBeing  *WellBeingRecord
		want       RiskLevel
		wantScore  int
	}{
		{name: "low attendance and marks", attendance: 60, marks: 45, want: RiskHigh, wantScore: 6},
		{name: "healthy", attendance: 90, marks: 80, wellBeing: &WellBeingRecord{Mood: 5, Stress: 1, Sleep: 5, Motivation: 5}, want: RiskLow, wantScore: 0},
		{name: "borderline medium", attendance: 74, marks: 65, want: RiskMedium, wantScore: 3},
		{name: "stress pushes to high", attendance: 80, marks: 65, wellBeing: &WellBeingRecord{Mood: 2, Stress: 5, Sleep: 2, Motivation: 2}, want: RiskHigh, wantScore: 5},
		{name: "mild stress", attendance: 90, marks: 90, wellBeing: &WellBeingRecord{Mood: 3, Stress: 4, Sleep: 3, Motivation: 3}, want: RiskLow, wantScore: 1},
		{name: "no records", attendance: 0, marks: 0, want: RiskHigh, wantScore: 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RiskScore(tt.attendance, tt.marks, tt.wellBeing); got != tt.wantScore {
				t.Fatalf("RiskScore = %d, want %d", got, tt.wantScore)
			}
			if got := CalculateRiskLevel(tt.attendance, tt.marks, tt.wellBeing); got != tt.want {
				t.Fatalf("CalculateRiskLevel = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCalculateRiskLevelMonotonic(t *testing.T) {
	for fixed := 0.0; fixed <= 100; fixed += 5 {
		prev := -1
		for a := 100.0; a >= 0; a-- {
			r := rank(CalculateRiskLevel(a, fixed, nil))
			if r < prev {
				t.Fatalf("risk decreased as attendance dropped: a=%v marks=%v", a, fixed)
			}
			prev = r
		}

		prev = -1
		for m := 100.0; m >= 0; m-- {
			r := rank(CalculateRiskLevel(fixed, m, nil))
			if r < prev {
				t.Fatalf("risk decreased as marks dropped: attendance=%v m=%v", fixed, m)
			}
			prev = r
		}
	}
}

func TestRiskLevelFromHistoryUsesLatest(t *testing.T) {
	attendance := []AttendanceRecord{{Date: "2024-11-18", Percentage: 50}, {Date: "2024-11-25", Percentage: 95}}
	marks := []MarksRecord{{Date: "2024-11-18", Average: 30}, {Date: "2024-11-25", Average: 88}}

	if got := RiskLevelFromHistory(attendance, marks, nil); got != RiskLow {
		t.Fatalf("expected low from latest records, got %s", got)
	}
	if got := RiskLevelFromHistory(nil, nil, nil); got != RiskHigh {
		t.Fatalf("expected empty history to be high, got %s", got)
	}
}

func TestSubjectRisk(t *testing.T) {
	tests := []struct {
		name    string
		subject SubjectData
		want    RiskLevel
	}{
		{name: "three mild factors", subject: SubjectData{Attendance: 70, InternalMarks: 55, AssignmentsDone: 2, TotalAssignments: 3}, want: RiskHigh},
		{name: "all good", subject: SubjectData{Attendance: 90, InternalMarks: 80, AssignmentsDone: 3, TotalAssignments: 3}, want: RiskLow},
		{name: "low attendance only", subject: SubjectData{Attendance: 60, InternalMarks: 80, AssignmentsDone: 3, TotalAssignments: 3}, want: RiskMedium},
		{name: "one mild factor", subject: SubjectData{Attendance: 80, InternalMarks: 58, AssignmentsDone: 3, TotalAssignments: 3}, want: RiskLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SubjectRisk(tt.subject); got != tt.want {
				t.Fatalf("SubjectRisk = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSubjectRiskMapIsPerSubject(t *testing.T) {
	subjects := []SubjectData{
		{Name: "DSA", Attendance: 95, InternalMarks: 90, AssignmentsDone: 2, TotalAssignments: 2},
		{Name: "DBMS", Attendance: 60, InternalMarks: 40, AssignmentsDone: 1, TotalAssignments: 3},
	}

	entries := SubjectRiskMap(subjects)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Risk != RiskLow || entries[1].Risk != RiskHigh {
		t.Fatalf("unexpected risks: %s %s", entries[0].Risk, entries[1].Risk)
	}
	if entries[1].Pending != 2 {
		t.Fatalf("expected 2 pending for DBMS, got %d", entries[1].Pending)
	}
}
