// Package analytics 保存学生的历史明细行，供趋势分析与模型特征使用。
package analytics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/studentpulse/internal/store"
	"gorm.io/gorm"
)

// 数据集中的表名。
const (
	TableAttendance      = "attendance_history"
	TableMarks           = "marks_history"
	TableWellBeing       = "wellbeing_history"
	TableInterventions   = "interventions"
	TableRiskPredictions = "risk_predictions"
)

// ErrInvalidRow 表示写入的行不满足表约束。
var ErrInvalidRow = errors.New("invalid analytics row")

// AttendanceRow 是一次课堂出勤。
type AttendanceRow struct {
	StudentID string `json:"student_id"`
	Date      string `json:"date"`
	Status    string `json:"status"`
	Subject   string `json:"subject,omitempty"`
}

// MarksRow 是一次测验或考试成绩。
type MarksRow struct {
	StudentID string  `json:"student_id"`
	Subject   string  `json:"subject"`
	Score     float64 `json:"score"`
	MaxScore  float64 `json:"max_score"`
	ExamType  string  `json:"exam_type"`
	Date      string  `json:"date"`
}

// WellBeingRow 是一次身心自评的历史快照。
type WellBeingRow struct {
	StudentID   string  `json:"student_id"`
	Date        string  `json:"date"`
	MoodScore   int     `json:"mood_score"`
	StressLevel int     `json:"stress_level"`
	SleepHours  float64 `json:"sleep_hours"`
	Notes       string  `json:"notes,omitempty"`
}

// InterventionRow 是导师的一次干预记录。
type InterventionRow struct {
	StudentID string `json:"student_id"`
	MentorID  string `json:"mentor_id"`
	Date      string `json:"date"`
	Type      string `json:"type"`
	Notes     string `json:"notes"`
	Outcome   string `json:"outcome,omitempty"`
}

// RiskPredictionRow 是一次风险预测的审计记录。
type RiskPredictionRow struct {
	StudentID      string    `json:"student_id"`
	PredictionDate time.Time `json:"prediction_date"`
	RiskLevel      string    `json:"risk_level"`
	Confidence     float64   `json:"confidence"`
	Factors        string    `json:"factors"`
	ModelVersion   string    `json:"model_version"`
}

var (
	attendanceStatuses = map[string]bool{"present": true, "absent": true, "late": true}
	examTypes          = map[string]bool{"quiz": true, "midterm": true, "final": true, "assignment": true}
	interventionTypes  = map[string]bool{"counseling": true, "academic_support": true, "parent_meeting": true, "follow_up": true}
)

// Warehouse 聚合五张类型化的表。
type Warehouse struct {
	attendance    store.Table[AttendanceRow]
	marks         store.Table[MarksRow]
	wellBeing     store.Table[WellBeingRow]
	interventions store.Table[InterventionRow]
	predictions   store.Table[RiskPredictionRow]
}

// NewMemoryWarehouse 构造进程内的数据集。
func NewMemoryWarehouse() *Warehouse {
	return &Warehouse{
		attendance:    store.NewMemoryTable[AttendanceRow](),
		marks:         store.NewMemoryTable[MarksRow](),
		wellBeing:     store.NewMemoryTable[WellBeingRow](),
		interventions: store.NewMemoryTable[InterventionRow](),
		predictions:   store.NewMemoryTable[RiskPredictionRow](),
	}
}

// NewGormWarehouse 构造落在 documents 表中的数据集。
func NewGormWarehouse(gdb *gorm.DB) *Warehouse {
	return &Warehouse{
		attendance:    store.NewGormTable[AttendanceRow](gdb, TableAttendance),
		marks:         store.NewGormTable[MarksRow](gdb, TableMarks),
		wellBeing:     store.NewGormTable[WellBeingRow](gdb, TableWellBeing),
		interventions: store.NewGormTable[InterventionRow](gdb, TableInterventions),
		predictions:   store.NewGormTable[RiskPredictionRow](gdb, TableRiskPredictions),
	}
}

// InsertAttendance 追加出勤行，返回写入条数。
func (w *Warehouse) InsertAttendance(ctx context.Context, rows ...AttendanceRow) (int, error) {
	for _, row := range rows {
		if strings.TrimSpace(row.StudentID) == "" || !attendanceStatuses[row.Status] {
			return 0, fmt.Errorf("%w: attendance status %q", ErrInvalidRow, row.Status)
		}
	}
	return insertAll(ctx, w.attendance, rows)
}

// InsertMarks 追加成绩行。
func (w *Warehouse) InsertMarks(ctx context.Context, rows ...MarksRow) (int, error) {
	for _, row := range rows {
		if strings.TrimSpace(row.StudentID) == "" || !examTypes[row.ExamType] || row.MaxScore <= 0 {
			return 0, fmt.Errorf("%w: marks row for %q", ErrInvalidRow, row.Subject)
		}
	}
	return insertAll(ctx, w.marks, rows)
}

// InsertWellBeing 追加身心自评行。
func (w *Warehouse) InsertWellBeing(ctx context.Context, rows ...WellBeingRow) (int, error) {
	for _, row := range rows {
		if strings.TrimSpace(row.StudentID) == "" {
			return 0, fmt.Errorf("%w: wellbeing row without student", ErrInvalidRow)
		}
	}
	return insertAll(ctx, w.wellBeing, rows)
}

// InsertInterventions 追加干预行。
func (w *Warehouse) InsertInterventions(ctx context.Context, rows ...InterventionRow) (int, error) {
	for _, row := range rows {
		if strings.TrimSpace(row.StudentID) == "" || !interventionTypes[row.Type] {
			return 0, fmt.Errorf("%w: intervention type %q", ErrInvalidRow, row.Type)
		}
	}
	return insertAll(ctx, w.interventions, rows)
}

// StoreRiskPrediction 保存一次预测，时间为空时取当前时间。
func (w *Warehouse) StoreRiskPrediction(ctx context.Context, row RiskPredictionRow) error {
	if row.PredictionDate.IsZero() {
		row.PredictionDate = time.Now().UTC()
	}
	_, err := insertAll(ctx, w.predictions, []RiskPredictionRow{row})
	return err
}

// AttendanceHistory 按日期倒序返回，limit<=0 表示全部。
func (w *Warehouse) AttendanceHistory(ctx context.Context, studentID string, limit int) ([]AttendanceRow, error) {
	return history(ctx, w.attendance, limit,
		func(r AttendanceRow) bool { return r.StudentID == studentID },
		func(a, b AttendanceRow) bool { return a.Date > b.Date })
}

// MarksHistory 按日期倒序返回。
func (w *Warehouse) MarksHistory(ctx context.Context, studentID string, limit int) ([]MarksRow, error) {
	return history(ctx, w.marks, limit,
		func(r MarksRow) bool { return r.StudentID == studentID },
		func(a, b MarksRow) bool { return a.Date > b.Date })
}

// WellBeingHistory 按日期倒序返回。
func (w *Warehouse) WellBeingHistory(ctx context.Context, studentID string, limit int) ([]WellBeingRow, error) {
	return history(ctx, w.wellBeing, limit,
		func(r WellBeingRow) bool { return r.StudentID == studentID },
		func(a, b WellBeingRow) bool { return a.Date > b.Date })
}

// Interventions 按日期倒序返回某个学生的干预记录。
func (w *Warehouse) Interventions(ctx context.Context, studentID string, limit int) ([]InterventionRow, error) {
	return history(ctx, w.interventions, limit,
		func(r InterventionRow) bool { return r.StudentID == studentID },
		func(a, b InterventionRow) bool { return a.Date > b.Date })
}

// RiskPredictionHistory 按预测时间倒序返回。
func (w *Warehouse) RiskPredictionHistory(ctx context.Context, studentID string, limit int) ([]RiskPredictionRow, error) {
	return history(ctx, w.predictions, limit,
		func(r RiskPredictionRow) bool { return r.StudentID == studentID },
		func(a, b RiskPredictionRow) bool { return a.PredictionDate.After(b.PredictionDate) })
}

func insertAll[T any](ctx context.Context, table store.Table[T], rows []T) (int, error) {
	for i, row := range rows {
		if _, err := table.Insert(ctx, row); err != nil {
			return i, fmt.Errorf("insert analytics row: %w", err)
		}
	}
	return len(rows), nil
}

func history[T any](ctx context.Context, table store.Table[T], limit int, where func(T) bool, less func(a, b T) bool) ([]T, error) {
	records, err := table.Query(ctx, store.Query[T]{Where: where, Less: less, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("query analytics history: %w", err)
	}
	return store.Values(records), nil
}
