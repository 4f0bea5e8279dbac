package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/studentpulse/internal/analytics"
	"github.com/studentpulse/internal/db"
	"github.com/studentpulse/internal/events"
	"github.com/studentpulse/internal/metrics"
	"github.com/studentpulse/internal/scoring"
	"github.com/studentpulse/internal/view"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrInvalidScale 表示身心自评分不在 1-5 之间
var ErrInvalidScale = errors.New("wellbeing scales must be integers between 1 and 5")

// CheckInInput 是一次每日自评
type CheckInInput struct {
	Date       time.Time
	Mood       int
	Stress     int
	Sleep      int
	Motivation int
}

// TipCard 是带图标样式的建议
type TipCard struct {
	scoring.Tip
	Style view.TipStyle `json:"style"`
}

// CheckInResult 是自评提交后的结果
type CheckInResult struct {
	Record  scoring.WellBeingRecord `json:"record"`
	Created bool                    `json:"created"`
	Streak  *Streak                 `json:"streak,omitempty"`
	Tips    []TipCard               `json:"tips"`
}

// CheckInService 处理每日身心自评。
// 同一学生同一天只保留一条，重复提交覆盖；只有新日期才推进 checkin 连续记录。
type CheckInService struct {
	db         *gorm.DB
	students   *StudentRepository
	warehouse  *analytics.Warehouse
	publisher  events.Publisher
	metrics    *metrics.Metrics
	resetOnGap bool
}

// NewCheckInService 构造 CheckInService
func NewCheckInService(gdb *gorm.DB, students *StudentRepository) *CheckInService {
	return &CheckInService{db: gdb, students: students, publisher: events.NopPublisher{}}
}

// SetWarehouse 设置历史明细的写入目标，nil 表示不写。
func (s *CheckInService) SetWarehouse(w *analytics.Warehouse) { s.warehouse = w }

// SetPublisher 设置事件发布器。
func (s *CheckInService) SetPublisher(p events.Publisher) {
	if p == nil {
		p = events.NopPublisher{}
	}
	s.publisher = p
}

// SetMetrics 设置指标收集器。
func (s *CheckInService) SetMetrics(m *metrics.Metrics) { s.metrics = m }

// SetStreakResetOnGap 控制连续记录在间隔超限时是否重置。
func (s *CheckInService) SetStreakResetOnGap(reset bool) { s.resetOnGap = reset }

// Submit 校验并保存自评，返回对应的建议。
func (s *CheckInService) Submit(ctx context.Context, code string, input CheckInInput) (*CheckInResult, error) {
	if err := validateCheckIn(input); err != nil {
		return nil, err
	}

	student, err := s.students.Resolve(code)
	if err != nil {
		return nil, err
	}

	day := normalizeToDate(input.Date)
	if input.Date.IsZero() {
		day = normalizeToDate(time.Now())
	}

	record := db.WellBeingRecord{
		StudentID:  student.ID,
		Date:       day,
		Mood:       input.Mood,
		Stress:     input.Stress,
		Sleep:      input.Sleep,
		Motivation: input.Motivation,
	}

	result := &CheckInResult{}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var existing int64
		// 软删除的记录同样占用唯一键，会被下面的 upsert 恢复
		if err := tx.Unscoped().Model(&db.WellBeingRecord{}).
			Where("student_id = ? AND date = ?", student.ID, day).
			Count(&existing).Error; err != nil {
			return fmt.Errorf("check wellbeing record: %w", err)
		}
		result.Created = existing == 0

		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "student_id"}, {Name: "date"}},
			DoUpdates: clause.AssignmentColumns([]string{"mood", "stress", "sleep", "motivation", "updated_at", "deleted_at"}),
		}).Create(&record).Error; err != nil {
			return fmt.Errorf("upsert wellbeing record: %w", err)
		}

		if result.Created {
			streak, err := bumpStreak(tx, student.ID, db.StreakCheckIn, day, s.resetOnGap)
			if err != nil {
				return err
			}
			converted := streakFromModel(*streak)
			result.Streak = &converted
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.db.Where("student_id = ? AND date = ?", student.ID, day).First(&record).Error; err != nil {
		return nil, fmt.Errorf("reload wellbeing record: %w", err)
	}

	result.Record = wellBeingFromModel(record)
	result.Tips = tipCards(result.Record)

	s.metrics.CheckIn()
	if s.warehouse != nil {
		row := analytics.WellBeingRow{
			StudentID:   student.Code,
			Date:        result.Record.Date,
			MoodScore:   record.Mood,
			StressLevel: record.Stress,
			SleepHours:  float64(record.Sleep),
		}
		if _, err := s.warehouse.InsertWellBeing(ctx, row); err != nil {
			logServiceError("CHECKIN", "write wellbeing history", err)
		}
	}
	events.PublishBestEffort(ctx, s.publisher, events.TypeCheckInRecorded, student.Code, result.Record)

	return result, nil
}

// History 返回最近的自评记录，按日期倒序，limit<=0 表示全部。
func (s *CheckInService) History(code string, limit int) ([]scoring.WellBeingRecord, error) {
	student, err := s.students.Resolve(code)
	if err != nil {
		return nil, err
	}

	query := s.db.Where("student_id = ?", student.ID).Order("date DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []db.WellBeingRecord
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list wellbeing records: %w", err)
	}

	records := make([]scoring.WellBeingRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, wellBeingFromModel(row))
	}
	return records, nil
}

func validateCheckIn(input CheckInInput) error {
	for _, v := range []int{input.Mood, input.Stress, input.Sleep, input.Motivation} {
		if !scoring.ValidScale(v) {
			return ErrInvalidScale
		}
	}
	return nil
}

// tipCards 把建议与图标样式合并
func tipCards(record scoring.WellBeingRecord) []TipCard {
	tips := scoring.TipsFor(record)
	cards := make([]TipCard, 0, len(tips))
	for _, tip := range tips {
		cards = append(cards, TipCard{Tip: tip, Style: view.TipStyleFor(tip.Key)})
	}
	return cards
}
